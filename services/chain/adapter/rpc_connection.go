// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package adapter

import (
	"crypto/ecdsa"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/orbs-network/scribe/log"
	"github.com/pkg/errors"
	"math/big"
	"strings"
	"sync"
)

type rpcConnectionConfig interface {
	ethereumAdapterConfig
	ChainId() uint64
	DeployerPrivateKey() string
}

type EthereumRpcConnection struct {
	connectorCommon

	config rpcConnectionConfig
	mu     struct {
		sync.Mutex
		client *ethclient.Client
	}
}

// NewEthereumRpcConnection dials lazily. Without a deployer key the connection is read-only:
// loupe reads work and every transaction is refused.
func NewEthereumRpcConnection(config rpcConnectionConfig, logger log.Logger) (*EthereumRpcConnection, error) {
	var auth *bind.TransactOpts
	if strings.TrimSpace(config.DeployerPrivateKey()) != "" {
		key, err := ParsePrivateKey(config.DeployerPrivateKey())
		if err != nil {
			return nil, err
		}
		auth = bind.NewKeyedTransactor(key)
	}

	rpc := &EthereumRpcConnection{
		connectorCommon: connectorCommon{
			logger:              logger.WithTags(log.String("adapter", "ethereum"), log.String("endpoint", config.EthereumEndpoint())),
			auth:                auth,
			signer:              types.NewEIP155Signer(new(big.Int).SetUint64(config.ChainId())),
			confirmationTimeout: config.TransactionConfirmationTimeout(),
		},
		config: config,
	}
	rpc.getClient = func() (EthereumClient, error) {
		return rpc.dial()
	}
	return rpc, nil
}

func (rpc *EthereumRpcConnection) dial() (*ethclient.Client, error) {
	rpc.mu.Lock()
	defer rpc.mu.Unlock()
	if rpc.mu.client == nil {
		client, err := ethclient.Dial(rpc.config.EthereumEndpoint())
		if err != nil {
			return nil, errors.Wrapf(err, "failed to dial %s", rpc.config.EthereumEndpoint())
		}
		rpc.mu.client = client
	}
	return rpc.mu.client, nil
}

func (rpc *EthereumRpcConnection) Close() {
	rpc.mu.Lock()
	defer rpc.mu.Unlock()
	if rpc.mu.client != nil {
		rpc.mu.client.Close()
		rpc.mu.client = nil
	}
}

func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid deployer private key")
	}
	return key, nil
}
