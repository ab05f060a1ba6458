// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package adapter

import (
	"crypto/ecdsa"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/orbs-network/scribe/log"
	"math/big"
	"sync"
	"time"
)

// EthereumSimulator runs against an in-process chain; every transaction is mined right after it is sent
type EthereumSimulator struct {
	connectorCommon

	mu struct {
		sync.Mutex
		simClient *backends.SimulatedBackend
	}
}

func NewEthereumSimulatorConnection(logger log.Logger) *EthereumSimulator {
	// Generate a new random account and a funded simulator
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return NewEthereumSimulatorConnectionWithKey(key, logger)
}

func NewEthereumSimulatorConnectionWithKey(key *ecdsa.PrivateKey, logger log.Logger) *EthereumSimulator {
	e := &EthereumSimulator{}
	e.logger = logger.WithTags(log.String("adapter", "ethereum-sim"))
	e.auth = bind.NewKeyedTransactor(key)
	// the simulated chain accepts unprotected signatures
	e.signer = types.HomesteadSigner{}
	e.confirmationTimeout = 5 * time.Second

	e.getClient = func() (EthereumClient, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.mu.simClient == nil {
			e.createClientAndInitAccount()
		}
		return e.mu.simClient, nil
	}
	e.afterSend = e.Commit

	return e
}

func (es *EthereumSimulator) createClientAndInitAccount() {
	balance := new(big.Int).Mul(big.NewInt(1000), big.NewInt(params.Ether))
	genesisAllocation := map[common.Address]core.GenesisAccount{
		es.auth.From: {Balance: balance},
	}

	es.mu.simClient = backends.NewSimulatedBackend(genesisAllocation, 900000000000)
}

func (es *EthereumSimulator) GetAuth() *bind.TransactOpts {
	// this is used for test code, not protecting this
	return es.auth
}

func (es *EthereumSimulator) Commit() {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.mu.simClient != nil {
		es.mu.simClient.Commit()
	}
}
