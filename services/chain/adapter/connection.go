// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package adapter

import (
	"context"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/orbs-network/diamond-deployer/instrumentation/logfields"
	"github.com/orbs-network/scribe/log"
	"github.com/pkg/errors"
	"math/big"
	"time"
)

type Receipt struct {
	TxHash          common.Hash
	ContractAddress common.Address
	BlockNumber     uint64
}

// Connection is everything the orchestrator needs from a chain: deploying bytecode, sending
// calldata and reading the diamond's current selector to facet mapping. Both mutating calls return
// only once the transaction is mined.
type Connection interface {
	DeployerAddress() common.Address
	DeployContract(ctx context.Context, bytecode []byte) (*Receipt, error)
	SendTransaction(ctx context.Context, to common.Address, calldata []byte) (*Receipt, error)
	FacetSelectors(ctx context.Context, diamondAddress common.Address) (map[diamond.Selector]common.Address, error)
}

type ethereumAdapterConfig interface {
	EthereumEndpoint() string
	TransactionConfirmationTimeout() time.Duration
}

type EthereumClient interface {
	bind.ContractBackend
	bind.DeployBackend
}

type connectorCommon struct {
	logger              log.Logger
	auth                *bind.TransactOpts
	signer              types.Signer
	confirmationTimeout time.Duration
	getClient           func() (EthereumClient, error)
	afterSend           func()
}

func (c *connectorCommon) DeployerAddress() common.Address {
	if c.auth == nil {
		return common.Address{}
	}
	return c.auth.From
}

func (c *connectorCommon) DeployContract(ctx context.Context, bytecode []byte) (*Receipt, error) {
	if len(bytecode) == 0 {
		return nil, errors.New("refusing to deploy empty bytecode")
	}
	receipt, err := c.send(ctx, nil, bytecode)
	if err != nil {
		return nil, err
	}
	if receipt.ContractAddress == (common.Address{}) {
		return nil, errors.Errorf("transaction %s created no contract", receipt.TxHash.Hex())
	}
	c.logger.Info("contract deployed", logfields.Address("contract-address", receipt.ContractAddress), logfields.TxHash(receipt.TxHash))
	return receipt, nil
}

func (c *connectorCommon) SendTransaction(ctx context.Context, to common.Address, calldata []byte) (*Receipt, error) {
	receipt, err := c.send(ctx, &to, calldata)
	if err != nil {
		return nil, err
	}
	c.logger.Info("transaction mined", logfields.Address("to", to), logfields.TxHash(receipt.TxHash))
	return receipt, nil
}

func (c *connectorCommon) send(ctx context.Context, to *common.Address, data []byte) (*Receipt, error) {
	if c.auth == nil {
		return nil, errors.New("connection is read-only, no deployer key configured")
	}

	client, err := c.getClient()
	if err != nil {
		return nil, err
	}

	nonce, err := client.PendingNonceAt(ctx, c.auth.From)
	if err != nil {
		return nil, errors.Wrap(err, "failed to retrieve account nonce")
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to suggest gas price")
	}

	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{From: c.auth.From, To: to, GasPrice: gasPrice, Data: data})
	if err != nil {
		return nil, errors.Wrap(err, "failed to estimate gas")
	}

	var rawTx *types.Transaction
	if to == nil {
		rawTx = types.NewContractCreation(nonce, big.NewInt(0), gasLimit, gasPrice, data)
	} else {
		rawTx = types.NewTransaction(nonce, *to, big.NewInt(0), gasLimit, gasPrice, data)
	}

	signedTx, err := c.auth.Signer(c.signer, c.auth.From, rawTx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return nil, errors.Wrap(err, "failed to send transaction")
	}

	if c.afterSend != nil {
		c.afterSend()
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.confirmationTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, client, signedTx)
	if err != nil {
		return nil, errors.Wrapf(err, "transaction %s was not confirmed", signedTx.Hash().Hex())
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, errors.Errorf("transaction %s reverted", signedTx.Hash().Hex())
	}

	return &Receipt{
		TxHash:          signedTx.Hash(),
		ContractAddress: receipt.ContractAddress,
		BlockNumber:     receipt.BlockNumber.Uint64(),
	}, nil
}

func (c *connectorCommon) FacetSelectors(ctx context.Context, diamondAddress common.Address) (map[diamond.Selector]common.Address, error) {
	client, err := c.getClient()
	if err != nil {
		return nil, err
	}

	output, err := c.call(ctx, client, diamondAddress, "facetAddresses")
	if err != nil {
		return nil, err
	}
	var facets []common.Address
	if err := loupeABI.Unpack(&facets, "facetAddresses", output); err != nil {
		return nil, errors.Wrap(err, "failed to unpack facetAddresses")
	}

	mapping := make(map[diamond.Selector]common.Address)
	for _, facet := range facets {
		output, err := c.call(ctx, client, diamondAddress, "facetFunctionSelectors", facet)
		if err != nil {
			return nil, err
		}
		var selectors [][4]byte
		if err := loupeABI.Unpack(&selectors, "facetFunctionSelectors", output); err != nil {
			return nil, errors.Wrapf(err, "failed to unpack selectors of facet %s", facet.Hex())
		}
		for _, s := range selectors {
			mapping[diamond.Selector(s)] = facet
		}
	}
	return mapping, nil
}

func (c *connectorCommon) call(ctx context.Context, client EthereumClient, to common.Address, method string, args ...interface{}) ([]byte, error) {
	input, err := loupeABI.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s", method)
	}

	output, err := client.CallContract(ctx, ethereum.CallMsg{From: c.DeployerAddress(), To: &to, Data: input}, nil)
	if err == nil && len(output) == 0 {
		// Make sure we have a contract to operate on, and bail out otherwise.
		if code, err := client.CodeAt(ctx, to, nil); err != nil {
			return nil, err
		} else if len(code) == 0 {
			return nil, bind.ErrNoCode
		}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "call to %s on %s failed", method, to.Hex())
	}
	return output, nil
}
