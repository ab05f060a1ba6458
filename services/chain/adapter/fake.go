// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package adapter

import (
	"context"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/pkg/errors"
	"math/big"
	"sync"
)

type SentTransaction struct {
	To      *common.Address
	Data    []byte
	Receipt *Receipt
}

// FakeConnection is a chain without an EVM: deployments get CREATE addresses, transactions get
// deterministic hashes, and the loupe answers from a selector map the test controls.
type FakeConnection struct {
	deployer common.Address

	mu struct {
		sync.Mutex
		nonce     uint64
		sent      []*SentTransaction
		selectors map[common.Address]map[diamond.Selector]common.Address
		failures  []error
	}
}

func NewFakeConnection(deployer common.Address) *FakeConnection {
	f := &FakeConnection{deployer: deployer}
	f.mu.selectors = make(map[common.Address]map[diamond.Selector]common.Address)
	return f
}

func (f *FakeConnection) DeployerAddress() common.Address {
	return f.deployer
}

func (f *FakeConnection) DeployContract(ctx context.Context, bytecode []byte) (*Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.nextFailure(); err != nil {
		return nil, err
	}
	receipt := &Receipt{
		TxHash:          f.hash(bytecode),
		ContractAddress: crypto.CreateAddress(f.deployer, f.mu.nonce),
		BlockNumber:     f.mu.nonce + 1,
	}
	f.record(nil, bytecode, receipt)
	return receipt, nil
}

func (f *FakeConnection) SendTransaction(ctx context.Context, to common.Address, calldata []byte) (*Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.nextFailure(); err != nil {
		return nil, err
	}
	receipt := &Receipt{
		TxHash:      f.hash(calldata),
		BlockNumber: f.mu.nonce + 1,
	}
	f.record(&to, calldata, receipt)
	return receipt, nil
}

func (f *FakeConnection) FacetSelectors(ctx context.Context, diamondAddress common.Address) (map[diamond.Selector]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[diamond.Selector]common.Address)
	for s, a := range f.mu.selectors[diamondAddress] {
		out[s] = a
	}
	return out, nil
}

func (f *FakeConnection) SetFacetSelectors(diamondAddress common.Address, mapping map[diamond.Selector]common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mu.selectors[diamondAddress] = mapping
}

// FailNext makes the next mutating call return err
func (f *FakeConnection) FailNext(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mu.failures = append(f.mu.failures, err)
}

func (f *FakeConnection) Sent() []*SentTransaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*SentTransaction(nil), f.mu.sent...)
}

func (f *FakeConnection) Deployments() []*SentTransaction {
	var out []*SentTransaction
	for _, tx := range f.Sent() {
		if tx.To == nil {
			out = append(out, tx)
		}
	}
	return out
}

func (f *FakeConnection) CallsTo(to common.Address) []*SentTransaction {
	var out []*SentTransaction
	for _, tx := range f.Sent() {
		if tx.To != nil && *tx.To == to {
			out = append(out, tx)
		}
	}
	return out
}

func (f *FakeConnection) nextFailure() error {
	if len(f.mu.failures) == 0 {
		return nil
	}
	err := f.mu.failures[0]
	f.mu.failures = f.mu.failures[1:]
	if err == nil {
		err = errors.New("injected chain failure")
	}
	return err
}

func (f *FakeConnection) hash(data []byte) common.Hash {
	return crypto.Keccak256Hash(data, new(big.Int).SetUint64(f.mu.nonce).Bytes())
}

func (f *FakeConnection) record(to *common.Address, data []byte, receipt *Receipt) {
	f.mu.sent = append(f.mu.sent, &SentTransaction{To: to, Data: append([]byte(nil), data...), Receipt: receipt})
	f.mu.nonce++
}
