// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package adapter

import (
	"encoding/json"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"sync"
)

type InMemoryArtifactStore struct {
	mu struct {
		sync.RWMutex
		artifacts map[string]*Artifact
	}
}

func NewInMemoryArtifactStore() *InMemoryArtifactStore {
	s := &InMemoryArtifactStore{}
	s.mu.artifacts = make(map[string]*Artifact)
	return s
}

func (s *InMemoryArtifactStore) Add(artifact *Artifact) *InMemoryArtifactStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.artifacts[artifact.ContractName] = artifact
	return s
}

// AddContract registers a contract from its abi json and creation code
func (s *InMemoryArtifactStore) AddContract(contractName string, abiJSON string, bytecode []byte) *InMemoryArtifactStore {
	return s.Add(&Artifact{
		ContractName: contractName,
		ABI:          json.RawMessage(abiJSON),
		Bytecode:     hexutil.Encode(bytecode),
	})
}

func (s *InMemoryArtifactStore) artifact(contractName string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, found := s.mu.artifacts[contractName]
	if !found {
		return nil, &ErrArtifactNotFound{ContractName: contractName}
	}
	return a, nil
}

func (s *InMemoryArtifactStore) ABI(contractName string) ([]byte, error) {
	a, err := s.artifact(contractName)
	if err != nil {
		return nil, err
	}
	return a.ABI, nil
}

func (s *InMemoryArtifactStore) Bytecode(contractName string, libraries map[string]common.Address) ([]byte, error) {
	a, err := s.artifact(contractName)
	if err != nil {
		return nil, err
	}
	return a.Link(libraries)
}

func (s *InMemoryArtifactStore) Libraries(contractName string) ([]string, error) {
	a, err := s.artifact(contractName)
	if err != nil {
		return nil, err
	}
	return a.Libraries(), nil
}
