// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package state

import "sync"

// MemoryStore keeps the deployed state in memory, used by tests and dry runs
type MemoryStore struct {
	mu struct {
		sync.Mutex
		state *DeployedState
		saves int
	}
}

func NewMemoryStore(initial *DeployedState) *MemoryStore {
	m := &MemoryStore{}
	if initial != nil {
		initial.normalize()
		m.mu.state = initial.Clone()
	}
	return m
}

func (m *MemoryStore) Load() (*DeployedState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mu.state == nil {
		return NewDeployedState(), nil
	}
	return m.mu.state.Clone(), nil
}

func (m *MemoryStore) Save(s *DeployedState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mu.state = s.Clone()
	m.mu.saves++
	return nil
}

func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.saves
}
