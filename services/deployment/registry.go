// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package deployment

import (
	"github.com/orbs-network/diamond-deployer/services/steps"
	"sort"
	"sync"
)

type OrchestratorFactory func() (*Orchestrator, error)

// DiamondRegistry holds one orchestrator per deployment id. It is created by the caller and passed
// by reference, there is no package level instance.
type DiamondRegistry struct {
	mu struct {
		sync.Mutex
		orchestrators map[string]*Orchestrator
	}
}

func NewDiamondRegistry() *DiamondRegistry {
	r := &DiamondRegistry{}
	r.mu.orchestrators = make(map[string]*Orchestrator)
	return r
}

// GetOrCreate returns the registered orchestrator or registers the one factory builds. A failing
// factory registers nothing.
func (r *DiamondRegistry) GetOrCreate(diamondName string, network string, chainId uint64, factory OrchestratorFactory) (*Orchestrator, error) {
	key := steps.DeploymentId(diamondName, network, chainId)

	r.mu.Lock()
	defer r.mu.Unlock()

	if o, found := r.mu.orchestrators[key]; found {
		return o, nil
	}
	o, err := factory()
	if err != nil {
		return nil, err
	}
	r.mu.orchestrators[key] = o
	return o, nil
}

func (r *DiamondRegistry) Get(diamondName string, network string, chainId uint64) (*Orchestrator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, found := r.mu.orchestrators[steps.DeploymentId(diamondName, network, chainId)]
	return o, found
}

func (r *DiamondRegistry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.mu.orchestrators))
	for key := range r.mu.orchestrators {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (r *DiamondRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mu.orchestrators = make(map[string]*Orchestrator)
}
