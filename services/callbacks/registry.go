// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package callbacks

import (
	"context"
	"github.com/ethereum/go-ethereum/common"
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/orbs-network/diamond-deployer/state"
	"github.com/orbs-network/scribe/log"
	"github.com/pkg/errors"
	"sort"
	"strings"
	"sync"
)

// ProtocolScope is the registration key of protocol level callbacks (protocolCallback)
const ProtocolScope = "$protocol"

type Args struct {
	Facet        string
	Version      float64
	Diamond      common.Address
	FacetAddress common.Address
	Network      string
	ChainId      uint64
	// Deployed is a snapshot taken after the cut was confirmed
	Deployed *state.DeployedState
	Logger   log.Logger
}

type Callback func(ctx context.Context, args *Args) error

// Registry holds the callbacks supplied by the caller, keyed by facet then callback name
type Registry struct {
	mu struct {
		sync.RWMutex
		byFacet map[string]map[string]Callback
	}
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.mu.byFacet = make(map[string]map[string]Callback)
	return r
}

// Register validates and adds the callbacks of one facet. Registering a name twice is an error.
func (r *Registry) Register(facet string, callbacks map[string]Callback) error {
	if strings.TrimSpace(facet) == "" {
		return errors.New("callbacks must be registered under a facet name")
	}
	for name, cb := range callbacks {
		if strings.TrimSpace(name) == "" {
			return errors.Errorf("facet %s: callback names must not be empty", facet)
		}
		if cb == nil {
			return errors.Errorf("facet %s: callback %s is nil", facet, name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, found := r.mu.byFacet[facet]
	if !found {
		existing = make(map[string]Callback, len(callbacks))
		r.mu.byFacet[facet] = existing
	}
	for name := range callbacks {
		if _, dup := existing[name]; dup {
			return errors.Errorf("facet %s: callback %s is already registered", facet, name)
		}
	}
	for name, cb := range callbacks {
		existing[name] = cb
	}
	return nil
}

func (r *Registry) Lookup(facet string, name string) (Callback, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, found := r.mu.byFacet[facet][name]
	return cb, found
}

func (r *Registry) Facets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.mu.byFacet))
	for name := range r.mu.byFacet {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mu.byFacet = make(map[string]map[string]Callback)
}

// Missing lists every callback the configuration declares that has no registration, as "facet.name"
func (r *Registry) Missing(desired *state.DesiredConfiguration) []string {
	var missing []string
	if desired.ProtocolCallback != "" {
		if _, found := r.Lookup(ProtocolScope, desired.ProtocolCallback); !found {
			missing = append(missing, ProtocolScope+"."+desired.ProtocolCallback)
		}
	}
	for _, facet := range desired.FacetNames() {
		cfg, _ := desired.Facet(facet)
		for _, version := range cfg.VersionTable() {
			for _, name := range version.Callbacks {
				if _, found := r.Lookup(facet, name); !found {
					missing = append(missing, facet+"."+name)
				}
			}
		}
	}
	return dedupe(missing)
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func notFound(facet string, name string) error {
	return diamond.Errorf(diamond.CallbackNotFound, "callback %s is declared but not registered", name).ForFacet(facet)
}
