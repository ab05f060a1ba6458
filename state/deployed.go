// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/pkg/errors"
	"sort"
)

// DeployedState is the last observed on-chain record. Only the orchestrator mutates it,
// and it is persisted after every mutation.
type DeployedState struct {
	DiamondAddress    string                    `json:"DiamondAddress,omitempty" yaml:"DiamondAddress,omitempty" toml:"DiamondAddress,omitempty"`
	DeployerAddress   string                    `json:"DeployerAddress,omitempty" yaml:"DeployerAddress,omitempty" toml:"DeployerAddress,omitempty"`
	DeployedFacets    map[string]*DeployedFacet `json:"DeployedFacets" yaml:"DeployedFacets" toml:"DeployedFacets"`
	ExternalLibraries map[string]string         `json:"ExternalLibraries,omitempty" yaml:"ExternalLibraries,omitempty" toml:"ExternalLibraries,omitempty"`
	ProtocolVersion   *float64                  `json:"protocolVersion,omitempty" yaml:"protocolVersion,omitempty" toml:"protocolVersion,omitempty"`
}

type DeployedFacet struct {
	Address       string   `json:"address,omitempty" yaml:"address,omitempty" toml:"address,omitempty"`
	TxHash        string   `json:"tx_hash,omitempty" yaml:"tx_hash,omitempty" toml:"tx_hash,omitempty"`
	Version       *float64 `json:"version,omitempty" yaml:"version,omitempty" toml:"version,omitempty"`
	FuncSelectors []string `json:"funcSelectors,omitempty" yaml:"funcSelectors,omitempty" toml:"funcSelectors,omitempty"`
	Verified      bool     `json:"verified,omitempty" yaml:"verified,omitempty" toml:"verified,omitempty"`
}

func NewDeployedState() *DeployedState {
	return &DeployedState{
		DeployedFacets:    make(map[string]*DeployedFacet),
		ExternalLibraries: make(map[string]string),
	}
}

func (s *DeployedState) normalize() {
	if s.DeployedFacets == nil {
		s.DeployedFacets = make(map[string]*DeployedFacet)
	}
	if s.ExternalLibraries == nil {
		s.ExternalLibraries = make(map[string]string)
	}
	for name, facet := range s.DeployedFacets {
		if facet == nil {
			s.DeployedFacets[name] = &DeployedFacet{}
		}
	}
}

func (s *DeployedState) HasDiamond() bool {
	return s.DiamondAddress != "" && common.HexToAddress(s.DiamondAddress) != (common.Address{})
}

func (s *DeployedState) Diamond() common.Address {
	return common.HexToAddress(s.DiamondAddress)
}

func (s *DeployedState) Facet(name string) (*DeployedFacet, bool) {
	f, found := s.DeployedFacets[name]
	return f, found && f != nil
}

// DeployedVersion returns the version recorded for the facet, ok is false when the facet was never deployed
func (s *DeployedState) DeployedVersion(name string) (version float64, ok bool) {
	f, found := s.Facet(name)
	if !found || f.Version == nil {
		return 0, false
	}
	return *f.Version, true
}

func (s *DeployedState) FacetNames() []string {
	names := make([]string, 0, len(s.DeployedFacets))
	for name := range s.DeployedFacets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *DeployedState) SetFacetDeployment(name string, address common.Address, txHash common.Hash) *DeployedFacet {
	f, found := s.Facet(name)
	if !found {
		f = &DeployedFacet{}
		s.DeployedFacets[name] = f
	}
	f.Address = address.Hex()
	f.TxHash = txHash.Hex()
	f.Verified = false
	return f
}

func (s *DeployedState) SetFacetCut(name string, version float64, selectors diamond.SelectorSet) {
	f, found := s.Facet(name)
	if !found {
		f = &DeployedFacet{}
		s.DeployedFacets[name] = f
	}
	v := version
	f.Version = &v
	f.FuncSelectors = selectors.Strings()
}

// SetFacetSelectors records the selectors a facet owns after a cut without touching its version
func (s *DeployedState) SetFacetSelectors(name string, selectors diamond.SelectorSet) {
	f, found := s.Facet(name)
	if !found {
		f = &DeployedFacet{}
		s.DeployedFacets[name] = f
	}
	f.FuncSelectors = selectors.Strings()
}

func (s *DeployedState) SetFacetVersion(name string, version float64) {
	if f, found := s.Facet(name); found {
		v := version
		f.Version = &v
	}
}

func (s *DeployedState) RemoveFacet(name string) {
	delete(s.DeployedFacets, name)
}

func (s *DeployedState) SetProtocolVersion(version float64) {
	v := version
	s.ProtocolVersion = &v
}

func (f *DeployedFacet) HasAddress() bool {
	return f.Address != "" && common.HexToAddress(f.Address) != (common.Address{})
}

func (f *DeployedFacet) AddressValue() common.Address {
	return common.HexToAddress(f.Address)
}

func (f *DeployedFacet) Selectors() (diamond.SelectorSet, error) {
	return diamond.ParseSelectorStrings(f.FuncSelectors)
}

// SelectorOwners maps every selector recorded in the state to the facet that owns it.
// A selector recorded under two facets violates the single-owner invariant.
func (s *DeployedState) SelectorOwners() (map[diamond.Selector]string, error) {
	owners := make(map[diamond.Selector]string)
	for _, name := range s.FacetNames() {
		selectors, err := s.DeployedFacets[name].Selectors()
		if err != nil {
			return nil, errors.Wrapf(err, "deployed facet %s has an invalid selector", name)
		}
		for selector := range selectors {
			if other, claimed := owners[selector]; claimed {
				return nil, diamond.Errorf(diamond.SelectorCollision, "selector %s is recorded under both %s and %s", selector, other, name)
			}
			owners[selector] = name
		}
	}
	return owners, nil
}

func (s *DeployedState) Clone() *DeployedState {
	clone := &DeployedState{
		DiamondAddress:    s.DiamondAddress,
		DeployerAddress:   s.DeployerAddress,
		DeployedFacets:    make(map[string]*DeployedFacet, len(s.DeployedFacets)),
		ExternalLibraries: make(map[string]string, len(s.ExternalLibraries)),
	}
	if s.ProtocolVersion != nil {
		clone.SetProtocolVersion(*s.ProtocolVersion)
	}
	for name, lib := range s.ExternalLibraries {
		clone.ExternalLibraries[name] = lib
	}
	for name, f := range s.DeployedFacets {
		if f == nil {
			continue
		}
		c := *f
		if f.Version != nil {
			v := *f.Version
			c.Version = &v
		}
		c.FuncSelectors = append([]string(nil), f.FuncSelectors...)
		clone.DeployedFacets[name] = &c
	}
	return clone
}
