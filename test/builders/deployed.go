// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package builders

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/orbs-network/diamond-deployer/state"
)

type DeployedStateBuilder struct {
	s *state.DeployedState
}

func DeployedState() *DeployedStateBuilder {
	return &DeployedStateBuilder{s: state.NewDeployedState()}
}

func (d *DeployedStateBuilder) WithDiamond(address common.Address) *DeployedStateBuilder {
	d.s.DiamondAddress = address.Hex()
	return d
}

// WithFacet records a facet owning the selectors of the given signatures
func (d *DeployedStateBuilder) WithFacet(name string, address common.Address, version float64, signatures ...string) *DeployedStateBuilder {
	selectors := diamond.NewSelectorSet()
	for _, signature := range signatures {
		selectors.Add(diamond.SelectorFromSignature(signature))
	}
	d.s.SetFacetDeployment(name, address, common.Hash{})
	d.s.SetFacetCut(name, version, selectors)
	return d
}

func (d *DeployedStateBuilder) WithLibrary(name string, address common.Address) *DeployedStateBuilder {
	d.s.ExternalLibraries[name] = address.Hex()
	return d
}

func (d *DeployedStateBuilder) WithProtocolVersion(version float64) *DeployedStateBuilder {
	d.s.SetProtocolVersion(version)
	return d
}

func (d *DeployedStateBuilder) Build() *state.DeployedState {
	return d.s
}

// Selectors is a SelectorSet of the given signatures
func Selectors(signatures ...string) diamond.SelectorSet {
	set := diamond.NewSelectorSet()
	for _, signature := range signatures {
		set.Add(diamond.SelectorFromSignature(signature))
	}
	return set
}

func SelectorList(signatures ...string) []diamond.Selector {
	return Selectors(signatures...).Sorted()
}

func AddressForTests(seed byte) common.Address {
	var a common.Address
	a[0] = 0xaa
	a[common.AddressLength-1] = seed
	return a
}
