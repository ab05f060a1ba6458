// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package cutplanner

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/orbs-network/diamond-deployer/services/versions"
	"github.com/orbs-network/diamond-deployer/state"
	"github.com/orbs-network/diamond-deployer/test"
	"github.com/orbs-network/diamond-deployer/test/builders"
	"github.com/orbs-network/diamond-deployer/test/with"
	"github.com/stretchr/testify/require"
	"testing"
)

var facetA = builders.AddressForTests(0xa)
var facetANew = builders.AddressForTests(0xa1)
var facetB = builders.AddressForTests(0xb)

func target(facet string, s versions.FacetState, address common.Address, signatures ...string) *FacetTarget {
	return &FacetTarget{
		Resolution: &versions.Resolution{Facet: facet, State: s},
		Address:    address,
		Selectors:  builders.Selectors(signatures...),
	}
}

func withPriority(t *FacetTarget, priority int) *FacetTarget {
	p := priority
	t.Priority = &p
	return t
}

func plan(t *testing.T, harness *with.LoggingHarness, deployed *state.DeployedState, targets ...*FacetTarget) diamond.Plan {
	p, err := NewPlanner(harness.Logger).Plan(deployed, targets)
	require.NoError(t, err)
	require.NoError(t, CheckDisjoint(p))
	return p
}

func TestPlan_UndeployedFacetIsASingleAdd(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		p := plan(t, harness, state.NewDeployedState(), target("A", versions.NeedsDeploy, facetA, "f1()", "f2()"))

		test.RequireCmpEqual(t, diamond.Plan{
			{Action: diamond.Add, Facet: "A", Target: facetA, Selectors: builders.SelectorList("f1()", "f2()")},
		}, p)
	})
}

func TestPlan_UpgradeRemovesDroppedAndAddsNewSelectors(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		deployed := builders.DeployedState().WithFacet("A", facetA, 0, "f1()", "f2()").Build()

		p := plan(t, harness, deployed, target("A", versions.NeedsUpgrade, facetA, "f1()", "f3()"))

		test.RequireCmpEqual(t, diamond.Plan{
			{Action: diamond.Remove, Facet: "A", Selectors: builders.SelectorList("f2()")},
			{Action: diamond.Add, Facet: "A", Target: facetA, Selectors: builders.SelectorList("f3()")},
		}, p, "f1 stays routed to the same address and is untouched")
	})
}

func TestPlan_RedeployedFacetReplacesKeptSelectors(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		deployed := builders.DeployedState().WithFacet("A", facetA, 0, "f1()", "f2()").Build()

		p := plan(t, harness, deployed, target("A", versions.NeedsUpgrade, facetANew, "f1()", "f3()"))

		test.RequireCmpEqual(t, diamond.Plan{
			{Action: diamond.Remove, Facet: "A", Selectors: builders.SelectorList("f2()")},
			{Action: diamond.Add, Facet: "A", Target: facetANew, Selectors: builders.SelectorList("f3()")},
			{Action: diamond.Replace, Facet: "A", Target: facetANew, Selectors: builders.SelectorList("f1()")},
		}, p)
	})
}

func TestPlan_FacetAbsentFromConfigurationIsRemoved(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		deployed := builders.DeployedState().
			WithFacet("A", facetA, 0, "f1()", "f2()").
			WithFacet("B", facetB, 0, "g()").
			Build()

		p := plan(t, harness, deployed, target("B", versions.UpToDate, facetB))

		test.RequireCmpEqual(t, diamond.Plan{
			{Action: diamond.Remove, Facet: "A", Selectors: builders.SelectorList("f1()", "f2()")},
		}, p)
	})
}

func TestPlan_UpToDateFacetsProduceAnEmptyPlan(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		deployed := builders.DeployedState().
			WithFacet("A", facetA, 1, "f1()", "f2()").
			WithFacet("B", facetB, 0, "g()").
			Build()

		p := plan(t, harness, deployed, target("A", versions.UpToDate, facetA), target("B", versions.UpToDate, facetB))
		require.True(t, p.IsEmpty())
	})
}

func TestPlan_ConflictingFacetKeepsWhatItOwns(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		deployed := builders.DeployedState().WithFacet("A", facetA, 0.5, "f1()").Build()

		p := plan(t, harness, deployed, target("A", versions.VersionConflict, facetANew, "f9()"))
		require.True(t, p.IsEmpty())
	})
}

func TestPlan_SelectorMovingBetweenFacetsIsReplaced(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		deployed := builders.DeployedState().
			WithFacet("A", facetA, 0, "f1()", "shared()").
			WithFacet("B", facetB, 0, "g()").
			Build()

		p := plan(t, harness, deployed,
			target("A", versions.NeedsUpgrade, facetA, "f1()"),
			target("B", versions.NeedsUpgrade, facetB, "g()", "shared()"),
		)

		test.RequireCmpEqual(t, diamond.Plan{
			{Action: diamond.Replace, Facet: "B", Target: facetB, Selectors: builders.SelectorList("shared()")},
		}, p)
	})
}

func TestPlan_OrdersByPriorityThenName(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		p := plan(t, harness, state.NewDeployedState(),
			target("Zeta", versions.NeedsDeploy, builders.AddressForTests(1), "z()"),
			withPriority(target("Late", versions.NeedsDeploy, builders.AddressForTests(2), "l()"), 5),
			target("Alpha", versions.NeedsDeploy, builders.AddressForTests(3), "a()"),
			withPriority(target("Early", versions.NeedsDeploy, builders.AddressForTests(4), "e()"), 1),
		)

		require.Equal(t, []string{"Early", "Late", "Alpha", "Zeta"}, p.Facets())
	})
}

func TestPlan_TwoFacetsClaimingASelectorCollide(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		_, err := NewPlanner(harness.Logger).Plan(state.NewDeployedState(), []*FacetTarget{
			target("A", versions.NeedsDeploy, facetA, "f1()"),
			target("B", versions.NeedsDeploy, facetB, "f1()"),
		})
		require.Error(t, err)
		require.True(t, diamond.IsKind(err, diamond.SelectorCollision))
	})
}

func TestPlan_PendingAddressShowsRedeploymentsAsReplace(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		deployed := builders.DeployedState().WithFacet("A", facetA, 0, "f1()").Build()

		p := plan(t, harness, deployed, target("A", versions.NeedsUpgrade, PendingAddress, "f1()"))
		require.Len(t, p, 1)
		require.Equal(t, diamond.Replace, p[0].Action)
		require.Equal(t, PendingAddress, p[0].Target)
	})
}

func TestCheckDisjoint(t *testing.T) {
	f1 := diamond.SelectorFromSignature("f1()")
	require.NoError(t, CheckDisjoint(diamond.Plan{
		{Action: diamond.Add, Facet: "A", Selectors: []diamond.Selector{f1}},
	}))

	err := CheckDisjoint(diamond.Plan{
		{Action: diamond.Remove, Facet: "A", Selectors: []diamond.Selector{f1}},
		{Action: diamond.Add, Facet: "B", Selectors: []diamond.Selector{f1}},
	})
	require.True(t, diamond.IsKind(err, diamond.SelectorCollision))
}
