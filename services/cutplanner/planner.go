// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package cutplanner

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/orbs-network/diamond-deployer/instrumentation/logfields"
	"github.com/orbs-network/diamond-deployer/services/versions"
	"github.com/orbs-network/diamond-deployer/state"
	"github.com/orbs-network/scribe/log"
	"github.com/pkg/errors"
	"sort"
)

var LogTag = log.Service("cut-planner")

// PendingAddress stands in for a facet address that is not known yet (dry runs)
var PendingAddress = common.HexToAddress("0xffffffffffffffffffffffffffffffffffffffff")

// FacetTarget is the desired end state of one configured facet
type FacetTarget struct {
	Resolution *versions.Resolution
	// Address holds the facet code after this run, only read when the resolution changes the facet
	Address   common.Address
	Selectors diamond.SelectorSet
	Priority  *int
}

func (t *FacetTarget) Name() string {
	return t.Resolution.Facet
}

type owner struct {
	facet   string
	address common.Address
}

type facetOps struct {
	removes  []diamond.Selector
	adds     []diamond.Selector
	replaces []diamond.Selector
	address  common.Address
}

type Planner struct {
	logger log.Logger
}

func NewPlanner(parent log.Logger) *Planner {
	return &Planner{logger: parent.WithTags(LogTag)}
}

// Plan diffs the deployed selector ownership against the targets and returns the ordered cut.
// The planner never applies anything; the returned plan is executed as one atomic cut.
func (p *Planner) Plan(deployed *state.DeployedState, targets []*FacetTarget) (diamond.Plan, error) {
	current, err := currentOwners(deployed)
	if err != nil {
		return nil, err
	}

	desired, err := desiredOwners(deployed, targets)
	if err != nil {
		return nil, err
	}

	ops := make(map[string]*facetOps)
	opsFor := func(facet string) *facetOps {
		o, found := ops[facet]
		if !found {
			o = &facetOps{}
			ops[facet] = o
		}
		return o
	}

	for selector, want := range desired {
		have, exists := current[selector]
		switch {
		case !exists:
			o := opsFor(want.facet)
			o.adds = append(o.adds, selector)
			o.address = want.address
		case have.address != want.address:
			o := opsFor(want.facet)
			o.replaces = append(o.replaces, selector)
			o.address = want.address
		}
	}

	for selector, have := range current {
		if _, kept := desired[selector]; !kept {
			o := opsFor(have.facet)
			o.removes = append(o.removes, selector)
		}
	}

	plan := make(diamond.Plan, 0, len(ops)*2)
	for _, facet := range orderFacets(ops, targets) {
		o := ops[facet]
		if len(o.removes) > 0 {
			diamond.SortSelectors(o.removes)
			plan = append(plan, diamond.Operation{Action: diamond.Remove, Facet: facet, Selectors: o.removes})
		}
		if len(o.adds) > 0 {
			diamond.SortSelectors(o.adds)
			plan = append(plan, diamond.Operation{Action: diamond.Add, Facet: facet, Target: o.address, Selectors: o.adds})
		}
		if len(o.replaces) > 0 {
			diamond.SortSelectors(o.replaces)
			plan = append(plan, diamond.Operation{Action: diamond.Replace, Facet: facet, Target: o.address, Selectors: o.replaces})
		}
	}

	if err := CheckDisjoint(plan); err != nil {
		return nil, err
	}

	for _, op := range plan {
		p.logger.Info("planned cut operation", logfields.Facet(op.Facet), log.Stringable("action", op.Action), log.Int("selectors", len(op.Selectors)))
	}

	return plan, nil
}

func currentOwners(deployed *state.DeployedState) (map[diamond.Selector]owner, error) {
	byFacet, err := deployed.SelectorOwners()
	if err != nil {
		return nil, err
	}
	current := make(map[diamond.Selector]owner, len(byFacet))
	for selector, facet := range byFacet {
		f, _ := deployed.Facet(facet)
		current[selector] = owner{facet: facet, address: f.AddressValue()}
	}
	return current, nil
}

func desiredOwners(deployed *state.DeployedState, targets []*FacetTarget) (map[diamond.Selector]owner, error) {
	desired := make(map[diamond.Selector]owner)
	claim := func(selector diamond.Selector, o owner) error {
		if other, taken := desired[selector]; taken && other.facet != o.facet {
			return diamond.Errorf(diamond.SelectorCollision, "selector %s is claimed by both %s and %s", selector, other.facet, o.facet).ForFacet(o.facet)
		}
		desired[selector] = o
		return nil
	}

	for _, t := range sortedTargets(targets) {
		res := t.Resolution
		if res.Changes() {
			for _, selector := range t.Selectors.Sorted() {
				if err := claim(selector, owner{facet: res.Facet, address: t.Address}); err != nil {
					return nil, err
				}
			}
			continue
		}

		// unchanged and conflicting facets keep exactly what they own today
		f, found := deployed.Facet(res.Facet)
		if !found {
			continue
		}
		owned, err := f.Selectors()
		if err != nil {
			return nil, errors.Wrapf(err, "deployed facet %s has an invalid selector", res.Facet)
		}
		for _, selector := range owned.Sorted() {
			if err := claim(selector, owner{facet: res.Facet, address: f.AddressValue()}); err != nil {
				return nil, err
			}
		}
	}
	return desired, nil
}

func sortedTargets(targets []*FacetTarget) []*FacetTarget {
	sorted := append([]*FacetTarget(nil), targets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name() < sorted[j].Name()
	})
	return sorted
}

// orderFacets sorts by ascending priority; facets without a priority (including facets that are
// no longer configured) go last, ties broken by name
func orderFacets(ops map[string]*facetOps, targets []*FacetTarget) []string {
	priorities := make(map[string]*int, len(targets))
	for _, t := range targets {
		priorities[t.Name()] = t.Priority
	}

	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		pi, pj := priorities[names[i]], priorities[names[j]]
		switch {
		case pi != nil && pj != nil && *pi != *pj:
			return *pi < *pj
		case pi != nil && pj == nil:
			return true
		case pi == nil && pj != nil:
			return false
		}
		return names[i] < names[j]
	})
	return names
}

// CheckDisjoint fails when two operations of the plan claim the same selector
func CheckDisjoint(plan diamond.Plan) error {
	seen := make(map[diamond.Selector]string)
	for _, op := range plan {
		for _, selector := range op.Selectors {
			if other, dup := seen[selector]; dup {
				return diamond.Errorf(diamond.SelectorCollision, "selector %s appears in operations for %s and %s", selector, other, op.Facet).ForFacet(op.Facet)
			}
			seen[selector] = op.Facet
		}
	}
	return nil
}
