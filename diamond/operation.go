// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package diamond

import (
	"fmt"
	"github.com/ethereum/go-ethereum/common"
	"strings"
)

// CutAction values match the FacetCutAction enum of the diamond standard
type CutAction uint8

const (
	Add CutAction = iota
	Replace
	Remove
)

func (a CutAction) String() string {
	switch a {
	case Add:
		return "Add"
	case Replace:
		return "Replace"
	case Remove:
		return "Remove"
	}
	return fmt.Sprintf("CutAction(%d)", uint8(a))
}

// Operation is one entry of a diamond cut. Target is the zero address for Remove.
type Operation struct {
	Action    CutAction
	Facet     string
	Target    common.Address
	Selectors []Selector
}

func (op Operation) String() string {
	names := make([]string, len(op.Selectors))
	for i, s := range op.Selectors {
		names[i] = s.String()
	}
	return fmt.Sprintf("%s %s {%s}", op.Action, op.Facet, strings.Join(names, ", "))
}

type Plan []Operation

func (p Plan) IsEmpty() bool {
	return len(p) == 0
}

func (p Plan) String() string {
	rows := make([]string, len(p))
	for i, op := range p {
		rows[i] = op.String()
	}
	return "[" + strings.Join(rows, ", ") + "]"
}

// SelectorCount is the total number of selectors touched by the plan
func (p Plan) SelectorCount() int {
	count := 0
	for _, op := range p {
		count += len(op.Selectors)
	}
	return count
}

func (p Plan) ForFacet(facet string) Plan {
	var out Plan
	for _, op := range p {
		if op.Facet == facet {
			out = append(out, op)
		}
	}
	return out
}

// Facets lists facet names in the order they first appear in the plan
func (p Plan) Facets() []string {
	seen := make(map[string]bool)
	var out []string
	for _, op := range p {
		if !seen[op.Facet] {
			seen[op.Facet] = true
			out = append(out, op.Facet)
		}
	}
	return out
}
