// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package deployment

import (
	"fmt"
	"github.com/pkg/errors"
	"strings"
)

type Phase string

const (
	PreDeployDiamond           Phase = "preDeployDiamond"
	DeployDiamond              Phase = "deployDiamond"
	PostDeployDiamond          Phase = "postDeployDiamond"
	PreDeployFacets            Phase = "preDeployFacets"
	DeployFacets               Phase = "deployFacets"
	PostDeployFacets           Phase = "postDeployFacets"
	PreUpdateSelectorRegistry  Phase = "preUpdateSelectorRegistry"
	UpdateSelectorRegistry     Phase = "updateSelectorRegistry"
	PostUpdateSelectorRegistry Phase = "postUpdateSelectorRegistry"
	PrePerformCut              Phase = "prePerformCut"
	PerformCut                 Phase = "performCut"
	PostPerformCut             Phase = "postPerformCut"
	PreRunCallbacks            Phase = "preRunCallbacks"
	RunCallbacks               Phase = "runCallbacks"
	PostRunCallbacks           Phase = "postRunCallbacks"
)

// Phases is the full ordered protocol every strategy runs through
var Phases = []Phase{
	PreDeployDiamond, DeployDiamond, PostDeployDiamond,
	PreDeployFacets, DeployFacets, PostDeployFacets,
	PreUpdateSelectorRegistry, UpdateSelectorRegistry, PostUpdateSelectorRegistry,
	PrePerformCut, PerformCut, PostPerformCut,
	PreRunCallbacks, RunCallbacks, PostRunCallbacks,
}

func (p Phase) String() string {
	return string(p)
}

func (p Phase) IsDiamondPhase() bool {
	return p == PreDeployDiamond || p == DeployDiamond || p == PostDeployDiamond
}

type Mode int

const (
	ModeDeploy Mode = iota
	ModeUpgrade
)

func (m Mode) String() string {
	if m == ModeUpgrade {
		return "upgrade"
	}
	return "deploy"
}

func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(value) {
	case "deploy":
		return ModeDeploy, nil
	case "upgrade":
		return ModeUpgrade, nil
	}
	return ModeDeploy, errors.Errorf("unknown mode %s", value)
}

// PhasesFor returns the phases a mode runs; upgrades skip the diamond phases since the proxy exists
func PhasesFor(mode Mode) []Phase {
	if mode == ModeDeploy {
		return append([]Phase(nil), Phases...)
	}
	var phases []Phase
	for _, p := range Phases {
		if !p.IsDiamondPhase() {
			phases = append(phases, p)
		}
	}
	return phases
}

// RunError reports where a run halted so it can be diagnosed and resumed
type RunError struct {
	Phase              Phase
	LastCompletedPhase Phase
	Err                error
}

func (e *RunError) Error() string {
	last := string(e.LastCompletedPhase)
	if last == "" {
		last = "none"
	}
	return fmt.Sprintf("phase %s failed (last completed phase: %s): %v", e.Phase, last, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func (e *RunError) Cause() error {
	return e.Err
}
