// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package versions

import (
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/orbs-network/diamond-deployer/instrumentation/logfields"
	"github.com/orbs-network/diamond-deployer/state"
	"github.com/orbs-network/scribe/log"
)

var LogTag = log.Service("version-resolver")

type FacetState int

const (
	Undeployed FacetState = iota
	UpToDate
	NeedsDeploy
	NeedsUpgrade
	VersionConflict
)

func (s FacetState) String() string {
	switch s {
	case Undeployed:
		return "Undeployed"
	case UpToDate:
		return "UpToDate"
	case NeedsDeploy:
		return "NeedsDeploy"
	case NeedsUpgrade:
		return "NeedsUpgrade"
	case VersionConflict:
		return "VersionConflict"
	}
	return "Unknown"
}

type Resolution struct {
	Facet         string
	State         FacetState
	Deployed      bool
	FromVersion   float64
	TargetVersion float64
	Initializer   string
	Callbacks     []string
	Include       []string
	Exclude       []string
	Err           error
}

// Changes reports whether the facet needs new code on chain in this run
func (r *Resolution) Changes() bool {
	return r.State == NeedsDeploy || r.State == NeedsUpgrade
}

// Resolve evaluates one facet. deployedVersion is only meaningful when deployed is true.
func Resolve(facet string, cfg *state.FacetConfig, deployedVersion float64, deployed bool) *Resolution {
	res := &Resolution{Facet: facet, Deployed: deployed, FromVersion: deployedVersion}

	table := cfg.VersionTable()
	if len(table) == 0 {
		res.State = Undeployed
		if deployed {
			res.State = VersionConflict
			res.Err = diamond.Errorf(diamond.VersionConflict, "facet declares no versions but version %s is deployed", state.FormatVersion(deployedVersion)).ForFacet(facet)
		}
		return res
	}

	if !deployed {
		base := table[0]
		res.State = NeedsDeploy
		res.TargetVersion = base.Number
		res.Initializer = base.DeployInit
		res.apply(base)
		return res
	}

	highest := table[len(table)-1]
	if deployedVersion == highest.Number {
		res.State = UpToDate
		res.TargetVersion = highest.Number
		res.apply(highest)
		return res
	}

	// highest version listing the deployed one wins, never an intermediate
	for i := len(table) - 1; i >= 0; i-- {
		candidate := table[i]
		if candidate.Number > deployedVersion && candidate.UpgradesFrom(deployedVersion) {
			res.State = NeedsUpgrade
			res.TargetVersion = candidate.Number
			res.Initializer = candidate.UpgradeInit
			res.apply(candidate)
			return res
		}
	}

	res.State = VersionConflict
	res.TargetVersion = deployedVersion
	res.Err = diamond.Errorf(diamond.VersionConflict, "no declared version upgrades from deployed version %s", state.FormatVersion(deployedVersion)).ForFacet(facet)
	return res
}

func (r *Resolution) apply(v state.DeclaredVersion) {
	r.Callbacks = append([]string(nil), v.Callbacks...)
	r.Include = append([]string(nil), v.DeployInclude...)
	r.Exclude = append([]string(nil), v.DeployExclude...)
}

type Resolver struct {
	logger log.Logger
}

func NewResolver(parent log.Logger) *Resolver {
	return &Resolver{logger: parent.WithTags(LogTag)}
}

// ResolveAll resolves every configured facet in name order. A conflict only fails the whole
// resolution when the configuration declares protocol lockstep; otherwise the conflicting facet
// is reported in its Resolution and left untouched.
func (r *Resolver) ResolveAll(desired *state.DesiredConfiguration, deployed *state.DeployedState) ([]*Resolution, error) {
	var resolutions []*Resolution
	var conflicts []*Resolution

	for _, name := range desired.FacetNames() {
		cfg, _ := desired.Facet(name)
		version, isDeployed := deployed.DeployedVersion(name)
		res := Resolve(name, cfg, version, isDeployed)
		resolutions = append(resolutions, res)

		fields := []*log.Field{logfields.Facet(name), log.Stringable("state", res.State), logfields.Version("target-version", res.TargetVersion)}
		if isDeployed {
			fields = append(fields, logfields.Version("deployed-version", version))
		}

		if res.State == VersionConflict {
			conflicts = append(conflicts, res)
			r.logger.Info("facet version conflict", append(fields, log.Error(res.Err))...)
		} else {
			r.logger.Info("facet version resolved", fields...)
		}
	}

	if desired.ProtocolLockstep && len(conflicts) > 0 {
		return resolutions, diamond.Errorf(diamond.VersionConflict, "protocol lockstep declared and %d facet(s) conflict, first: %s", len(conflicts), conflicts[0].Err)
	}

	return resolutions, nil
}

func Conflicts(resolutions []*Resolution) []*Resolution {
	var out []*Resolution
	for _, r := range resolutions {
		if r.State == VersionConflict {
			out = append(out, r)
		}
	}
	return out
}
