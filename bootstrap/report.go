// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package bootstrap

import (
	"fmt"
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/orbs-network/diamond-deployer/services/cutplanner"
	"github.com/orbs-network/diamond-deployer/services/deployment"
	"github.com/orbs-network/diamond-deployer/services/versions"
	"github.com/orbs-network/diamond-deployer/state"
	"io"
	"strings"
)

func WriteResult(w io.Writer, result *deployment.Result) {
	fmt.Fprintf(w, "deployment %s (%s, %s)\n", result.DeploymentId, result.Mode, result.Strategy)
	fmt.Fprintf(w, "completed phases: %d, last: %s\n", len(result.CompletedPhases), orNone(string(result.LastCompletedPhase())))
	writeResolutions(w, result.Resolutions)
	writePlan(w, result.Plan)
	if result.Deployed != nil && result.Deployed.HasDiamond() {
		fmt.Fprintf(w, "diamond: %s\n", result.Deployed.DiamondAddress)
	}
	if len(result.Remediation) > 0 {
		fmt.Fprintf(w, "needs attention:\n")
		for _, err := range result.Remediation {
			fmt.Fprintf(w, "  - [%s] %v\n", diamond.KindOf(err), err)
		}
	}
}

func WritePlan(w io.Writer, report *deployment.PlanReport) {
	fmt.Fprintf(w, "deployment %s (dry run)\n", report.DeploymentId)
	writeResolutions(w, report.Resolutions)
	if len(report.Libraries) > 0 {
		fmt.Fprintf(w, "libraries to deploy: %s\n", strings.Join(report.Libraries, ", "))
	}
	writePlan(w, report.Plan)
}

func WriteStatus(w io.Writer, report *deployment.StatusReport) {
	fmt.Fprintf(w, "deployment %s (%s)\n", report.DeploymentId, report.Strategy)
	fmt.Fprintf(w, "diamond: %s\n", orNone(report.DiamondAddress))
	if report.ProtocolVersion != nil {
		fmt.Fprintf(w, "protocol version: %s\n", state.FormatVersion(*report.ProtocolVersion))
	}
	writeResolutions(w, report.Resolutions)
	if len(report.Steps) > 0 {
		fmt.Fprintf(w, "%-48s %-10s %-24s %s\n", "STEP", "STATUS", "PROPOSAL", "DETAIL")
		for _, s := range report.Steps {
			detail := s.TxHash
			if s.Error != "" {
				detail = s.Error
			}
			fmt.Fprintf(w, "%-48s %-10s %-24s %s\n", s.StepName, s.Status, orNone(s.ProposalId), detail)
		}
	}
}

func writeResolutions(w io.Writer, resolutions []*versions.Resolution) {
	if len(resolutions) == 0 {
		return
	}
	fmt.Fprintf(w, "%-32s %-16s %-8s %s\n", "FACET", "STATE", "FROM", "TO")
	for _, r := range resolutions {
		from := "-"
		if r.Deployed {
			from = state.FormatVersion(r.FromVersion)
		}
		fmt.Fprintf(w, "%-32s %-16s %-8s %s\n", r.Facet, r.State, from, state.FormatVersion(r.TargetVersion))
	}
}

func writePlan(w io.Writer, plan diamond.Plan) {
	if plan.IsEmpty() {
		fmt.Fprintf(w, "cut: nothing to change\n")
		return
	}
	fmt.Fprintf(w, "cut:\n")
	for _, op := range plan {
		target := op.Target.Hex()
		if op.Target == cutplanner.PendingAddress {
			target = "<to be deployed>"
		}
		if op.Action == diamond.Remove {
			target = "-"
		}
		fmt.Fprintf(w, "  %-8s %-32s %-44s %d selectors\n", op.Action, op.Facet, target, len(op.Selectors))
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
