// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package deployment

import (
	"context"
	"github.com/ethereum/go-ethereum/common"
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/orbs-network/diamond-deployer/instrumentation/logfields"
	"github.com/orbs-network/diamond-deployer/instrumentation/metric"
	"github.com/orbs-network/diamond-deployer/instrumentation/trace"
	artifactsadapter "github.com/orbs-network/diamond-deployer/services/artifacts/adapter"
	"github.com/orbs-network/diamond-deployer/services/callbacks"
	chainadapter "github.com/orbs-network/diamond-deployer/services/chain/adapter"
	"github.com/orbs-network/diamond-deployer/services/cutplanner"
	"github.com/orbs-network/diamond-deployer/services/selectors"
	"github.com/orbs-network/diamond-deployer/services/steps"
	stepsadapter "github.com/orbs-network/diamond-deployer/services/steps/adapter"
	"github.com/orbs-network/diamond-deployer/services/versions"
	"github.com/orbs-network/diamond-deployer/state"
	"github.com/orbs-network/scribe/log"
	"github.com/pkg/errors"
	"sort"
	"time"
)

var LogTag = log.Service("deployment-orchestrator")

type Config interface {
	DiamondName() string
	NetworkName() string
	ChainId() uint64
	DiamondCutFacetName() string
	DiamondOwnerAddress() string
}

type orchestratorMetrics struct {
	phasesCompleted *metric.Gauge
	currentPhase    *metric.Text
	runDuration     *metric.Histogram
	runsFailed      *metric.Gauge
}

// Orchestrator drives the phase protocol for one diamond on one network. Only the chain mutating
// steps are delegated to the Strategy; sequencing, planning and state bookkeeping live here.
type Orchestrator struct {
	config     Config
	desired    *state.DesiredConfiguration
	configHash string
	store      state.Store
	conn       chainadapter.Connection
	artifacts  artifactsadapter.Store
	callbacks  *callbacks.Registry
	strategy   Strategy
	guard      *RunGuard
	logger     log.Logger
	metrics    *orchestratorMetrics
	selectors  *selectors.Resolver
	versions   *versions.Resolver
	planner    *cutplanner.Planner
	dispatcher *callbacks.Dispatcher
}

func NewOrchestrator(
	config Config,
	desired *state.DesiredConfiguration,
	configHash string,
	store state.Store,
	conn chainadapter.Connection,
	artifacts artifactsadapter.Store,
	callbackRegistry *callbacks.Registry,
	strategy Strategy,
	guard *RunGuard,
	parent log.Logger,
	metricFactory metric.Factory,
) *Orchestrator {

	logger := parent.WithTags(LogTag, log.String("diamond", config.DiamondName()), log.String("network", config.NetworkName()))

	return &Orchestrator{
		config:     config,
		desired:    desired,
		configHash: configHash,
		store:      store,
		conn:       conn,
		artifacts:  artifacts,
		callbacks:  callbackRegistry,
		strategy:   strategy,
		guard:      guard,
		logger:     logger,
		metrics: &orchestratorMetrics{
			phasesCompleted: metricFactory.NewGauge("Deployment.PhasesCompleted"),
			currentPhase:    metricFactory.NewText("Deployment.CurrentPhase", "idle"),
			runDuration:     metricFactory.NewLatency("Deployment.RunDuration", 24*time.Hour),
			runsFailed:      metricFactory.NewGauge("Deployment.RunsFailed"),
		},
		selectors:  selectors.NewResolver(artifacts, parent),
		versions:   versions.NewResolver(parent),
		planner:    cutplanner.NewPlanner(parent),
		dispatcher: callbacks.NewDispatcher(callbackRegistry, parent),
	}
}

func (o *Orchestrator) DeploymentId() string {
	return steps.DeploymentId(o.config.DiamondName(), o.config.NetworkName(), o.config.ChainId())
}

func (o *Orchestrator) runInfo() *RunInfo {
	return &RunInfo{
		DeploymentId: o.DeploymentId(),
		DiamondName:  o.config.DiamondName(),
		Network:      o.config.NetworkName(),
		ChainId:      o.config.ChainId(),
		ConfigHash:   o.configHash,
	}
}

// Result is what a run leaves behind, also returned alongside a RunError
type Result struct {
	DeploymentId    string
	Mode            Mode
	Strategy        string
	Resolutions     []*versions.Resolution
	Plan            diamond.Plan
	CompletedPhases []Phase
	// Remediation holds post-cut failures (callbacks) that did not halt the run
	Remediation []error
	Deployed    *state.DeployedState
}

func (r *Result) Conflicts() []*versions.Resolution {
	return versions.Conflicts(r.Resolutions)
}

func (r *Result) LastCompletedPhase() Phase {
	if len(r.CompletedPhases) == 0 {
		return ""
	}
	return r.CompletedPhases[len(r.CompletedPhases)-1]
}

func (o *Orchestrator) Deploy(ctx context.Context) (*Result, error) {
	return o.Run(ctx, ModeDeploy)
}

func (o *Orchestrator) Upgrade(ctx context.Context) (*Result, error) {
	return o.Run(ctx, ModeUpgrade)
}

// Run executes the phase protocol. A concurrent Run for the same deployment waits for the one in
// flight and returns its outcome instead of starting another.
func (o *Orchestrator) Run(ctx context.Context, mode Mode) (*Result, error) {
	result, shared, err := o.guard.Do(ctx, o.DeploymentId(), func() (*Result, error) {
		return o.execute(ctx, mode)
	})
	if shared {
		o.logger.Info("observed the outcome of an in-flight run", logfields.DeploymentId(o.DeploymentId()))
	}
	return result, err
}

func (o *Orchestrator) execute(ctx context.Context, mode Mode) (*Result, error) {
	ctx = trace.NewContext(ctx, mode.String())
	logger := o.logger.WithTags(trace.LogFieldFrom(ctx), logfields.DeploymentId(o.DeploymentId()), log.Stringable("mode", mode), log.String("strategy", o.strategy.Name()))
	started := time.Now()
	defer o.metrics.runDuration.RecordSince(started)

	phases := PhasesFor(mode)
	result := &Result{DeploymentId: o.DeploymentId(), Mode: mode, Strategy: o.strategy.Name()}
	fail := func(phase Phase, err error) (*Result, error) {
		o.metrics.runsFailed.Inc()
		logger.Info("run halted", logfields.Phase(phase.String()), log.String("last-completed-phase", result.LastCompletedPhase().String()), log.Error(err))
		return result, &RunError{Phase: phase, LastCompletedPhase: result.LastCompletedPhase(), Err: err}
	}

	deployed, err := o.store.Load()
	if err != nil {
		return fail(phases[0], errors.Wrap(err, "failed to load deployed state"))
	}
	result.Deployed = deployed

	if mode == ModeUpgrade && !deployed.HasDiamond() {
		return fail(phases[0], diamond.Errorf(diamond.ConfigurationInvalid, "no diamond is recorded for %s, deploy it first", o.DeploymentId()))
	}

	executor, err := o.strategy.Open(ctx, o.runInfo())
	if err != nil {
		return fail(phases[0], errors.Wrap(err, "failed to open strategy"))
	}

	r := &run{
		o:        o,
		logger:   logger,
		mode:     mode,
		executor: executor,
		deployed: deployed,
		result:   result,
		targets:  make(map[string]*cutplanner.FacetTarget),
		deployTx: make(map[string]common.Hash),
	}

	logger.Info("run started", log.Int("phases", len(phases)))
	for _, phase := range phases {
		o.metrics.currentPhase.Update(phase.String())
		if err := r.execute(ctx, phase); err != nil {
			o.metrics.currentPhase.Update("halted:" + phase.String())
			return fail(phase, err)
		}
		result.CompletedPhases = append(result.CompletedPhases, phase)
		o.metrics.phasesCompleted.Inc()
	}

	if err := executor.Close(true); err != nil {
		logger.Info("failed to clear completed steps", log.Error(err))
	}
	o.metrics.currentPhase.Update("idle")

	logger.Info("run completed", log.Int("operations", len(result.Plan)), log.Int("remediation-items", len(result.Remediation)), log.String("duration", time.Since(started).String()))
	return result, nil
}

// PlanReport is the outcome of a dry run
type PlanReport struct {
	DeploymentId string
	Resolutions  []*versions.Resolution
	Plan         diamond.Plan
	// Libraries that would be deployed before the facets
	Libraries []string
}

// Plan resolves versions and selectors and computes the cut without touching the chain. Facets
// that would be (re)deployed are given cutplanner.PendingAddress.
func (o *Orchestrator) Plan(ctx context.Context) (*PlanReport, error) {
	deployed, err := o.store.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load deployed state")
	}

	resolutions, err := o.versions.ResolveAll(o.desired, deployed)
	if err != nil {
		return nil, err
	}

	targets := o.buildTargets(deployed, resolutions)
	for _, t := range targets {
		if t.Resolution.Changes() {
			t.Address = cutplanner.PendingAddress
		}
	}
	if err := o.resolveSelectors(targets); err != nil {
		return nil, err
	}

	libraries, err := o.librariesToDeploy(deployed, changingTargets(targets))
	if err != nil {
		return nil, err
	}

	plan, err := o.planner.Plan(deployed, targets)
	if err != nil {
		return nil, err
	}

	return &PlanReport{
		DeploymentId: o.DeploymentId(),
		Resolutions:  resolutions,
		Plan:         plan,
		Libraries:    libraries,
	}, nil
}

type StatusReport struct {
	DeploymentId    string
	Strategy        string
	DiamondAddress  string
	ProtocolVersion *float64
	Resolutions     []*versions.Resolution
	Steps           []*stepsadapter.StepRecord
}

// Status reports each configured facet's resolution against the deployed state and any open steps
func (o *Orchestrator) Status(ctx context.Context) (*StatusReport, error) {
	deployed, err := o.store.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load deployed state")
	}

	var resolutions []*versions.Resolution
	for _, name := range o.desired.FacetNames() {
		cfg, _ := o.desired.Facet(name)
		version, isDeployed := deployed.DeployedVersion(name)
		resolutions = append(resolutions, versions.Resolve(name, cfg, version, isDeployed))
	}

	records, err := o.strategy.Records(o.runInfo())
	if err != nil {
		return nil, errors.Wrap(err, "failed to read step records")
	}

	return &StatusReport{
		DeploymentId:    o.DeploymentId(),
		Strategy:        o.strategy.Name(),
		DiamondAddress:  deployed.DiamondAddress,
		ProtocolVersion: deployed.ProtocolVersion,
		Resolutions:     resolutions,
		Steps:           records,
	}, nil
}

// buildTargets pairs every resolution with its configuration. The diamond cut facet is kept even
// when the configuration does not list it, removing diamondCut would brick the diamond.
func (o *Orchestrator) buildTargets(deployed *state.DeployedState, resolutions []*versions.Resolution) []*cutplanner.FacetTarget {
	targets := make([]*cutplanner.FacetTarget, 0, len(resolutions)+1)
	declared := make(map[string]bool, len(resolutions))
	for _, res := range resolutions {
		cfg, _ := o.desired.Facet(res.Facet)
		targets = append(targets, &cutplanner.FacetTarget{Resolution: res, Priority: cfg.Priority})
		declared[res.Facet] = true
	}

	cutFacet := o.config.DiamondCutFacetName()
	if _, recorded := deployed.Facet(cutFacet); recorded && !declared[cutFacet] {
		version, _ := deployed.DeployedVersion(cutFacet)
		targets = append(targets, &cutplanner.FacetTarget{
			Resolution: &versions.Resolution{Facet: cutFacet, State: versions.UpToDate, Deployed: true, FromVersion: version, TargetVersion: version},
		})
	}
	return targets
}

func (o *Orchestrator) resolveSelectors(targets []*cutplanner.FacetTarget) error {
	for _, t := range targets {
		if !t.Resolution.Changes() {
			continue
		}
		resolved, err := o.selectors.Resolve(t.Name(), t.Resolution.Include, t.Resolution.Exclude)
		if err != nil {
			return configurationError(err, t.Name())
		}
		t.Selectors = resolved
	}
	return nil
}

// librariesToDeploy lists the libraries the changing facets need that are not deployed yet
func (o *Orchestrator) librariesToDeploy(deployed *state.DeployedState, changing []*cutplanner.FacetTarget) ([]string, error) {
	needed := make(map[string]bool)
	for _, t := range changing {
		cfg, _ := o.desired.Facet(t.Name())
		linked, err := o.artifacts.Libraries(t.Name())
		if err != nil {
			return nil, configurationError(err, t.Name())
		}
		for _, lib := range append(append([]string(nil), cfg.Libraries...), linked...) {
			if _, err := o.artifacts.ABI(lib); err != nil {
				return nil, configurationError(errors.Wrapf(err, "library %s", lib), t.Name())
			}
			needed[lib] = true
		}
	}

	var missing []string
	for lib := range needed {
		if _, deployedAlready := deployed.ExternalLibraries[lib]; !deployedAlready {
			missing = append(missing, lib)
		}
	}
	sort.Strings(missing)
	return missing, nil
}

// changingTargets returns the targets that get new code, in cut order (priority, then name)
func changingTargets(targets []*cutplanner.FacetTarget) []*cutplanner.FacetTarget {
	var changing []*cutplanner.FacetTarget
	for _, t := range targets {
		if t.Resolution.Changes() {
			changing = append(changing, t)
		}
	}
	sort.SliceStable(changing, func(i, j int) bool {
		pi, pj := changing[i].Priority, changing[j].Priority
		switch {
		case pi != nil && pj != nil && *pi != *pj:
			return *pi < *pj
		case pi != nil && pj == nil:
			return true
		case pi == nil && pj != nil:
			return false
		}
		return changing[i].Name() < changing[j].Name()
	})
	return changing
}

func configurationError(err error, facet string) error {
	if diamond.KindOf(err) != "" {
		return err
	}
	return diamond.NewError(diamond.ConfigurationInvalid, err).ForFacet(facet)
}
