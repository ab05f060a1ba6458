// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package deployment

import (
	"context"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/orbs-network/diamond-deployer/instrumentation/logfields"
	chainadapter "github.com/orbs-network/diamond-deployer/services/chain/adapter"
	"github.com/orbs-network/diamond-deployer/services/callbacks"
	"github.com/orbs-network/diamond-deployer/services/cutplanner"
	"github.com/orbs-network/diamond-deployer/state"
	"github.com/orbs-network/scribe/log"
	"github.com/pkg/errors"
	"strings"
)

var diamondCutSelector = diamond.SelectorFromSignature("diamondCut((address,uint8,bytes4[])[],address,bytes)")

// run is the cursor of a single execution: the phase handlers read and extend it in order
type run struct {
	o        *Orchestrator
	logger   log.Logger
	mode     Mode
	executor Executor
	deployed *state.DeployedState
	result   *Result

	targets   map[string]*cutplanner.FacetTarget
	changing  []*cutplanner.FacetTarget
	libraries []string
	deployTx  map[string]common.Hash

	plan        diamond.Plan
	onChain     map[diamond.Selector]common.Address
	protocol    *protocolInit
	cutCalldata []byte
	cutTx       common.Hash

	protocolAdvanced bool
	// facets whose callbacks may run, in cut order
	cutConfirmed     []*cutplanner.FacetTarget
}

type protocolInit struct {
	facet       string
	initializer string
	address     common.Address
	calldata    []byte
}

func (r *run) execute(ctx context.Context, phase Phase) error {
	switch phase {
	case PreDeployDiamond:
		return r.preDeployDiamond(ctx)
	case DeployDiamond:
		return r.deployDiamond(ctx)
	case PostDeployDiamond:
		return r.postDeployDiamond(ctx)
	case PreDeployFacets:
		return r.preDeployFacets(ctx)
	case DeployFacets:
		return r.deployFacets(ctx)
	case PostDeployFacets:
		return r.postDeployFacets(ctx)
	case PreUpdateSelectorRegistry:
		return r.preUpdateSelectorRegistry(ctx)
	case UpdateSelectorRegistry:
		return r.updateSelectorRegistry(ctx)
	case PostUpdateSelectorRegistry:
		return r.postUpdateSelectorRegistry(ctx)
	case PrePerformCut:
		return r.prePerformCut(ctx)
	case PerformCut:
		return r.performCut(ctx)
	case PostPerformCut:
		return r.postPerformCut(ctx)
	case PreRunCallbacks:
		return r.preRunCallbacks(ctx)
	case RunCallbacks:
		return r.runCallbacks(ctx)
	case PostRunCallbacks:
		return r.postRunCallbacks(ctx)
	}
	return errors.Errorf("unknown phase %s", phase)
}

func (r *run) save() error {
	if err := r.o.store.Save(r.deployed); err != nil {
		return errors.Wrap(err, "failed to persist deployed state")
	}
	return nil
}

func (r *run) step(ctx context.Context, action *Action) (*Outcome, error) {
	outcome, err := r.executor.Execute(ctx, action)
	if err != nil {
		return nil, err
	}
	fields := []*log.Field{logfields.Step(action.Step), logfields.TxHash(outcome.TxHash)}
	if action.IsDeployment() {
		fields = append(fields, logfields.Address("contract-address", outcome.ContractAddress))
	}
	if outcome.Resumed {
		fields = append(fields, log.String("resumed", "true"))
	}
	r.logger.Info("step completed", fields...)
	return outcome, nil
}

// preDeployDiamond rejects anything that would fail later before the first transaction is sent
func (r *run) preDeployDiamond(ctx context.Context) error {
	if err := r.o.desired.Validate(); err != nil {
		return err
	}

	if r.deployed.HasDiamond() {
		r.logger.Info("diamond is already recorded, it will not be deployed again", logfields.Address("diamond", r.deployed.Diamond()))
	} else {
		for _, name := range []string{r.o.config.DiamondCutFacetName(), r.o.config.DiamondName()} {
			if _, err := r.o.artifacts.ABI(name); err != nil {
				return configurationError(err, name)
			}
		}
		arity, err := r.constructorArity(r.o.config.DiamondName())
		if err != nil {
			return err
		}
		if arity != 2 {
			return diamond.Errorf(diamond.ConfigurationInvalid, "diamond constructor must take (owner, diamondCutFacet), it takes %d arguments", arity)
		}
		if owner := r.o.config.DiamondOwnerAddress(); owner != "" && !common.IsHexAddress(owner) {
			return diamond.Errorf(diamond.ConfigurationInvalid, "diamond owner %s is not an address", owner)
		}
		if r.diamondOwner() == (common.Address{}) {
			return diamond.Errorf(diamond.ConfigurationInvalid, "diamond owner is not configured and the connection has no deployer key")
		}
	}

	// dry plan against the state as it is now, surfaces configuration and collision errors early
	if _, err := r.o.Plan(ctx); err != nil {
		return err
	}
	return nil
}

func (r *run) constructorArity(contract string) (int, error) {
	rawABI, err := r.o.artifacts.ABI(contract)
	if err != nil {
		return 0, configurationError(err, contract)
	}
	arity, err := chainadapter.ConstructorArity(rawABI)
	if err != nil {
		return 0, configurationError(err, contract)
	}
	return arity, nil
}

func (r *run) creationCode(contract string, libraries map[string]common.Address, args ...interface{}) ([]byte, error) {
	rawABI, err := r.o.artifacts.ABI(contract)
	if err != nil {
		return nil, configurationError(err, contract)
	}
	bytecode, err := r.o.artifacts.Bytecode(contract, libraries)
	if err != nil {
		return nil, configurationError(err, contract)
	}
	code, err := chainadapter.PackConstructor(rawABI, bytecode, args...)
	if err != nil {
		return nil, configurationError(err, contract)
	}
	return code, nil
}

func (r *run) deployDiamond(ctx context.Context) error {
	if r.deployed.HasDiamond() {
		return nil
	}

	cutFacet := r.o.config.DiamondCutFacetName()
	cutFacetAddress := common.Address{}
	if f, found := r.deployed.Facet(cutFacet); found && f.HasAddress() {
		cutFacetAddress = f.AddressValue()
		r.logger.Info("reusing recorded diamond cut facet", logfields.Facet(cutFacet), logfields.Address("facet-address", cutFacetAddress))
	} else {
		code, err := r.creationCode(cutFacet, nil)
		if err != nil {
			return err
		}
		outcome, err := r.step(ctx, &Action{Step: "deployDiamond:" + cutFacet, Description: "deploy " + cutFacet, Data: code})
		if err != nil {
			return err
		}
		cutFacetAddress = outcome.ContractAddress
		r.deployed.SetFacetDeployment(cutFacet, cutFacetAddress, outcome.TxHash)
		if err := r.save(); err != nil {
			return err
		}
	}

	name := r.o.config.DiamondName()
	code, err := r.creationCode(name, nil, r.diamondOwner(), cutFacetAddress)
	if err != nil {
		return err
	}
	outcome, err := r.step(ctx, &Action{Step: "deployDiamond:" + name, Description: "deploy diamond " + name, Data: code})
	if err != nil {
		return err
	}

	r.deployed.DiamondAddress = outcome.ContractAddress.Hex()
	if signer := r.o.conn.DeployerAddress(); signer != (common.Address{}) {
		r.deployed.DeployerAddress = signer.Hex()
	}
	// the diamond constructor registers diamondCut with the cut facet
	r.deployed.SetFacetSelectors(cutFacet, diamond.NewSelectorSet(diamondCutSelector))
	if cfg, declared := r.o.desired.Facet(cutFacet); declared {
		if table := cfg.VersionTable(); len(table) > 0 {
			r.deployed.SetFacetVersion(cutFacet, table[0].Number)
		}
	}
	return r.save()
}

// diamondOwner is the configured owner, or the signing account when none is configured
func (r *run) diamondOwner() common.Address {
	if configured := r.o.config.DiamondOwnerAddress(); configured != "" {
		return common.HexToAddress(configured)
	}
	return r.o.conn.DeployerAddress()
}

func (r *run) postDeployDiamond(ctx context.Context) error {
	if !r.deployed.HasDiamond() {
		return diamond.Errorf(diamond.ChainOperationFailed, "no diamond address was recorded")
	}
	r.logger.Info("diamond ready", logfields.Address("diamond", r.deployed.Diamond()), logfields.Address("owner", r.diamondOwner()))
	return nil
}

// preDeployFacets resolves the run's targets and deploys the libraries the changing facets link against
func (r *run) preDeployFacets(ctx context.Context) error {
	if err := r.o.desired.Validate(); err != nil {
		return err
	}

	resolutions, err := r.o.versions.ResolveAll(r.o.desired, r.deployed)
	r.result.Resolutions = resolutions
	if err != nil {
		return err
	}

	targets := r.o.buildTargets(r.deployed, resolutions)
	if err := r.o.resolveSelectors(targets); err != nil {
		return err
	}
	for _, t := range targets {
		r.targets[t.Name()] = t
	}
	r.changing = changingTargets(targets)

	for _, missing := range r.o.callbacks.Missing(r.o.desired) {
		r.logger.Info("configured callback is not registered, it will be reported after the cut", log.String("callback", missing))
	}

	r.libraries, err = r.o.librariesToDeploy(r.deployed, r.changing)
	if err != nil {
		return err
	}
	for _, lib := range r.libraries {
		code, err := r.creationCode(lib, r.linkedLibraries())
		if err != nil {
			return err
		}
		outcome, err := r.step(ctx, &Action{Step: "deployLibrary:" + lib, Description: "deploy library " + lib, Data: code})
		if err != nil {
			return err
		}
		r.deployed.ExternalLibraries[lib] = outcome.ContractAddress.Hex()
		if err := r.save(); err != nil {
			return err
		}
	}
	return nil
}

func attributeTo(err error, facet string) error {
	if de, ok := err.(*diamond.Error); ok && de.Facet == "" {
		return de.ForFacet(facet)
	}
	return err
}

func (r *run) linkedLibraries() map[string]common.Address {
	out := make(map[string]common.Address, len(r.deployed.ExternalLibraries))
	for name, address := range r.deployed.ExternalLibraries {
		out[name] = common.HexToAddress(address)
	}
	return out
}

// deployFacets deploys new code for every changing facet. Addresses stay in the targets until the
// cut is confirmed, the recorded state keeps describing what the diamond routes to.
func (r *run) deployFacets(ctx context.Context) error {
	for _, t := range r.changing {
		code, err := r.creationCode(t.Name(), r.linkedLibraries())
		if err != nil {
			return err
		}
		version := state.FormatVersion(t.Resolution.TargetVersion)
		outcome, err := r.step(ctx, &Action{
			Step:        "deployFacets:" + t.Name() + "@" + version,
			Description: "deploy facet " + t.Name() + " version " + version,
			Data:        code,
		})
		if err != nil {
			return attributeTo(err, t.Name())
		}
		t.Address = outcome.ContractAddress
		r.deployTx[t.Name()] = outcome.TxHash
	}
	return nil
}

func (r *run) postDeployFacets(ctx context.Context) error {
	for _, t := range r.changing {
		if t.Address == (common.Address{}) {
			return diamond.Errorf(diamond.ChainOperationFailed, "facet has no deployed address").ForFacet(t.Name())
		}
	}
	r.logger.Info("facets deployed", log.Int("facets", len(r.changing)), log.Int("libraries", len(r.libraries)))
	return nil
}

func (r *run) preUpdateSelectorRegistry(ctx context.Context) error {
	targets := make([]*cutplanner.FacetTarget, 0, len(r.targets))
	for _, t := range r.targets {
		targets = append(targets, t)
	}
	plan, err := r.o.planner.Plan(r.deployed, targets)
	if err != nil {
		return err
	}
	r.plan = plan
	r.result.Plan = plan
	return nil
}

// updateSelectorRegistry reads the diamond's routing table; a diamond without the loupe leaves the
// recorded state as the only source
func (r *run) updateSelectorRegistry(ctx context.Context) error {
	onChain, err := r.o.conn.FacetSelectors(ctx, r.deployed.Diamond())
	if err != nil {
		r.logger.Info("diamond loupe is unavailable, relying on the recorded state", log.Error(err))
		return nil
	}
	r.onChain = onChain

	owners, err := r.deployed.SelectorOwners()
	if err != nil {
		return err
	}
	drift := 0
	for selector, facet := range owners {
		f, _ := r.deployed.Facet(facet)
		if routed, found := onChain[selector]; !found || routed != f.AddressValue() {
			drift++
		}
	}
	if drift > 0 {
		r.logger.Info("recorded selectors differ from the diamond's routing table", log.Int("selectors", drift), log.Int("on-chain", len(onChain)))
	}
	return nil
}

// postUpdateSelectorRegistry checks the plan against the routing table it will be applied to
func (r *run) postUpdateSelectorRegistry(ctx context.Context) error {
	if r.onChain == nil {
		return nil
	}
	for _, op := range r.plan {
		if op.Action != diamond.Add {
			continue
		}
		for _, selector := range op.Selectors {
			// a cut applied before an interrupted run already routes its selectors to the target
			if routed, found := r.onChain[selector]; found && routed != op.Target {
				return diamond.Errorf(diamond.SelectorCollision, "selector %s is already routed to %s on chain", selector, routed.Hex()).ForFacet(op.Facet)
			}
		}
	}
	return nil
}

func (r *run) protocolAdvances() bool {
	return r.deployed.ProtocolVersion == nil || r.o.desired.ProtocolVersion > *r.deployed.ProtocolVersion
}

func (r *run) prePerformCut(ctx context.Context) error {
	if r.protocolAdvances() && r.o.desired.ProtocolInitFacet != "" {
		init, err := r.protocolInitializer()
		if err != nil {
			return err
		}
		r.protocol = init
	}

	if r.plan.IsEmpty() && (r.protocol == nil || r.protocol.calldata == nil) {
		return nil
	}

	init, initCalldata := common.Address{}, []byte(nil)
	if r.protocol != nil && r.protocol.calldata != nil {
		init, initCalldata = r.protocol.address, r.protocol.calldata
	}
	calldata, err := chainadapter.PackDiamondCut(r.plan, init, initCalldata)
	if err != nil {
		return err
	}
	r.cutCalldata = calldata
	return nil
}

// protocolInitializer finds what the cut delegates to when the protocol version advances: the
// initializer resolved for protocolInitFacet, or its deployInit when the facet itself is unchanged
func (r *run) protocolInitializer() (*protocolInit, error) {
	name := r.o.desired.ProtocolInitFacet
	t, found := r.targets[name]
	if !found {
		return nil, diamond.Errorf(diamond.ConfigurationInvalid, "protocolInitFacet is not a configured facet").ForFacet(name)
	}

	init := &protocolInit{facet: name, initializer: t.Resolution.Initializer}
	if t.Resolution.Changes() {
		init.address = t.Address
	} else if f, deployed := r.deployed.Facet(name); deployed {
		init.address = f.AddressValue()
		cfg, _ := r.o.desired.Facet(name)
		for _, v := range cfg.VersionTable() {
			if v.Number == t.Resolution.TargetVersion {
				init.initializer = v.DeployInit
			}
		}
	}

	if init.initializer == "" {
		r.logger.Info("protocol version advances without an initializer", logfields.Facet(name))
		return init, nil
	}
	if init.address == (common.Address{}) {
		return nil, diamond.Errorf(diamond.ConfigurationInvalid, "protocol initializer facet has no address").ForFacet(name)
	}
	calldata, err := chainadapter.PackInitializer(init.initializer)
	if err != nil {
		return nil, configurationError(err, name)
	}
	init.calldata = calldata
	return init, nil
}

func (r *run) performCut(ctx context.Context) error {
	if r.cutCalldata == nil {
		r.logger.Info("diamond is up to date, nothing to cut")
		return nil
	}

	diamondAddress := r.deployed.Diamond()
	hash := crypto.Keccak256Hash(r.cutCalldata).Hex()
	outcome, err := r.step(ctx, &Action{
		Step:        "performCut:" + hash[2:10],
		Description: "diamond cut " + r.plan.String(),
		To:          &diamondAddress,
		Data:        r.cutCalldata,
	})
	if err != nil {
		return err
	}
	r.cutTx = outcome.TxHash
	return nil
}

// postPerformCut records the confirmed cut, then runs each changed facet's initializer. A facet's
// version is recorded only once its initializer succeeded, so a failed one is retried next run.
func (r *run) postPerformCut(ctx context.Context) error {
	if r.cutCalldata != nil {
		r.logger.Info("cut confirmed", logfields.TxHash(r.cutTx), log.Int("operations", len(r.plan)), log.Int("selectors", r.plan.SelectorCount()))
	}
	for _, t := range r.changing {
		r.deployed.SetFacetDeployment(t.Name(), t.Address, r.deployTx[t.Name()])
		r.deployed.SetFacetSelectors(t.Name(), t.Selectors)
	}
	for _, name := range r.deployed.FacetNames() {
		if _, configured := r.targets[name]; !configured {
			r.logger.Info("facet removed from the diamond", logfields.Facet(name))
			r.deployed.RemoveFacet(name)
		}
	}
	if r.protocolAdvances() {
		r.deployed.SetProtocolVersion(r.o.desired.ProtocolVersion)
		r.protocolAdvanced = true
	}
	if err := r.save(); err != nil {
		return err
	}

	diamondAddress := r.deployed.Diamond()
	for _, t := range r.changing {
		version := t.Resolution.TargetVersion
		initializer := t.Resolution.Initializer
		if r.protocol != nil && r.protocol.facet == t.Name() && r.protocol.calldata != nil {
			initializer = ""
		}

		if initializer != "" {
			calldata, err := chainadapter.PackInitializer(initializer)
			if err != nil {
				return configurationError(err, t.Name())
			}
			if _, err := r.step(ctx, &Action{
				Step:        "postPerformCut:init:" + t.Name() + "@" + state.FormatVersion(version),
				Description: "initialize " + t.Name() + " with " + initializer,
				To:          &diamondAddress,
				Data:        calldata,
			}); err != nil {
				return attributeTo(err, t.Name())
			}
		}

		r.deployed.SetFacetVersion(t.Name(), version)
		if err := r.save(); err != nil {
			return err
		}
		r.cutConfirmed = append(r.cutConfirmed, t)
		r.logger.Info("facet is live", logfields.Facet(t.Name()), logfields.Version("version", version), logfields.Address("facet-address", t.Address))
	}
	return nil
}

func (r *run) preRunCallbacks(ctx context.Context) error {
	total := 0
	for _, t := range r.cutConfirmed {
		total += len(t.Resolution.Callbacks)
	}
	if r.protocolCallbackDue() {
		total++
	}
	r.logger.Info("callbacks scheduled", log.Int("callbacks", total))
	return nil
}

func (r *run) protocolCallbackDue() bool {
	return r.o.desired.ProtocolCallback != "" && r.protocolAdvanced
}

// runCallbacks never fails the run, a failed callback becomes a remediation item on the result
func (r *run) runCallbacks(ctx context.Context) error {
	for _, t := range r.cutConfirmed {
		if len(t.Resolution.Callbacks) == 0 {
			continue
		}
		if _, err := r.o.dispatcher.Dispatch(ctx, t.Name(), t.Resolution.Callbacks, r.callbackArgs(t.Name(), t.Resolution.TargetVersion, t.Address)); err != nil {
			r.result.Remediation = append(r.result.Remediation, err)
		}
	}

	if r.protocolCallbackDue() {
		args := r.callbackArgs(callbacks.ProtocolScope, r.o.desired.ProtocolVersion, common.Address{})
		if _, err := r.o.dispatcher.Dispatch(ctx, callbacks.ProtocolScope, []string{r.o.desired.ProtocolCallback}, args); err != nil {
			r.result.Remediation = append(r.result.Remediation, err)
		}
	}
	return nil
}

func (r *run) callbackArgs(facet string, version float64, facetAddress common.Address) *callbacks.Args {
	return &callbacks.Args{
		Facet:        facet,
		Version:      version,
		Diamond:      r.deployed.Diamond(),
		FacetAddress: facetAddress,
		Network:      r.o.config.NetworkName(),
		ChainId:      r.o.config.ChainId(),
		Deployed:     r.deployed.Clone(),
	}
}

// postRunCallbacks marks facets verified when the diamond routes every recorded selector to them
func (r *run) postRunCallbacks(ctx context.Context) error {
	for _, remediation := range r.result.Remediation {
		r.logger.Info("post deployment remediation required", log.Error(remediation))
	}

	onChain, err := r.o.conn.FacetSelectors(ctx, r.deployed.Diamond())
	if err != nil {
		r.logger.Info("diamond loupe is unavailable, facets stay unverified", log.Error(err))
		r.result.Deployed = r.deployed
		return nil
	}

	var verified []string
	for _, name := range r.deployed.FacetNames() {
		f, _ := r.deployed.Facet(name)
		selectors, err := f.Selectors()
		if err != nil || selectors.Len() == 0 {
			continue
		}
		routed := true
		for selector := range selectors {
			if onChain[selector] != f.AddressValue() {
				routed = false
				break
			}
		}
		f.Verified = routed
		if routed {
			verified = append(verified, name)
		}
	}
	if len(verified) > 0 {
		r.logger.Info("facets verified against the diamond", log.String("facets", strings.Join(verified, ",")))
	}
	r.result.Deployed = r.deployed
	return r.save()
}
