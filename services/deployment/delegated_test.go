// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package deployment

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/orbs-network/diamond-deployer/diamond"
	approvaladapter "github.com/orbs-network/diamond-deployer/services/approval/adapter"
	chainadapter "github.com/orbs-network/diamond-deployer/services/chain/adapter"
	"github.com/orbs-network/diamond-deployer/services/steps"
	stepsadapter "github.com/orbs-network/diamond-deployer/services/steps/adapter"
	"github.com/orbs-network/diamond-deployer/state"
	"github.com/orbs-network/diamond-deployer/test"
	"github.com/orbs-network/diamond-deployer/test/builders"
	"github.com/orbs-network/diamond-deployer/test/with"
	"github.com/orbs-network/go-mock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"testing"
)

func (h *harness) openSteps() *steps.Registry {
	r, err := steps.Open(h.persistence, diamondName, "local", 31337, "", h.Logger)
	require.NoError(h.T, err)
	return r
}

func TestDelegated_AutoApprovedRunCompletesAndForgetsItsSteps(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		h := newHarness(harness)
		approval := approvaladapter.NewInMemoryApprovalService(nil).WithAutoApprove()

		result, err := h.orchestrator(tokenConfiguration().Build(), h.delegated(approval)).Deploy(h.Ctx)
		require.NoError(t, err)
		require.Equal(t, "delegated", result.Strategy)
		require.Equal(t, Phases, result.CompletedPhases)

		require.Empty(t, h.conn.Sent(), "delegated runs never sign locally")
		require.Equal(t, 5, approval.ProposalCount(), "cut facet, diamond, two facets and the cut")
		require.Len(t, approval.ProposalsForStep("deployDiamond:"+cutFacet), 1)
		require.Len(t, approval.ProposalsForStep("deployFacets:"+erc20Facet+"@0"), 1)

		deployed := h.deployed()
		require.True(t, deployed.HasDiamond())
		requireVersion(t, deployed, erc20Facet, 0)

		doc, err := h.persistence.Read(steps.DeploymentId(diamondName, "local", 31337))
		require.NoError(t, err)
		require.Nil(t, doc, "a completed run clears its step records")
	})
}

func TestDelegated_ApprovalTimeoutLeavesTheStepOpenAndResumeDoesNotProposeAgain(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		h := newHarness(harness)
		approval := approvaladapter.NewInMemoryApprovalService(nil)
		desired := tokenConfiguration().Build()

		_, err := h.orchestrator(desired, h.delegated(approval)).Deploy(h.Ctx)
		requireRunError(t, err, DeployDiamond, diamond.ApprovalTimeout)

		firstStep := "deployDiamond:" + cutFacet
		proposals := approval.ProposalsForStep(firstStep)
		require.Len(t, proposals, 1)
		record, found := h.openSteps().Get(firstStep)
		require.True(t, found)
		require.Equal(t, stepsadapter.Pending, record.Status)
		require.Equal(t, proposals[0], record.ProposalId)

		status, err := h.orchestrator(desired, h.delegated(approval)).Status(h.Ctx)
		require.NoError(t, err)
		require.Len(t, status.Steps, 1, "status lists open steps")

		approval.ApproveAll()
		approval.WithAutoApprove()

		_, err = h.orchestrator(desired, h.delegated(approval)).Deploy(h.Ctx)
		require.NoError(t, err)
		require.Equal(t, proposals, approval.ProposalsForStep(firstStep), "the open proposal was polled, not duplicated")
		require.Equal(t, 1, approval.ExecuteCount(proposals[0]))
	})
}

func TestDelegated_ExecutedStepIsSkippedOnResume(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		h := newHarness(harness)
		recordedCutFacet := builders.AddressForTests(0xcf)
		require.NoError(t, h.openSteps().Put(&stepsadapter.StepRecord{
			StepName:        "deployDiamond:" + cutFacet,
			Status:          stepsadapter.Executed,
			ProposalId:      "earlier-proposal",
			ContractAddress: recordedCutFacet.Hex(),
		}))
		approval := approvaladapter.NewInMemoryApprovalService(nil).WithAutoApprove()

		_, err := h.orchestrator(tokenConfiguration().Build(), h.delegated(approval)).Deploy(h.Ctx)
		require.NoError(t, err)

		require.Empty(t, approval.ProposalsForStep("deployDiamond:"+cutFacet))
		cut, found := h.deployed().Facet(cutFacet)
		require.True(t, found)
		require.Equal(t, recordedCutFacet.Hex(), cut.Address)
	})
}

func TestDelegated_RejectedProposalFailsTheStep(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		h := newHarness(harness)
		approval := approvaladapter.NewInMemoryApprovalService(nil)
		desired := tokenConfiguration().Build()

		_, err := h.orchestrator(desired, h.delegated(approval)).Deploy(h.Ctx)
		requireRunError(t, err, DeployDiamond, diamond.ApprovalTimeout)

		firstStep := "deployDiamond:" + cutFacet
		require.NoError(t, approval.Reject(approval.ProposalsForStep(firstStep)[0], "owners disagree"))

		_, err = h.orchestrator(desired, h.delegated(approval)).Deploy(h.Ctx)
		requireRunError(t, err, DeployDiamond, diamond.ChainOperationFailed)

		record, _ := h.openSteps().Get(firstStep)
		require.Equal(t, stepsadapter.Failed, record.Status)
		require.Equal(t, "owners disagree", record.Error)

		// a failed step is proposed again
		approval.WithAutoApprove()
		_, err = h.orchestrator(desired, h.delegated(approval)).Deploy(h.Ctx)
		require.NoError(t, err)
		require.Len(t, approval.ProposalsForStep(firstStep), 2)
	})
}

func TestDelegated_ProposalCreationFailureIsRecorded(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		h := newHarness(harness)
		approval := &approvaladapter.MockApprovalService{}
		approval.When("CreateProposal", mock.Any, mock.Any).Return("", errors.New("service unavailable")).Times(1)

		_, err := h.orchestrator(tokenConfiguration().Build(), h.delegated(approval)).Deploy(h.Ctx)
		requireRunError(t, err, DeployDiamond, diamond.ChainOperationFailed)

		record, found := h.openSteps().Get("deployDiamond:" + cutFacet)
		require.True(t, found)
		require.Equal(t, stepsadapter.Failed, record.Status)
		require.Contains(t, record.Error, "service unavailable")

		require.NoError(t, test.EventuallyVerify(approval))
	})
}

func TestDelegated_PollErrorsAreRetried(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		h := newHarness(harness)
		h.config.maxAttempts = 1
		approval := &approvaladapter.MockApprovalService{}
		approval.When("CreateProposal", mock.Any, mock.Any).Return("proposal-1", nil).Times(1)
		approval.When("GetProposal", mock.Any, "proposal-1").Return(nil, errors.New("timeout")).Times(1)

		_, err := h.orchestrator(tokenConfiguration().Build(), h.delegated(approval)).Deploy(h.Ctx)
		requireRunError(t, err, DeployDiamond, diamond.ApprovalTimeout)

		record, _ := h.openSteps().Get("deployDiamond:" + cutFacet)
		require.Equal(t, "proposal-1", record.ProposalId)
		require.Equal(t, stepsadapter.Pending, record.Status)

		require.NoError(t, test.EventuallyVerify(approval))
	})
}

// failingStore fails the first save that matches, then behaves like the store it wraps
type failingStore struct {
	*state.MemoryStore
	failed bool
	when   func(s *state.DeployedState) bool
}

func (f *failingStore) Save(s *state.DeployedState) error {
	if !f.failed && f.when(s) {
		f.failed = true
		return errors.New("disk full")
	}
	return f.MemoryStore.Save(s)
}

func TestDelegated_ResumeAfterTheCutExecutedDoesNotCollideWithItsOwnRouting(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		h := newHarness(harness)
		approval := approvaladapter.NewInMemoryApprovalService(nil).WithAutoApprove()
		desired := tokenConfiguration().Build()
		store := &failingStore{MemoryStore: h.store, when: func(s *state.DeployedState) bool {
			erc20, found := s.Facet(erc20Facet)
			return found && erc20.Address != ""
		}}
		orchestrator := func() *Orchestrator {
			return NewOrchestrator(h.config, desired, "config-hash", store, h.conn, h.artifacts, h.callbacks, h.delegated(approval), h.guard, h.Logger, h.metrics)
		}

		_, err := orchestrator().Deploy(h.Ctx)
		require.Error(t, err)
		runErr, ok := err.(*RunError)
		require.True(t, ok, "expected a RunError, got %T: %v", err, err)
		require.Equal(t, PostPerformCut, runErr.Phase)
		require.Equal(t, 5, approval.ProposalCount(), "the cut was proposed and executed before the save failed")

		// the diamond now routes the selectors the executed cut added
		registry := h.openSteps()
		routing := make(map[diamond.Selector]common.Address)
		for facet, signatures := range map[string][]string{
			erc20Facet: {"transfer(address,uint256)", "balanceOf(address)"},
			ownerFacet: {"owner()", "transferOwnership(address)"},
		} {
			record, found := registry.Get("deployFacets:" + facet + "@0")
			require.True(t, found)
			require.Equal(t, stepsadapter.Executed, record.Status)
			for _, signature := range signatures {
				routing[diamond.SelectorFromSignature(signature)] = common.HexToAddress(record.ContractAddress)
			}
		}
		cut, found := h.deployed().Facet(cutFacet)
		require.True(t, found)
		routing[diamondCutSelector] = common.HexToAddress(cut.Address)
		h.conn.SetFacetSelectors(h.deployed().Diamond(), routing)

		_, err = orchestrator().Deploy(h.Ctx)
		require.NoError(t, err)
		require.Equal(t, 5, approval.ProposalCount(), "the executed cut is not proposed again")

		deployed := h.deployed()
		requireVersion(t, deployed, erc20Facet, 0)
		requireVersion(t, deployed, ownerFacet, 0)
	})
}

func TestDelegated_KeylessConnectionNeedsAConfiguredOwner(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		h := newHarness(harness)
		h.conn = chainadapter.NewFakeConnection(common.Address{})
		approval := approvaladapter.NewInMemoryApprovalService(nil).WithAutoApprove()
		desired := tokenConfiguration().Build()

		_, err := h.orchestrator(desired, h.delegated(approval)).Deploy(h.Ctx)
		requireRunError(t, err, PreDeployDiamond, diamond.ConfigurationInvalid)
		require.Zero(t, approval.ProposalCount(), "nothing is proposed for an ownerless diamond")
		require.False(t, h.deployed().HasDiamond())

		owner := builders.AddressForTests(0x0e)
		h.config.ownerAddress = owner.Hex()
		_, err = h.orchestrator(desired, h.delegated(approval)).Deploy(h.Ctx)
		require.NoError(t, err)

		proposals := approval.ProposalsForStep("deployDiamond:" + diamondName)
		require.Len(t, proposals, 1)
		proposal, found := approval.Proposal(proposals[0])
		require.True(t, found)
		creation := common.FromHex(proposal.Data)
		require.Equal(t, owner.Bytes(), creation[len(creation)-52:len(creation)-32])
		require.Empty(t, h.deployed().DeployerAddress, "a keyless connection records no deployer")
	})
}
