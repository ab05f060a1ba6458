// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package deployment

import (
	"context"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/orbs-network/diamond-deployer/instrumentation/logfields"
	"github.com/orbs-network/diamond-deployer/instrumentation/metric"
	approvaladapter "github.com/orbs-network/diamond-deployer/services/approval/adapter"
	"github.com/orbs-network/diamond-deployer/services/steps"
	stepsadapter "github.com/orbs-network/diamond-deployer/services/steps/adapter"
	"github.com/orbs-network/diamond-deployer/synchronization"
	"github.com/orbs-network/scribe/log"
	"github.com/pkg/errors"
	"time"
)

type DelegatedConfig interface {
	ApprovalPollMaxAttempts() uint32
	ApprovalPollInitialDelay() time.Duration
	ApprovalPollMaxDelay() time.Duration
	ApprovalPollJitter() bool
	ApprovalRequestsPerSecond() uint32
}

type delegatedMetrics struct {
	approvalWait     *metric.Histogram
	proposalsCreated *metric.Rate
	stepsResumed     *metric.Gauge
}

// DelegatedStrategy routes every step through an external approval service. Each step is recorded
// before it is proposed, so a restarted run re-polls submitted proposals instead of proposing again.
type DelegatedStrategy struct {
	config      DelegatedConfig
	approval    approvaladapter.Service
	persistence stepsadapter.StepPersistence
	logger      log.Logger
	metrics     *delegatedMetrics
}

func NewDelegatedStrategy(config DelegatedConfig, approval approvaladapter.Service, persistence stepsadapter.StepPersistence, parent log.Logger, metricFactory metric.Factory) *DelegatedStrategy {
	return &DelegatedStrategy{
		config:      config,
		approval:    approval,
		persistence: persistence,
		logger:      parent.WithTags(log.String("strategy", "delegated")),
		metrics: &delegatedMetrics{
			approvalWait:     metricFactory.NewLatency("Deployment.Delegated.ApprovalWait", 24*time.Hour),
			proposalsCreated: metricFactory.NewRate("Deployment.Delegated.ProposalsCreated"),
			stepsResumed:     metricFactory.NewGauge("Deployment.Delegated.StepsResumed"),
		},
	}
}

func (s *DelegatedStrategy) Name() string {
	return "delegated"
}

func (s *DelegatedStrategy) backoff() synchronization.BackoffConfig {
	return synchronization.BackoffConfig{
		MaxAttempts:  s.config.ApprovalPollMaxAttempts(),
		InitialDelay: s.config.ApprovalPollInitialDelay(),
		MaxDelay:     s.config.ApprovalPollMaxDelay(),
		Jitter:       s.config.ApprovalPollJitter(),
	}
}

func (s *DelegatedStrategy) Open(ctx context.Context, info *RunInfo) (Executor, error) {
	registry, err := steps.Open(s.persistence, info.DiamondName, info.Network, info.ChainId, info.ConfigHash, s.logger)
	if err != nil {
		return nil, err
	}
	return &delegatedExecutor{
		info:     info,
		approval: s.approval,
		registry: registry,
		poller:   synchronization.NewBackoffPoller(s.backoff(), synchronization.NewLimiter(s.config.ApprovalRequestsPerSecond())),
		logger:   s.logger.WithTags(logfields.DeploymentId(info.DeploymentId)),
		metrics:  s.metrics,
	}, nil
}

func (s *DelegatedStrategy) Records(info *RunInfo) ([]*stepsadapter.StepRecord, error) {
	registry, err := steps.Open(s.persistence, info.DiamondName, info.Network, info.ChainId, "", s.logger)
	if err != nil {
		return nil, err
	}
	return registry.Records(), nil
}

type delegatedExecutor struct {
	info     *RunInfo
	approval approvaladapter.Service
	registry *steps.Registry
	poller   *synchronization.BackoffPoller
	logger   log.Logger
	metrics  *delegatedMetrics
}

func (e *delegatedExecutor) Execute(ctx context.Context, action *Action) (*Outcome, error) {
	logger := e.logger.WithTags(logfields.Step(action.Step))

	if record, found := e.registry.Get(action.Step); found {
		switch record.Status {
		case stepsadapter.Executed:
			logger.Info("step already executed, skipping", logfields.ProposalId(record.ProposalId), log.String("tx-hash", record.TxHash))
			e.metrics.stepsResumed.Inc()
			return outcomeOf(action, record, true)
		case stepsadapter.Pending, stepsadapter.Approved:
			if record.ProposalId != "" {
				logger.Info("step was already proposed, polling it", logfields.ProposalId(record.ProposalId), log.String("status", string(record.Status)))
				e.metrics.stepsResumed.Inc()
				return e.await(ctx, action, record, logger)
			}
		case stepsadapter.Failed:
			logger.Info("step failed in an earlier run, proposing it again", log.String("reason", record.Error))
		}
	}

	record := &stepsadapter.StepRecord{StepName: action.Step, Status: stepsadapter.Pending}
	if err := e.registry.Put(record); err != nil {
		return nil, err
	}

	id, err := e.approval.CreateProposal(ctx, e.proposalFor(action))
	if err != nil {
		record.Status = stepsadapter.Failed
		record.Error = err.Error()
		record.Timestamp = time.Time{}
		if putErr := e.registry.Put(record); putErr != nil {
			logger.Info("failed recording step failure", log.Error(putErr))
		}
		return nil, diamond.NewError(diamond.ChainOperationFailed, errors.Wrap(err, "proposal was not created")).AtStep(action.Step)
	}
	e.metrics.proposalsCreated.Measure(1)

	record.ProposalId = id
	record.Timestamp = time.Time{}
	if err := e.registry.Put(record); err != nil {
		return nil, err
	}
	logger.Info("step proposed", logfields.ProposalId(id), log.String("description", action.Description))

	return e.await(ctx, action, record, logger)
}

func (e *delegatedExecutor) proposalFor(action *Action) *approvaladapter.Proposal {
	p := &approvaladapter.Proposal{
		DeploymentId: e.info.DeploymentId,
		Step:         action.Step,
		Description:  action.Description,
		Data:         hexutil.Encode(action.Data),
	}
	if action.To != nil {
		p.To = action.To.Hex()
	}
	return p
}

// await polls the proposal until it is executed; running out of attempts leaves the record as is
func (e *delegatedExecutor) await(ctx context.Context, action *Action, record *stepsadapter.StepRecord, logger log.Logger) (*Outcome, error) {
	started := time.Now()
	defer e.metrics.approvalWait.RecordSince(started)

	executeRequested := false
	err := e.poller.Poll(ctx, func(ctx context.Context, attempt uint32) (bool, error) {
		status, err := e.approval.GetProposal(ctx, record.ProposalId)
		if err != nil {
			logger.Info("failed to poll proposal, will retry", log.Error(err), log.Uint32("attempt", attempt))
			return false, nil
		}

		switch status.State {
		case approvaladapter.ProposalPending:
			return false, nil

		case approvaladapter.ProposalApproved:
			if record.Status != stepsadapter.Approved {
				record.Status = stepsadapter.Approved
				record.Timestamp = time.Time{}
				if err := e.registry.Put(record); err != nil {
					return false, err
				}
			}
			if !executeRequested {
				if err := e.approval.ExecuteProposal(ctx, record.ProposalId); err != nil {
					logger.Info("failed to execute approved proposal, will retry", log.Error(err), log.Uint32("attempt", attempt))
					return false, nil
				}
				executeRequested = true
			}
			return false, nil

		case approvaladapter.ProposalExecuted:
			record.Status = stepsadapter.Executed
			record.TxHash = status.TxHash
			record.ContractAddress = status.ContractAddress
			record.Timestamp = time.Time{}
			return true, e.registry.Put(record)

		default:
			record.Status = stepsadapter.Failed
			record.Error = status.Reason
			record.Timestamp = time.Time{}
			if err := e.registry.Put(record); err != nil {
				return false, err
			}
			return false, diamond.Errorf(diamond.ChainOperationFailed, "proposal %s ended %s: %s", record.ProposalId, status.State, status.Reason).AtStep(action.Step)
		}
	})

	if synchronization.IsAttemptsExhausted(err) {
		logger.Info("approval did not complete in time, step stays open for the next run", logfields.ProposalId(record.ProposalId), log.String("status", string(record.Status)))
		return nil, diamond.NewError(diamond.ApprovalTimeout, err).AtStep(action.Step)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("step executed", logfields.ProposalId(record.ProposalId), log.String("tx-hash", record.TxHash))
	return outcomeOf(action, record, false)
}

func outcomeOf(action *Action, record *stepsadapter.StepRecord, resumed bool) (*Outcome, error) {
	outcome := &Outcome{
		TxHash:          common.HexToHash(record.TxHash),
		ContractAddress: common.HexToAddress(record.ContractAddress),
		Resumed:         resumed,
	}
	if action.IsDeployment() && outcome.ContractAddress == (common.Address{}) {
		return nil, diamond.Errorf(diamond.ChainOperationFailed, "deployment executed under proposal %s reported no contract address", record.ProposalId).AtStep(action.Step)
	}
	return outcome, nil
}

// Close forgets the run's steps once every phase completed, so the next run starts fresh
func (e *delegatedExecutor) Close(completed bool) error {
	if !completed {
		return nil
	}
	return e.registry.Clear()
}
