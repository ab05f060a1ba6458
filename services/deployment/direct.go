// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package deployment

import (
	"context"
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/orbs-network/diamond-deployer/instrumentation/logfields"
	chainadapter "github.com/orbs-network/diamond-deployer/services/chain/adapter"
	stepsadapter "github.com/orbs-network/diamond-deployer/services/steps/adapter"
	"github.com/orbs-network/scribe/log"
)

// DirectStrategy signs and sends every step with the locally held key; a step is complete once mined
type DirectStrategy struct {
	conn   chainadapter.Connection
	logger log.Logger
}

func NewDirectStrategy(conn chainadapter.Connection, parent log.Logger) *DirectStrategy {
	return &DirectStrategy{
		conn:   conn,
		logger: parent.WithTags(log.String("strategy", "direct")),
	}
}

func (s *DirectStrategy) Name() string {
	return "direct"
}

func (s *DirectStrategy) Open(ctx context.Context, info *RunInfo) (Executor, error) {
	return &directExecutor{
		conn:   s.conn,
		logger: s.logger.WithTags(logfields.DeploymentId(info.DeploymentId)),
	}, nil
}

// Records is always empty, direct runs keep no step state
func (s *DirectStrategy) Records(info *RunInfo) ([]*stepsadapter.StepRecord, error) {
	return nil, nil
}

type directExecutor struct {
	conn   chainadapter.Connection
	logger log.Logger
}

func (e *directExecutor) Execute(ctx context.Context, action *Action) (*Outcome, error) {
	e.logger.Info("executing step", logfields.Step(action.Step), log.String("description", action.Description))

	var receipt *chainadapter.Receipt
	var err error
	if action.IsDeployment() {
		receipt, err = e.conn.DeployContract(ctx, action.Data)
	} else {
		receipt, err = e.conn.SendTransaction(ctx, *action.To, action.Data)
	}
	if err != nil {
		return nil, diamond.NewError(diamond.ChainOperationFailed, err).AtStep(action.Step)
	}

	return &Outcome{TxHash: receipt.TxHash, ContractAddress: receipt.ContractAddress}, nil
}

func (e *directExecutor) Close(completed bool) error {
	return nil
}
