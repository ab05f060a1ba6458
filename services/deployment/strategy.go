// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package deployment

import (
	"context"
	"github.com/ethereum/go-ethereum/common"
	stepsadapter "github.com/orbs-network/diamond-deployer/services/steps/adapter"
)

// RunInfo identifies the deployment a run belongs to
type RunInfo struct {
	DeploymentId string
	DiamondName  string
	Network      string
	ChainId      uint64
	ConfigHash   string
}

// Action is one chain mutation. A nil To deploys Data as creation code.
type Action struct {
	Step        string
	Description string
	To          *common.Address
	Data        []byte
}

func (a *Action) IsDeployment() bool {
	return a.To == nil
}

type Outcome struct {
	TxHash          common.Hash
	ContractAddress common.Address
	// Resumed is set when the step was found executed by an earlier run
	Resumed bool
}

// Strategy is the pluggable part of a run: how chain-mutating steps get executed. The phase
// sequence itself is driven by the Orchestrator and is the same for every strategy.
type Strategy interface {
	Name() string
	Open(ctx context.Context, info *RunInfo) (Executor, error)
	Records(info *RunInfo) ([]*stepsadapter.StepRecord, error)
}

// Executor executes the steps of a single run; Execute returns only once the step's effect is confirmed
type Executor interface {
	Execute(ctx context.Context, action *Action) (*Outcome, error)
	Close(completed bool) error
}
