// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package bootstrap

import (
	"github.com/orbs-network/diamond-deployer/config"
	"github.com/orbs-network/diamond-deployer/instrumentation/metric"
	approvalAdapter "github.com/orbs-network/diamond-deployer/services/approval/adapter"
	artifactsAdapter "github.com/orbs-network/diamond-deployer/services/artifacts/adapter"
	"github.com/orbs-network/diamond-deployer/services/callbacks"
	chainAdapter "github.com/orbs-network/diamond-deployer/services/chain/adapter"
	"github.com/orbs-network/diamond-deployer/services/deployment"
	stepsAdapter "github.com/orbs-network/diamond-deployer/services/steps/adapter"
	"github.com/orbs-network/diamond-deployer/state"
	"github.com/orbs-network/scribe/log"
	"github.com/pkg/errors"
)

// Adapters are the outside collaborators of a deployment; production builds them from config, tests pass fakes
type Adapters struct {
	Connection  chainAdapter.Connection
	Artifacts   artifactsAdapter.Store
	Store       state.Store
	Persistence stepsAdapter.StepPersistence
	// Approval is only used by the delegated strategy
	Approval  approvalAdapter.Service
	Callbacks *callbacks.Registry
}

type DeployerLogic interface {
	Orchestrator() *deployment.Orchestrator
}

type deployerLogic struct {
	orchestrator *deployment.Orchestrator
}

func NewDeployerLogic(
	deployerConfig config.DeployerConfig,
	desired *state.DesiredConfiguration,
	configHash string,
	adapters *Adapters,
	diamonds *deployment.DiamondRegistry,
	guard *deployment.RunGuard,
	logger log.Logger,
	metricRegistry metric.Registry,
) (DeployerLogic, error) {

	callbackRegistry := adapters.Callbacks
	if callbackRegistry == nil {
		callbackRegistry = callbacks.NewRegistry()
	}

	var strategy deployment.Strategy
	switch deployerConfig.ExecutionStrategy() {
	case config.STRATEGY_DIRECT:
		strategy = deployment.NewDirectStrategy(adapters.Connection, logger)
	case config.STRATEGY_DELEGATED:
		if adapters.Approval == nil || adapters.Persistence == nil {
			return nil, errors.New("delegated execution needs an approval service and step persistence")
		}
		strategy = deployment.NewDelegatedStrategy(deployerConfig, adapters.Approval, adapters.Persistence, logger, metricRegistry)
	default:
		return nil, errors.Errorf("unknown execution strategy %s", deployerConfig.ExecutionStrategy())
	}

	orchestrator, err := diamonds.GetOrCreate(deployerConfig.DiamondName(), deployerConfig.NetworkName(), deployerConfig.ChainId(), func() (*deployment.Orchestrator, error) {
		return deployment.NewOrchestrator(
			deployerConfig,
			desired,
			configHash,
			adapters.Store,
			adapters.Connection,
			adapters.Artifacts,
			callbackRegistry,
			strategy,
			guard,
			logger,
			metricRegistry,
		), nil
	})
	if err != nil {
		return nil, err
	}

	return &deployerLogic{
		orchestrator: orchestrator,
	}, nil
}

func (l *deployerLogic) Orchestrator() *deployment.Orchestrator {
	return l.orchestrator
}
