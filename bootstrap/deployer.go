// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package bootstrap

import (
	"context"
	"github.com/orbs-network/diamond-deployer/config"
	"github.com/orbs-network/diamond-deployer/instrumentation/metric"
	approvalAdapter "github.com/orbs-network/diamond-deployer/services/approval/adapter"
	artifactsAdapter "github.com/orbs-network/diamond-deployer/services/artifacts/adapter"
	"github.com/orbs-network/diamond-deployer/services/callbacks"
	chainAdapter "github.com/orbs-network/diamond-deployer/services/chain/adapter"
	"github.com/orbs-network/diamond-deployer/services/deployment"
	"github.com/orbs-network/diamond-deployer/services/steps"
	"github.com/orbs-network/diamond-deployer/services/steps/adapter/filesystem"
	"github.com/orbs-network/diamond-deployer/state"
	"github.com/orbs-network/diamond-deployer/synchronization"
	"github.com/orbs-network/scribe/log"
	"path/filepath"
)

type Deployer struct {
	diamonds       *deployment.DiamondRegistry
	logic          DeployerLogic
	connection     *chainAdapter.EthereumRpcConnection
	metricReporter *synchronization.PeriodicalTrigger
	ctxCancel      context.CancelFunc
}

// DeployedStatePath is <deployments>/<deployment id>.json
func DeployedStatePath(cfg config.DeployerConfig) string {
	return filepath.Join(cfg.DeploymentsPath(), steps.DeploymentId(cfg.DiamondName(), cfg.NetworkName(), cfg.ChainId())+".json")
}

// NewDeployer validates the tool configuration, loads the configuration document and wires the
// production adapters. callbackRegistry may be nil when no facet declares callbacks.
func NewDeployer(deployerConfig config.DeployerConfig, callbackRegistry *callbacks.Registry, logger log.Logger) (*Deployer, error) {
	if err := config.Validate(deployerConfig); err != nil {
		return nil, err
	}

	desired, raw, err := state.LoadDesiredConfiguration(deployerConfig.ConfigDocumentPath())
	if err != nil {
		return nil, err
	}

	connection, err := chainAdapter.NewEthereumRpcConnection(deployerConfig, logger)
	if err != nil {
		return nil, err
	}

	adapters := &Adapters{
		Connection: connection,
		Artifacts:  artifactsAdapter.NewFilesystemArtifactStore(deployerConfig, logger),
		Store:      state.NewFileStore(DeployedStatePath(deployerConfig)),
		Callbacks:  callbackRegistry,
	}

	if deployerConfig.ExecutionStrategy() == config.STRATEGY_DELEGATED {
		persistence, err := filesystem.NewStepPersistence(deployerConfig, logger)
		if err != nil {
			connection.Close()
			return nil, err
		}
		adapters.Persistence = persistence
		adapters.Approval = approvalAdapter.NewHttpApprovalService(deployerConfig, logger)
	}

	ctx, ctxCancel := context.WithCancel(context.Background())
	metricRegistry := metric.NewRegistry()

	diamonds := deployment.NewDiamondRegistry()
	logic, err := NewDeployerLogic(deployerConfig, desired, steps.ConfigHash(raw), adapters, diamonds, deployment.NewRunGuard(logger), logger, metricRegistry)
	if err != nil {
		ctxCancel()
		connection.Close()
		return nil, err
	}

	var metricReporter *synchronization.PeriodicalTrigger
	if deployerConfig.MetricsReportInterval() > 0 {
		metricReporter = metricRegistry.ReportEvery(ctx, deployerConfig.MetricsReportInterval(), logger)
	}

	return &Deployer{
		diamonds:       diamonds,
		logic:          logic,
		connection:     connection,
		metricReporter: metricReporter,
		ctxCancel:      ctxCancel,
	}, nil
}

func (d *Deployer) Orchestrator() *deployment.Orchestrator {
	return d.logic.Orchestrator()
}

// Shutdown stops metric reporting (flushing a last report) and closes the chain connection
func (d *Deployer) Shutdown() {
	d.ctxCancel()
	d.diamonds.Clear()
	if d.metricReporter != nil {
		d.metricReporter.Stop()
	}
	d.connection.Close()
}
