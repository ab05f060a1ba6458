// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package bootstrap

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"github.com/orbs-network/diamond-deployer/config"
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/orbs-network/diamond-deployer/instrumentation/metric"
	approvalAdapter "github.com/orbs-network/diamond-deployer/services/approval/adapter"
	artifactsAdapter "github.com/orbs-network/diamond-deployer/services/artifacts/adapter"
	chainAdapter "github.com/orbs-network/diamond-deployer/services/chain/adapter"
	"github.com/orbs-network/diamond-deployer/services/cutplanner"
	"github.com/orbs-network/diamond-deployer/services/deployment"
	"github.com/orbs-network/diamond-deployer/services/steps/adapter/memory"
	"github.com/orbs-network/diamond-deployer/state"
	"github.com/orbs-network/diamond-deployer/test/builders"
	"github.com/orbs-network/diamond-deployer/test/with"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

const diamondName = "TokenDiamond"

func tokenArtifacts() *artifactsAdapter.InMemoryArtifactStore {
	return artifactsAdapter.NewInMemoryArtifactStore().
		AddContract("DiamondCutFacet", chainAdapter.DiamondCutABIJSON, builders.Bytecode(0xc0)).
		AddContract(diamondName, builders.ConstructorABI([]string{"address", "address"}), builders.Bytecode(0xd0)).
		AddContract("ERC20Facet", builders.ABI("transfer(address,uint256)", "balanceOf(address)"), builders.Bytecode(0xe0))
}

func tokenConfiguration() *state.DesiredConfiguration {
	return builders.DesiredConfiguration().
		WithFacet("ERC20Facet", builders.Facet().WithVersion("0", builders.Version())).
		Build()
}

func newLogic(t *testing.T, cfg config.DeployerConfig, adapters *Adapters, harness *with.LoggingHarness) DeployerLogic {
	logic, err := NewDeployerLogic(cfg, tokenConfiguration(), "hash", adapters, deployment.NewDiamondRegistry(), deployment.NewRunGuard(harness.Logger), harness.Logger, metric.NewRegistry())
	require.NoError(t, err)
	return logic
}

func TestDeployerLogic_DirectStrategyDeploysThroughTheConnection(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		conn := chainAdapter.NewFakeConnection(builders.AddressForTests(0xde))
		store := state.NewMemoryStore(nil)
		logic := newLogic(t, config.ForTests(diamondName), &Adapters{
			Connection: conn,
			Artifacts:  tokenArtifacts(),
			Store:      store,
		}, harness)

		result, err := logic.Orchestrator().Deploy(harness.Ctx)
		require.NoError(t, err)
		require.Equal(t, "direct", result.Strategy)
		require.Len(t, conn.Deployments(), 3, "cut facet, diamond and ERC20Facet")

		var out bytes.Buffer
		WriteResult(&out, result)
		require.Contains(t, out.String(), "tokendiamond-local-31337")
		require.Contains(t, out.String(), "ERC20Facet")
		require.Contains(t, out.String(), "diamond: "+result.Deployed.DiamondAddress)
	})
}

func TestDeployerLogic_DelegatedStrategyProposesInsteadOfSigning(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		cfg := config.ForTests(diamondName)
		cfg.SetString(config.EXECUTION_STRATEGY, config.STRATEGY_DELEGATED)
		conn := chainAdapter.NewFakeConnection(builders.AddressForTests(0xde))
		approval := approvalAdapter.NewInMemoryApprovalService(nil).WithAutoApprove()

		logic := newLogic(t, cfg, &Adapters{
			Connection:  conn,
			Artifacts:   tokenArtifacts(),
			Store:       state.NewMemoryStore(nil),
			Persistence: memory.NewStepPersistence(),
			Approval:    approval,
		}, harness)

		result, err := logic.Orchestrator().Deploy(harness.Ctx)
		require.NoError(t, err)
		require.Equal(t, "delegated", result.Strategy)
		require.Empty(t, conn.Sent())
		require.Equal(t, 4, approval.ProposalCount())
	})
}

func TestDeployerLogic_DelegatedStrategyNeedsAnApprovalService(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		cfg := config.ForTests(diamondName)
		cfg.SetString(config.EXECUTION_STRATEGY, config.STRATEGY_DELEGATED)

		_, err := NewDeployerLogic(cfg, tokenConfiguration(), "hash", &Adapters{Store: state.NewMemoryStore(nil)},
			deployment.NewDiamondRegistry(), deployment.NewRunGuard(harness.Logger), harness.Logger, metric.NewRegistry())
		require.Error(t, err)
	})
}

func TestDeployerLogic_OneOrchestratorPerDeployment(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		diamonds := deployment.NewDiamondRegistry()
		guard := deployment.NewRunGuard(harness.Logger)
		adapters := &Adapters{
			Connection: chainAdapter.NewFakeConnection(builders.AddressForTests(0xde)),
			Artifacts:  tokenArtifacts(),
			Store:      state.NewMemoryStore(nil),
		}

		first, err := NewDeployerLogic(config.ForTests(diamondName), tokenConfiguration(), "hash", adapters, diamonds, guard, harness.Logger, metric.NewRegistry())
		require.NoError(t, err)
		second, err := NewDeployerLogic(config.ForTests(diamondName), tokenConfiguration(), "hash", adapters, diamonds, guard, harness.Logger, metric.NewRegistry())
		require.NoError(t, err)

		require.True(t, first.Orchestrator() == second.Orchestrator())
	})
}

type workspace struct {
	dir string
}

func newWorkspace(t *testing.T) *workspace {
	dir, err := ioutil.TempDir("", "diamond-deployer-bootstrap")
	require.NoError(t, err)
	w := &workspace{dir: dir}

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "artifacts", "ERC20Facet.sol"), 0755))
	w.write(t, filepath.Join("artifacts", "ERC20Facet.sol", "ERC20Facet.json"), map[string]interface{}{
		"contractName": "ERC20Facet",
		"abi":          json.RawMessage(builders.ABI("transfer(address,uint256)", "balanceOf(address)")),
		"bytecode":     "0x" + hex.EncodeToString(builders.Bytecode(0xe0)),
	})
	w.write(t, "diamond.json", tokenConfiguration())
	return w
}

func (w *workspace) write(t *testing.T, name string, v interface{}) {
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, ioutil.WriteFile(filepath.Join(w.dir, name), raw, 0644))
}

func (w *workspace) config(t *testing.T, values map[string]interface{}) config.DeployerConfig {
	w.write(t, "deployer.json", values)
	cfg, err := config.GetDeployerConfigFromFiles(config.FilesPaths{filepath.Join(w.dir, "deployer.json")}, w.dir)
	require.NoError(t, err)
	return cfg
}

func TestDeployer_PlansFromTheWorkspaceWithoutTouchingTheChain(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		w := newWorkspace(t)
		defer os.RemoveAll(w.dir)

		cfg := w.config(t, map[string]interface{}{
			"diamond-name":            diamondName,
			"ethereum-endpoint":       "http://127.0.0.1:1",
			"metrics-report-interval": "0s",
		})

		deployer, err := NewDeployer(cfg, nil, harness.Logger)
		require.NoError(t, err)
		defer deployer.Shutdown()

		report, err := deployer.Orchestrator().Plan(harness.Ctx)
		require.NoError(t, err)
		require.Len(t, report.Plan, 1)
		require.Equal(t, diamond.Add, report.Plan[0].Action)
		require.Equal(t, cutplanner.PendingAddress, report.Plan[0].Target)

		var out bytes.Buffer
		WritePlan(&out, report)
		require.Contains(t, out.String(), "<to be deployed>")

		status, err := deployer.Orchestrator().Status(harness.Ctx)
		require.NoError(t, err)
		require.Empty(t, status.DiamondAddress)
		require.Equal(t, filepath.Join(w.dir, "deployments", "tokendiamond-localhost-31337.json"), DeployedStatePath(cfg))
	})
}

func TestDeployer_RefusesAnInvalidConfiguration(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		w := newWorkspace(t)
		defer os.RemoveAll(w.dir)

		cfg := w.config(t, map[string]interface{}{
			"diamond-name":       diamondName,
			"execution-strategy": "delegated",
		})

		_, err := NewDeployer(cfg, nil, harness.Logger)
		require.True(t, diamond.IsKind(err, diamond.ConfigurationInvalid), "delegated without an approval endpoint")
	})
}

func TestDeployer_RefusesAMissingConfigurationDocument(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		w := newWorkspace(t)
		defer os.RemoveAll(w.dir)
		require.NoError(t, os.Remove(filepath.Join(w.dir, "diamond.json")))

		_, err := NewDeployer(w.config(t, map[string]interface{}{"diamond-name": diamondName}), nil, harness.Logger)
		require.True(t, diamond.IsKind(err, diamond.ConfigurationInvalid))
	})
}
