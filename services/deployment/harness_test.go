// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package deployment

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/orbs-network/diamond-deployer/instrumentation/metric"
	approvaladapter "github.com/orbs-network/diamond-deployer/services/approval/adapter"
	artifactsadapter "github.com/orbs-network/diamond-deployer/services/artifacts/adapter"
	"github.com/orbs-network/diamond-deployer/services/callbacks"
	chainadapter "github.com/orbs-network/diamond-deployer/services/chain/adapter"
	"github.com/orbs-network/diamond-deployer/services/steps/adapter/memory"
	"github.com/orbs-network/diamond-deployer/state"
	"github.com/orbs-network/diamond-deployer/test/builders"
	"github.com/orbs-network/diamond-deployer/test/with"
	"github.com/stretchr/testify/require"
	"time"
)

const (
	diamondName = "TestDiamond"
	cutFacet    = "DiamondCutFacet"
	erc20Facet  = "ERC20Facet"
	ownerFacet  = "OwnershipFacet"
)

var deployer = builders.AddressForTests(0xde)

type testConfig struct {
	ownerAddress string
	maxAttempts  uint32
}

func (c *testConfig) DiamondName() string { return diamondName }
func (c *testConfig) NetworkName() string { return "local" }
func (c *testConfig) ChainId() uint64 { return 31337 }
func (c *testConfig) DiamondCutFacetName() string { return cutFacet }
func (c *testConfig) DiamondOwnerAddress() string { return c.ownerAddress }
func (c *testConfig) ApprovalPollMaxAttempts() uint32 { return c.maxAttempts }
func (c *testConfig) ApprovalPollInitialDelay() time.Duration { return time.Millisecond }
func (c *testConfig) ApprovalPollMaxDelay() time.Duration { return 5 * time.Millisecond }
func (c *testConfig) ApprovalPollJitter() bool { return false }
func (c *testConfig) ApprovalRequestsPerSecond() uint32 { return 0 }

type harness struct {
	*with.LoggingHarness
	config      *testConfig
	conn        *chainadapter.FakeConnection
	artifacts   *artifactsadapter.InMemoryArtifactStore
	store       *state.MemoryStore
	callbacks   *callbacks.Registry
	persistence *memory.InMemoryStepPersistence
	guard       *RunGuard
	metrics     metric.Registry
}

func newHarness(logging *with.LoggingHarness) *harness {
	artifacts := artifactsadapter.NewInMemoryArtifactStore().
		AddContract(cutFacet, chainadapter.DiamondCutABIJSON, builders.Bytecode(0xc0)).
		AddContract(diamondName, builders.ConstructorABI([]string{"address", "address"}), builders.Bytecode(0xd0)).
		AddContract(erc20Facet, builders.ABI("transfer(address,uint256)", "balanceOf(address)", "mint(address,uint256)"), builders.Bytecode(0xe0)).
		AddContract(ownerFacet, builders.ABI("owner()", "transferOwnership(address)"), builders.Bytecode(0xf0))

	return &harness{
		LoggingHarness: logging,
		config:         &testConfig{maxAttempts: 3},
		conn:           chainadapter.NewFakeConnection(deployer),
		artifacts:      artifacts,
		store:          state.NewMemoryStore(nil),
		callbacks:      callbacks.NewRegistry(),
		persistence:    memory.NewStepPersistence(),
		guard:          NewRunGuard(logging.Logger),
		metrics:        metric.NewRegistry(),
	}
}

func (h *harness) direct() Strategy {
	return NewDirectStrategy(h.conn, h.Logger)
}

func (h *harness) delegated(approval approvaladapter.Service) Strategy {
	return NewDelegatedStrategy(h.config, approval, h.persistence, h.Logger, h.metrics)
}

func (h *harness) orchestrator(desired *state.DesiredConfiguration, strategy Strategy) *Orchestrator {
	return NewOrchestrator(h.config, desired, "config-hash", h.store, h.conn, h.artifacts, h.callbacks, strategy, h.guard, h.Logger, h.metrics)
}

func (h *harness) deployed() *state.DeployedState {
	s, err := h.store.Load()
	require.NoError(h.T, err)
	return s
}

// contractAt is the address the fake chain gives the nth deployment from the deployer
func contractAt(nonce uint64) common.Address {
	return crypto.CreateAddress(deployer, nonce)
}

// tokenConfiguration declares ERC20Facet at version 0 without mint, and OwnershipFacet at version 0
func tokenConfiguration() *builders.DesiredConfigurationBuilder {
	return builders.DesiredConfiguration().
		WithFacet(erc20Facet, builders.Facet().WithVersion("0", builders.Version().Exclude("mint"))).
		WithFacet(ownerFacet, builders.Facet().WithVersion("0", builders.Version()))
}
