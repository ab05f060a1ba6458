// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package config

import (
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_FillEmptyConfig(t *testing.T) {
	// setup
	cfg := emptyConfig()
	// execute
	mergeTest(t, cfg)
	// assert
	checkMerged(t, cfg)
}

func TestConfig_OverrideConfig(t *testing.T) {
	// setup
	cfg := emptyConfig()
	require.NoError(t, modifyFromJson(cfg, `
{
	"diamond-name": "Other",
	"chain-id": 5,
	"execution-strategy": "direct",
	"approval-poll-jitter": false,
	"approval-poll-max-attempts": 4,
	"approval-poll-max-delay": "10s",
	"ethereum-endpoint":"http://0.0.0.100:8545"
}`))
	// execute
	mergeTest(t, cfg)
	// assert
	checkMerged(t, cfg)
}

func TestConfig_OverrideProductionConfig(t *testing.T) {
	// setup
	cfg := ForProduction("/")
	// execute
	mergeTest(t, cfg)
	// assert
	checkMerged(t, cfg)
}

func TestConfig_ParsesZeroValues(t *testing.T) {
	// setup
	cfg := emptyConfig()
	mergeTest(t, cfg)
	// execute
	require.NoError(t, modifyFromJson(cfg, `
{
	"approval-poll-max-attempts": 0,
	"approval-poll-jitter": false,
	"approval-poll-max-delay": "0s",
	"ethereum-endpoint":""
}`))
	// assert
	require.EqualValues(t, 0, cfg.ApprovalPollMaxAttempts())
	require.EqualValues(t, false, cfg.ApprovalPollJitter())
	require.EqualValues(t, 0, cfg.ApprovalPollMaxDelay())
	require.EqualValues(t, "", cfg.EthereumEndpoint())
}

func TestConfig_ChainIdAcceptsNumbersAndHex(t *testing.T) {
	cfg := emptyConfig()

	require.NoError(t, modifyFromJson(cfg, `{"chain-id": 11155111}`))
	require.EqualValues(t, 11155111, cfg.ChainId())

	require.NoError(t, modifyFromJson(cfg, `{"chain-id": "0xa4b1"}`))
	require.EqualValues(t, 42161, cfg.ChainId())

	require.NoError(t, modifyFromJson(cfg, `{"chain-id": "5000000000"}`))
	require.EqualValues(t, 5000000000, cfg.ChainId())

	require.Error(t, modifyFromJson(cfg, `{"chain-id": -1}`))
	require.Error(t, modifyFromJson(cfg, `{"chain-id": "mainnet"}`))
}

func TestConfig_RejectsMalformedJson(t *testing.T) {
	require.Error(t, modifyFromJson(emptyConfig(), `{"diamond-name": `))
	require.Error(t, modifyFromJson(emptyConfig(), `{"diamond-name": ["a", "b"]}`))
	require.Error(t, modifyFromJson(emptyConfig(), `{"deployer-private-key": 12}`))
}

func TestConfig_CloneIsIndependent(t *testing.T) {
	cfg := ForTests("Token")
	cloned := cfg.Clone()
	cloned.SetString(DIAMOND_NAME, "Other")

	require.Equal(t, "Token", cfg.DiamondName())
	require.Equal(t, "Other", cloned.DiamondName())
}

func TestConfig_FilesAreAppliedInOrder(t *testing.T) {
	dir, err := ioutil.TempDir("", "diamond-deployer-config")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")
	require.NoError(t, ioutil.WriteFile(first, []byte(`{"diamond-name": "First", "network-name": "sepolia"}`), 0644))
	require.NoError(t, ioutil.WriteFile(second, []byte(`{"diamond-name": "Second"}`), 0644))

	var paths FilesPaths
	require.NoError(t, paths.Set(first))
	require.NoError(t, paths.Set(second))

	cfg, err := GetDeployerConfigFromFiles(paths, dir)
	require.NoError(t, err)
	require.Equal(t, "Second", cfg.DiamondName())
	require.Equal(t, "sepolia", cfg.NetworkName())
	require.Equal(t, filepath.Join(dir, "artifacts"), cfg.ArtifactsPath(), "production defaults are kept")
	require.Equal(t, filepath.Join(dir, "deployments", "steps"), cfg.StepRegistryDir())
}

func TestConfig_MissingFileIsAnError(t *testing.T) {
	_, err := GetDeployerConfigFromFiles(FilesPaths{"/does/not/exist.json"}, "/")
	require.Error(t, err)
}

func mergeTest(t *testing.T, cfg mutableDeployerConfig) {
	require.NoError(t, modifyFromJson(cfg, `
{
	"diamond-name": "TokenDiamond",
	"diamond-owner-address": "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	"deployer-private-key": "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291",
	"chain-id": 11155111,
	"network-name": "sepolia",
	"execution-strategy": "delegated",
	"approval-service-endpoint": "http://approvals.local",
	"approval-poll-jitter": true,
	"approval-poll-max-attempts": 12,
	"approval-poll-initial-delay": "2s",
	"approval-poll-max-delay": "30s",
	"ethereum-endpoint":"http://172.31.1.100:8545"
}`))
}

func checkMerged(t *testing.T, cfg mutableDeployerConfig) {
	require.EqualValues(t, "TokenDiamond", cfg.DiamondName())
	require.EqualValues(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", cfg.DiamondOwnerAddress())
	require.EqualValues(t, "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291", cfg.DeployerPrivateKey())
	require.EqualValues(t, 11155111, cfg.ChainId())
	require.EqualValues(t, "sepolia", cfg.NetworkName())
	require.EqualValues(t, STRATEGY_DELEGATED, cfg.ExecutionStrategy())
	require.EqualValues(t, "http://approvals.local", cfg.ApprovalServiceEndpoint())
	require.EqualValues(t, true, cfg.ApprovalPollJitter())
	require.EqualValues(t, 12, cfg.ApprovalPollMaxAttempts())
	require.EqualValues(t, 2*time.Second, cfg.ApprovalPollInitialDelay())
	require.EqualValues(t, 30*time.Second, cfg.ApprovalPollMaxDelay())
	require.EqualValues(t, "http://172.31.1.100:8545", cfg.EthereumEndpoint())
}
