// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package config

import (
	"path/filepath"
	"time"
)

// all other configs are variations from the production one
func defaultProductionConfig() mutableDeployerConfig {
	cfg := emptyConfig()

	cfg.SetString(DIAMOND_CUT_FACET_NAME, "DiamondCutFacet")
	cfg.SetString(NETWORK_NAME, "localhost")
	cfg.SetUint64(CHAIN_ID, 31337)
	cfg.SetString(ETHEREUM_ENDPOINT, "http://localhost:8545")

	// a block on a busy mainnet can take a few minutes to include a deployment
	cfg.SetDuration(TRANSACTION_CONFIRMATION_TIMEOUT, 5*time.Minute)

	cfg.SetString(EXECUTION_STRATEGY, STRATEGY_DIRECT)

	// 1s, 2s, 4s ... capped at 1m, roughly an hour of waiting for owners to sign
	cfg.SetUint32(APPROVAL_POLL_MAX_ATTEMPTS, 70)
	cfg.SetDuration(APPROVAL_POLL_INITIAL_DELAY, 1*time.Second)
	cfg.SetDuration(APPROVAL_POLL_MAX_DELAY, 1*time.Minute)
	cfg.SetBool(APPROVAL_POLL_JITTER, true)
	cfg.SetUint32(APPROVAL_REQUESTS_PER_SECOND, 5)

	cfg.SetBool(LOGGER_FULL_LOG, false)
	cfg.SetDuration(LOGGER_FILE_TRUNCATION_INTERVAL, 24*time.Hour)
	cfg.SetDuration(METRICS_REPORT_INTERVAL, 30*time.Second)

	return cfg
}

// ForProduction lays out the working files of a deployment under workDir
func ForProduction(workDir string) mutableDeployerConfig {
	cfg := defaultProductionConfig()

	cfg.SetString(CONFIG_DOCUMENT_PATH, filepath.Join(workDir, "diamond.json"))
	cfg.SetString(ARTIFACTS_PATH, filepath.Join(workDir, "artifacts"))
	cfg.SetString(DEPLOYMENTS_PATH, filepath.Join(workDir, "deployments"))
	cfg.SetString(STEP_REGISTRY_DIR, filepath.Join(workDir, "deployments", "steps"))

	return cfg
}

func ForTests(diamondName string) mutableDeployerConfig {
	cfg := defaultProductionConfig()

	cfg.SetString(DIAMOND_NAME, diamondName)
	cfg.SetString(NETWORK_NAME, "local")

	cfg.SetDuration(TRANSACTION_CONFIRMATION_TIMEOUT, 5*time.Second)

	cfg.SetUint32(APPROVAL_POLL_MAX_ATTEMPTS, 5)
	cfg.SetDuration(APPROVAL_POLL_INITIAL_DELAY, 1*time.Millisecond)
	cfg.SetDuration(APPROVAL_POLL_MAX_DELAY, 10*time.Millisecond)
	cfg.SetBool(APPROVAL_POLL_JITTER, false)
	cfg.SetUint32(APPROVAL_REQUESTS_PER_SECOND, 0)

	cfg.SetBool(LOGGER_FULL_LOG, true)
	cfg.SetDuration(METRICS_REPORT_INTERVAL, 100*time.Millisecond)

	return cfg
}

func EmptyConfig() mutableDeployerConfig {
	return emptyConfig()
}
