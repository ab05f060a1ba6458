// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package config

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/orbs-network/diamond-deployer/diamond"
	"reflect"
	"runtime"
	"strings"
	"time"
)

// Validate reports every problem at once as a single ConfigurationInvalid error
func Validate(cfg DeployerConfig) error {
	var problems diamond.Problems

	requireNotEmpty(&problems, cfg.DiamondName)
	requireNotEmpty(&problems, cfg.DiamondCutFacetName)
	requireNotEmpty(&problems, cfg.ConfigDocumentPath)
	requireNotEmpty(&problems, cfg.ArtifactsPath)
	requireNotEmpty(&problems, cfg.DeploymentsPath)
	requireNotEmpty(&problems, cfg.NetworkName)

	if cfg.ChainId() == 0 {
		problems.Addf("ChainId must be set")
	}

	if owner := cfg.DiamondOwnerAddress(); owner != "" && !common.IsHexAddress(owner) {
		problems.Addf("DiamondOwnerAddress %q is not an address", owner)
	}

	switch cfg.ExecutionStrategy() {
	case STRATEGY_DIRECT:
		requireNotEmpty(&problems, cfg.EthereumEndpoint)
	case STRATEGY_DELEGATED:
		requireNotEmpty(&problems, cfg.ApprovalServiceEndpoint)
		requireNotEmpty(&problems, cfg.StepRegistryDir)
		// proposals are signed elsewhere, there is no local account to own the diamond
		requireNotEmpty(&problems, cfg.DiamondOwnerAddress)
	default:
		problems.Addf("ExecutionStrategy must be %s or %s, got %q", STRATEGY_DIRECT, STRATEGY_DELEGATED, cfg.ExecutionStrategy())
	}

	if cfg.ApprovalPollMaxAttempts() == 0 {
		problems.Addf("ApprovalPollMaxAttempts must be greater than zero")
	}
	requireGTE(&problems, cfg.ApprovalPollMaxDelay, cfg.ApprovalPollInitialDelay)

	return problems.Err("tool configuration")
}

func requireNotEmpty(problems *diamond.Problems, value func() string) {
	if value() == "" {
		problems.Addf("%s must be set", funcName(value))
	}
}

func requireGTE(problems *diamond.Problems, d1 func() time.Duration, d2 func() time.Duration) {
	if d1() < d2() {
		problems.Addf("%s (%s) must not be less than %s (%s)", funcName(d1), d1(), funcName(d2), d2())
	}
}

func funcName(i interface{}) string {
	fullName := runtime.FuncForPC(reflect.ValueOf(i).Pointer()).Name()
	lastDot := strings.LastIndex(fullName, ".")
	return strings.TrimSuffix(fullName[lastDot+1:], "-fm")
}
