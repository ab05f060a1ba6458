// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package config

import (
	"time"
)

type DeployerConfig interface {
	// diamond
	DiamondName() string
	DiamondCutFacetName() string
	DiamondOwnerAddress() string
	ConfigDocumentPath() string
	ArtifactsPath() string
	DeploymentsPath() string
	StepRegistryDir() string

	// chain
	NetworkName() string
	ChainId() uint64
	EthereumEndpoint() string
	DeployerPrivateKey() string
	TransactionConfirmationTimeout() time.Duration

	// execution
	ExecutionStrategy() string
	ApprovalServiceEndpoint() string
	ApprovalPollMaxAttempts() uint32
	ApprovalPollInitialDelay() time.Duration
	ApprovalPollMaxDelay() time.Duration
	ApprovalPollJitter() bool
	ApprovalRequestsPerSecond() uint32

	// instrumentation
	LoggerFullLog() bool
	LoggerFileTruncationInterval() time.Duration
	MetricsReportInterval() time.Duration
}

type mutableDeployerConfig interface {
	DeployerConfig
	Set(key string, value DeployerConfigValue) mutableDeployerConfig
	SetDuration(key string, value time.Duration) mutableDeployerConfig
	SetUint32(key string, value uint32) mutableDeployerConfig
	SetUint64(key string, value uint64) mutableDeployerConfig
	SetString(key string, value string) mutableDeployerConfig
	SetBool(key string, value bool) mutableDeployerConfig
	Clone() mutableDeployerConfig
}

type DeployerConfigKeyValue struct {
	Key   string
	Value DeployerConfigValue
}

type DeployerConfigValue struct {
	Uint32Value   uint32
	Uint64Value   uint64
	DurationValue time.Duration
	StringValue   string
	BoolValue     bool
}

type config struct {
	kv map[string]DeployerConfigValue
}

const (
	DIAMOND_NAME                     = "DIAMOND_NAME"
	DIAMOND_CUT_FACET_NAME           = "DIAMOND_CUT_FACET_NAME"
	DIAMOND_OWNER_ADDRESS            = "DIAMOND_OWNER_ADDRESS"
	CONFIG_DOCUMENT_PATH             = "CONFIG_DOCUMENT_PATH"
	ARTIFACTS_PATH                   = "ARTIFACTS_PATH"
	DEPLOYMENTS_PATH                 = "DEPLOYMENTS_PATH"
	STEP_REGISTRY_DIR                = "STEP_REGISTRY_DIR"
	NETWORK_NAME                     = "NETWORK_NAME"
	CHAIN_ID                         = "CHAIN_ID"
	ETHEREUM_ENDPOINT                = "ETHEREUM_ENDPOINT"
	DEPLOYER_PRIVATE_KEY             = "DEPLOYER_PRIVATE_KEY"
	TRANSACTION_CONFIRMATION_TIMEOUT = "TRANSACTION_CONFIRMATION_TIMEOUT"

	EXECUTION_STRATEGY           = "EXECUTION_STRATEGY"
	APPROVAL_SERVICE_ENDPOINT    = "APPROVAL_SERVICE_ENDPOINT"
	APPROVAL_POLL_MAX_ATTEMPTS   = "APPROVAL_POLL_MAX_ATTEMPTS"
	APPROVAL_POLL_INITIAL_DELAY  = "APPROVAL_POLL_INITIAL_DELAY"
	APPROVAL_POLL_MAX_DELAY      = "APPROVAL_POLL_MAX_DELAY"
	APPROVAL_POLL_JITTER         = "APPROVAL_POLL_JITTER"
	APPROVAL_REQUESTS_PER_SECOND = "APPROVAL_REQUESTS_PER_SECOND"

	LOGGER_FULL_LOG                 = "LOGGER_FULL_LOG"
	LOGGER_FILE_TRUNCATION_INTERVAL = "LOGGER_FILE_TRUNCATION_INTERVAL"
	METRICS_REPORT_INTERVAL         = "METRICS_REPORT_INTERVAL"
)

const (
	STRATEGY_DIRECT    = "direct"
	STRATEGY_DELEGATED = "delegated"
)

func emptyConfig() mutableDeployerConfig {
	return &config{
		kv: make(map[string]DeployerConfigValue),
	}
}

func (c *config) Set(key string, value DeployerConfigValue) mutableDeployerConfig {
	c.kv[key] = value
	return c
}

func (c *config) SetDuration(key string, value time.Duration) mutableDeployerConfig {
	c.kv[key] = DeployerConfigValue{DurationValue: value}
	return c
}

func (c *config) SetUint32(key string, value uint32) mutableDeployerConfig {
	c.kv[key] = DeployerConfigValue{Uint32Value: value}
	return c
}

func (c *config) SetUint64(key string, value uint64) mutableDeployerConfig {
	c.kv[key] = DeployerConfigValue{Uint64Value: value}
	return c
}

func (c *config) SetString(key string, value string) mutableDeployerConfig {
	c.kv[key] = DeployerConfigValue{StringValue: value}
	return c
}

func (c *config) SetBool(key string, value bool) mutableDeployerConfig {
	c.kv[key] = DeployerConfigValue{BoolValue: value}
	return c
}

func (c *config) Clone() mutableDeployerConfig {
	cloned := emptyConfig()
	for key, value := range c.kv {
		cloned.Set(key, value)
	}
	return cloned
}

func (c *config) DiamondName() string {
	return c.kv[DIAMOND_NAME].StringValue
}

func (c *config) DiamondCutFacetName() string {
	return c.kv[DIAMOND_CUT_FACET_NAME].StringValue
}

func (c *config) DiamondOwnerAddress() string {
	return c.kv[DIAMOND_OWNER_ADDRESS].StringValue
}

func (c *config) ConfigDocumentPath() string {
	return c.kv[CONFIG_DOCUMENT_PATH].StringValue
}

func (c *config) ArtifactsPath() string {
	return c.kv[ARTIFACTS_PATH].StringValue
}

func (c *config) DeploymentsPath() string {
	return c.kv[DEPLOYMENTS_PATH].StringValue
}

func (c *config) StepRegistryDir() string {
	return c.kv[STEP_REGISTRY_DIR].StringValue
}

func (c *config) NetworkName() string {
	return c.kv[NETWORK_NAME].StringValue
}

func (c *config) ChainId() uint64 {
	return c.kv[CHAIN_ID].Uint64Value
}

func (c *config) EthereumEndpoint() string {
	return c.kv[ETHEREUM_ENDPOINT].StringValue
}

func (c *config) DeployerPrivateKey() string {
	return c.kv[DEPLOYER_PRIVATE_KEY].StringValue
}

func (c *config) TransactionConfirmationTimeout() time.Duration {
	return c.kv[TRANSACTION_CONFIRMATION_TIMEOUT].DurationValue
}

func (c *config) ExecutionStrategy() string {
	return c.kv[EXECUTION_STRATEGY].StringValue
}

func (c *config) ApprovalServiceEndpoint() string {
	return c.kv[APPROVAL_SERVICE_ENDPOINT].StringValue
}

func (c *config) ApprovalPollMaxAttempts() uint32 {
	return c.kv[APPROVAL_POLL_MAX_ATTEMPTS].Uint32Value
}

func (c *config) ApprovalPollInitialDelay() time.Duration {
	return c.kv[APPROVAL_POLL_INITIAL_DELAY].DurationValue
}

func (c *config) ApprovalPollMaxDelay() time.Duration {
	return c.kv[APPROVAL_POLL_MAX_DELAY].DurationValue
}

func (c *config) ApprovalPollJitter() bool {
	return c.kv[APPROVAL_POLL_JITTER].BoolValue
}

func (c *config) ApprovalRequestsPerSecond() uint32 {
	return c.kv[APPROVAL_REQUESTS_PER_SECOND].Uint32Value
}

func (c *config) LoggerFullLog() bool {
	return c.kv[LOGGER_FULL_LOG].BoolValue
}

func (c *config) LoggerFileTruncationInterval() time.Duration {
	return c.kv[LOGGER_FILE_TRUNCATION_INTERVAL].DurationValue
}

func (c *config) MetricsReportInterval() time.Duration {
	return c.kv[METRICS_REPORT_INTERVAL].DurationValue
}
