// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package config

import (
	"encoding/json"
	"github.com/pkg/errors"
	"io/ioutil"
	"os"
	"strconv"
	"strings"
	"time"
)

// Mutate
func (c *config) Modify(newValues ...DeployerConfigKeyValue) {
	for _, kv := range newValues {
		c.kv[kv.Key] = kv.Value
	}
}

func modifyFromJson(cfg mutableDeployerConfig, source string) error {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(source), &data); err != nil {
		return errors.Wrap(err, "config is not a json object")
	}

	if err := populateConfig(cfg, data); err != nil {
		return err
	}

	return nil
}

func convertKeyName(key string) string {
	return strings.ToUpper(strings.Replace(key, "-", "_", -1))
}

func populateConfig(cfg mutableDeployerConfig, data map[string]interface{}) error {
	for key, value := range data {

		if key == "chain-id" {
			chainId, err := parseChainId(value)
			if err != nil {
				return errors.Wrapf(err, "could not decode value for config key %s", key)
			}
			cfg.SetUint64(CHAIN_ID, chainId)
			continue
		} else if key == "deployer-private-key" || key == "diamond-owner-address" {
			// hex values never go through duration parsing
			if s, ok := value.(string); ok {
				cfg.SetString(convertKeyName(key), s)
				continue
			}
			return errors.Errorf("could not decode value for config key %s: expected a hex string", key)
		}

		switch value.(type) {
		case bool:
			cfg.SetBool(convertKeyName(key), value.(bool))
		case float64:
			cfg.SetUint32(convertKeyName(key), uint32(value.(float64)))
		case string:
			if duration, decodeError := time.ParseDuration(value.(string)); decodeError != nil {
				cfg.SetString(convertKeyName(key), value.(string))
			} else {
				cfg.SetDuration(convertKeyName(key), duration)
			}
		default:
			return errors.Errorf("unsupported value for config key %s: %v", key, value)
		}
	}

	return nil
}

// chain ids above 2^32 exist, and some tools write them as "0x" strings
func parseChainId(value interface{}) (uint64, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 || v != float64(uint64(v)) {
			return 0, errors.Errorf("%v is not a chain id", v)
		}
		return uint64(v), nil
	case string:
		if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
			return strconv.ParseUint(v[2:], 16, 64)
		}
		return strconv.ParseUint(v, 10, 64)
	default:
		return 0, errors.Errorf("%v is not a chain id", v)
	}
}

// For main reading several files into one config

type FilesPaths []string

func (i *FilesPaths) String() string {
	return strings.Join(*i, ",")
}

func (i *FilesPaths) Set(value string) error {
	*i = append(*i, value)
	return nil
}

func (i *FilesPaths) Type() string {
	return "paths"
}

// GetDeployerConfigFromFiles starts from the production preset rooted at workDir and applies every file in order
func GetDeployerConfigFromFiles(configFiles FilesPaths, workDir string) (DeployerConfig, error) {
	cfg := ForProduction(workDir)

	if len(configFiles) != 0 {
		for _, configFile := range configFiles {
			if _, err := os.Stat(configFile); os.IsNotExist(err) {
				return nil, errors.Errorf("could not open config file: %s", err)
			}

			contents, err := ioutil.ReadFile(configFile)
			if err != nil {
				return nil, err
			}

			err = modifyFromJson(cfg, string(contents))

			if err != nil {
				return nil, errors.Wrapf(err, "failed reading config file %s", configFile)
			}
		}
	}

	return cfg, nil
}
