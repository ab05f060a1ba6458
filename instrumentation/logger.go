// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package instrumentation

import (
	"github.com/orbs-network/diamond-deployer/services/deployment"
	"github.com/orbs-network/scribe/log"
	"os"
	"time"
)

type loggerConfig interface {
	LoggerFullLog() bool
	LoggerFileTruncationInterval() time.Duration
}

func GetBootstrapCrashLogger() log.Logger {
	path := "./diamond-deployer-bootstrap.log"

	logFile, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		panic(err)
	}

	fileWriter := log.NewTruncatingFileWriter(logFile)
	outputs := []log.Output{
		log.NewFormattingOutput(fileWriter, log.NewHumanReadableFormatter()),
		log.NewFormattingOutput(os.Stderr, log.NewHumanReadableFormatter()),
	}

	return log.GetLogger().WithOutput(outputs...)
}

// GetLogger writes json rows to stdout (unless silent) and to path (when given). Without full logging
// only errors and the orchestrator's own progress rows are shown.
func GetLogger(path string, silent bool, cfg loggerConfig) log.Logger {
	outputs := make([]log.Output, 0, 2)

	if !silent {
		outputs = append(outputs, log.NewFormattingOutput(os.Stdout, log.NewJsonFormatter()))
	}

	if path != "" {
		logFile, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			panic(err)
		}

		fileWriter := log.NewTruncatingFileWriter(logFile, cfg.LoggerFileTruncationInterval())
		outputs = append(outputs, log.NewFormattingOutput(fileWriter, log.NewJsonFormatter()))
	}

	logger := log.GetLogger().WithOutput(outputs...)

	conditionalFilter := log.NewConditionalFilter(false, nil)

	if !cfg.LoggerFullLog() {
		conditionalFilter = log.NewConditionalFilter(true, log.Or(log.OnlyErrors(), log.MatchField(deployment.LogTag)))
	}

	return logger.WithFilters(conditionalFilter)
}
