// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package with

import (
	"context"
	"github.com/orbs-network/scribe/log"
	"testing"
	"time"
)

const runTimeout = 10 * time.Second

// LoggingHarness gives a test a logger writing to the test output and a context bounding the run.
// Error logs fail the test unless allowed.
type LoggingHarness struct {
	Logger     log.Logger
	Ctx        context.Context
	T          testing.TB
	testOutput *log.TestOutput
}

func (h *LoggingHarness) AllowErrorsMatching(pattern string) {
	h.testOutput.AllowErrorsMatching(pattern)
}

// Logging runs f with a fresh harness; the context is cancelled when f returns
func Logging(tb testing.TB, f func(harness *LoggingHarness)) {
	testOutput := log.NewTestOutput(tb, log.NewHumanReadableFormatter())
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	h := &LoggingHarness{
		Logger:     log.GetLogger().WithOutput(testOutput),
		Ctx:        ctx,
		T:          tb,
		testOutput: testOutput,
	}
	defer testOutput.TestTerminated()
	f(h)
	if testOutput.HasErrors() {
		tb.Fatal("test logged unexpected errors")
	}
}
