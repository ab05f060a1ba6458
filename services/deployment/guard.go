// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package deployment

import (
	"context"
	"github.com/orbs-network/diamond-deployer/instrumentation/logfields"
	"github.com/orbs-network/govnr"
	"github.com/orbs-network/scribe/log"
	"github.com/pkg/errors"
	"sync"
)

type inFlightRun struct {
	done   chan struct{}
	result *Result
	err    error
}

// RunGuard admits one run per deployment key. Callers arriving while a run is in flight wait for it
// and receive its outcome.
type RunGuard struct {
	logger log.Logger

	mu struct {
		sync.Mutex
		runs map[string]*inFlightRun
	}
}

func NewRunGuard(parent log.Logger) *RunGuard {
	g := &RunGuard{logger: parent.WithTags(log.String("component", "run-guard"))}
	g.mu.runs = make(map[string]*inFlightRun)
	return g
}

// Do runs f unless a run for key is in flight, in which case it waits for that one; shared reports
// which of the two happened
func (g *RunGuard) Do(ctx context.Context, key string, f func() (*Result, error)) (result *Result, shared bool, err error) {
	g.mu.Lock()
	if existing, found := g.mu.runs[key]; found {
		g.mu.Unlock()
		g.logger.Info("run already in flight, waiting for it", logfields.DeploymentId(key))
		return wait(ctx, existing, true)
	}

	call := &inFlightRun{done: make(chan struct{}), err: errors.Errorf("run of %s aborted", key)}
	g.mu.runs[key] = call
	g.mu.Unlock()

	govnr.Once(logfields.GovnrErrorer(g.logger), func() {
		defer func() {
			g.mu.Lock()
			delete(g.mu.runs, key)
			g.mu.Unlock()
			close(call.done)
		}()
		call.result, call.err = f()
	})

	return wait(ctx, call, false)
}

func wait(ctx context.Context, call *inFlightRun, shared bool) (*Result, bool, error) {
	select {
	case <-call.done:
		return call.result, shared, call.err
	case <-ctx.Done():
		return nil, shared, ctx.Err()
	}
}

func (g *RunGuard) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, found := g.mu.runs[key]
	return found
}
