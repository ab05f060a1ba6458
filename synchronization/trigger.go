// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package synchronization

import (
	"context"
	"github.com/orbs-network/diamond-deployer/instrumentation/logfields"
	"github.com/orbs-network/govnr"
	"sync/atomic"
	"time"
)

// PeriodicalTrigger calls its handler every interval on a supervised goroutine until stopped
type PeriodicalTrigger struct {
	govnr.TreeSupervisor
	interval  time.Duration
	handler   func()
	onStop    func()
	logger    logfields.Errorer
	cancel    context.CancelFunc
	Closed    govnr.ContextEndedChan
	name      string
	triggered uint64
}

func NewPeriodicalTrigger(ctx context.Context, name string, interval time.Duration, logger logfields.Errorer, trigger func(), onStop func()) *PeriodicalTrigger {
	subCtx, cancel := context.WithCancel(ctx)
	t := &PeriodicalTrigger{
		interval: interval,
		handler:  trigger,
		onStop:   onStop,
		cancel:   cancel,
		logger:   logger,
		name:     name,
	}

	t.run(subCtx)
	return t
}

func (t *PeriodicalTrigger) run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	h := govnr.Forever(ctx, t.name, logfields.GovnrErrorer(t.logger), func() {
		for {
			select {
			case <-ticker.C:
				atomic.AddUint64(&t.triggered, 1)
				t.handler()
			case <-ctx.Done():
				ticker.Stop()
				if t.onStop != nil {
					t.onStop()
				}
				return
			}
		}
	})
	t.Closed = h.Done()
	t.Supervise(h)
}

func (t *PeriodicalTrigger) TimesTriggered() uint64 {
	return atomic.LoadUint64(&t.triggered)
}

func (t *PeriodicalTrigger) Stop() {
	t.cancel()
	<-t.Closed
}
