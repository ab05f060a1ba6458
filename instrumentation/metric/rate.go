// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package metric

import (
	"fmt"
	"github.com/VividCortex/ewma"
	"github.com/orbs-network/scribe/log"
	"sync"
	"time"
)

var tickInterval = 1 * time.Second

// Rate is an exponentially weighted moving average of events per tick
type Rate struct {
	namedMetric

	mu struct {
		sync.Mutex
		movingAverage ewma.MovingAverage
		runningSum    int64
		total         int64
		nextTick      time.Time
	}
}

type rateExport struct {
	Name     string
	Rate     float64
	Total    int64
	Interval time.Duration
}

func newRate(name string) *Rate {
	r := &Rate{namedMetric: namedMetric{name: name}}
	r.mu.movingAverage = ewma.NewMovingAverage()
	r.mu.nextTick = time.Now().Add(tickInterval)
	return r
}

func (r *Rate) Export() exportedMetric {
	r.mu.Lock()
	defer r.mu.Unlock()
	return rateExport{
		r.name,
		r.mu.movingAverage.Value(),
		r.mu.total,
		tickInterval,
	}
}

func (r *Rate) String() string {
	e := r.Export().(rateExport)
	return fmt.Sprintf("metric %s: %f per %s (total %d)\n", e.Name, e.Rate, e.Interval, e.Total)
}

func (r *Rate) Measure(eventCount int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for now := time.Now(); r.mu.nextTick.Before(now); r.mu.nextTick = r.mu.nextTick.Add(tickInterval) {
		r.mu.movingAverage.Add(float64(r.mu.runningSum))
		r.mu.runningSum = 0
	}

	r.mu.runningSum += eventCount
	r.mu.total += eventCount
}

func (r *Rate) Total() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mu.total
}

func (r rateExport) LogRow() []*log.Field {
	return []*log.Field{
		log.String("metric", r.Name),
		log.String("metric-type", "rate"),
		log.Float64("rate", r.Rate),
		log.Int64("total", r.Total),
	}
}
