// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package metric

import (
	"fmt"
	"github.com/codahale/hdrhistogram"
	"github.com/orbs-network/scribe/log"
	"sync"
	"time"
)

type Histogram struct {
	namedMetric
	max int64

	mu struct {
		sync.Mutex
		histo         *hdrhistogram.WindowedHistogram
		overflowCount int64
	}
}

type histogramExport struct {
	Name     string
	Min      int64
	P50      int64
	P95      int64
	Max      int64
	Avg      float64
	Samples  int64
	Overflow int64
}

func newHistogram(name string, max int64) *Histogram {
	h := &Histogram{
		namedMetric: namedMetric{name: name},
		max:         max,
	}
	h.mu.histo = hdrhistogram.NewWindowed(5, 1, max, 2)
	return h
}

func (h *Histogram) RecordSince(t time.Time) {
	h.Record(time.Since(t))
}

func (h *Histogram) Record(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.mu.histo.Current.RecordValue(int64(d)); err != nil {
		h.mu.overflowCount++
	}
}

func (h *Histogram) Rotate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mu.histo.Rotate()
}

func (h *Histogram) Samples() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mu.histo.Merge().TotalCount()
}

func (h *Histogram) String() string {
	e := h.Export().(histogramExport)
	return fmt.Sprintf(
		"metric %s: [min=%s, p50=%s, p95=%s, max=%s, avg=%s, samples=%d, overflow=%d]\n",
		e.Name,
		time.Duration(e.Min),
		time.Duration(e.P50),
		time.Duration(e.P95),
		time.Duration(e.Max),
		time.Duration(e.Avg),
		e.Samples,
		e.Overflow)
}

func (h *Histogram) Export() exportedMetric {
	h.mu.Lock()
	defer h.mu.Unlock()
	histo := h.mu.histo.Merge()

	return histogramExport{
		h.name,
		histo.Min(),
		histo.ValueAtQuantile(50),
		histo.ValueAtQuantile(95),
		histo.Max(),
		histo.Mean(),
		histo.TotalCount(),
		h.mu.overflowCount,
	}
}

func (h histogramExport) LogRow() []*log.Field {
	return []*log.Field{
		log.String("metric", h.Name),
		log.String("metric-type", "histogram"),
		log.Int64("min", h.Min),
		log.Int64("p50", h.P50),
		log.Int64("p95", h.P95),
		log.Int64("max", h.Max),
		log.Float64("avg", h.Avg),
		log.Int64("samples", h.Samples),
		log.Int64("overflow", h.Overflow),
	}
}
