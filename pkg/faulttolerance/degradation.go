/*
Copyright 2025 ForgeCI Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package faulttolerance

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/org/forgeci/pkg/config"
	"github.com/org/forgeci/pkg/pipeline"
)

// Priority ranks a call's importance for GracefulDegradation's rejection
// policy. Critical always passes regardless of load or error rate.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// GracefulDegradation tracks active-execution count and a rolling
// recent-outcome window, rejecting Low/Normal-priority calls once load
// or error rate crosses the configured thresholds (spec.md §4.10).
// Counters are sync/atomic, matching §5's "shared-resource policy"
// (coarse lock or atomics, no library) the cache manager (C11) also
// follows.
type GracefulDegradation struct {
	cfg config.DegradationConfig

	active    int64
	windowLen int

	windowMu sync.Mutex
	window   []bool // true = success
	pos      int
}

// NewGracefulDegradation builds a monitor from cfg. windowSize bounds how
// many recent outcomes factor into the error-rate calculation.
func NewGracefulDegradation(cfg config.DegradationConfig, windowSize int) *GracefulDegradation {
	if windowSize <= 0 {
		windowSize = 50
	}
	return &GracefulDegradation{cfg: cfg, windowLen: windowSize, window: make([]bool, windowSize)}
}

func (d *GracefulDegradation) errorRate() float64 {
	d.windowMu.Lock()
	defer d.windowMu.Unlock()
	var failures int
	for _, success := range d.window {
		if !success {
			failures++
		}
	}
	return float64(failures) / float64(d.windowLen)
}

func (d *GracefulDegradation) currentLoad(capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&d.active)) / float64(capacity)
}

// Allow reports whether a call at the given priority may proceed right
// now, relative to capacity active slots.
func (d *GracefulDegradation) Allow(priority Priority, capacity int) bool {
	if priority == PriorityCritical {
		return true
	}
	overloaded := d.currentLoad(capacity) > d.cfg.MaxLoadThreshold || d.errorRate() > d.cfg.MaxErrorRateThreshold
	if !overloaded {
		return true
	}
	return priority == PriorityHigh
}

// Run admits fn if priority clears Allow, tracking it as an active
// execution and recording its outcome into the rolling window. Rejected
// calls return StageResult{Status: Failure, Err: ErrSystemOverload}.
func (d *GracefulDegradation) Run(priority Priority, capacity int, fn func() pipeline.StageResult) pipeline.StageResult {
	if !d.Allow(priority, capacity) {
		return pipeline.StageResult{
			Status:    pipeline.StageFailure,
			StartedAt: time.Now(),
			EndedAt:   time.Now(),
			Err:       pipeline.ErrSystemOverload,
			Metadata:  map[string]any{"systemOverload": true},
		}
	}

	atomic.AddInt64(&d.active, 1)
	defer atomic.AddInt64(&d.active, -1)

	result := fn()
	d.record(result.Status == pipeline.StageSuccess || result.Status == pipeline.StagePartialSuccess)
	return result
}

func (d *GracefulDegradation) record(success bool) {
	d.windowMu.Lock()
	defer d.windowMu.Unlock()
	d.window[d.pos] = success
	d.pos = (d.pos + 1) % d.windowLen
}
