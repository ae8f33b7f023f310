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
	"time"

	"github.com/org/forgeci/pkg/config"
	"github.com/org/forgeci/pkg/pipeline"
)

// Bulkhead bounds concurrent stage executions with a counting semaphore
// (spec.md §4.10), the same buffered-channel idiom
// pkg/executor/dispatch.go's worker pools use — no semaphore library
// appears anywhere in the pack, so this stays a plain channel rather
// than reaching for golang.org/x/sync/semaphore.
type Bulkhead struct {
	permits        chan struct{}
	acquireTimeout time.Duration
}

// NewBulkhead builds a Bulkhead from cfg.
func NewBulkhead(cfg config.BulkheadConfig) *Bulkhead {
	max := cfg.MaxConcurrentCalls
	if max <= 0 {
		max = 1
	}
	return &Bulkhead{
		permits:        make(chan struct{}, max),
		acquireTimeout: cfg.AcquireTimeout,
	}
}

// Run acquires a permit (waiting up to the configured timeout) and runs
// fn, releasing the permit afterward. On timeout, Run returns a
// synthetic StageResult{Status: Failure, Err: ErrBulkheadRejected}
// without calling fn.
func (b *Bulkhead) Run(fn func() pipeline.StageResult) pipeline.StageResult {
	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if b.acquireTimeout > 0 {
		timer = time.NewTimer(b.acquireTimeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case b.permits <- struct{}{}:
	case <-timeoutCh:
		return pipeline.StageResult{
			Status:    pipeline.StageFailure,
			StartedAt: time.Now(),
			EndedAt:   time.Now(),
			Err:       pipeline.ErrBulkheadRejected,
			Metadata:  map[string]any{"bulkheadRejected": true},
		}
	}
	defer func() { <-b.permits }()

	return fn()
}
