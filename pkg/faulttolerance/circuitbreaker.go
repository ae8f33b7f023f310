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

// Package faulttolerance implements the Fault Tolerance envelope (C10):
// a circuit breaker, a retry policy, a bulkhead, and a graceful
// degradation monitor, composed into one Envelope the Pipeline Executor
// can wrap stage execution in (spec.md §4.9 step 3, §4.10).
package faulttolerance

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/org/forgeci/pkg/config"
	"github.com/org/forgeci/pkg/pipeline"
)

// errStageNotHealthy is the sentinel gobreaker counts as a call failure
// when a wrapped stage run finishes in Failure or Timeout. It never
// escapes CircuitBreaker.Run — callers see the stage's own StageResult,
// not this error.
var errStageNotHealthy = errors.New("faulttolerance: stage did not complete successfully")

// CircuitBreaker wraps a sony/gobreaker breaker over a
// pipeline.StageResult-returning call, translating spec.md §4.10's
// Closed/Open/HalfOpen state machine onto stage execution: a stage
// finishing Failure or Timeout counts as a breaker failure, anything
// else counts as success.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuitBreaker builds a breaker from cfg. ReadyToTrip fires once
// consecutive failures reach cfg.FailureThreshold; Interval is the
// rolling window over which Closed-state counts reset
// (cfg.TimeoutWindow); Timeout is how long the breaker stays Open before
// admitting a single HalfOpen trial call (cfg.HalfOpenRetryTimeout).
func NewCircuitBreaker(cfg config.CircuitBreakerConfig) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        "stage",
		MaxRequests: 1,
		Interval:    cfg.TimeoutWindow,
		Timeout:     cfg.HalfOpenRetryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	}
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Run executes fn through the breaker. If the breaker is Open, Run
// returns a synthetic StageResult{Status: Failure, Err: ErrCircuitOpen}
// without calling fn at all.
func (b *CircuitBreaker) Run(fn func() pipeline.StageResult) pipeline.StageResult {
	raw, err := b.cb.Execute(func() (interface{}, error) {
		r := fn()
		if r.Status == pipeline.StageFailure || r.Status == pipeline.StageTimeout {
			return r, errStageNotHealthy
		}
		return r, nil
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return pipeline.StageResult{
			Status:    pipeline.StageFailure,
			StartedAt: time.Now(),
			EndedAt:   time.Now(),
			Err:       pipeline.ErrCircuitOpen,
			Metadata:  map[string]any{"circuitOpen": true},
		}
	}
	return raw.(pipeline.StageResult)
}

// State reports the breaker's current state label, for metrics/logging.
func (b *CircuitBreaker) State() string {
	return b.cb.State().String()
}
