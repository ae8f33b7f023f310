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
	"context"

	"github.com/org/forgeci/pkg/config"
	"github.com/org/forgeci/pkg/pipeline"
)

// Envelope composes the bulkhead, circuit breaker, and retry policy into
// the single fault-tolerance wrapper the Pipeline Executor (C9) can run
// stage execution through (spec.md §4.9 step 3: "circuit-breaker +
// retry + bulkhead"). It structurally satisfies
// executor.Envelope — this package never imports pkg/executor, so the
// dependency edge points the other way (executor depends on this
// package's Envelope interface shape, not on faulttolerance itself).
//
// Composition order, outermost to innermost: Bulkhead admission gates
// whether a call is even attempted; the Circuit Breaker then decides
// whether the call is attempted against a known-unhealthy dependency;
// the Retry Policy governs the individual attempt(s) within that.
type Envelope struct {
	Bulkhead *Bulkhead
	Breaker  *CircuitBreaker
	Retry    *RetryPolicy
}

// New builds an Envelope from a FaultToleranceConfig. Returns nil (no
// wrapping) if cfg.Enabled is false.
func New(cfg config.FaultToleranceConfig) *Envelope {
	if !cfg.Enabled {
		return nil
	}
	return &Envelope{
		Bulkhead: NewBulkhead(cfg.Bulkhead),
		Breaker:  NewCircuitBreaker(cfg.CircuitBreaker),
		Retry:    NewRetryPolicy(cfg.RetryPolicy),
	}
}

// Run implements the executor.Envelope contract.
func (e *Envelope) Run(ctx context.Context, fn func(context.Context) pipeline.StageResult) pipeline.StageResult {
	return e.Bulkhead.Run(func() pipeline.StageResult {
		return e.Breaker.Run(func() pipeline.StageResult {
			return e.Retry.Run(func() pipeline.StageResult {
				return fn(ctx)
			})
		})
	})
}
