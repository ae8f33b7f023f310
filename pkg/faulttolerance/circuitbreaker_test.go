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
	"testing"
	"time"

	"github.com/org/forgeci/pkg/config"
	"github.com/org/forgeci/pkg/pipeline"
)

func TestCircuitBreakerTripsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(config.CircuitBreakerConfig{
		FailureThreshold:     2,
		TimeoutWindow:        time.Minute,
		HalfOpenRetryTimeout: time.Hour,
	})

	failing := func() pipeline.StageResult { return pipeline.StageResult{Status: pipeline.StageFailure} }

	cb.Run(failing)
	cb.Run(failing)

	result := cb.Run(func() pipeline.StageResult {
		t.Fatal("breaker should have been open; fn must not run")
		return pipeline.StageResult{}
	})
	if result.Err != pipeline.ErrCircuitOpen {
		t.Fatalf("expected ErrCircuitOpen, got %+v", result)
	}
}

func TestCircuitBreakerStaysClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(config.CircuitBreakerConfig{
		FailureThreshold:     2,
		TimeoutWindow:        time.Minute,
		HalfOpenRetryTimeout: time.Hour,
	})

	ran := 0
	for i := 0; i < 5; i++ {
		cb.Run(func() pipeline.StageResult {
			ran++
			return pipeline.StageResult{Status: pipeline.StageSuccess}
		})
	}
	if ran != 5 {
		t.Fatalf("expected every call to run while healthy, got %d", ran)
	}
	if cb.State() != "closed" {
		t.Fatalf("expected closed state, got %q", cb.State())
	}
}
