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

func TestRetryPolicySucceedsAfterFailures(t *testing.T) {
	rp := NewRetryPolicy(config.RetryPolicyConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2,
		Jitter:      time.Millisecond,
	})

	attempt := 0
	result := rp.Run(func() pipeline.StageResult {
		attempt++
		if attempt < 2 {
			return pipeline.StageResult{Status: pipeline.StageFailure}
		}
		return pipeline.StageResult{Status: pipeline.StageSuccess}
	})

	if result.Status != pipeline.StageSuccess {
		t.Fatalf("expected eventual success, got %+v", result)
	}
	if attempt != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempt)
	}
	if result.Metadata["retryAttempts"] != 2 {
		t.Fatalf("expected retryAttempts=2 in metadata, got %v", result.Metadata["retryAttempts"])
	}
}

func TestRetryPolicyExhaustsAttempts(t *testing.T) {
	rp := NewRetryPolicy(config.RetryPolicyConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2,
	})

	attempt := 0
	result := rp.Run(func() pipeline.StageResult {
		attempt++
		return pipeline.StageResult{Status: pipeline.StageFailure}
	})

	if result.Status != pipeline.StageFailure {
		t.Fatalf("expected Failure after exhausting attempts, got %+v", result)
	}
	if attempt != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempt)
	}
}

func TestRetryPolicyAbortsImmediatelyOnNonRetryable(t *testing.T) {
	rp := NewRetryPolicy(config.RetryPolicyConfig{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2})

	attempt := 0
	result := rp.Run(func() pipeline.StageResult {
		attempt++
		return pipeline.StageResult{Status: pipeline.StageCancelled}
	})

	if attempt != 1 {
		t.Fatalf("expected cancellation to abort after 1 attempt, got %d", attempt)
	}
	if result.Status != pipeline.StageCancelled {
		t.Fatalf("expected Cancelled status preserved, got %+v", result)
	}
}
