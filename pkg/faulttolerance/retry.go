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
	"errors"

	"github.com/cenkalti/backoff/v4"

	"github.com/org/forgeci/pkg/config"
	"github.com/org/forgeci/pkg/pipeline"
)

// errNonRetryable wraps a stage result that must not be retried
// (cancellation, validation failure, timeout — spec.md §4.10's Retry
// Policy paragraph) so backoff.Retry aborts immediately via
// backoff.Permanent instead of spending the remaining attempts.
var errNonRetryable = errors.New("faulttolerance: non-retryable stage outcome")

// RetryPolicy retries a stage run up to cfg.MaxAttempts times with
// exponential backoff (cfg.BaseDelay, cfg.Multiplier, capped at
// cfg.MaxDelay, jittered by cfg.Jitter), built on
// cenkalti/backoff/v4 — attempt 1 runs immediately.
type RetryPolicy struct {
	cfg config.RetryPolicyConfig
}

// NewRetryPolicy builds a RetryPolicy from cfg.
func NewRetryPolicy(cfg config.RetryPolicyConfig) *RetryPolicy {
	return &RetryPolicy{cfg: cfg}
}

func (p *RetryPolicy) backOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.cfg.BaseDelay
	eb.MaxInterval = p.cfg.MaxDelay
	eb.Multiplier = p.cfg.Multiplier
	eb.MaxElapsedTime = 0 // bounded by MaxAttempts below, not by elapsed wall time
	if p.cfg.BaseDelay > 0 {
		eb.RandomizationFactor = float64(p.cfg.Jitter) / float64(p.cfg.BaseDelay)
	}
	eb.Reset()

	attempts := p.cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return backoff.WithMaxRetries(eb, uint64(attempts-1))
}

// isRetryable reports whether a stage outcome is eligible for another
// attempt: only Failure is retried; Cancelled, Timeout, and any other
// terminal status abort immediately per §4.10.
func isRetryable(status pipeline.StageStatus) bool {
	return status == pipeline.StageFailure
}

// Run retries fn according to the configured policy. The last attempt's
// StageResult is always what's returned, whether it eventually succeeded
// or exhausted every attempt.
func (p *RetryPolicy) Run(fn func() pipeline.StageResult) pipeline.StageResult {
	var last pipeline.StageResult
	attempt := 0

	operation := func() error {
		attempt++
		last = fn()
		if last.Status == pipeline.StageSuccess || last.Status == pipeline.StagePartialSuccess {
			return nil
		}
		if !isRetryable(last.Status) {
			return backoff.Permanent(errNonRetryable)
		}
		return errStageNotHealthy
	}

	_ = backoff.Retry(operation, p.backOff())

	if last.Metadata == nil {
		last.Metadata = map[string]any{}
	}
	last.Metadata["retryAttempts"] = attempt
	return last
}
