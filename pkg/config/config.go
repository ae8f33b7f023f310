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

// Package config holds the plain configuration struct the executors,
// fault-tolerance envelope, and cache manager are built from. Mirrors
// the teacher's storage.Config / localenv config-struct-with-Validate
// idiom: a literal struct the caller populates (no file/env loading —
// out of scope per SPEC_FULL.md §6), validated with
// go-playground/validator/v10 the same way pkg/pipeline validates its
// data model.
package config

import (
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
)

// DispatcherSizes gives the worker-pool capacity per workload class
// (SPEC_FULL.md §5). Zero fields fall back to DefaultDispatcherSizes'
// nCPU-scaled defaults.
type DispatcherSizes struct {
	CPU      int `validate:"gte=0"`
	IO       int `validate:"gte=0"`
	Network  int `validate:"gte=0"`
	Blocking int `validate:"gte=0"`
}

// DefaultDispatcherSizes returns the §5-prescribed nCPU-scaled sizes:
// cpu ≈ nCPU, io ≈ 8*nCPU (min 64), network ≈ 16*nCPU (min 256), a fixed
// blocking pool.
func DefaultDispatcherSizes() DispatcherSizes {
	n := runtime.NumCPU()
	io := 8 * n
	if io < 64 {
		io = 64
	}
	network := 16 * n
	if network < 256 {
		network = 256
	}
	return DispatcherSizes{CPU: n, IO: io, Network: network, Blocking: 32}
}

// CircuitBreakerConfig configures C10's breaker.
type CircuitBreakerConfig struct {
	FailureThreshold     uint32        `validate:"gte=0"`
	TimeoutWindow        time.Duration `validate:"gte=0"`
	HalfOpenRetryTimeout time.Duration `validate:"gte=0"`
}

// RetryPolicyConfig configures C10's retry/backoff math.
type RetryPolicyConfig struct {
	MaxAttempts int           `validate:"gte=0"`
	BaseDelay   time.Duration `validate:"gte=0"`
	MaxDelay    time.Duration `validate:"gte=0"`
	Multiplier  float64       `validate:"gte=0"`
	Jitter      time.Duration `validate:"gte=0"`
}

// BulkheadConfig configures C10's counting semaphore.
type BulkheadConfig struct {
	MaxConcurrentCalls int           `validate:"gte=0"`
	AcquireTimeout     time.Duration `validate:"gte=0"`
}

// DegradationConfig configures C10's load/error-rate monitor.
type DegradationConfig struct {
	MaxLoadThreshold      float64 `validate:"gte=0"`
	MaxErrorRateThreshold float64 `validate:"gte=0,lte=1"`
}

// FaultToleranceConfig bundles C10's four mechanisms. Enabled gates
// whether the pipeline executor wraps stage execution in the envelope at
// all (spec.md §4.9 step 3: "optionally wrap").
type FaultToleranceConfig struct {
	Enabled        bool
	CircuitBreaker CircuitBreakerConfig
	RetryPolicy    RetryPolicyConfig
	Bulkhead       BulkheadConfig
	Degradation    DegradationConfig
}

// CacheConfig configures C11.
type CacheConfig struct {
	MaxCacheSize              int64         `validate:"gte=0"`
	MaxCacheAge               time.Duration `validate:"gte=0"`
	BackgroundCleanupInterval time.Duration `validate:"gte=0"`
}

// Config is the full §6 configuration surface.
type Config struct {
	MaxConcurrentPipelines int           `validate:"gt=0"`
	DefaultStageTimeout    time.Duration `validate:"gt=0"`
	DefaultStepTimeout     time.Duration `validate:"gt=0"`
	GlobalTimeout          time.Duration `validate:"gte=0"`
	DefaultFailFast        bool

	Dispatchers    DispatcherSizes
	FaultTolerance FaultToleranceConfig
	Cache          CacheConfig
}

// Default returns a Config populated with the values spec.md's boundary
// behaviors and examples assume when a caller doesn't override them.
func Default() Config {
	return Config{
		MaxConcurrentPipelines: 10,
		DefaultStageTimeout:    30 * time.Minute,
		DefaultStepTimeout:     10 * time.Minute,
		DefaultFailFast:        true,
		Dispatchers:            DefaultDispatcherSizes(),
		FaultTolerance: FaultToleranceConfig{
			Enabled: false,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold:     5,
				TimeoutWindow:        time.Minute,
				HalfOpenRetryTimeout: 30 * time.Second,
			},
			RetryPolicy: RetryPolicyConfig{
				MaxAttempts: 3,
				BaseDelay:   500 * time.Millisecond,
				MaxDelay:    10 * time.Second,
				Multiplier:  2,
				Jitter:      100 * time.Millisecond,
			},
			Bulkhead: BulkheadConfig{
				MaxConcurrentCalls: 16,
				AcquireTimeout:     5 * time.Second,
			},
			Degradation: DegradationConfig{
				MaxLoadThreshold:      0.9,
				MaxErrorRateThreshold: 0.5,
			},
		},
		Cache: CacheConfig{
			MaxCacheSize:              256 * 1024 * 1024,
			MaxCacheAge:               24 * time.Hour,
			BackgroundCleanupInterval: 5 * time.Minute,
		},
	}
}

var structValidator = validator.New()

// Validate runs struct-tag validation over the whole config tree.
func (c Config) Validate() error {
	return structValidator.Struct(c)
}
