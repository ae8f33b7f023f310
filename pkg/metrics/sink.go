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

// Package metrics declares the MetricsSink contract ExecutionContext
// carries, plus a Prometheus-backed adapter. Adapted from the teacher's
// pkg/metrics/metrics.go Counter/Histogram/Gauge vocabulary, re-labeled
// from namespace/PipelineRun to pipelineID/stage/step and stripped of the
// Kubernetes-Job and reconcile-loop metrics this module has no analog for.
package metrics

import "time"

// Sink is the contract handlers and executors record observability data
// through. A nil-safe no-op implementation (NoopSink) is provided for
// tests and callers that don't want metrics wired up.
type Sink interface {
	PipelineStarted(pipelineID string)
	PipelineCompleted(pipelineID, status string, duration time.Duration)
	StageCompleted(pipelineID, stage, status string, duration time.Duration)
	StepCompleted(pipelineID, stage, step, status string, duration time.Duration)
	ActivePipelines(delta int)
	CacheHit(cacheName string)
	CacheMiss(cacheName string)
}

// NoopSink discards every observation.
type NoopSink struct{}

func (NoopSink) PipelineStarted(string)                                {}
func (NoopSink) PipelineCompleted(string, string, time.Duration)       {}
func (NoopSink) StageCompleted(string, string, string, time.Duration) {}
func (NoopSink) StepCompleted(string, string, string, string, time.Duration) {}
func (NoopSink) ActivePipelines(int)                                   {}
func (NoopSink) CacheHit(string)                                       {}
func (NoopSink) CacheMiss(string)                                      {}
