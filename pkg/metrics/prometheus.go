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

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink is the concrete Sink backing this module ships,
// mirroring the teacher's module-level Counter/Histogram/GaugeVec
// declarations but registered against a caller-supplied Registerer
// instead of controller-runtime's global metrics.Registry, and scoped to
// pipeline/stage/step labels instead of namespace/PipelineRun.
type PrometheusSink struct {
	pipelinesTotal   *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	stageDuration    *prometheus.HistogramVec
	stepDuration     *prometheus.HistogramVec
	stepsFailedTotal *prometheus.CounterVec
	activePipelines  prometheus.Gauge
	cacheHitsTotal   *prometheus.CounterVec
	cacheMissesTotal *prometheus.CounterVec
}

// NewPrometheusSink builds a PrometheusSink and registers its collectors
// against reg.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		pipelinesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forgeci_pipelines_total",
			Help: "Total number of pipeline runs completed, by terminal status.",
		}, []string{"status"}),
		pipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forgeci_pipeline_duration_seconds",
			Help:    "Pipeline run duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forgeci_stage_duration_seconds",
			Help:    "Stage duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"stage", "status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forgeci_step_duration_seconds",
			Help:    "Step duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"stage", "step", "status"}),
		stepsFailedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forgeci_steps_failed_total",
			Help: "Total number of steps that finished in Failure status.",
		}, []string{"stage", "step"}),
		activePipelines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forgeci_active_pipelines",
			Help: "Number of pipeline runs currently executing.",
		}),
		cacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forgeci_cache_hits_total",
			Help: "Total cache lookups that found a valid entry.",
		}, []string{"cache"}),
		cacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forgeci_cache_misses_total",
			Help: "Total cache lookups that found no valid entry.",
		}, []string{"cache"}),
	}

	reg.MustRegister(
		s.pipelinesTotal,
		s.pipelineDuration,
		s.stageDuration,
		s.stepDuration,
		s.stepsFailedTotal,
		s.activePipelines,
		s.cacheHitsTotal,
		s.cacheMissesTotal,
	)

	return s
}

func (s *PrometheusSink) PipelineStarted(pipelineID string) {
	s.activePipelines.Inc()
}

func (s *PrometheusSink) PipelineCompleted(pipelineID, status string, duration time.Duration) {
	s.activePipelines.Dec()
	s.pipelinesTotal.WithLabelValues(status).Inc()
	s.pipelineDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (s *PrometheusSink) StageCompleted(pipelineID, stage, status string, duration time.Duration) {
	s.stageDuration.WithLabelValues(stage, status).Observe(duration.Seconds())
}

func (s *PrometheusSink) StepCompleted(pipelineID, stage, step, status string, duration time.Duration) {
	s.stepDuration.WithLabelValues(stage, step, status).Observe(duration.Seconds())
	if status == "Failure" {
		s.stepsFailedTotal.WithLabelValues(stage, step).Inc()
	}
}

func (s *PrometheusSink) ActivePipelines(delta int) {
	s.activePipelines.Add(float64(delta))
}

func (s *PrometheusSink) CacheHit(cacheName string) {
	s.cacheHitsTotal.WithLabelValues(cacheName).Inc()
}

func (s *PrometheusSink) CacheMiss(cacheName string) {
	s.cacheMissesTotal.WithLabelValues(cacheName).Inc()
}
