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
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusSinkRecordsWithoutPanicking(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)

	sink.PipelineStarted("p1")
	sink.StageCompleted("p1", "build", "Success", 2*time.Second)
	sink.StepCompleted("p1", "build", "compile", "Success", 500*time.Millisecond)
	sink.StepCompleted("p1", "build", "lint", "Failure", 100*time.Millisecond)
	sink.CacheHit("script")
	sink.CacheMiss("library")
	sink.PipelineCompleted("p1", "Success", 10*time.Second)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected metric families to be registered")
	}
}

func TestNoopSinkSatisfiesInterface(t *testing.T) {
	var s Sink = NoopSink{}
	s.PipelineStarted("x")
	s.StepCompleted("x", "stage", "step", "Success", time.Second)
}
