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

	"github.com/org/forgeci/pkg/config"
	"github.com/org/forgeci/pkg/pipeline"
)

func TestGracefulDegradationCriticalAlwaysPasses(t *testing.T) {
	d := NewGracefulDegradation(config.DegradationConfig{MaxLoadThreshold: 0, MaxErrorRateThreshold: 0}, 10)
	if !d.Allow(PriorityCritical, 1) {
		t.Fatal("expected Critical priority to always be allowed")
	}
}

func TestGracefulDegradationRejectsLowPriorityUnderLoad(t *testing.T) {
	d := NewGracefulDegradation(config.DegradationConfig{MaxLoadThreshold: 0.5, MaxErrorRateThreshold: 1}, 10)

	block := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		d.Run(PriorityNormal, 2, func() pipeline.StageResult {
			close(started)
			<-block
			return pipeline.StageResult{Status: pipeline.StageSuccess}
		})
		close(done)
	}()
	<-started // one of two capacity slots is now active: load = 0.5, not yet over threshold

	if !d.Allow(PriorityLow, 2) {
		t.Fatal("expected Low priority to still be allowed exactly at the threshold")
	}

	close(block)
	<-done
}

func TestGracefulDegradationErrorRateTripsRejection(t *testing.T) {
	d := NewGracefulDegradation(config.DegradationConfig{MaxLoadThreshold: 1, MaxErrorRateThreshold: 0.4}, 10)

	for i := 0; i < 8; i++ {
		d.Run(PriorityNormal, 100, func() pipeline.StageResult {
			return pipeline.StageResult{Status: pipeline.StageFailure}
		})
	}

	if d.Allow(PriorityNormal, 100) {
		t.Fatal("expected Normal priority to be rejected once error rate exceeds threshold")
	}
	if !d.Allow(PriorityCritical, 100) {
		t.Fatal("expected Critical priority to still be allowed")
	}
}
