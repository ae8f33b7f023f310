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

package pipeline

import "time"

// Stage groups an ordered list of Steps under a name, an optional Agent,
// stage-scoped environment overrides, an optional gating WhenCondition,
// post-actions, and a fail-fast policy for any Parallel steps it contains.
// Adapted from the teacher's StageSpec (pkg/apis/v1alpha1), stripped of
// its Kubernetes-specific fields.
type Stage struct {
	Name         string            `validate:"required"`
	Steps        []Step            `validate:"required,min=1"`
	Agent        Agent
	Environment  map[string]string
	When         WhenCondition
	PostActions  []PostAction
	FailFast     bool
	Timeout      time.Duration
}

// Validate checks structural invariants Validate tags alone can't express:
// non-empty step sequence, non-empty environment keys, and that any
// declared Timeout is positive. Pipeline.Validate additionally checks
// cross-stage invariants (duplicate names) this method can't see.
func (s Stage) Validate() *ValidationErrors {
	errs := &ValidationErrors{}

	if s.Name == "" {
		errs.Add("name", "stage name must not be empty")
	}
	if len(s.Steps) == 0 {
		errs.Add("steps", "stage must declare at least one step")
	}
	for key := range s.Environment {
		if key == "" {
			errs.Add("environment", "environment variable key must not be empty")
			break
		}
	}
	if s.Timeout < 0 {
		errs.Add("timeout", "timeout must not be negative")
	}

	return errs
}
