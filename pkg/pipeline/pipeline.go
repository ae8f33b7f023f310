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

import "fmt"

// Pipeline is the root of the immutable data model: a pipeline-global
// environment, an optional default Agent, an ordered list of Stages, and
// a free-form Metadata bag the launcher/executor layers can stash
// run-scoped data into (e.g. changedFiles for ChangeSet conditions).
// Adapted from the teacher's PipelineSpec (pkg/apis/v1alpha1/pipeline_types.go).
type Pipeline struct {
	ID                string `validate:"required"`
	Stages            []Stage
	GlobalEnvironment map[string]string
	Agent             Agent
	Metadata          map[string]any
}

// Validate runs the struct-tag checks plus the hand-written cross-field
// invariants validator tags can't express on their own: unique stage
// names, unique step names within a stage (where steps carry names via
// their variant-specific fields), and non-empty global environment keys.
// Each Stage is also validated individually and its errors merged in.
func (p Pipeline) Validate() *ValidationErrors {
	errs := &ValidationErrors{}

	if p.ID == "" {
		errs.Add("id", ErrEmptyPipelineID.Error())
	}
	// An empty Stages slice is a valid pipeline (§3/§8: "Empty pipeline →
	// Success with zero stages"), so it is not checked here.
	for key := range p.GlobalEnvironment {
		if key == "" {
			errs.Add("globalEnvironment", ErrEmptyEnvKey.Error())
			break
		}
	}

	seen := make(map[string]bool, len(p.Stages))
	for _, stage := range p.Stages {
		if stage.Name != "" {
			if seen[stage.Name] {
				errs.Add("stages", "duplicate stage name %q", stage.Name)
			}
			seen[stage.Name] = true
		}
		errs.Merge(stage.Validate())
	}

	return errs
}

// String renders a short human-readable identifier, used in log lines the
// way the teacher's PipelineSpec.String did.
func (p Pipeline) String() string {
	return fmt.Sprintf("pipeline(id=%s, stages=%d)", p.ID, len(p.Stages))
}
