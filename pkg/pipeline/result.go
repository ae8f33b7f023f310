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

// StepResult captures one step's outcome: its status, the window it ran
// in, captured output (already secret-masked by the time it reaches
// here), the error if any, and a metadata bag for handler-specific
// detail (e.g. ArchiveArtifacts' matched file count).
type StepResult struct {
	Name      string
	Status    StepStatus
	StartedAt time.Time
	EndedAt   time.Time
	Output    string
	Err       error
	Metadata  map[string]any

	// Children holds nested results for composite steps (Dir, WithEnv,
	// Retry, Timeout, Parallel branches, Matrix-expanded branches) in
	// execution order.
	Children []StepResult
}

// Duration reports how long the step ran. Zero if EndedAt was never set.
func (r StepResult) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// StageResult captures one stage's outcome: its status, window, the
// per-step results in execution order, any post-action results keyed by
// scope, and a metadata bag (e.g. "skipped": true when a When condition
// gated the stage out).
type StageResult struct {
	Name        string
	Status      StageStatus
	StartedAt   time.Time
	EndedAt     time.Time
	Steps       []StepResult
	PostActions []StepResult
	Err         error
	Metadata    map[string]any
}

func (r StageResult) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// PipelineResult is the top-level outcome returned by the pipeline
// executor (C9): overall status, window, and per-stage results.
type PipelineResult struct {
	PipelineID string
	Status     PipelineStatus
	StartedAt  time.Time
	EndedAt    time.Time
	Stages     []StageResult
	Err        error
}

func (r PipelineResult) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the pipeline completed without failure.
func (r PipelineResult) Succeeded() bool {
	return r.Status == PipelineSuccess
}
