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

package handler

import (
	"context"
	"strings"
	"time"

	"github.com/org/forgeci/pkg/execctx"
	"github.com/org/forgeci/pkg/pipeline"
)

// splitPatternList splits a comma-separated glob list (Stash.Includes /
// Stash.Excludes), trimming whitespace and dropping empty entries. Kept
// local to this package rather than imported from pkg/stash, which keeps
// its own unexported copy for the same purpose.
func splitPatternList(list string) []string {
	if list == "" {
		return nil
	}
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// StashHandler delegates to ctx.StashStore.Stash (§4.2, see §4.3 for C4's
// storage semantics).
type StashHandler struct{}

func (h StashHandler) Validate(step pipeline.Step, ctx execctx.ExecutionContext) *pipeline.ValidationErrors {
	errs := &pipeline.ValidationErrors{}
	s := step.(pipeline.Stash)
	if s.Name == "" {
		errs.Add("name", "stash name must not be empty")
	}
	if s.Includes == "" {
		errs.Add("includes", "stash includes pattern must not be empty")
	}
	if ctx.StashStore == nil {
		errs.Add("stashStore", "execution context has no stash store configured")
	}
	return errs
}

func (h StashHandler) Prepare(step pipeline.Step, ctx execctx.ExecutionContext) error { return nil }

func (h StashHandler) Execute(ctx context.Context, step pipeline.Step, ectx execctx.ExecutionContext) pipeline.StepResult {
	s := step.(pipeline.Stash)
	started := time.Now()

	entry, err := ectx.StashStore.Stash(s.Name, ectx.WorkDir, splitPatternList(s.Includes), splitPatternList(s.Excludes))
	if err != nil {
		return pipeline.StepResult{Status: pipeline.StepFailure, StartedAt: started, EndedAt: time.Now(), Err: err}
	}

	return pipeline.StepResult{
		Status:    pipeline.StepSuccess,
		StartedAt: started,
		EndedAt:   time.Now(),
		Metadata: map[string]any{
			"fileCount":  entry.FileCount,
			"totalBytes": entry.TotalBytes,
		},
	}
}

func (h StashHandler) Cleanup(step pipeline.Step, ctx execctx.ExecutionContext, result pipeline.StepResult) error {
	return nil
}

// UnstashHandler delegates to ctx.StashStore.Unstash (§4.2).
type UnstashHandler struct{}

func (h UnstashHandler) Validate(step pipeline.Step, ctx execctx.ExecutionContext) *pipeline.ValidationErrors {
	errs := &pipeline.ValidationErrors{}
	u := step.(pipeline.Unstash)
	if u.Name == "" {
		errs.Add("name", "unstash name must not be empty")
	}
	if ctx.StashStore == nil {
		errs.Add("stashStore", "execution context has no stash store configured")
	}
	return errs
}

func (h UnstashHandler) Prepare(step pipeline.Step, ctx execctx.ExecutionContext) error { return nil }

func (h UnstashHandler) Execute(ctx context.Context, step pipeline.Step, ectx execctx.ExecutionContext) pipeline.StepResult {
	u := step.(pipeline.Unstash)
	started := time.Now()

	if err := ectx.StashStore.Unstash(u.Name, ectx.WorkDir); err != nil {
		return pipeline.StepResult{Status: pipeline.StepFailure, StartedAt: started, EndedAt: time.Now(), Err: err}
	}

	return pipeline.StepResult{
		Status:    pipeline.StepSuccess,
		StartedAt: started,
		EndedAt:   time.Now(),
	}
}

func (h UnstashHandler) Cleanup(step pipeline.Step, ctx execctx.ExecutionContext, result pipeline.StepResult) error {
	return nil
}
