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
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/org/forgeci/pkg/execctx"
	"github.com/org/forgeci/pkg/pipeline"
)

// runSequenceFailFast runs steps in order through runner, stopping at the
// first step that finishes Failure or Timeout. It aggregates status per
// spec.md §4.2's Dir/WithEnv semantics: Success iff every run child is
// Success.
func runSequenceFailFast(ctx context.Context, steps []pipeline.Step, ectx execctx.ExecutionContext) []pipeline.StepResult {
	results := make([]pipeline.StepResult, 0, len(steps))
	for _, s := range steps {
		if ctx.Err() != nil {
			break
		}
		r := ectx.StepRunner.RunStep(ctx, s, ectx)
		results = append(results, r)
		if r.Status == pipeline.StepFailure || r.Status == pipeline.StepTimeout || r.Status == pipeline.StepCancelled {
			break
		}
	}
	return results
}

func aggregateStatus(results []pipeline.StepResult, wantedCount int) pipeline.StepStatus {
	if len(results) < wantedCount {
		// Fail-fast stopped early: the sequence didn't complete in full.
		if len(results) > 0 {
			last := results[len(results)-1]
			if last.Status != pipeline.StepSuccess {
				return last.Status
			}
		}
		return pipeline.StepFailure
	}
	for _, r := range results {
		if r.Status != pipeline.StepSuccess {
			return r.Status
		}
	}
	return pipeline.StepSuccess
}

// DirHandler resolves a relative path against the current workDir and
// runs nested steps fail-fast under the derived context.
type DirHandler struct{}

func (h DirHandler) Validate(step pipeline.Step, ctx execctx.ExecutionContext) *pipeline.ValidationErrors {
	errs := &pipeline.ValidationErrors{}
	d := step.(pipeline.Dir)
	if len(d.Steps) == 0 {
		errs.Add("steps", "dir block must contain at least one step")
	}
	if ctx.StepRunner == nil {
		errs.Add("stepRunner", "execution context has no step runner configured")
	}
	return errs
}

func (h DirHandler) Prepare(step pipeline.Step, ctx execctx.ExecutionContext) error {
	d := step.(pipeline.Dir)
	resolved := resolvePath(ctx.WorkDir, d.Path)
	return os.MkdirAll(resolved, 0o755)
}

func (h DirHandler) Execute(ctx context.Context, step pipeline.Step, ectx execctx.ExecutionContext) pipeline.StepResult {
	d := step.(pipeline.Dir)
	started := time.Now()

	derived := ectx.Copy(execctx.WithWorkDir(resolvePath(ectx.WorkDir, d.Path)))
	children := runSequenceFailFast(ctx, d.Steps, derived)

	return pipeline.StepResult{
		Status:    aggregateStatus(children, len(d.Steps)),
		StartedAt: started,
		EndedAt:   time.Now(),
		Children:  children,
	}
}

func (h DirHandler) Cleanup(step pipeline.Step, ctx execctx.ExecutionContext, result pipeline.StepResult) error {
	return nil
}

func resolvePath(workDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workDir, path)
}

// WithEnvHandler merges Variables into the ambient environment
// (innermost wins, §4.6) and runs nested steps fail-fast.
type WithEnvHandler struct{}

func (h WithEnvHandler) Validate(step pipeline.Step, ctx execctx.ExecutionContext) *pipeline.ValidationErrors {
	errs := &pipeline.ValidationErrors{}
	w := step.(pipeline.WithEnv)
	if len(w.Steps) == 0 {
		errs.Add("steps", "withEnv block must contain at least one step")
	}
	for k := range w.Variables {
		if k == "" {
			errs.Add("variables", "environment variable key must not be empty")
			break
		}
	}
	return errs
}

func (h WithEnvHandler) Prepare(step pipeline.Step, ctx execctx.ExecutionContext) error { return nil }

func (h WithEnvHandler) Execute(ctx context.Context, step pipeline.Step, ectx execctx.ExecutionContext) pipeline.StepResult {
	w := step.(pipeline.WithEnv)
	started := time.Now()

	merged := execctx.MergeEnvironment(ectx.Environment, w.Variables)
	derived := ectx.Copy(execctx.WithEnvironment(merged))
	children := runSequenceFailFast(ctx, w.Steps, derived)

	return pipeline.StepResult{
		Status:    aggregateStatus(children, len(w.Steps)),
		StartedAt: started,
		EndedAt:   time.Now(),
		Children:  children,
	}
}

func (h WithEnvHandler) Cleanup(step pipeline.Step, ctx execctx.ExecutionContext, result pipeline.StepResult) error {
	return nil
}

// RetryHandler runs nested steps up to Times attempts with linear
// backoff BaseDelay*attempt between attempts (§4.2).
type RetryHandler struct{}

func (h RetryHandler) Validate(step pipeline.Step, ctx execctx.ExecutionContext) *pipeline.ValidationErrors {
	errs := &pipeline.ValidationErrors{}
	r := step.(pipeline.Retry)
	if r.Times <= 0 {
		errs.Add("times", pipeline.ErrInvalidRetryTimes.Error())
	}
	if len(r.Steps) == 0 {
		errs.Add("steps", pipeline.ErrEmptyStepSequence.Error())
	}
	return errs
}

func (h RetryHandler) Prepare(step pipeline.Step, ctx execctx.ExecutionContext) error { return nil }

func (h RetryHandler) Execute(ctx context.Context, step pipeline.Step, ectx execctx.ExecutionContext) pipeline.StepResult {
	r := step.(pipeline.Retry)
	started := time.Now()

	baseDelay := r.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	var lastChildren []pipeline.StepResult
	retriesUsed := 0

	for attempt := 1; attempt <= r.Times; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(baseDelay * time.Duration(attempt-1)):
				retriesUsed++
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			break
		}

		lastChildren = runSequenceFailFast(ctx, r.Steps, ectx)
		status := aggregateStatus(lastChildren, len(r.Steps))
		if status == pipeline.StepSuccess || status == pipeline.StepCancelled || status == pipeline.StepTimeout {
			break
		}
	}

	status := aggregateStatus(lastChildren, len(r.Steps))
	if ctx.Err() != nil && status != pipeline.StepSuccess {
		status = pipeline.StepCancelled
	}

	return pipeline.StepResult{
		Status:    status,
		StartedAt: started,
		EndedAt:   time.Now(),
		Children:  lastChildren,
		Metadata: map[string]any{
			"attemptCount": retriesUsed + 1,
			"retriesUsed":  retriesUsed,
		},
	}
}

func (h RetryHandler) Cleanup(step pipeline.Step, ctx execctx.ExecutionContext, result pipeline.StepResult) error {
	return nil
}

// TimeoutHandler runs nested steps under a hard deadline.
type TimeoutHandler struct{}

func (h TimeoutHandler) Validate(step pipeline.Step, ctx execctx.ExecutionContext) *pipeline.ValidationErrors {
	errs := &pipeline.ValidationErrors{}
	t := step.(pipeline.Timeout)
	if t.Duration <= 0 {
		errs.Add("duration", pipeline.ErrInvalidTimeout.Error())
	}
	if len(t.Steps) == 0 {
		errs.Add("steps", pipeline.ErrEmptyStepSequence.Error())
	}
	return errs
}

func (h TimeoutHandler) Prepare(step pipeline.Step, ctx execctx.ExecutionContext) error { return nil }

func (h TimeoutHandler) Execute(ctx context.Context, step pipeline.Step, ectx execctx.ExecutionContext) pipeline.StepResult {
	t := step.(pipeline.Timeout)
	started := time.Now()

	deadlineCtx, cancel := context.WithTimeout(ctx, t.Duration)
	defer cancel()

	done := make(chan []pipeline.StepResult, 1)
	go func() {
		done <- runSequenceFailFast(deadlineCtx, t.Steps, ectx)
	}()

	select {
	case children := <-done:
		return pipeline.StepResult{
			Status:    aggregateStatus(children, len(t.Steps)),
			StartedAt: started,
			EndedAt:   time.Now(),
			Children:  children,
		}
	case <-deadlineCtx.Done():
		// Let the in-flight goroutine observe cancellation and finish on
		// its own; we don't block the caller waiting for it, but we
		// never leak it past this function's deadline context either,
		// since deadlineCtx is cancelled (via defer cancel()) either way.
		return pipeline.StepResult{
			Status:    pipeline.StepTimeout,
			StartedAt: started,
			EndedAt:   time.Now(),
		}
	}
}

func (h TimeoutHandler) Cleanup(step pipeline.Step, ctx execctx.ExecutionContext, result pipeline.StepResult) error {
	return nil
}

// ParallelHandler launches one goroutine per branch, all sharing ectx.
// Cancellation policy is read from ectx.Metadata["stageFailFast"],
// populated by the stage executor (C8) from the enclosing Stage's
// FailFast field — exactly one policy is in effect per spec.md §4.2's
// "must be configured at stage build time."
type ParallelHandler struct{}

func (h ParallelHandler) Validate(step pipeline.Step, ctx execctx.ExecutionContext) *pipeline.ValidationErrors {
	// An empty branches map is handled, not rejected: spec.md §8 documents
	// it as a Success no-op, same as an empty Matrix dimension table.
	return &pipeline.ValidationErrors{}
}

func (h ParallelHandler) Prepare(step pipeline.Step, ctx execctx.ExecutionContext) error { return nil }

func (h ParallelHandler) Execute(ctx context.Context, step pipeline.Step, ectx execctx.ExecutionContext) pipeline.StepResult {
	p := step.(pipeline.Parallel)
	started := time.Now()

	failFast, _ := ectx.Metadata["stageFailFast"].(bool)

	branchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type branchOutcome struct {
		name    string
		results []pipeline.StepResult
	}

	outcomes := make(chan branchOutcome, len(p.Branches))
	var wg sync.WaitGroup
	for name, steps := range p.Branches {
		name, steps := name, steps
		wg.Add(1)
		go func() {
			defer wg.Done()
			results := runSequenceFailFast(branchCtx, steps, ectx)
			if failFast {
				for _, r := range results {
					if r.Status == pipeline.StepFailure || r.Status == pipeline.StepTimeout {
						cancel()
						break
					}
				}
			}
			outcomes <- branchOutcome{name: name, results: results}
		}()
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var children []pipeline.StepResult
	var failedBranches []string
	for outcome := range outcomes {
		status := pipeline.StepSuccess
		if len(outcome.results) > 0 {
			status = outcome.results[len(outcome.results)-1].Status
		}
		children = append(children, pipeline.StepResult{
			Name:     outcome.name,
			Status:   status,
			Children: outcome.results,
		})
		if status != pipeline.StepSuccess {
			failedBranches = append(failedBranches, outcome.name)
		}
	}

	result := pipeline.StepResult{
		StartedAt: started,
		EndedAt:   time.Now(),
		Children:  children,
	}
	if len(failedBranches) == 0 {
		result.Status = pipeline.StepSuccess
	} else {
		result.Status = pipeline.StepFailure
		result.Metadata = map[string]any{"failedBranches": failedBranches}
	}
	return result
}

func (h ParallelHandler) Cleanup(step pipeline.Step, ctx execctx.ExecutionContext, result pipeline.StepResult) error {
	return nil
}

// MatrixHandler expands a dimension/exclusion table into one Parallel
// branch per surviving combination and delegates to ParallelHandler —
// Matrix is sugar over Parallel, not a distinct concurrency primitive
// (SPEC_FULL.md glossary).
type MatrixHandler struct{}

func (h MatrixHandler) Validate(step pipeline.Step, ctx execctx.ExecutionContext) *pipeline.ValidationErrors {
	errs := &pipeline.ValidationErrors{}
	m := step.(pipeline.Matrix)
	// An empty dimensions map is a Success no-op (same rule as an empty
	// Parallel branches map), so it's exempt from the steps-required
	// check below — there's nothing to expand or run either way.
	if len(m.Dimensions) == 0 {
		return errs
	}
	if len(m.Steps) == 0 {
		errs.Add("steps", pipeline.ErrEmptyStepSequence.Error())
	}
	if _, err := pipeline.ExpandMatrix(m); err != nil {
		errs.Add("exclude", err.Error())
	}
	return errs
}

func (h MatrixHandler) Prepare(step pipeline.Step, ctx execctx.ExecutionContext) error { return nil }

func (h MatrixHandler) Execute(ctx context.Context, step pipeline.Step, ectx execctx.ExecutionContext) pipeline.StepResult {
	m := step.(pipeline.Matrix)

	if len(m.Dimensions) == 0 {
		return pipeline.StepResult{Status: pipeline.StepSuccess, StartedAt: time.Now(), EndedAt: time.Now()}
	}

	combos, err := pipeline.ExpandMatrix(m)
	if err != nil {
		// Validate rejects this case already; Execute only ever sees it
		// if a caller skips Validate, so surface it as a plain failure
		// rather than panicking.
		return pipeline.StepResult{Status: pipeline.StepFailure, StartedAt: time.Now(), EndedAt: time.Now(), Err: err}
	}

	branches := make(map[string][]pipeline.Step, len(combos))
	for _, combo := range combos {
		branches[matrixBranchName(combo)] = matrixBranchSteps(combo, m.Steps)
	}

	return h.toParallel().Execute(ctx, pipeline.Parallel{Branches: branches}, ectx)
}

func (h MatrixHandler) Cleanup(step pipeline.Step, ctx execctx.ExecutionContext, result pipeline.StepResult) error {
	return nil
}

func (h MatrixHandler) toParallel() ParallelHandler { return ParallelHandler{} }

// matrixBranchName renders a combination as "key=value,key=value" in
// sorted-key order, matching ExpandMatrix's own deterministic ordering.
func matrixBranchName(combo map[string]string) string {
	keys := make([]string, 0, len(combo))
	for k := range combo {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+combo[k])
	}
	return strings.Join(parts, ",")
}

// matrixBranchSteps wraps steps in a WithEnv carrying the combination's
// dimension values, so a branch's shell steps can reference
// $DIMENSION_NAME the way a build matrix normally exposes its axes.
func matrixBranchSteps(combo map[string]string, steps []pipeline.Step) []pipeline.Step {
	if len(combo) == 0 {
		return steps
	}
	vars := make(map[string]string, len(combo))
	for k, v := range combo {
		vars[strings.ToUpper(k)] = v
	}
	return []pipeline.Step{pipeline.WithEnv{Variables: vars, Steps: steps}}
}
