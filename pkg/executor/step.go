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

package executor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/org/forgeci/pkg/execctx"
	"github.com/org/forgeci/pkg/handler"
	"github.com/org/forgeci/pkg/pipeline"
)

// errUnknownVariant reports a step variant with no registered handler.
// Per spec.md §4.4 step 2 the engine should fall back to a built-in
// legacy implementation in that case; NewDefaultRegistry always
// registers every variant this module declares, so that fallback path
// is unreachable in practice (see DESIGN.md's Open Question decisions) —
// this error is the defensive floor under a caller-supplied Registry
// that was built incomplete.
func errUnknownVariant(variant pipeline.StepVariant) error {
	return fmt.Errorf("%w: %q", pipeline.ErrHandlerNotFound, variant)
}

// threadCounter hands out the "thread id" step results are enriched with.
// Go doesn't expose a goroutine id the way a JVM/OS thread id is
// surfaced, so this is a monotonic per-process counter identifying which
// dispatch slot a step ran in — good enough for correlating a result
// with its log lines, which is all §4.4 step 7 asks for.
var threadCounter uint64

// Executor is the Step Executor (C7): it resolves a step's workload
// class, looks the variant up in the handler registry, and drives the
// four-phase lifecycle under an effective timeout. It structurally
// satisfies execctx.StepRunner, so composite handlers (Dir, WithEnv,
// Retry, Timeout, Parallel) can recurse back into it via
// ExecutionContext.StepRunner without this package needing to be
// imported by execctx.
type Executor struct {
	Registry    *handler.Registry
	Dispatchers *Dispatchers

	// DefaultStepTimeout is used when a step declares no timeout of its
	// own (step.timeout ?? config.defaultStepTimeout, §4.4 step 5).
	DefaultStepTimeout time.Duration
}

// NewExecutor builds a Step Executor over registry and dispatchers, using
// defaultStepTimeout as the fallback deadline for steps with no timeout
// of their own.
func NewExecutor(registry *handler.Registry, dispatchers *Dispatchers, defaultStepTimeout time.Duration) *Executor {
	return &Executor{Registry: registry, Dispatchers: dispatchers, DefaultStepTimeout: defaultStepTimeout}
}

// stepTimeout reports a step's own timeout if it declares one positive,
// per variants that carry a Timeout/Duration field; the zero value means
// "no opinion," so the executor's default applies.
func stepTimeout(step pipeline.Step) time.Duration {
	switch s := step.(type) {
	case pipeline.Shell:
		return s.Timeout
	case *pipeline.Shell:
		return s.Timeout
	case pipeline.Timeout:
		return s.Duration
	case *pipeline.Timeout:
		return s.Duration
	default:
		return 0
	}
}

// RunStep drives one step through the full C7 algorithm and returns its
// enriched StepResult. It never panics for handler-reported failures; the
// one escape hatch is ctx cancellation, propagated upward untransformed
// per §4.4 step 8. parent is the enclosing Timeout/stage/pipeline
// deadline — composite handlers and the Stage Executor pass the ctx they
// themselves were given (or a deadline/branch context narrowed from it)
// so a nested leaf step's own effective deadline is derived from that
// scope rather than from a fresh background context.
func (e *Executor) RunStep(parent context.Context, step pipeline.Step, ectx execctx.ExecutionContext) pipeline.StepResult {
	start := time.Now()
	class := pipeline.StepWorkloadClass(step)

	h, ok := e.Registry.Get(step.Variant())
	if !ok {
		return e.enrich(pipeline.StepResult{
			Status:    pipeline.StepFailure,
			StartedAt: start,
			EndedAt:   time.Now(),
			Err:       errUnknownVariant(step.Variant()),
		}, class, ectx)
	}

	var result pipeline.StepResult
	validationErrs := h.Validate(step, ectx)
	if validationErrs != nil && validationErrs.HasErrors() {
		result = pipeline.StepResult{
			Status:    pipeline.StepValidationFailed,
			StartedAt: start,
			EndedAt:   time.Now(),
			Err:       validationErrs,
		}
		return e.enrich(result, class, ectx)
	}

	if err := h.Prepare(step, ectx); err != nil {
		result = pipeline.StepResult{
			Status:    pipeline.StepFailure,
			StartedAt: start,
			EndedAt:   time.Now(),
			Err:       err,
		}
		_ = h.Cleanup(step, ectx, result)
		return e.enrich(result, class, ectx)
	}

	execCtx, cancel := e.deadline(parent, step)
	defer cancel()

	e.Dispatchers.Run(execCtx, step, func() {
		result = h.Execute(execCtx, step, ectx)
	})

	switch {
	case result.Status == "" && execCtx.Err() != nil:
		result = e.translateContextErr(execCtx, start)
	case execCtx.Err() == context.DeadlineExceeded:
		// The effective timeout established in step 5 fired during
		// execute; this step's own deadline, not an upstream
		// cancellation, so it's always surfaced as Timeout regardless
		// of what the handler itself reported (§4.4 step 5).
		result.Status = pipeline.StepTimeout
		if result.Err == nil {
			result.Err = execCtx.Err()
		}
	}
	if result.StartedAt.IsZero() {
		result.StartedAt = start
	}
	if result.EndedAt.IsZero() {
		result.EndedAt = time.Now()
	}

	if cleanupErr := h.Cleanup(step, ectx, result); cleanupErr != nil && result.Metadata == nil {
		result.Metadata = map[string]any{"cleanupError": cleanupErr.Error()}
	} else if cleanupErr != nil {
		result.Metadata["cleanupError"] = cleanupErr.Error()
	}

	return e.enrich(result, class, ectx)
}

// deadline derives the execCtx an execute phase runs under: step's own
// timeout wins, falling back to e.DefaultStepTimeout, falling back to no
// deadline at all (§4.4 step 5).
func (e *Executor) deadline(parent context.Context, step pipeline.Step) (context.Context, context.CancelFunc) {
	timeout := stepTimeout(step)
	if timeout <= 0 {
		timeout = e.DefaultStepTimeout
	}
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

// translateContextErr turns a dispatch context's cancellation/deadline
// into the right terminal StepResult when the handler itself didn't
// already report one (e.g. it was still running when the deadline hit).
func (e *Executor) translateContextErr(execCtx context.Context, start time.Time) pipeline.StepResult {
	status := pipeline.StepCancelled
	if execCtx.Err() == context.DeadlineExceeded {
		status = pipeline.StepTimeout
	}
	return pipeline.StepResult{
		Status:    status,
		StartedAt: start,
		EndedAt:   time.Now(),
		Err:       execCtx.Err(),
	}
}

// enrich stamps the dispatcher name, a thread id, launcher kind, and
// elapsed duration into the result's metadata bag (§4.4 step 7).
func (e *Executor) enrich(result pipeline.StepResult, class pipeline.WorkloadClass, ectx execctx.ExecutionContext) pipeline.StepResult {
	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}
	result.Metadata["dispatcher"] = dispatcherName(class)
	result.Metadata["threadID"] = atomic.AddUint64(&threadCounter, 1)
	if ectx.Launcher != nil {
		result.Metadata["launcherKind"] = ectx.Launcher.Kind()
	}
	result.Metadata["elapsed"] = result.Duration()
	return result
}
