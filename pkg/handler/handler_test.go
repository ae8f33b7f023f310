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

	"github.com/go-logr/logr"

	"github.com/org/forgeci/pkg/execctx"
	"github.com/org/forgeci/pkg/pipeline"
)

// fakeRunner drives a Registry directly, the way pkg/executor's real
// Executor does, so composite handlers (Dir, WithEnv, Retry, Timeout,
// Parallel) can be exercised without importing pkg/executor and risking
// the cycle execctx.StepRunner exists to avoid.
type fakeRunner struct {
	registry *Registry
}

func (r fakeRunner) RunStep(ctx context.Context, step pipeline.Step, ectx execctx.ExecutionContext) pipeline.StepResult {
	h, ok := r.registry.Get(step.Variant())
	if !ok {
		return pipeline.StepResult{Status: pipeline.StepFailure}
	}
	if errs := h.Validate(step, ectx); errs != nil && errs.HasErrors() {
		return pipeline.StepResult{Status: pipeline.StepValidationFailed, Err: errs}
	}
	if err := h.Prepare(step, ectx); err != nil {
		return pipeline.StepResult{Status: pipeline.StepFailure, Err: err}
	}
	return h.Execute(ctx, step, ectx)
}

func mustHandler(registry *Registry, variant pipeline.StepVariant) Handler {
	h, ok := registry.Get(variant)
	if !ok {
		panic("no handler registered for " + string(variant))
	}
	return h
}

func newTestContext(registry *Registry) execctx.ExecutionContext {
	ctx := execctx.ExecutionContext{
		WorkDir:     "/tmp",
		Environment: map[string]string{},
		Metadata:    map[string]any{},
		Logger:      logr.Discard(),
	}
	return ctx.Copy(func(c *execctx.ExecutionContext) { c.StepRunner = fakeRunner{registry: registry} })
}
