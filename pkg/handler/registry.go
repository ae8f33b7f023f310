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

// Package handler implements the Step Handler Registry (C5) and the
// built-in Step Handler contract (C6) for every step variant pkg/pipeline
// declares.
package handler

import (
	"context"
	"sync"

	"github.com/org/forgeci/pkg/execctx"
	"github.com/org/forgeci/pkg/pipeline"
)

// Handler is the four-phase lifecycle contract (C6) the executor (C7)
// drives for a given step variant, in order: Validate, Prepare, Execute,
// Cleanup.
type Handler interface {
	// Validate is pure; any returned error aborts the step with
	// ValidationFailed status before Prepare/Execute ever run.
	Validate(step pipeline.Step, ctx execctx.ExecutionContext) *pipeline.ValidationErrors

	// Prepare may create scratch directories or verify agent
	// availability. Idempotent: safe to call more than once.
	Prepare(step pipeline.Step, ctx execctx.ExecutionContext) error

	// Execute does the real work and may block.
	Execute(ctx context.Context, step pipeline.Step, ectx execctx.ExecutionContext) pipeline.StepResult

	// Cleanup runs on every exit path (success, failure, cancellation,
	// timeout) except when cancellation is propagated upward, in which
	// case the caller guarantees cleanup runs there instead.
	Cleanup(step pipeline.Step, ctx execctx.ExecutionContext, result pipeline.StepResult) error
}

// Registry is a process-wide, thread-safe mapping from step variant to
// handler, backed by sync.Map per SPEC_FULL.md's §4.1 implementation
// note. Register is last-write-wins.
type Registry struct {
	handlers sync.Map // pipeline.StepVariant -> Handler
}

// NewRegistry returns an empty registry. Use DefaultRegistry for one
// pre-populated with the built-in handlers.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(variant pipeline.StepVariant, h Handler) {
	r.handlers.Store(variant, h)
}

func (r *Registry) Get(variant pipeline.StepVariant) (Handler, bool) {
	v, ok := r.handlers.Load(variant)
	if !ok {
		return nil, false
	}
	return v.(Handler), true
}

func (r *Registry) Has(variant pipeline.StepVariant) bool {
	_, ok := r.handlers.Load(variant)
	return ok
}

func (r *Registry) Unregister(variant pipeline.StepVariant) {
	r.handlers.Delete(variant)
}

func (r *Registry) Clear() {
	r.handlers.Range(func(key, _ any) bool {
		r.handlers.Delete(key)
		return true
	})
}

// NewDefaultRegistry returns a Registry with every built-in handler
// installed, the way a process-init registration pass would (spec.md
// §4.1: "a default registration pass installs the built-in handlers at
// process init"). Composite handlers (Dir, WithEnv, Retry, Timeout,
// Parallel) recurse through ctx.StepRunner, and Stash/Unstash delegate to
// ctx.StashStore — both supplied per-call via ExecutionContext, so the
// registry itself needs no executor or stash-store handle.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(pipeline.VariantShell, ShellHandler{})
	r.Register(pipeline.VariantEcho, EchoHandler{})
	r.Register(pipeline.VariantDir, DirHandler{})
	r.Register(pipeline.VariantWithEnv, WithEnvHandler{})
	r.Register(pipeline.VariantParallel, ParallelHandler{})
	r.Register(pipeline.VariantMatrix, MatrixHandler{})
	r.Register(pipeline.VariantRetry, RetryHandler{})
	r.Register(pipeline.VariantTimeout, TimeoutHandler{})
	r.Register(pipeline.VariantArchiveArtifacts, ArchiveArtifactsHandler{})
	r.Register(pipeline.VariantPublishTestResults, PublishTestResultsHandler{})
	r.Register(pipeline.VariantStash, StashHandler{})
	r.Register(pipeline.VariantUnstash, UnstashHandler{})
	return r
}
