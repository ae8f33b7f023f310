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

// Package execctx holds the immutable ExecutionContext every step/stage
// evaluation carries: the effective workspace, environment, logger, and
// handles to the collaborators a handler may need (launcher, stash store,
// metrics sink, and — for composite steps — the step executor itself).
package execctx

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/org/forgeci/pkg/launcher"
	"github.com/org/forgeci/pkg/metrics"
	"github.com/org/forgeci/pkg/pipeline"
	"github.com/org/forgeci/pkg/stash"
)

// StepRunner is the recursion handle composite handlers (Dir, WithEnv,
// Retry, Timeout, Parallel) use to run nested steps. It is declared here
// rather than imported from pkg/executor so this package never depends on
// executor — executor depends on execctx for ExecutionContext, and on
// pipeline for Step/StepResult; closing that loop the other way would
// cycle. pkg/executor's Executor type satisfies this interface
// structurally, no explicit assertion required.
//
// ctx carries the caller's deadline/cancellation so a nested leaf step's
// own effective deadline is derived from the enclosing Timeout/stage/
// pipeline scope rather than from a fresh background context — a composite
// handler must pass the ctx it was given (or a deadline/branch context
// narrowed from it), never context.Background().
type StepRunner interface {
	RunStep(ctx context.Context, step pipeline.Step, ectx ExecutionContext) pipeline.StepResult
}

// JobInfo carries the ambient build/job identity a launcher or handler
// may want to surface in logs or metrics labels.
type JobInfo struct {
	Name        string
	Number      int
	TriggeredBy string
}

// ExecutionContext is the immutable view of "where and how" a step or
// stage executes. Copy derives a new value sharing every unchanged field
// by identity (invariant: no deep copy, no mutation of the receiver).
type ExecutionContext struct {
	WorkDir     string
	Environment map[string]string
	Logger      logr.Logger
	ExecutionID string
	BuildID     string
	Workspace   string
	JobInfo     JobInfo
	ArtifactDir string
	Launcher    launcher.CommandLauncher
	Metrics     metrics.Sink
	StepRunner  StepRunner
	StashStore  stash.Store
	StartedAt   time.Time

	// Metadata is the free-form bag WhenCondition.Evaluate reads
	// (changedFiles, etc.) and composite handlers (Parallel) use to pass
	// build-time policy like the enclosing stage's fail-fast flag down
	// to nested execution without widening the struct's fixed fields for
	// every such policy bit.
	Metadata map[string]any
}

// EvalEnv builds the side-effect-free view WhenCondition.Evaluate takes,
// from this context's current Environment and Metadata.
func (c ExecutionContext) EvalEnv() pipeline.EvalEnv {
	return pipeline.EvalEnv{Environment: c.Environment, Metadata: c.Metadata}
}

// CopyOption mutates a draft copy of an ExecutionContext. Only the fields
// a caller actually supplies an option for change; everything else is
// shared by identity with the receiver.
type CopyOption func(*ExecutionContext)

// WithWorkDir overrides WorkDir on the derived context.
func WithWorkDir(dir string) CopyOption {
	return func(c *ExecutionContext) { c.WorkDir = dir }
}

// WithEnvironment replaces Environment wholesale on the derived context.
// Callers that want merge-not-replace semantics (§4.6) should merge first
// and pass the result here — WithEnv, for instance, merges before calling.
func WithEnvironment(env map[string]string) CopyOption {
	return func(c *ExecutionContext) { c.Environment = env }
}

// WithLauncher overrides Launcher on the derived context (agent
// resolution, §4.7).
func WithLauncher(l launcher.CommandLauncher) CopyOption {
	return func(c *ExecutionContext) { c.Launcher = l }
}

// WithArtifactDir overrides ArtifactDir on the derived context.
func WithArtifactDir(dir string) CopyOption {
	return func(c *ExecutionContext) { c.ArtifactDir = dir }
}

// WithMetadata replaces Metadata wholesale on the derived context.
func WithMetadata(metadata map[string]any) CopyOption {
	return func(c *ExecutionContext) { c.Metadata = metadata }
}

// Copy returns a new ExecutionContext with opts applied over a value copy
// of the receiver. Because Go struct assignment is already a shallow
// copy, unmodified map/interface fields are shared by identity with the
// original exactly as invariant 10 requires — no explicit aliasing code
// is needed beyond not deep-copying.
func (c ExecutionContext) Copy(opts ...CopyOption) ExecutionContext {
	derived := c
	for _, opt := range opts {
		opt(&derived)
	}
	return derived
}

// MergeEnvironment applies the low-to-high precedence chain from §4.6:
// the receiver's current environment, then each of overrides in order,
// right-biased key replace. It does not mutate c.Environment.
func MergeEnvironment(base map[string]string, overrides ...map[string]string) map[string]string {
	merged := make(map[string]string, len(base))
	for k, v := range base {
		merged[k] = v
	}
	for _, override := range overrides {
		for k, v := range override {
			merged[k] = v
		}
	}
	return merged
}
