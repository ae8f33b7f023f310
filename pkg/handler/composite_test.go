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
	"path/filepath"
	"testing"
	"time"

	"github.com/org/forgeci/pkg/execctx"
	"github.com/org/forgeci/pkg/launcher"
	"github.com/org/forgeci/pkg/pipeline"
)

func newExecRegistry(t *testing.T) (*Registry, execctx.ExecutionContext) {
	t.Helper()
	l := launcher.NewLocal()
	if !l.IsAvailable() {
		t.Skip("no shell found on PATH in this environment")
	}

	r := NewDefaultRegistry()
	ctx := newTestContext(r)
	ctx.WorkDir = t.TempDir()
	ctx = ctx.Copy(execctx.WithLauncher(l))
	return r, ctx
}

func TestDirHandlerResolvesPathAndRunsNested(t *testing.T) {
	r, ctx := newExecRegistry(t)
	h := mustHandler(r, pipeline.VariantDir)

	step := pipeline.Dir{
		Path: "sub",
		Steps: []pipeline.Step{
			pipeline.Shell{Script: "pwd"},
		},
	}

	res := h.Execute(context.Background(), step, ctx)
	if res.Status != pipeline.StepSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	want := filepath.Join(ctx.WorkDir, "sub")
	if got := res.Children[0].Output; got != want+"\n" {
		t.Fatalf("expected pwd %q, got %q", want, got)
	}
}

func TestWithEnvHandlerMergesAndRunsNested(t *testing.T) {
	r, ctx := newExecRegistry(t)
	h := mustHandler(r, pipeline.VariantWithEnv)

	step := pipeline.WithEnv{
		Variables: map[string]string{"FOO": "bar"},
		Steps:     []pipeline.Step{pipeline.Shell{Script: "echo $FOO"}},
	}

	res := h.Execute(context.Background(), step, ctx)
	if res.Status != pipeline.StepSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if got := res.Children[0].Output; got != "bar\n" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestRetryHandlerRetriesUntilSuccess(t *testing.T) {
	r, ctx := newExecRegistry(t)
	h := mustHandler(r, pipeline.VariantRetry)

	marker := filepath.Join(ctx.WorkDir, "attempts")
	step := pipeline.Retry{
		Times:     3,
		BaseDelay: time.Millisecond,
		Steps: []pipeline.Step{
			pipeline.Shell{Script: "test -f " + marker + " || { touch " + marker + "; exit 1; }"},
		},
	}

	res := h.Execute(context.Background(), step, ctx)
	if res.Status != pipeline.StepSuccess {
		t.Fatalf("expected eventual success, got %+v", res)
	}
	if res.Metadata["retriesUsed"] != 1 {
		t.Fatalf("expected exactly one retry, got %v", res.Metadata["retriesUsed"])
	}
}

func TestRetryHandlerExhaustsAttempts(t *testing.T) {
	r, ctx := newExecRegistry(t)
	h := mustHandler(r, pipeline.VariantRetry)

	step := pipeline.Retry{
		Times:     2,
		BaseDelay: time.Millisecond,
		Steps:     []pipeline.Step{pipeline.Shell{Script: "exit 1"}},
	}

	res := h.Execute(context.Background(), step, ctx)
	if res.Status != pipeline.StepFailure {
		t.Fatalf("expected failure after exhausting attempts, got %+v", res)
	}
	if res.Metadata["attemptCount"] != 2 {
		t.Fatalf("expected 2 attempts, got %v", res.Metadata["attemptCount"])
	}
}

func TestTimeoutHandlerExpires(t *testing.T) {
	r, ctx := newExecRegistry(t)
	h := mustHandler(r, pipeline.VariantTimeout)

	step := pipeline.Timeout{
		Duration: 20 * time.Millisecond,
		Steps:    []pipeline.Step{pipeline.Shell{Script: "sleep 5"}},
	}

	res := h.Execute(context.Background(), step, ctx)
	if res.Status != pipeline.StepTimeout {
		t.Fatalf("expected timeout, got %+v", res)
	}
}

func TestParallelHandlerAllBranchesSucceed(t *testing.T) {
	r, ctx := newExecRegistry(t)
	h := mustHandler(r, pipeline.VariantParallel)

	step := pipeline.Parallel{
		Branches: map[string][]pipeline.Step{
			"a": {pipeline.Shell{Script: "exit 0"}},
			"b": {pipeline.Shell{Script: "exit 0"}},
		},
	}

	res := h.Execute(context.Background(), step, ctx)
	if res.Status != pipeline.StepSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if len(res.Children) != 2 {
		t.Fatalf("expected 2 branch results, got %d", len(res.Children))
	}
}

func TestParallelHandlerEmptyBranchesIsSuccessNoOp(t *testing.T) {
	r, ctx := newExecRegistry(t)
	h := mustHandler(r, pipeline.VariantParallel)

	step := pipeline.Parallel{}
	if errs := h.Validate(step, ctx); errs.HasErrors() {
		t.Fatalf("expected no validation errors for an empty branches map, got %v", errs)
	}

	res := h.Execute(context.Background(), step, ctx)
	if res.Status != pipeline.StepSuccess {
		t.Fatalf("expected success no-op, got %+v", res)
	}
}

func TestParallelHandlerFailFastCancelsSiblings(t *testing.T) {
	r, ctx := newExecRegistry(t)
	ctx.Metadata["stageFailFast"] = true
	h := mustHandler(r, pipeline.VariantParallel)

	step := pipeline.Parallel{
		Branches: map[string][]pipeline.Step{
			"fails": {pipeline.Shell{Script: "exit 1"}},
			"slow":  {pipeline.Shell{Script: "sleep 2"}},
		},
	}

	res := h.Execute(context.Background(), step, ctx)
	if res.Status != pipeline.StepFailure {
		t.Fatalf("expected failure, got %+v", res)
	}
	failed, _ := res.Metadata["failedBranches"].([]string)
	if len(failed) == 0 {
		t.Fatal("expected at least one failed branch recorded")
	}
}
