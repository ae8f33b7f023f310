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
	"testing"

	"github.com/go-logr/logr"

	"github.com/org/forgeci/pkg/execctx"
	"github.com/org/forgeci/pkg/launcher"
	"github.com/org/forgeci/pkg/pipeline"
)

func TestShellHandlerSuccess(t *testing.T) {
	h := ShellHandler{}
	l := launcher.NewLocal()
	if !l.IsAvailable() {
		t.Skip("no shell found on PATH in this environment")
	}

	ctx := execctx.ExecutionContext{Environment: map[string]string{}}
	ctx.Launcher = l

	res := h.Execute(context.Background(), pipeline.Shell{Script: "echo hi"}, ctx)
	if res.Status != pipeline.StepSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Output != "hi\n" {
		t.Fatalf("unexpected output: %q", res.Output)
	}
}

func TestShellHandlerFailureExitCode(t *testing.T) {
	h := ShellHandler{}
	l := launcher.NewLocal()
	if !l.IsAvailable() {
		t.Skip("no shell found on PATH in this environment")
	}

	ctx := execctx.ExecutionContext{Environment: map[string]string{}}
	ctx.Launcher = l

	res := h.Execute(context.Background(), pipeline.Shell{Script: "exit 7"}, ctx)
	if res.Status != pipeline.StepFailure {
		t.Fatalf("expected failure, got %+v", res)
	}
	if res.Metadata["exitCode"] != 7 {
		t.Fatalf("expected exitCode 7, got %v", res.Metadata["exitCode"])
	}
}

func TestShellHandlerMasksSecrets(t *testing.T) {
	h := ShellHandler{}
	l := launcher.NewLocal()
	if !l.IsAvailable() {
		t.Skip("no shell found on PATH in this environment")
	}

	ctx := execctx.ExecutionContext{Environment: map[string]string{"API_TOKEN": "supersecretvalue123"}}
	ctx.Launcher = l

	res := h.Execute(context.Background(), pipeline.Shell{Script: "echo supersecretvalue123"}, ctx)
	if res.Status != pipeline.StepSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Output == "supersecretvalue123\n" {
		t.Fatal("expected secret value to be masked in output")
	}
}

func TestShellHandlerValidateRequiresScriptAndLauncher(t *testing.T) {
	h := ShellHandler{}
	errs := h.Validate(pipeline.Shell{}, execctx.ExecutionContext{})
	if !errs.HasErrors() {
		t.Fatal("expected validation errors for empty script and nil launcher")
	}
}

func TestEchoHandlerAlwaysSucceeds(t *testing.T) {
	h := EchoHandler{}
	res := h.Execute(context.Background(), pipeline.Echo{Message: "building"}, execctx.ExecutionContext{Logger: logr.Discard()})
	if res.Status != pipeline.StepSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Output != "building" {
		t.Fatalf("unexpected output: %q", res.Output)
	}
}
