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
	"time"

	"github.com/org/forgeci/pkg/execctx"
	"github.com/org/forgeci/pkg/launcher"
	"github.com/org/forgeci/pkg/pipeline"
)

// ShellHandler runs a Shell step through ctx.Launcher, capturing output
// into a bounded, secret-masked buffer (spec.md §4.2's Shell semantics).
type ShellHandler struct {
	// MaxOutputBytes overrides the buffer capacity; zero uses
	// defaultMaxOutputBytes.
	MaxOutputBytes int
}

func (h ShellHandler) Validate(step pipeline.Step, ctx execctx.ExecutionContext) *pipeline.ValidationErrors {
	errs := &pipeline.ValidationErrors{}
	s, ok := step.(pipeline.Shell)
	if !ok {
		errs.Add("step", "ShellHandler received a non-Shell step")
		return errs
	}
	if s.Script == "" {
		errs.Add("script", "shell script must not be empty")
	}
	if ctx.Launcher == nil {
		errs.Add("launcher", "execution context has no launcher configured")
	}
	return errs
}

func (h ShellHandler) Prepare(step pipeline.Step, ctx execctx.ExecutionContext) error {
	return nil
}

func (h ShellHandler) Execute(ctx context.Context, step pipeline.Step, ectx execctx.ExecutionContext) pipeline.StepResult {
	s := step.(pipeline.Shell)
	started := time.Now()

	buf := newOutputBuffer(h.MaxOutputBytes)
	secretValues := secretValuesFromEnv(ectx.Environment)

	res, err := ectx.Launcher.Run(ctx, launcher.RunRequest{
		Script:  s.Script,
		WorkDir: ectx.WorkDir,
		Env:     ectx.Environment,
		Stdout:  buf,
		Stderr:  buf,
	})

	output := maskSecrets(buf.String(), secretValues)
	ended := time.Now()

	if err != nil {
		return pipeline.StepResult{
			Status:    pipeline.StepFailure,
			StartedAt: started,
			EndedAt:   ended,
			Output:    output,
			Err:       err,
		}
	}

	status := pipeline.StepSuccess
	var resultErr error
	if res.Err != nil {
		if ctx.Err() != nil {
			status = pipeline.StepCancelled
		} else {
			status = pipeline.StepFailure
		}
		resultErr = res.Err
	}

	return pipeline.StepResult{
		Status:    status,
		StartedAt: started,
		EndedAt:   ended,
		Output:    output,
		Err:       resultErr,
		Metadata:  map[string]any{"exitCode": res.ExitCode},
	}
}

func (h ShellHandler) Cleanup(step pipeline.Step, ctx execctx.ExecutionContext, result pipeline.StepResult) error {
	return nil
}

// EchoHandler writes message at INFO and always succeeds (spec.md §4.2).
type EchoHandler struct{}

func (h EchoHandler) Validate(step pipeline.Step, ctx execctx.ExecutionContext) *pipeline.ValidationErrors {
	return &pipeline.ValidationErrors{}
}

func (h EchoHandler) Prepare(step pipeline.Step, ctx execctx.ExecutionContext) error { return nil }

func (h EchoHandler) Execute(ctx context.Context, step pipeline.Step, ectx execctx.ExecutionContext) pipeline.StepResult {
	e := step.(pipeline.Echo)
	started := time.Now()
	ectx.Logger.Info(e.Message)
	return pipeline.StepResult{
		Status:    pipeline.StepSuccess,
		StartedAt: started,
		EndedAt:   time.Now(),
		Output:    e.Message,
	}
}

func (h EchoHandler) Cleanup(step pipeline.Step, ctx execctx.ExecutionContext, result pipeline.StepResult) error {
	return nil
}
