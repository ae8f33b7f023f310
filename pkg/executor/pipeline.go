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
	"time"

	"github.com/google/uuid"

	"github.com/org/forgeci/pkg/event"
	"github.com/org/forgeci/pkg/execctx"
	"github.com/org/forgeci/pkg/metrics"
	"github.com/org/forgeci/pkg/pipeline"
)

// Envelope wraps one stage's execution in a fault-tolerance policy
// (circuit breaker + retry + bulkhead, C10) — §4.9 step 3's "optionally
// wrap." A nil Envelope on PipelineExecutor means stages run directly
// through StageExecutor.RunStage with no wrapping, which is this
// module's default until fault tolerance is explicitly configured.
type Envelope interface {
	Run(ctx context.Context, fn func(context.Context) pipeline.StageResult) pipeline.StageResult
}

// PipelineExecutor is the Pipeline Executor (C9): it bounds how many
// pipelines may run at once with a counting semaphore, drives stages in
// order through the Stage Executor (optionally inside a fault-tolerance
// Envelope), applies the global timeout, and rolls up the overall
// status.
type PipelineExecutor struct {
	Stages    *StageExecutor
	Publisher event.Publisher
	Metrics   metrics.Sink
	Envelope  Envelope

	MaxConcurrentPipelines int
	GlobalTimeout          time.Duration
	DefaultFailFast        bool

	permits chan struct{}
}

// NewPipelineExecutor builds a Pipeline Executor. maxConcurrent <= 0 means
// unbounded concurrency (the semaphore channel is simply never used as a
// gate).
func NewPipelineExecutor(stages *StageExecutor, pub event.Publisher, sink metrics.Sink, maxConcurrent int, globalTimeout time.Duration, defaultFailFast bool) *PipelineExecutor {
	pe := &PipelineExecutor{
		Stages:                 stages,
		Publisher:              pub,
		Metrics:                sink,
		MaxConcurrentPipelines: maxConcurrent,
		GlobalTimeout:          globalTimeout,
		DefaultFailFast:        defaultFailFast,
	}
	if maxConcurrent > 0 {
		pe.permits = make(chan struct{}, maxConcurrent)
	}
	if pe.Metrics == nil {
		pe.Metrics = metrics.NoopSink{}
	}
	return pe
}

func (e *PipelineExecutor) publish(executionID string, kind event.Kind, payload any) {
	if e.Publisher == nil {
		return
	}
	e.Publisher.Publish(event.Event{Kind: kind, ExecutionID: executionID, Timestamp: time.Now(), Payload: payload})
}

// Run drives p through the full C9 algorithm and returns its
// PipelineResult.
func (e *PipelineExecutor) Run(ctx context.Context, p pipeline.Pipeline, ectx execctx.ExecutionContext) pipeline.PipelineResult {
	if e.permits != nil {
		select {
		case e.permits <- struct{}{}:
		case <-ctx.Done():
			return pipeline.PipelineResult{
				PipelineID: p.ID,
				Status:     pipeline.PipelineCancelled,
				StartedAt:  time.Now(),
				EndedAt:    time.Now(),
				Err:        ctx.Err(),
			}
		}
		defer func() { <-e.permits }()
	}

	executionID := uuid.NewString()
	start := time.Now()

	e.Metrics.ActivePipelines(1)
	defer e.Metrics.ActivePipelines(-1)
	e.Metrics.PipelineStarted(p.ID)
	e.publish(executionID, event.KindPipelineStarted, p)

	runCtx := ctx
	var cancel context.CancelFunc
	if e.GlobalTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.GlobalTimeout)
		defer cancel()
	}

	derived := ectx.Copy(execctx.WithEnvironment(execctx.MergeEnvironment(ectx.Environment, p.GlobalEnvironment)))

	var stageResults []pipeline.StageResult
	timedOut := false
loop:
	for _, stage := range p.Stages {
		select {
		case <-runCtx.Done():
			timedOut = runCtx.Err() == context.DeadlineExceeded
			break loop
		default:
		}

		result := e.runStage(runCtx, executionID, stage, p.Agent, derived)
		stageResults = append(stageResults, result)

		switch result.Status {
		case pipeline.StageFailure:
			if e.DefaultFailFast {
				break loop
			}
		case pipeline.StageTimeout, pipeline.StageCancelled:
			break loop
		}
	}

	status := rollUpPipelineStatus(stageResults)
	if timedOut {
		status = pipeline.PipelineTimeout
	}

	pipelineResult := pipeline.PipelineResult{
		PipelineID: p.ID,
		Status:     status,
		StartedAt:  start,
		EndedAt:    time.Now(),
		Stages:     stageResults,
	}
	e.Metrics.PipelineCompleted(p.ID, string(status), pipelineResult.Duration())
	e.publish(executionID, event.KindPipelineCompleted, pipelineResult)
	return pipelineResult
}

// runStage drives a single stage, optionally through the fault-tolerance
// Envelope (§4.9 step 3).
func (e *PipelineExecutor) runStage(ctx context.Context, executionID string, stage pipeline.Stage, pipelineAgent pipeline.Agent, ectx execctx.ExecutionContext) pipeline.StageResult {
	run := func(c context.Context) pipeline.StageResult {
		return e.Stages.RunStage(c, executionID, stage, pipelineAgent, ectx)
	}
	if e.Envelope == nil {
		return run(ctx)
	}
	return e.Envelope.Run(ctx, run)
}

// rollUpPipelineStatus computes §4.9's status table over a pipeline's
// stage results.
func rollUpPipelineStatus(results []pipeline.StageResult) pipeline.PipelineStatus {
	if len(results) == 0 {
		return pipeline.PipelineSuccess
	}

	var success, failure, cancelled, timeout, partial int
	for _, r := range results {
		switch r.Status {
		case pipeline.StageSuccess:
			success++
		case pipeline.StageSkipped:
			// neither success nor failure; an all-skipped pipeline falls
			// through to the default Success case below.
		case pipeline.StageFailure:
			failure++
		case pipeline.StageCancelled:
			cancelled++
		case pipeline.StageTimeout:
			timeout++
		case pipeline.StagePartialSuccess, pipeline.StagePartialFailure:
			partial++
		}
	}

	switch {
	case cancelled > 0:
		return pipeline.PipelineCancelled
	case timeout > 0:
		return pipeline.PipelineTimeout
	case failure > 0 && success > 0:
		return pipeline.PipelinePartialSuccess
	case failure > 0 && success == 0 && partial == 0:
		return pipeline.PipelineFailure
	case partial > 0:
		return pipeline.PipelinePartialSuccess
	default:
		return pipeline.PipelineSuccess
	}
}
