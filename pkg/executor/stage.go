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

	"github.com/org/forgeci/pkg/event"
	"github.com/org/forgeci/pkg/execctx"
	"github.com/org/forgeci/pkg/launcher"
	"github.com/org/forgeci/pkg/pipeline"
)

// StageExecutor is the Stage Executor (C8): evaluates a stage's When
// condition, derives its environment/agent, drives its steps through the
// Step Executor in order, runs post-actions, and publishes the stage's
// lifecycle events.
type StageExecutor struct {
	Steps     *Executor
	Publisher event.Publisher

	// Launchers resolves a Label agent's name to a concrete launcher.
	// SPEC_FULL.md §6 ships only the Local launcher, so in practice this
	// stays nil or single-entry; the engine's job per §4.7 is just
	// picking the right contract, not shipping every possible launcher.
	Launchers map[string]launcher.CommandLauncher

	// priorOutcomes tracks each stage name's last recorded success/failure,
	// for the "Changed" post-action scope (§4.5 step 6: "differs from
	// prior recorded outcome of this stage name").
	priorOutcomes map[string]bool
}

// NewStageExecutor builds a Stage Executor over steps, publishing
// lifecycle events to pub.
func NewStageExecutor(steps *Executor, pub event.Publisher) *StageExecutor {
	return &StageExecutor{Steps: steps, Publisher: pub, priorOutcomes: map[string]bool{}}
}

// ResolveAgent implements §4.7: the stage's own agent wins; otherwise the
// pipeline's; otherwise Any{}.
func ResolveAgent(stageAgent, pipelineAgent pipeline.Agent) pipeline.Agent {
	if stageAgent != nil {
		return stageAgent
	}
	if pipelineAgent != nil {
		return pipelineAgent
	}
	return pipeline.Any{}
}

func (e *StageExecutor) publish(executionID string, kind event.Kind, payload any) {
	if e.Publisher == nil {
		return
	}
	e.Publisher.Publish(event.Event{Kind: kind, ExecutionID: executionID, Timestamp: time.Now(), Payload: payload})
}

// RunStage drives one stage through the full C8 algorithm and returns its
// StageResult. pipelineAgent is the pipeline-level default agent, used by
// §4.7's resolution fallback when the stage declares none.
func (e *StageExecutor) RunStage(ctx context.Context, executionID string, stage pipeline.Stage, pipelineAgent pipeline.Agent, ectx execctx.ExecutionContext) pipeline.StageResult {
	start := time.Now()

	if stage.When != nil && !stage.When.Evaluate(ectx.EvalEnv()) {
		result := pipeline.StageResult{
			Name:      stage.Name,
			Status:    pipeline.StageSkipped,
			StartedAt: start,
			EndedAt:   time.Now(),
			Metadata:  map[string]any{"skipped": true},
		}
		e.publish(executionID, event.KindStageCompleted, result)
		return result
	}

	derived := e.deriveContext(stage, pipelineAgent, ectx)
	e.publish(executionID, event.KindStageStarted, stage.Name)

	var stepResults []pipeline.StepResult
	for _, step := range stage.Steps {
		result := e.Steps.RunStep(ctx, step, derived)
		stepResults = append(stepResults, result)
		if (result.Status == pipeline.StepFailure || result.Status == pipeline.StepTimeout) && stage.FailFast {
			break
		}
	}

	status := rollUpStageStatus(stepResults)
	succeeded := status == pipeline.StageSuccess || status == pipeline.StagePartialSuccess
	changed := e.priorOutcomes[stage.Name] != succeeded
	e.priorOutcomes[stage.Name] = succeeded

	postResults := e.runPostActions(ctx, executionID, stage, derived, succeeded, changed)

	result := pipeline.StageResult{
		Name:        stage.Name,
		Status:      status,
		StartedAt:   start,
		EndedAt:     time.Now(),
		Steps:       stepResults,
		PostActions: postResults,
		Metadata:    map[string]any{},
	}
	e.publish(executionID, event.KindStageCompleted, result)
	return result
}

// deriveContext applies §4.6's stage-level environment merge and §4.7's
// agent resolution.
func (e *StageExecutor) deriveContext(stage pipeline.Stage, pipelineAgent pipeline.Agent, ectx execctx.ExecutionContext) execctx.ExecutionContext {
	merged := execctx.MergeEnvironment(ectx.Environment, stage.Environment)
	derived := ectx.Copy(execctx.WithEnvironment(merged))

	agent := ResolveAgent(stage.Agent, pipelineAgent)
	if label, ok := agent.(pipeline.Label); ok && e.Launchers != nil {
		if l, found := e.Launchers[label.Name]; found {
			derived = derived.Copy(execctx.WithLauncher(l))
		}
	}
	if derived.Metadata == nil {
		derived.Metadata = map[string]any{}
	} else {
		md := make(map[string]any, len(derived.Metadata)+1)
		for k, v := range derived.Metadata {
			md[k] = v
		}
		derived.Metadata = md
	}
	derived.Metadata["agent"] = agent
	if stage.FailFast {
		derived.Metadata["stageFailFast"] = true
	}
	return derived
}

// runPostActions runs every post-action whose scope matches the stage's
// outcome, in declaration order, through the Step Executor with the
// stage's derived context. Post-action failures are recorded per-result
// but never change the stage's own Status (pinned REDESIGN FLAG).
func (e *StageExecutor) runPostActions(ctx context.Context, executionID string, stage pipeline.Stage, derived execctx.ExecutionContext, succeeded, changed bool) []pipeline.StepResult {
	var results []pipeline.StepResult
	for _, action := range stage.PostActions {
		if !action.Applies(succeeded, changed) {
			continue
		}
		for _, step := range action.Steps {
			results = append(results, e.Steps.RunStep(ctx, step, derived))
		}
	}
	return results
}

// rollUpStageStatus computes §4.5 step 5's rollup over a stage's step
// results.
func rollUpStageStatus(results []pipeline.StepResult) pipeline.StageStatus {
	if len(results) == 0 {
		return pipeline.StageSuccess
	}

	var success, failure, timeout, cancelled int
	for _, r := range results {
		switch r.Status {
		case pipeline.StepSuccess:
			success++
		case pipeline.StepFailure, pipeline.StepValidationFailed:
			failure++
		case pipeline.StepTimeout:
			timeout++
		case pipeline.StepCancelled:
			cancelled++
		// StepSkipped counts toward neither bucket: an all-skipped stage
		// falls through to the default Success case below.
		}
	}

	switch {
	case cancelled > 0:
		return pipeline.StageCancelled
	case timeout > 0:
		return pipeline.StageTimeout
	case failure > 0 && success > 0:
		return pipeline.StagePartialSuccess
	case failure > 0:
		return pipeline.StageFailure
	default:
		return pipeline.StageSuccess
	}
}
