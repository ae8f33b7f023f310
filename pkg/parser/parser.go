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

// Package parser decodes a pipeline's on-disk YAML definition into the
// sealed-variant Pipeline data model. Adapted from the teacher's
// pkg/parser/parser.go: same "unmarshal into a YAML-shaped intermediate,
// then validate, then convert" structure, generalized from a fixed
// Kubernetes-CRD step shape to this module's open set of Step variants.
package parser

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/org/forgeci/pkg/pipeline"
)

// pipelineYAML is the root of a .pipeline.yaml file.
type pipelineYAML struct {
	Version     string            `yaml:"version"`
	ID          string            `yaml:"id"`
	Agent       *agentYAML        `yaml:"agent,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	Stages      []stageYAML       `yaml:"stages"`
}

type stageYAML struct {
	Name        string            `yaml:"name"`
	Agent       *agentYAML        `yaml:"agent,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	When        *whenYAML         `yaml:"when,omitempty"`
	FailFast    bool              `yaml:"failFast,omitempty"`
	Timeout     string            `yaml:"timeout,omitempty"`
	Steps       []stepYAML        `yaml:"steps"`
	Post        []postActionYAML  `yaml:"post,omitempty"`
}

type agentYAML struct {
	Type      string            `yaml:"type"`
	Name      string            `yaml:"name,omitempty"`
	Image     string            `yaml:"image,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	Volumes   []string          `yaml:"volumes,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	YAML      string            `yaml:"yaml,omitempty"`
	Namespace string            `yaml:"namespace,omitempty"`
}

type envConditionYAML struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type changeSetYAML struct {
	Patterns []string `yaml:"patterns"`
	Mode     string   `yaml:"mode,omitempty"`
}

// whenYAML is a discriminated union: exactly one field is expected to be
// set on any given node, including the recursive Not/AllOf/AnyOf cases.
type whenYAML struct {
	Branch      string             `yaml:"branch,omitempty"`
	Environment *envConditionYAML  `yaml:"environment,omitempty"`
	ChangeSet   *changeSetYAML     `yaml:"changeSet,omitempty"`
	Not         *whenYAML          `yaml:"not,omitempty"`
	AllOf       []whenYAML         `yaml:"allOf,omitempty"`
	AnyOf       []whenYAML         `yaml:"anyOf,omitempty"`
}

type postActionYAML struct {
	Scope string     `yaml:"scope"`
	Steps []stepYAML `yaml:"steps"`
}

type shellYAML struct {
	Script   string `yaml:"script"`
	Timeout  string `yaml:"timeout,omitempty"`
	Workload string `yaml:"workload,omitempty"`
}

type dirYAML struct {
	Path  string     `yaml:"path"`
	Steps []stepYAML `yaml:"steps"`
}

type withEnvYAML struct {
	Variables map[string]string `yaml:"variables"`
	Steps     []stepYAML        `yaml:"steps"`
}

type retryYAML struct {
	Times     int        `yaml:"times"`
	BaseDelay string     `yaml:"baseDelay,omitempty"`
	Steps     []stepYAML `yaml:"steps"`
}

type timeoutYAML struct {
	Duration string     `yaml:"duration"`
	Steps    []stepYAML `yaml:"steps"`
}

type archiveArtifactsYAML struct {
	Pattern     string `yaml:"pattern"`
	AllowEmpty  bool   `yaml:"allowEmpty,omitempty"`
	Fingerprint bool   `yaml:"fingerprint,omitempty"`
}

type publishTestResultsYAML struct {
	Pattern    string `yaml:"pattern"`
	AllowEmpty bool   `yaml:"allowEmpty,omitempty"`
}

type stashYAML struct {
	Name     string `yaml:"name"`
	Includes string `yaml:"includes,omitempty"`
	Excludes string `yaml:"excludes,omitempty"`
}

type matrixYAML struct {
	Dimensions map[string][]string `yaml:"dimensions"`
	Exclude    []map[string]string `yaml:"exclude,omitempty"`
	Steps      []stepYAML          `yaml:"steps"`
}

// stepYAML is a discriminated union over the twelve Step variants. Exactly
// one field should be set; ensured by validate, not by the YAML library.
type stepYAML struct {
	Shell              *shellYAML              `yaml:"shell,omitempty"`
	Echo               string                  `yaml:"echo,omitempty"`
	Dir                *dirYAML                `yaml:"dir,omitempty"`
	WithEnv            *withEnvYAML            `yaml:"withEnv,omitempty"`
	Parallel           map[string][]stepYAML   `yaml:"parallel,omitempty"`
	Retry              *retryYAML              `yaml:"retry,omitempty"`
	Timeout            *timeoutYAML            `yaml:"timeout,omitempty"`
	ArchiveArtifacts   *archiveArtifactsYAML   `yaml:"archiveArtifacts,omitempty"`
	PublishTestResults *publishTestResultsYAML `yaml:"publishTestResults,omitempty"`
	Stash              *stashYAML              `yaml:"stash,omitempty"`
	Unstash            string                  `yaml:"unstash,omitempty"`
	Matrix             *matrixYAML             `yaml:"matrix,omitempty"`
}

const supportedVersion = "v1"

// Parse decodes yamlContent into a validated Pipeline. Mirrors the
// teacher's Parse: unmarshal, validate, convert — except validation here
// delegates cross-field invariants to Pipeline.Validate itself rather
// than duplicating them, and the return value is this module's own data
// model instead of a CRD spec.
func Parse(yamlContent []byte) (pipeline.Pipeline, error) {
	var doc pipelineYAML
	if err := yaml.Unmarshal(yamlContent, &doc); err != nil {
		return pipeline.Pipeline{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if doc.Version == "" {
		return pipeline.Pipeline{}, fmt.Errorf("version field is required")
	}
	if doc.Version != supportedVersion {
		return pipeline.Pipeline{}, fmt.Errorf("unsupported version: %s (expected %s)", doc.Version, supportedVersion)
	}

	stages := make([]pipeline.Stage, 0, len(doc.Stages))
	for _, s := range doc.Stages {
		stage, err := toStage(s)
		if err != nil {
			return pipeline.Pipeline{}, fmt.Errorf("stage %s: %w", s.Name, err)
		}
		stages = append(stages, stage)
	}

	p := pipeline.Pipeline{
		ID:                doc.ID,
		Stages:            stages,
		GlobalEnvironment: doc.Environment,
		Agent:             toAgent(doc.Agent),
	}

	if errs := p.Validate(); errs.HasErrors() {
		return pipeline.Pipeline{}, fmt.Errorf("validation failed: %w", errs)
	}

	return p, nil
}

func toStage(s stageYAML) (pipeline.Stage, error) {
	steps, err := toSteps(s.Steps)
	if err != nil {
		return pipeline.Stage{}, err
	}

	timeout, err := parseDuration(s.Timeout)
	if err != nil {
		return pipeline.Stage{}, fmt.Errorf("timeout: %w", err)
	}

	posts := make([]pipeline.PostAction, 0, len(s.Post))
	for _, p := range s.Post {
		postSteps, err := toSteps(p.Steps)
		if err != nil {
			return pipeline.Stage{}, fmt.Errorf("post action %s: %w", p.Scope, err)
		}
		posts = append(posts, pipeline.PostAction{
			Scope: pipeline.PostActionScope(p.Scope),
			Steps: postSteps,
		})
	}

	return pipeline.Stage{
		Name:        s.Name,
		Steps:       steps,
		Agent:       toAgent(s.Agent),
		Environment: s.Environment,
		When:        toWhen(s.When),
		PostActions: posts,
		FailFast:    s.FailFast,
		Timeout:     timeout,
	}, nil
}

func toSteps(in []stepYAML) ([]pipeline.Step, error) {
	out := make([]pipeline.Step, 0, len(in))
	for i, s := range in {
		step, err := toStep(s)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		out = append(out, step)
	}
	return out, nil
}

// toStep converts one discriminated-union node. The "exactly one variant
// set" check is enforced here, not via yaml.v3 struct tags, the same way
// the teacher's validate() checked required fields imperatively rather
// than through unmarshal-time schema constraints.
func toStep(s stepYAML) (pipeline.Step, error) {
	set := 0
	var result pipeline.Step
	var convErr error

	count := func(ok bool, build func() (pipeline.Step, error)) {
		if !ok {
			return
		}
		set++
		result, convErr = build()
	}

	count(s.Shell != nil, func() (pipeline.Step, error) {
		timeout, err := parseDuration(s.Shell.Timeout)
		if err != nil {
			return nil, fmt.Errorf("shell.timeout: %w", err)
		}
		return pipeline.Shell{
			Script:       s.Shell.Script,
			Timeout:      timeout,
			WorkloadHint: pipeline.WorkloadClass(s.Shell.Workload),
		}, nil
	})
	count(s.Echo != "", func() (pipeline.Step, error) {
		return pipeline.Echo{Message: s.Echo}, nil
	})
	count(s.Dir != nil, func() (pipeline.Step, error) {
		steps, err := toSteps(s.Dir.Steps)
		if err != nil {
			return nil, err
		}
		return pipeline.Dir{Path: s.Dir.Path, Steps: steps}, nil
	})
	count(s.WithEnv != nil, func() (pipeline.Step, error) {
		steps, err := toSteps(s.WithEnv.Steps)
		if err != nil {
			return nil, err
		}
		return pipeline.WithEnv{Variables: s.WithEnv.Variables, Steps: steps}, nil
	})
	count(s.Parallel != nil, func() (pipeline.Step, error) {
		branches := make(map[string][]pipeline.Step, len(s.Parallel))
		for name, nested := range s.Parallel {
			steps, err := toSteps(nested)
			if err != nil {
				return nil, fmt.Errorf("branch %s: %w", name, err)
			}
			branches[name] = steps
		}
		return pipeline.Parallel{Branches: branches}, nil
	})
	count(s.Retry != nil, func() (pipeline.Step, error) {
		steps, err := toSteps(s.Retry.Steps)
		if err != nil {
			return nil, err
		}
		baseDelay, err := parseDuration(s.Retry.BaseDelay)
		if err != nil {
			return nil, fmt.Errorf("retry.baseDelay: %w", err)
		}
		return pipeline.Retry{Times: s.Retry.Times, BaseDelay: baseDelay, Steps: steps}, nil
	})
	count(s.Timeout != nil, func() (pipeline.Step, error) {
		steps, err := toSteps(s.Timeout.Steps)
		if err != nil {
			return nil, err
		}
		duration, err := parseDuration(s.Timeout.Duration)
		if err != nil {
			return nil, fmt.Errorf("timeout.duration: %w", err)
		}
		return pipeline.Timeout{Duration: duration, Steps: steps}, nil
	})
	count(s.ArchiveArtifacts != nil, func() (pipeline.Step, error) {
		return pipeline.ArchiveArtifacts{
			Pattern:     s.ArchiveArtifacts.Pattern,
			AllowEmpty:  s.ArchiveArtifacts.AllowEmpty,
			Fingerprint: s.ArchiveArtifacts.Fingerprint,
		}, nil
	})
	count(s.PublishTestResults != nil, func() (pipeline.Step, error) {
		return pipeline.PublishTestResults{
			Pattern:    s.PublishTestResults.Pattern,
			AllowEmpty: s.PublishTestResults.AllowEmpty,
		}, nil
	})
	count(s.Stash != nil, func() (pipeline.Step, error) {
		return pipeline.Stash{
			Name:     s.Stash.Name,
			Includes: s.Stash.Includes,
			Excludes: s.Stash.Excludes,
		}, nil
	})
	count(s.Unstash != "", func() (pipeline.Step, error) {
		return pipeline.Unstash{Name: s.Unstash}, nil
	})
	count(s.Matrix != nil, func() (pipeline.Step, error) {
		steps, err := toSteps(s.Matrix.Steps)
		if err != nil {
			return nil, err
		}
		return pipeline.Matrix{
			Dimensions: s.Matrix.Dimensions,
			Exclude:    s.Matrix.Exclude,
			Steps:      steps,
		}, nil
	})

	if convErr != nil {
		return nil, convErr
	}
	if set == 0 {
		return nil, fmt.Errorf("step declares no recognized variant")
	}
	if set > 1 {
		return nil, fmt.Errorf("step declares %d variants, expected exactly 1", set)
	}
	return result, nil
}

func toAgent(a *agentYAML) pipeline.Agent {
	if a == nil {
		return pipeline.Any{}
	}
	switch a.Type {
	case "none":
		return pipeline.None{}
	case "label":
		return pipeline.Label{Name: a.Name}
	case "docker":
		return pipeline.Docker{Image: a.Image, Args: a.Args, Volumes: a.Volumes, Env: a.Env}
	case "kubernetes":
		return pipeline.Kubernetes{YAML: a.YAML, Namespace: a.Namespace}
	default:
		return pipeline.Any{}
	}
}

func toWhen(w *whenYAML) pipeline.WhenCondition {
	if w == nil {
		return nil
	}
	switch {
	case w.Branch != "":
		return pipeline.Branch{Pattern: w.Branch}
	case w.Environment != nil:
		return pipeline.Environment{Name: w.Environment.Name, Value: w.Environment.Value}
	case w.ChangeSet != nil:
		return pipeline.ChangeSet{Patterns: w.ChangeSet.Patterns, Mode: pipeline.ChangeSetMode(w.ChangeSet.Mode)}
	case w.Not != nil:
		return pipeline.Not{Inner: toWhen(w.Not)}
	case len(w.AllOf) > 0:
		conds := make([]pipeline.WhenCondition, 0, len(w.AllOf))
		for i := range w.AllOf {
			conds = append(conds, toWhen(&w.AllOf[i]))
		}
		return pipeline.AllOf{Conditions: conds}
	case len(w.AnyOf) > 0:
		conds := make([]pipeline.WhenCondition, 0, len(w.AnyOf))
		for i := range w.AnyOf {
			conds = append(conds, toWhen(&w.AnyOf[i]))
		}
		return pipeline.AnyOf{Conditions: conds}
	default:
		return nil
	}
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
