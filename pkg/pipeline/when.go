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

package pipeline

import "path/filepath"

// EvalEnv is the minimal, side-effect-free view of an ExecutionContext a
// WhenCondition needs (SPEC_FULL.md §4.8): the effective environment and
// the free-form metadata bag (change-set info, if any). Kept as plain
// maps here — not the execctx.ExecutionContext type itself — so this
// package never imports execctx (execctx imports pipeline for Step/Result
// types, so the reverse edge would cycle).
type EvalEnv struct {
	Environment map[string]string
	Metadata    map[string]any
}

// WhenCondition is the sealed variant §3 describes, gating stage
// execution. Evaluate must be deterministic and side-effect-free
// (invariant 9 in SPEC_FULL.md §8).
type WhenCondition interface {
	Evaluate(env EvalEnv) bool
}

// Branch matches Pattern (a glob) against env["GIT_BRANCH"].
type Branch struct {
	Pattern string
}

func (b Branch) Evaluate(env EvalEnv) bool {
	branch := env.Environment["GIT_BRANCH"]
	ok, err := filepath.Match(b.Pattern, branch)
	return err == nil && ok
}

// Environment compares env[Name] for exact equality with Value.
type Environment struct {
	Name  string
	Value string
}

func (e Environment) Evaluate(env EvalEnv) bool {
	return env.Environment[e.Name] == e.Value
}

// ChangeSetMode selects how ChangeSet matches Patterns against the
// changed-file list.
type ChangeSetMode string

const (
	ChangeSetAny ChangeSetMode = "any"
	ChangeSetAll ChangeSetMode = "all"
)

// ChangeSet evaluates against the change-set metadata supplied via
// ctx.Metadata["changedFiles"] ([]string). Per SPEC_FULL.md §9's pinned
// Open Question, it evaluates to false whenever that metadata is absent —
// this module has no change-set producer in scope.
type ChangeSet struct {
	Patterns []string
	Mode     ChangeSetMode
}

func (c ChangeSet) Evaluate(env EvalEnv) bool {
	raw, ok := env.Metadata["changedFiles"]
	if !ok {
		return false
	}
	files, ok := raw.([]string)
	if !ok || len(files) == 0 {
		return false
	}

	matchAny := func(pattern string) bool {
		for _, f := range files {
			if ok, err := filepath.Match(pattern, f); err == nil && ok {
				return true
			}
		}
		return false
	}

	if len(c.Patterns) == 0 {
		return false
	}

	switch c.Mode {
	case ChangeSetAll:
		for _, p := range c.Patterns {
			if !matchAny(p) {
				return false
			}
		}
		return true
	default: // ChangeSetAny, or unset
		for _, p := range c.Patterns {
			if matchAny(p) {
				return true
			}
		}
		return false
	}
}

// Predicate invokes an opaque caller-supplied function over the
// environment/metadata view.
type Predicate struct {
	Fn func(env EvalEnv) bool
}

func (p Predicate) Evaluate(env EvalEnv) bool {
	if p.Fn == nil {
		return false
	}
	return p.Fn(env)
}

// Not negates Inner.
type Not struct {
	Inner WhenCondition
}

func (n Not) Evaluate(env EvalEnv) bool {
	if n.Inner == nil {
		return true
	}
	return !n.Inner.Evaluate(env)
}

// AllOf evaluates children in order, short-circuiting on the first false.
type AllOf struct {
	Conditions []WhenCondition
}

func (a AllOf) Evaluate(env EvalEnv) bool {
	for _, c := range a.Conditions {
		if !c.Evaluate(env) {
			return false
		}
	}
	return true
}

// AnyOf evaluates children in order, short-circuiting on the first true.
type AnyOf struct {
	Conditions []WhenCondition
}

func (a AnyOf) Evaluate(env EvalEnv) bool {
	for _, c := range a.Conditions {
		if c.Evaluate(env) {
			return true
		}
	}
	return false
}
