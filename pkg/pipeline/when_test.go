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

import "testing"

func TestBranchEvaluate(t *testing.T) {
	env := EvalEnv{Environment: map[string]string{"GIT_BRANCH": "release/1.2"}}

	if !(Branch{Pattern: "release/*"}).Evaluate(env) {
		t.Fatal("expected release/* to match release/1.2")
	}
	if (Branch{Pattern: "main"}).Evaluate(env) {
		t.Fatal("expected main to not match release/1.2")
	}
}

func TestEnvironmentEvaluate(t *testing.T) {
	env := EvalEnv{Environment: map[string]string{"DEPLOY_TARGET": "prod"}}
	if !(Environment{Name: "DEPLOY_TARGET", Value: "prod"}).Evaluate(env) {
		t.Fatal("expected match")
	}
	if (Environment{Name: "DEPLOY_TARGET", Value: "staging"}).Evaluate(env) {
		t.Fatal("expected no match")
	}
}

func TestChangeSetNoMetadataIsFalse(t *testing.T) {
	cs := ChangeSet{Patterns: []string{"**/*.go"}, Mode: ChangeSetAny}
	if cs.Evaluate(EvalEnv{}) {
		t.Fatal("expected false when no changedFiles metadata present")
	}
}

func TestChangeSetAnyVsAll(t *testing.T) {
	env := EvalEnv{Metadata: map[string]any{
		"changedFiles": []string{"pkg/pipeline/step.go", "README.md"},
	}}

	any := ChangeSet{Patterns: []string{"*.go", "*.md"}, Mode: ChangeSetAny}
	if !any.Evaluate(EvalEnv{Metadata: map[string]any{"changedFiles": []string{"README.md"}}}) {
		t.Fatal("expected any-mode match on README.md")
	}

	all := ChangeSet{Patterns: []string{"*.go", "*.md"}, Mode: ChangeSetAll}
	if all.Evaluate(env) {
		t.Fatal("expected all-mode to fail: no file matches both patterns")
	}
}

func TestNotAllOfAnyOf(t *testing.T) {
	env := EvalEnv{Environment: map[string]string{"GIT_BRANCH": "main"}}
	mainOnly := Branch{Pattern: "main"}
	devOnly := Branch{Pattern: "dev"}

	if !(Not{Inner: devOnly}).Evaluate(env) {
		t.Fatal("expected Not(dev) to be true on main")
	}
	if !(AllOf{Conditions: []WhenCondition{mainOnly, Not{Inner: devOnly}}}).Evaluate(env) {
		t.Fatal("expected AllOf to be true")
	}
	if (AllOf{Conditions: []WhenCondition{mainOnly, devOnly}}).Evaluate(env) {
		t.Fatal("expected AllOf to short-circuit false")
	}
	if !(AnyOf{Conditions: []WhenCondition{devOnly, mainOnly}}).Evaluate(env) {
		t.Fatal("expected AnyOf to be true")
	}
}

func TestPredicateNilFnIsFalse(t *testing.T) {
	if (Predicate{}).Evaluate(EvalEnv{}) {
		t.Fatal("expected nil predicate fn to evaluate false")
	}
}
