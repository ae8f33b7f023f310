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

package execctx

import "testing"

func TestCopySharesUnchangedFieldsByIdentity(t *testing.T) {
	env := map[string]string{"FOO": "bar"}
	base := ExecutionContext{
		WorkDir:     "/work",
		Environment: env,
		ExecutionID: "exec-1",
	}

	derived := base.Copy(WithWorkDir("/work/sub"))

	if derived.WorkDir != "/work/sub" {
		t.Fatalf("expected overridden WorkDir, got %q", derived.WorkDir)
	}
	if derived.ExecutionID != base.ExecutionID {
		t.Fatalf("expected ExecutionID to be shared")
	}
	// Same underlying map: a mutation through one is visible via the other.
	derived.Environment["FOO"] = "baz"
	if base.Environment["FOO"] != "baz" {
		t.Fatal("expected Environment map to be shared by identity, not deep-copied")
	}

	if base.WorkDir != "/work" {
		t.Fatal("original context must not be mutated by Copy")
	}
}

func TestCopyWithEnvironmentReplacesWholesale(t *testing.T) {
	base := ExecutionContext{Environment: map[string]string{"A": "1"}}
	newEnv := map[string]string{"B": "2"}

	derived := base.Copy(WithEnvironment(newEnv))

	if _, ok := derived.Environment["A"]; ok {
		t.Fatal("expected wholesale replacement, not merge")
	}
	if derived.Environment["B"] != "2" {
		t.Fatal("expected new environment value")
	}
	if base.Environment["A"] != "1" {
		t.Fatal("original environment must be untouched")
	}
}

func TestMergeEnvironmentPrecedence(t *testing.T) {
	base := map[string]string{"A": "system", "B": "system"}
	pipelineEnv := map[string]string{"B": "pipeline", "C": "pipeline"}
	stageEnv := map[string]string{"C": "stage"}

	merged := MergeEnvironment(base, pipelineEnv, stageEnv)

	if merged["A"] != "system" || merged["B"] != "pipeline" || merged["C"] != "stage" {
		t.Fatalf("unexpected precedence result: %v", merged)
	}
	// base must not be mutated.
	if base["B"] != "system" {
		t.Fatal("MergeEnvironment must not mutate its base argument")
	}
}
