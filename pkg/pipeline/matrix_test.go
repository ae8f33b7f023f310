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

func TestExpandMatrixDeterministicOrder(t *testing.T) {
	m := Matrix{
		Dimensions: map[string][]string{
			"os":      {"linux", "alpine"},
			"version": {"1.21", "1.22"},
		},
	}

	first, err := ExpandMatrix(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 20; i++ {
		next, err := ExpandMatrix(m)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(next) != len(first) {
			t.Fatalf("combination count changed across runs")
		}
		for j := range first {
			if MatrixBranchName(first[j]) != MatrixBranchName(next[j]) {
				t.Fatalf("non-deterministic ordering at index %d: %v vs %v", j, first[j], next[j])
			}
		}
	}

	if len(first) != 4 {
		t.Fatalf("expected 4 combinations, got %d", len(first))
	}
}

func TestExpandMatrixExclusions(t *testing.T) {
	m := Matrix{
		Dimensions: map[string][]string{
			"os":      {"linux", "alpine"},
			"version": {"1.21", "1.22"},
		},
		Exclude: []map[string]string{
			{"os": "alpine", "version": "1.21"},
		},
	}

	combos, err := ExpandMatrix(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(combos) != 3 {
		t.Fatalf("expected 3 combinations after exclusion, got %d", len(combos))
	}
	for _, c := range combos {
		if c["os"] == "alpine" && c["version"] == "1.21" {
			t.Fatalf("excluded combination still present: %v", c)
		}
	}
}

func TestExpandMatrixAllExcludedIsError(t *testing.T) {
	m := Matrix{
		Dimensions: map[string][]string{"os": {"linux"}},
		Exclude:    []map[string]string{{"os": "linux"}},
	}
	if _, err := ExpandMatrix(m); err != ErrMatrixExhausted {
		t.Fatalf("expected ErrMatrixExhausted, got %v", err)
	}
}

func TestExpandMatrixEmptyDimensionIsError(t *testing.T) {
	m := Matrix{Dimensions: map[string][]string{"os": {}}}
	if _, err := ExpandMatrix(m); err == nil {
		t.Fatal("expected error for empty dimension values")
	}
}

func TestSubstituteMatrixVariables(t *testing.T) {
	vars := map[string]string{"os": "alpine", "version": "1.22"}

	got := SubstituteMatrixVariables("build on ${{matrix.os}} with go ${matrix.version}", vars)
	want := "build on alpine with go 1.22"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExpandToParallelSubstitutesNestedSteps(t *testing.T) {
	m := Matrix{
		Dimensions: map[string][]string{"os": {"linux", "alpine"}},
		Steps: []Step{
			Shell{Script: "echo building on ${{matrix.os}}"},
			WithEnv{
				Variables: map[string]string{"TARGET_OS": "${{matrix.os}}"},
				Steps:     []Step{Shell{Script: "go test ./..."}},
			},
		},
	}

	par, err := ExpandToParallel(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(par.Branches) != 2 {
		t.Fatalf("expected 2 branches, got %d", len(par.Branches))
	}

	linuxBranch, ok := par.Branches[MatrixBranchName(map[string]string{"os": "linux"})]
	if !ok {
		t.Fatal("expected a branch for os=linux")
	}
	shellStep, ok := linuxBranch[0].(Shell)
	if !ok {
		t.Fatalf("expected Shell step, got %T", linuxBranch[0])
	}
	if shellStep.Script != "echo building on linux" {
		t.Fatalf("substitution failed: %q", shellStep.Script)
	}

	withEnvStep, ok := linuxBranch[1].(WithEnv)
	if !ok {
		t.Fatalf("expected WithEnv step, got %T", linuxBranch[1])
	}
	if withEnvStep.Variables["TARGET_OS"] != "linux" {
		t.Fatalf("nested substitution failed: %v", withEnvStep.Variables)
	}
}
