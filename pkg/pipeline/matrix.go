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

import (
	"fmt"
	"sort"
	"strings"
)

// ExpandMatrix generates all surviving dimension combinations for a
// Matrix step, in deterministic (sorted-key) order so branch naming is
// stable across runs. Adapted from the teacher's
// pkg/scheduler/matrix.go:ExpandMatrix, stripped of its Kubernetes
// label/DNS-1123 naming concerns.
func ExpandMatrix(m Matrix) ([]map[string]string, error) {
	if len(m.Dimensions) == 0 {
		return []map[string]string{{}}, nil
	}

	for key, values := range m.Dimensions {
		if len(values) == 0 {
			return nil, fmt.Errorf("matrix dimension %s has no values", key)
		}
	}

	combos := generateCombinations(m.Dimensions)
	filtered := filterExclusions(combos, m.Exclude)
	if len(filtered) == 0 {
		return nil, ErrMatrixExhausted
	}
	return filtered, nil
}

func generateCombinations(dimensions map[string][]string) []map[string]string {
	keys := make([]string, 0, len(dimensions))
	for k := range dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []map[string]string{{}}
	for _, key := range keys {
		var next []map[string]string
		for _, combo := range combos {
			for _, value := range dimensions[key] {
				merged := make(map[string]string, len(combo)+1)
				for k, v := range combo {
					merged[k] = v
				}
				merged[key] = value
				next = append(next, merged)
			}
		}
		combos = next
	}
	return combos
}

func filterExclusions(combos []map[string]string, exclusions []map[string]string) []map[string]string {
	if len(exclusions) == 0 {
		return combos
	}
	var filtered []map[string]string
	for _, combo := range combos {
		if !matchesAnyExclusion(combo, exclusions) {
			filtered = append(filtered, combo)
		}
	}
	return filtered
}

func matchesAnyExclusion(combo map[string]string, exclusions []map[string]string) bool {
	for _, exclusion := range exclusions {
		if matchesExclusion(combo, exclusion) {
			return true
		}
	}
	return false
}

func matchesExclusion(combo, exclusion map[string]string) bool {
	for key, value := range exclusion {
		if combo[key] != value {
			return false
		}
	}
	return true
}

// MatrixBranchName builds a deterministic, human-readable branch name from
// a matrix combination, e.g. "go_version=1.22,os=alpine".
func MatrixBranchName(combo map[string]string) string {
	keys := make([]string, 0, len(combo))
	for k := range combo {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, combo[k]))
	}
	return strings.Join(parts, ",")
}

// SubstituteMatrixVariables replaces "${{matrix.key}}" and "${matrix.key}"
// placeholders in template with their combination values. Adapted from
// scheduler.SubstituteMatrixVariables, generalized from step Image/Commands
// substitution to arbitrary step-field strings.
func SubstituteMatrixVariables(template string, vars map[string]string) string {
	result := template
	for key, value := range vars {
		result = strings.ReplaceAll(result, fmt.Sprintf("${{matrix.%s}}", key), value)
		result = strings.ReplaceAll(result, fmt.Sprintf("${matrix.%s}", key), value)
	}
	return result
}

// substituteStep returns a copy of step with matrix placeholders
// substituted into the string fields handlers actually read (Shell.Script,
// Echo.Message, WithEnv.Variables values, Dir.Path). Composite steps are
// recursed into; unknown variants are returned unchanged.
func substituteStep(step Step, vars map[string]string) Step {
	switch s := step.(type) {
	case Shell:
		s.Script = SubstituteMatrixVariables(s.Script, vars)
		return s
	case Echo:
		s.Message = SubstituteMatrixVariables(s.Message, vars)
		return s
	case Dir:
		s.Path = SubstituteMatrixVariables(s.Path, vars)
		s.Steps = substituteSteps(s.Steps, vars)
		return s
	case WithEnv:
		newVars := make(map[string]string, len(s.Variables))
		for k, v := range s.Variables {
			newVars[k] = SubstituteMatrixVariables(v, vars)
		}
		s.Variables = newVars
		s.Steps = substituteSteps(s.Steps, vars)
		return s
	case Retry:
		s.Steps = substituteSteps(s.Steps, vars)
		return s
	case Timeout:
		s.Steps = substituteSteps(s.Steps, vars)
		return s
	case Parallel:
		newBranches := make(map[string][]Step, len(s.Branches))
		for name, steps := range s.Branches {
			newBranches[name] = substituteSteps(steps, vars)
		}
		s.Branches = newBranches
		return s
	default:
		return step
	}
}

func substituteSteps(steps []Step, vars map[string]string) []Step {
	out := make([]Step, len(steps))
	for i, s := range steps {
		out[i] = substituteStep(s, vars)
	}
	return out
}

// ExpandToParallel turns a Matrix step into the equivalent Parallel step:
// one branch per surviving combination, its Steps substituted with that
// combination's values. The Parallel handler then owns all concurrency
// and fail-fast semantics — Matrix never executes directly.
func ExpandToParallel(m Matrix) (Parallel, error) {
	combos, err := ExpandMatrix(m)
	if err != nil {
		return Parallel{}, err
	}

	branches := make(map[string][]Step, len(combos))
	for _, combo := range combos {
		branches[MatrixBranchName(combo)] = substituteSteps(m.Steps, combo)
	}
	return Parallel{Branches: branches}, nil
}
