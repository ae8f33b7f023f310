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

import "regexp"

// WorkloadClass hints which dispatcher (SPEC_FULL.md §5) a step should run
// on. Shell steps without an explicit hint are classified by matching
// their script against classifyPatterns (spec.md §4.4 step 1).
type WorkloadClass string

const (
	WorkloadCPU     WorkloadClass = "cpu"
	WorkloadIO      WorkloadClass = "io"
	WorkloadNetwork WorkloadClass = "network"
	WorkloadBlocking WorkloadClass = "blocking"
	WorkloadSystem  WorkloadClass = "system"
	WorkloadDefault WorkloadClass = "default"
)

// classifyPatterns maps a small table of script-shape regexes to a
// workload class, in priority order. The first match wins.
var classifyPatterns = []struct {
	class WorkloadClass
	re    *regexp.Regexp
}{
	{WorkloadCPU, regexp.MustCompile(`(?i)\b(make|go build|mvn|gradle|javac|gcc|clang|cargo build|tsc|webpack)\b`)},
	{WorkloadNetwork, regexp.MustCompile(`(?i)\b(curl|wget|git clone|git fetch|docker pull|docker push|npm install|go get|apt-get install|scp|rsync)\b`)},
	{WorkloadIO, regexp.MustCompile(`(?i)\b(cp|mv|tar|zip|unzip|grep|find|cat|rsync -a|dd)\b`)},
	{WorkloadBlocking, regexp.MustCompile(`(?i)\b(sleep|wait)\b`)},
}

// ClassifyShellScript returns the workload class a Shell step's script
// implies, or WorkloadDefault if nothing in classifyPatterns matches.
func ClassifyShellScript(script string) WorkloadClass {
	for _, p := range classifyPatterns {
		if p.re.MatchString(script) {
			return p.class
		}
	}
	return WorkloadDefault
}

// WorkloadClass resolves the effective workload class for a step: an
// explicit hint wins; Shell steps fall back to script classification;
// every other variant gets a fixed class.
func (s Shell) workloadClass() WorkloadClass {
	if s.WorkloadHint != "" {
		return s.WorkloadHint
	}
	return ClassifyShellScript(s.Script)
}

// StepWorkloadClass resolves the dispatcher class for any Step value.
func StepWorkloadClass(step Step) WorkloadClass {
	switch s := step.(type) {
	case Shell:
		return s.workloadClass()
	case *Shell:
		return s.workloadClass()
	case Dir, *Dir, WithEnv, *WithEnv, Retry, *Retry, Timeout, *Timeout,
		Parallel, *Parallel, Matrix, *Matrix:
		return WorkloadSystem
	case ArchiveArtifacts, *ArchiveArtifacts, PublishTestResults, *PublishTestResults,
		Stash, *Stash, Unstash, *Unstash:
		return WorkloadIO
	default:
		return WorkloadDefault
	}
}
