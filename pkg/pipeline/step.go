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
	"strings"
	"time"
)

// StepVariant tags a Step's concrete type for handler-registry dispatch
// (C5) without reflection.
type StepVariant string

const (
	VariantShell              StepVariant = "Shell"
	VariantEcho                StepVariant = "Echo"
	VariantDir                 StepVariant = "Dir"
	VariantWithEnv              StepVariant = "WithEnv"
	VariantParallel            StepVariant = "Parallel"
	VariantRetry               StepVariant = "Retry"
	VariantTimeout             StepVariant = "Timeout"
	VariantArchiveArtifacts    StepVariant = "ArchiveArtifacts"
	VariantPublishTestResults  StepVariant = "PublishTestResults"
	VariantStash               StepVariant = "Stash"
	VariantUnstash             StepVariant = "Unstash"
	VariantMatrix              StepVariant = "Matrix"
)

// Step is the sealed tagged-variant type spec.md §3 describes. Only the
// variants declared in this package implement it; Variant() is the
// discriminator the handler registry (C5) and executor (C7) dispatch on.
type Step interface {
	Variant() StepVariant
}

// Shell runs a script through the ExecutionContext's CommandLauncher.
type Shell struct {
	Script       string
	Timeout      time.Duration
	WorkloadHint WorkloadClass
}

func (Shell) Variant() StepVariant { return VariantShell }

// Echo writes Message to the logger at INFO and succeeds unconditionally.
type Echo struct {
	Message string
}

func (Echo) Variant() StepVariant { return VariantEcho }

// Dir resolves Path against the ambient workDir and runs Steps in a
// derived context rooted there, fail-fast.
type Dir struct {
	Path  string
	Steps []Step
}

func (Dir) Variant() StepVariant { return VariantDir }

// WithEnv merges Variables into the ambient environment (innermost wins)
// and runs Steps in the derived context, fail-fast.
type WithEnv struct {
	Variables map[string]string
	Steps     []Step
}

func (WithEnv) Variant() StepVariant { return VariantWithEnv }

// ParseEnvList parses a "KEY=VALUE" list (spec.md §3's "list of K=V" form)
// into a map. Empty values are permitted; a malformed entry (no "=") is an
// error rather than silently ignored, since WithEnv's validate() phase
// should catch it before execute().
func ParseEnvList(entries []string) (map[string]string, error) {
	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		idx := strings.IndexByte(entry, '=')
		if idx < 0 {
			return nil, fmt.Errorf("malformed K=V entry %q", entry)
		}
		out[entry[:idx]] = entry[idx+1:]
	}
	return out, nil
}

// Parallel launches one concurrent branch per map entry. Cancellation
// policy (cancel-peers-on-first-failure vs. let-peers-finish) is governed
// by the enclosing Stage's FailFast flag (SPEC_FULL.md REDESIGN FLAGS).
type Parallel struct {
	Branches map[string][]Step
}

func (Parallel) Variant() StepVariant { return VariantParallel }

// Retry runs Steps up to Times attempts, linear backoff BaseDelay*attempt
// between attempts (BaseDelay defaults to config.DefaultRetryBaseDelay
// when zero).
type Retry struct {
	Times     int
	Steps     []Step
	BaseDelay time.Duration
}

func (Retry) Variant() StepVariant { return VariantRetry }

// Timeout runs Steps under a hard deadline of Duration.
type Timeout struct {
	Duration time.Duration
	Steps    []Step
}

func (Timeout) Variant() StepVariant { return VariantTimeout }

// ArchiveArtifacts copies files matching Pattern into the context's
// artifact directory.
type ArchiveArtifacts struct {
	Pattern     string
	AllowEmpty  bool
	Fingerprint bool
}

func (ArchiveArtifacts) Variant() StepVariant { return VariantArchiveArtifacts }

// PublishTestResults locates and records test report files matching
// Pattern.
type PublishTestResults struct {
	Pattern    string
	AllowEmpty bool
}

func (PublishTestResults) Variant() StepVariant { return VariantPublishTestResults }

// Stash copies workspace files matching Includes (minus Excludes, both
// comma-separated glob lists) into a named bundle.
type Stash struct {
	Name     string
	Includes string
	Excludes string
}

func (Stash) Variant() StepVariant { return VariantStash }

// Unstash restores a previously stashed bundle into the workspace.
type Unstash struct {
	Name string
}

func (Unstash) Variant() StepVariant { return VariantUnstash }

// Matrix expands into one Parallel branch per surviving dimension
// combination (SPEC_FULL.md §3, adapted from the teacher's
// scheduler.ExpandMatrix). It is sugar over Parallel, not a distinct
// concurrency primitive.
type Matrix struct {
	Dimensions map[string][]string
	Exclude    []map[string]string
	Steps      []Step
}

func (Matrix) Variant() StepVariant { return VariantMatrix }
