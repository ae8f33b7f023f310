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
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, in the teacher's style (pkg/types/errors.go): named,
// wrappable, compared with errors.Is.
var (
	ErrEmptyPipelineID    = errors.New("pipeline id must not be empty")
	ErrDuplicateStageName = errors.New("duplicate stage name")
	ErrDuplicateStepName  = errors.New("duplicate step name")
	ErrEmptyEnvKey        = errors.New("environment variable key must not be empty")
	ErrInvalidTimeout     = errors.New("timeout must be a positive duration not exceeding 24h")
	ErrInvalidRetryTimes  = errors.New("retry times must be a positive integer")
	ErrEmptyStepSequence  = errors.New("step sequence must not be empty")
	ErrHandlerNotFound    = errors.New("no handler registered for step variant")
	ErrMatrixExhausted    = errors.New("all matrix combinations are excluded")
	ErrCircuitOpen        = errors.New("circuit breaker open")
	ErrBulkheadRejected   = errors.New("bulkhead capacity exceeded")
	ErrSystemOverload     = errors.New("system overload: load or error-rate threshold exceeded")
)

// ValidationError is a single structural-validation failure, scoped to a
// field path. Adapted from pkg/parser/validator.go's ValidationError.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects zero or more ValidationError values. A nil or
// empty ValidationErrors is not an error (callers should check HasErrors
// before treating it as one).
type ValidationErrors struct {
	Errors []*ValidationError
}

func (ve *ValidationErrors) Add(field, format string, args ...any) {
	ve.Errors = append(ve.Errors, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (ve *ValidationErrors) Merge(other *ValidationErrors) {
	if other == nil {
		return
	}
	ve.Errors = append(ve.Errors, other.Errors...)
}

func (ve *ValidationErrors) HasErrors() bool {
	return ve != nil && len(ve.Errors) > 0
}

func (ve *ValidationErrors) Error() string {
	if ve == nil || len(ve.Errors) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(ve.Errors))
	for _, e := range ve.Errors {
		msgs = append(msgs, e.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// StepError wraps an error with the step and pipeline scope it occurred
// in, mirroring the teacher's PipelineError (pkg/types/errors.go).
type StepError struct {
	ExecutionID string
	StageName   string
	StepName    string
	Err         error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("execution %s, stage %s, step %s: %v", e.ExecutionID, e.StageName, e.StepName, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// StageError wraps an error with the stage/pipeline scope it occurred in.
type StageError struct {
	ExecutionID string
	StageName   string
	Err         error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("execution %s, stage %s: %v", e.ExecutionID, e.StageName, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
