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

import "github.com/go-playground/validator/v10"

var structValidator = validator.New()

// ValidateStruct runs go-playground/validator's struct-tag checks
// (required, min, etc.) over the Pipeline/Stage field tags declared in
// pipeline.go and stage.go, translating its FieldError slice into this
// package's ValidationErrors shape so callers see one error type
// regardless of which validation layer caught the problem.
func ValidateStruct(v any) *ValidationErrors {
	err := structValidator.Struct(v)
	if err == nil {
		return &ValidationErrors{}
	}

	errs := &ValidationErrors{}
	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrs {
			errs.Add(fe.Namespace(), "failed %q validation", fe.Tag())
		}
		return errs
	}
	errs.Add("", err.Error())
	return errs
}

// Validate combines the struct-tag pass with the hand-written structural
// invariants in Pipeline.Validate (duplicate names, per-stage checks,
// etc.) — the tag pass alone can't express cross-field or cross-slice
// rules like "no two stages share a name".
func (p Pipeline) ValidateAll() *ValidationErrors {
	errs := ValidateStruct(p)
	errs.Merge(p.Validate())
	return errs
}
