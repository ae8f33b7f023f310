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

package stash

import "errors"

// Sentinel errors, in the style of the teacher's pkg/storage/errors.go.
var (
	ErrEmptyName      = errors.New("stash name must not be empty")
	ErrEntryNotFound   = errors.New("stash entry not found")
	ErrNoFilesMatched  = errors.New("no files matched the include patterns")
	ErrRemoteUnavailable = errors.New("remote stash backend unavailable")
)
