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

// PostActionScope selects when a Stage's post-actions run, evaluated
// against the stage's own outcome once its main Steps finish.
type PostActionScope string

const (
	PostActionAlways  PostActionScope = "always"
	PostActionSuccess PostActionScope = "success"
	PostActionFailure PostActionScope = "failure"
	PostActionChanged PostActionScope = "changed"
	PostActionCleanup PostActionScope = "cleanup"
)

// PostAction runs Steps when Scope matches the stage's outcome. Per the
// pinned REDESIGN FLAG in SPEC_FULL.md, a failing post-action never
// changes the stage's recorded Status — it's surfaced only in the
// corresponding StageResult.Metadata entry.
type PostAction struct {
	Scope PostActionScope
	Steps []Step
}

// Applies reports whether this post-action's scope matches a stage that
// finished with stageSucceeded and whose workspace changed (changed is
// the same changedFiles-derived signal ChangeSet conditions use).
func (p PostAction) Applies(stageSucceeded, changed bool) bool {
	switch p.Scope {
	case PostActionAlways, PostActionCleanup:
		return true
	case PostActionSuccess:
		return stageSucceeded
	case PostActionFailure:
		return !stageSucceeded
	case PostActionChanged:
		return changed
	default:
		return false
	}
}
