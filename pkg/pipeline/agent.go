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

// Agent selects the execution environment a stage's steps run under. It is
// a sealed variant the same way Step and WhenCondition are; the launcher
// (pkg/launcher) only needs to understand Any/None/Label in this module's
// scope — Docker and Kubernetes are carried as data for forward
// compatibility with launchers this module does not ship (SPEC_FULL.md
// §6), mirroring how the teacher's CRD kept agent fields the in-tree
// controller didn't all act on.
type Agent interface {
	isAgent()
}

// Any lets the launcher pick whichever agent is available — the default
// when a stage declares no agent.
type Any struct{}

func (Any) isAgent() {}

// None runs steps directly against the orchestrating process's own
// environment, with no isolation.
type None struct{}

func (None) isAgent() {}

// Label pins execution to a launcher tagged with Name.
type Label struct {
	Name string
}

func (Label) isAgent() {}

// Docker runs steps inside Image, the way the teacher's CRD described a
// container agent. No Docker-backed CommandLauncher ships in this module;
// see pkg/launcher's doc comment.
type Docker struct {
	Image   string
	Args    []string
	Volumes []string
	Env     map[string]string
}

func (Docker) isAgent() {}

// Kubernetes runs steps as a pod built from YAML in Namespace. Out of
// scope for execution (no cluster launcher ships here) but kept so
// pipelines authored against a cluster-execution engine still parse.
type Kubernetes struct {
	YAML      string
	Namespace string
}

func (Kubernetes) isAgent() {}
