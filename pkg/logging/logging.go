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

// Package logging provides the structured-logging default this module's
// packages use via go-logr's Logger contract — the same contract the
// teacher wires through every controller with ctrl.SetLogger(zap.New(...))
// (cmd/webhook/main.go, cmd/api-server/main.go), minus the
// controller-runtime dependency this module drops: zapr pairs
// go.uber.org/zap directly with logr.Logger instead.
package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// NewProduction returns a JSON-structured, info-level-and-above Logger
// suitable for a running pipeline executor.
func NewProduction() (logr.Logger, error) {
	zl, err := zap.NewProduction()
	if err != nil {
		return logr.Logger{}, err
	}
	return zapr.NewLogger(zl), nil
}

// NewDevelopment returns a human-readable, debug-level Logger suitable
// for cmd/pipelinerunner's default local run.
func NewDevelopment() (logr.Logger, error) {
	zl, err := zap.NewDevelopment()
	if err != nil {
		return logr.Logger{}, err
	}
	return zapr.NewLogger(zl), nil
}

// Discard returns a Logger that drops everything, for tests and callers
// that don't want log output.
func Discard() logr.Logger {
	return logr.Discard()
}
