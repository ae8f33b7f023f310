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

package handler

import (
	"testing"

	"github.com/org/forgeci/pkg/pipeline"
)

func TestNewDefaultRegistryRegistersEveryVariant(t *testing.T) {
	r := NewDefaultRegistry()
	variants := []pipeline.StepVariant{
		pipeline.VariantShell,
		pipeline.VariantEcho,
		pipeline.VariantDir,
		pipeline.VariantWithEnv,
		pipeline.VariantParallel,
		pipeline.VariantRetry,
		pipeline.VariantTimeout,
		pipeline.VariantArchiveArtifacts,
		pipeline.VariantPublishTestResults,
		pipeline.VariantStash,
		pipeline.VariantUnstash,
	}
	for _, v := range variants {
		if !r.Has(v) {
			t.Fatalf("expected default registry to have a handler for %s", v)
		}
	}
}

func TestRegistryRegisterGetUnregister(t *testing.T) {
	r := NewRegistry()
	if r.Has(pipeline.VariantShell) {
		t.Fatal("expected empty registry to have no handlers")
	}

	r.Register(pipeline.VariantShell, ShellHandler{})
	if !r.Has(pipeline.VariantShell) {
		t.Fatal("expected registered handler to be present")
	}

	if _, ok := r.Get(pipeline.VariantShell); !ok {
		t.Fatal("expected Get to find the registered handler")
	}

	r.Unregister(pipeline.VariantShell)
	if r.Has(pipeline.VariantShell) {
		t.Fatal("expected unregistered handler to be gone")
	}
}

func TestRegistryClear(t *testing.T) {
	r := NewDefaultRegistry()
	r.Clear()
	if r.Has(pipeline.VariantShell) {
		t.Fatal("expected Clear to remove every handler")
	}
}
