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

package config

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestConfigValidateRejectsZeroMaxConcurrentPipelines(t *testing.T) {
	c := Default()
	c.MaxConcurrentPipelines = 0
	if err := c.Validate(); err == nil {
		t.Fatal("expected validation error for zero MaxConcurrentPipelines")
	}
}

func TestDefaultDispatcherSizesMeetsMinimums(t *testing.T) {
	sizes := DefaultDispatcherSizes()
	if sizes.IO < 64 {
		t.Fatalf("expected io dispatcher size >= 64, got %d", sizes.IO)
	}
	if sizes.Network < 256 {
		t.Fatalf("expected network dispatcher size >= 256, got %d", sizes.Network)
	}
	if sizes.CPU < 1 {
		t.Fatalf("expected cpu dispatcher size >= 1, got %d", sizes.CPU)
	}
}
