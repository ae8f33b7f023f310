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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/org/forgeci/pkg/execctx"
	"github.com/org/forgeci/pkg/pipeline"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestArchiveArtifactsHandlerCopiesMatches(t *testing.T) {
	workDir := t.TempDir()
	artifactDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "build", "out.bin"), "binary")
	writeFile(t, filepath.Join(workDir, "notes.txt"), "ignore me")

	h := ArchiveArtifactsHandler{}
	ctx := execctx.ExecutionContext{WorkDir: workDir, ArtifactDir: artifactDir}

	res := h.Execute(context.Background(), pipeline.ArchiveArtifacts{Pattern: "**/*.bin"}, ctx)
	if res.Status != pipeline.StepSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if _, err := os.Stat(filepath.Join(artifactDir, "build", "out.bin")); err != nil {
		t.Fatalf("expected archived file, got error: %v", err)
	}
	if res.Metadata["matchedCount"] != 1 {
		t.Fatalf("expected 1 matched file, got %v", res.Metadata["matchedCount"])
	}
}

func TestArchiveArtifactsHandlerFailsOnNoMatches(t *testing.T) {
	workDir := t.TempDir()
	artifactDir := t.TempDir()

	h := ArchiveArtifactsHandler{}
	ctx := execctx.ExecutionContext{WorkDir: workDir, ArtifactDir: artifactDir}

	res := h.Execute(context.Background(), pipeline.ArchiveArtifacts{Pattern: "*.bin"}, ctx)
	if res.Status != pipeline.StepFailure {
		t.Fatalf("expected failure when nothing matches, got %+v", res)
	}
}

func TestArchiveArtifactsHandlerAllowEmpty(t *testing.T) {
	workDir := t.TempDir()
	artifactDir := t.TempDir()

	h := ArchiveArtifactsHandler{}
	ctx := execctx.ExecutionContext{WorkDir: workDir, ArtifactDir: artifactDir}

	res := h.Execute(context.Background(), pipeline.ArchiveArtifacts{Pattern: "*.bin", AllowEmpty: true}, ctx)
	if res.Status != pipeline.StepSuccess {
		t.Fatalf("expected success with AllowEmpty, got %+v", res)
	}
}

func TestArchiveArtifactsHandlerFingerprint(t *testing.T) {
	workDir := t.TempDir()
	artifactDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "out.bin"), "binary")

	h := ArchiveArtifactsHandler{}
	ctx := execctx.ExecutionContext{WorkDir: workDir, ArtifactDir: artifactDir}

	res := h.Execute(context.Background(), pipeline.ArchiveArtifacts{Pattern: "*.bin", Fingerprint: true}, ctx)
	if res.Status != pipeline.StepSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	fingerprints, ok := res.Metadata["fingerprints"].(map[string]string)
	if !ok || fingerprints["out.bin"] == "" {
		t.Fatalf("expected a fingerprint for out.bin, got %v", res.Metadata["fingerprints"])
	}
}

func TestPublishTestResultsHandlerCountsMatches(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "reports", "junit.xml"), "<testsuite/>")

	h := PublishTestResultsHandler{}
	ctx := execctx.ExecutionContext{WorkDir: workDir}

	res := h.Execute(context.Background(), pipeline.PublishTestResults{Pattern: "**/*.xml"}, ctx)
	if res.Status != pipeline.StepSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Metadata["reportCount"] != 1 {
		t.Fatalf("expected 1 report, got %v", res.Metadata["reportCount"])
	}
}
