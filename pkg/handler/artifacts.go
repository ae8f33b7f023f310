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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/org/forgeci/pkg/execctx"
	"github.com/org/forgeci/pkg/pipeline"
	"github.com/org/forgeci/pkg/stash"
)

// ArchiveArtifactsHandler copies files matching Pattern from ctx.WorkDir
// into ctx.ArtifactDir, preserving relative paths (§4.2).
type ArchiveArtifactsHandler struct{}

func (h ArchiveArtifactsHandler) Validate(step pipeline.Step, ctx execctx.ExecutionContext) *pipeline.ValidationErrors {
	errs := &pipeline.ValidationErrors{}
	a := step.(pipeline.ArchiveArtifacts)
	if a.Pattern == "" {
		errs.Add("pattern", "archive pattern must not be empty")
	}
	if ctx.ArtifactDir == "" {
		errs.Add("artifactDir", "execution context has no artifact directory configured")
	}
	return errs
}

func (h ArchiveArtifactsHandler) Prepare(step pipeline.Step, ctx execctx.ExecutionContext) error {
	return os.MkdirAll(ctx.ArtifactDir, 0o755)
}

func (h ArchiveArtifactsHandler) Execute(ctx context.Context, step pipeline.Step, ectx execctx.ExecutionContext) pipeline.StepResult {
	a := step.(pipeline.ArchiveArtifacts)
	started := time.Now()

	matched, fingerprints, err := copyMatching(ectx.WorkDir, ectx.ArtifactDir, a.Pattern, a.Fingerprint)
	if err != nil {
		return pipeline.StepResult{Status: pipeline.StepFailure, StartedAt: started, EndedAt: time.Now(), Err: err}
	}
	if len(matched) == 0 && !a.AllowEmpty {
		return pipeline.StepResult{
			Status:    pipeline.StepFailure,
			StartedAt: started,
			EndedAt:   time.Now(),
			Err:       fmt.Errorf("no files matched pattern %q", a.Pattern),
		}
	}

	metadata := map[string]any{"matchedCount": len(matched), "files": matched}
	if a.Fingerprint {
		metadata["fingerprints"] = fingerprints
	}

	return pipeline.StepResult{
		Status:    pipeline.StepSuccess,
		StartedAt: started,
		EndedAt:   time.Now(),
		Metadata:  metadata,
	}
}

func (h ArchiveArtifactsHandler) Cleanup(step pipeline.Step, ctx execctx.ExecutionContext, result pipeline.StepResult) error {
	return nil
}

// PublishTestResultsHandler locates files matching Pattern and records a
// count into metadata (§4.2). Report parsing is intentionally opaque:
// this module counts matched files as "test report files found," leaving
// format-specific parsing to callers.
type PublishTestResultsHandler struct{}

func (h PublishTestResultsHandler) Validate(step pipeline.Step, ctx execctx.ExecutionContext) *pipeline.ValidationErrors {
	errs := &pipeline.ValidationErrors{}
	p := step.(pipeline.PublishTestResults)
	if p.Pattern == "" {
		errs.Add("pattern", "test results pattern must not be empty")
	}
	return errs
}

func (h PublishTestResultsHandler) Prepare(step pipeline.Step, ctx execctx.ExecutionContext) error {
	return nil
}

func (h PublishTestResultsHandler) Execute(ctx context.Context, step pipeline.Step, ectx execctx.ExecutionContext) pipeline.StepResult {
	p := step.(pipeline.PublishTestResults)
	started := time.Now()

	matched, err := findMatching(ectx.WorkDir, p.Pattern)
	if err != nil {
		return pipeline.StepResult{Status: pipeline.StepFailure, StartedAt: started, EndedAt: time.Now(), Err: err}
	}
	if len(matched) == 0 && !p.AllowEmpty {
		return pipeline.StepResult{
			Status:    pipeline.StepFailure,
			StartedAt: started,
			EndedAt:   time.Now(),
			Err:       fmt.Errorf("no test result files matched pattern %q", p.Pattern),
		}
	}

	return pipeline.StepResult{
		Status:    pipeline.StepSuccess,
		StartedAt: started,
		EndedAt:   time.Now(),
		Metadata:  map[string]any{"reportCount": len(matched), "files": matched},
	}
}

func (h PublishTestResultsHandler) Cleanup(step pipeline.Step, ctx execctx.ExecutionContext, result pipeline.StepResult) error {
	return nil
}

func findMatching(root, pattern string) ([]string, error) {
	var matched []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if stash.MatchGlob(pattern, rel) {
			matched = append(matched, rel)
		}
		return nil
	})
	return matched, err
}

func copyMatching(srcRoot, destRoot, pattern string, fingerprint bool) ([]string, map[string]string, error) {
	var matched []string
	fingerprints := map[string]string{}

	err := filepath.Walk(srcRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !stash.MatchGlob(pattern, rel) {
			return nil
		}

		dest := filepath.Join(destRoot, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}

		sum, err := copyFile(path, dest)
		if err != nil {
			return err
		}
		matched = append(matched, rel)
		if fingerprint {
			fingerprints[rel] = sum
		}
		return nil
	})
	return matched, fingerprints, err
}

func copyFile(src, dest string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer out.Close()

	h := sha256.New()
	if _, err := io.Copy(out, io.TeeReader(in, h)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
