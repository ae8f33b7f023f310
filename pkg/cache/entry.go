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

// Package cache implements the Cache Manager (C11): three content-addressed
// sub-caches memoizing compiled-script artifacts, library build outputs, and
// dependency-graph resolutions, with size/age eviction and warmup.
package cache

import "time"

// ScriptEntry caches a compiled-script artifact keyed by
// sha256(scriptContent || scriptName || sortedDeps) at the call site.
// The compiled-script handle is opaque to this package (spec.md §6: kept
// in memory, not written to disk).
type ScriptEntry struct {
	Handle    any
	CachedAt  time.Time
	SizeBytes int64
}

// LibraryEntry caches a compiled library build output keyed by
// (name, version, sha256(sourcePath)). Valid iff the referenced jar file
// still exists and its source hash matches the current one, checked by
// LibraryCache.Get against the hash passed at lookup time.
type LibraryEntry struct {
	JarFile         string
	SourceHash      string
	CompiledAt      time.Time
	CompilationTime time.Duration
	SizeBytes       int64
}

// DependencyGraphEntry caches a resolved dependency graph keyed by the
// sorted cache-keys of its input configurations.
type DependencyGraphEntry struct {
	Graph     any
	CachedAt  time.Time
	SizeBytes int64
}
