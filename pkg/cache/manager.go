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

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/org/forgeci/pkg/config"
	"github.com/org/forgeci/pkg/metrics"
)

// Status is the cacheStatus observable spec.md §4.11 moves through while
// warmup runs.
type Status string

const (
	StatusIdle    Status = "Idle"
	StatusWarming Status = "Warming"
	StatusReady   Status = "Ready"
)

// ScriptKey hashes a script's content, name, and sorted dependency list
// into the cache key §3 prescribes for ScriptEntry.
func ScriptKey(scriptContent, scriptName string, deps []string) string {
	sorted := append([]string(nil), deps...)
	sort.Strings(sorted)
	h := sha256.New()
	h.Write([]byte(scriptContent))
	h.Write([]byte{0})
	h.Write([]byte(scriptName))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

// LibraryKey hashes the (name, version, sourcePath) triple §3 prescribes
// for LibraryEntry, hashing sourcePath's content rather than its name so
// a moved-but-unchanged source still hits.
func LibraryKey(name, version string, sourceHash string) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(version))
	h.Write([]byte{0})
	h.Write([]byte(sourceHash))
	return hex.EncodeToString(h.Sum(nil))
}

// DependencyGraphKey hashes the sorted cache-keys of a set of input
// configurations, per §3.
func DependencyGraphKey(inputCacheKeys []string) string {
	sorted := append([]string(nil), inputCacheKeys...)
	sort.Strings(sorted)
	h := sha256.New()
	h.Write([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

// HashFile sha256-hashes a file's content, the "current source hash"
// LibraryEntry.isValid compares against.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Manager is the C11 contract: three independently-bookkept sub-caches
// plus the warmup/status lifecycle spec.md §4.11 describes.
type Manager struct {
	Scripts    *subCache[ScriptEntry]
	Libraries  *subCache[LibraryEntry]
	Graphs     *subCache[DependencyGraphEntry]

	status int32 // atomic Status, stored as an index into statusValues

	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

var statusValues = []Status{StatusIdle, StatusWarming, StatusReady}

// New constructs a Manager and starts its background cleanup worker,
// which wakes every cfg.BackgroundCleanupInterval to enforce size/age
// limits on all three sub-caches (spec.md §4.11). Call Close to stop it.
func New(cfg config.CacheConfig, sink metrics.Sink) *Manager {
	isValidLibrary := func(e LibraryEntry) bool {
		if _, err := os.Stat(e.JarFile); err != nil {
			return false
		}
		current, err := HashFile(e.JarFile)
		if err != nil {
			return false
		}
		return current == e.SourceHash
	}

	m := &Manager{
		Scripts:   newSubCache[ScriptEntry]("script", sink, cfg.MaxCacheSize, cfg.MaxCacheAge, func(ScriptEntry) bool { return true }, func(e ScriptEntry) int64 { return e.SizeBytes }),
		Libraries: newSubCache[LibraryEntry]("library", sink, cfg.MaxCacheSize, cfg.MaxCacheAge, isValidLibrary, func(e LibraryEntry) int64 { return e.SizeBytes }),
		Graphs:    newSubCache[DependencyGraphEntry]("dependencyGraph", sink, cfg.MaxCacheSize, cfg.MaxCacheAge, func(DependencyGraphEntry) bool { return true }, func(e DependencyGraphEntry) int64 { return e.SizeBytes }),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	m.setStatus(StatusIdle)

	interval := cfg.BackgroundCleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go m.cleanupLoop(interval)

	return m
}

func (m *Manager) cleanupLoop(interval time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Scripts.EnforceLimits()
			m.Libraries.EnforceLimits()
			m.Graphs.EnforceLimits()
		case <-m.stop:
			return
		}
	}
}

// Close stops the background cleanup worker.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.stop) })
	<-m.done
}

func (m *Manager) setStatus(s Status) {
	for i, v := range statusValues {
		if v == s {
			atomic.StoreInt32(&m.status, int32(i))
			return
		}
	}
}

// Status reports the current cacheStatus observable.
func (m *Manager) Status() Status {
	return statusValues[atomic.LoadInt32(&m.status)]
}

// ScriptWarmupInput is one precomputation unit WarmupCache compiles and
// caches synchronously.
type ScriptWarmupInput struct {
	ScriptName    string
	ScriptContent string
	Deps          []string
	Compile       func(content string) (any, error)
}

// WarmupCache precomputes and caches every script in scripts
// synchronously, moving the cacheStatus observable Idle -> Warming ->
// Ready as it runs (spec.md §4.11). Entries already cached under the
// same key are left untouched; a compile failure is skipped rather than
// aborting the whole warmup.
func (m *Manager) WarmupCache(scripts []ScriptWarmupInput) error {
	m.setStatus(StatusWarming)
	defer m.setStatus(StatusReady)

	for _, s := range scripts {
		key := ScriptKey(s.ScriptContent, s.ScriptName, s.Deps)
		if _, ok := m.Scripts.Get(key); ok {
			continue
		}
		handle, err := s.Compile(s.ScriptContent)
		if err != nil {
			continue
		}
		m.Scripts.Put(key, ScriptEntry{Handle: handle, CachedAt: time.Now(), SizeBytes: int64(len(s.ScriptContent))})
	}
	return nil
}

// Totals rolls up hit-ratio and entry/size counters across all three
// sub-caches.
func (m *Manager) Totals() Stats {
	s, l, g := m.Scripts.Stats(), m.Libraries.Stats(), m.Graphs.Stats()
	total := Stats{
		Entries:   s.Entries + l.Entries + g.Entries,
		TotalSize: s.TotalSize + l.TotalSize + g.TotalSize,
		Hits:      s.Hits + l.Hits + g.Hits,
		Misses:    s.Misses + l.Misses + g.Misses,
		Evictions: s.Evictions + l.Evictions + g.Evictions,
	}
	if total.Hits+total.Misses > 0 {
		total.HitRatio = float64(total.Hits) / float64(total.Hits+total.Misses)
	}
	return total
}
