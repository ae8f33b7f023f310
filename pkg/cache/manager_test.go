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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org/forgeci/pkg/config"
)

func newTestManager(t *testing.T, cfg config.CacheConfig) *Manager {
	t.Helper()
	if cfg.BackgroundCleanupInterval <= 0 {
		cfg.BackgroundCleanupInterval = time.Hour
	}
	m := New(cfg, nil)
	t.Cleanup(m.Close)
	return m
}

// S7: cache script x with deps [d]; first read null, after write second
// read returns fromCache=true; hits==1, misses==1.
func TestScriptCacheHitAfterWrite(t *testing.T) {
	m := newTestManager(t, config.CacheConfig{MaxCacheSize: 1 << 20})

	key := ScriptKey("echo x", "x", []string{"d"})

	_, ok := m.Scripts.Get(key)
	assert.False(t, ok, "expected a miss before any write")

	m.Scripts.Put(key, ScriptEntry{Handle: "compiled", CachedAt: time.Now(), SizeBytes: 10})

	entry, ok := m.Scripts.Get(key)
	require.True(t, ok, "expected a hit after write")
	assert.Equal(t, "compiled", entry.Handle)

	stats := m.Scripts.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

// invariant 8: a cache-write whose referenced artifact is then deleted
// becomes a miss on the next lookup, and the invalid entry is evicted.
func TestLibraryCacheInvalidatesOnDeletedArtifact(t *testing.T) {
	m := newTestManager(t, config.CacheConfig{MaxCacheSize: 1 << 20})

	jar := filepath.Join(t.TempDir(), "lib.jar")
	require.NoError(t, os.WriteFile(jar, []byte("jar-bytes"), 0o644))
	hash, err := HashFile(jar)
	require.NoError(t, err)

	key := LibraryKey("mylib", "1.0.0", hash)
	m.Libraries.Put(key, LibraryEntry{JarFile: jar, SourceHash: hash, CompiledAt: time.Now(), SizeBytes: 9})

	_, ok := m.Libraries.Get(key)
	assert.True(t, ok, "expected a hit while the jar still exists")

	require.NoError(t, os.Remove(jar))

	_, ok = m.Libraries.Get(key)
	assert.False(t, ok, "expected a miss once the referenced jar is deleted")

	stats := m.Libraries.Stats()
	assert.Equal(t, uint64(1), stats.Evictions, "expected the invalid entry to have been evicted")
	assert.Equal(t, 0, stats.Entries, "expected the invalid entry to be removed from the cache")
}

func TestLibraryCacheInvalidatesOnSourceChange(t *testing.T) {
	m := newTestManager(t, config.CacheConfig{MaxCacheSize: 1 << 20})

	jar := filepath.Join(t.TempDir(), "lib.jar")
	os.WriteFile(jar, []byte("v1"), 0o644)
	hash1, _ := HashFile(jar)
	key := LibraryKey("mylib", "1.0.0", hash1)
	m.Libraries.Put(key, LibraryEntry{JarFile: jar, SourceHash: hash1, SizeBytes: 2})

	// Recompile in place without bumping the cache key.
	os.WriteFile(jar, []byte("v2-changed"), 0o644)

	_, ok := m.Libraries.Get(key)
	assert.False(t, ok, "expected a miss once the jar's content no longer matches the cached source hash")
}

func TestPutReplacesEntryUnderSameKey(t *testing.T) {
	m := newTestManager(t, config.CacheConfig{MaxCacheSize: 1 << 20})
	key := ScriptKey("content", "name", nil)

	m.Scripts.Put(key, ScriptEntry{Handle: "first", SizeBytes: 10})
	m.Scripts.Put(key, ScriptEntry{Handle: "second", SizeBytes: 10})

	entry, ok := m.Scripts.Get(key)
	require.True(t, ok)
	assert.Equal(t, "second", entry.Handle, "expected the replacement entry to win")
	assert.Equal(t, 1, m.Scripts.Stats().Entries, "expected exactly one entry after replace")
}

func TestEnforceSizeEvictsLeastRecentlyUsedDownTo80Percent(t *testing.T) {
	m := newTestManager(t, config.CacheConfig{MaxCacheSize: 100})

	for i := 0; i < 10; i++ {
		key := ScriptKey("s", string(rune('a'+i)), nil)
		m.Scripts.Put(key, ScriptEntry{Handle: i, SizeBytes: 20})
	}

	stats := m.Scripts.Stats()
	assert.LessOrEqual(t, stats.TotalSize, int64(100), "expected total size to stay within the configured limit")
	assert.NotZero(t, stats.Evictions, "expected least-recently-used entries to have been evicted")
}

func TestWarmupCacheMovesStatusIdleWarmingReady(t *testing.T) {
	m := newTestManager(t, config.CacheConfig{MaxCacheSize: 1 << 20})

	assert.Equal(t, StatusIdle, m.Status())

	err := m.WarmupCache([]ScriptWarmupInput{
		{ScriptName: "build", ScriptContent: "echo hi", Deps: []string{"d"}, Compile: func(content string) (any, error) { return "compiled:" + content, nil }},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusReady, m.Status())

	key := ScriptKey("echo hi", "build", []string{"d"})
	entry, ok := m.Scripts.Get(key)
	require.True(t, ok, "expected warmup to have precomputed and cached the script")
	assert.Equal(t, "compiled:echo hi", entry.Handle)
}

func TestBackgroundCleanupEnforcesAge(t *testing.T) {
	m := New(config.CacheConfig{MaxCacheSize: 1 << 20, MaxCacheAge: 10 * time.Millisecond, BackgroundCleanupInterval: 15 * time.Millisecond}, nil)
	defer m.Close()

	key := ScriptKey("s", "aging", nil)
	m.Scripts.Put(key, ScriptEntry{Handle: "v", SizeBytes: 1})

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 0, m.Scripts.Stats().Entries, "expected the background worker to evict the aged-out entry")
}

func TestTotalsRollsUpAllSubCaches(t *testing.T) {
	m := newTestManager(t, config.CacheConfig{MaxCacheSize: 1 << 20})

	m.Scripts.Put(ScriptKey("a", "a", nil), ScriptEntry{SizeBytes: 1})
	m.Scripts.Get(ScriptKey("a", "a", nil))
	m.Graphs.Get("missing")

	totals := m.Totals()
	assert.Equal(t, uint64(1), totals.Hits)
	assert.Equal(t, uint64(1), totals.Misses)
	assert.Equal(t, 0.5, totals.HitRatio)
}
