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

package stash

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// MatchGlob is the exported form of matchGlob, reused by pkg/handler's
// ArchiveArtifacts/PublishTestResults handlers so every glob-matching
// step in this module shares one implementation.
func MatchGlob(pattern, relPath string) bool {
	return matchGlob(pattern, relPath)
}

// matchGlob reports whether relPath (slash-separated, relative to the
// root being walked) matches pattern. Plain filepath.Match handles most
// patterns; "**" segments (matching across directory boundaries, which
// filepath.Match can't express) fall back to a translated regexp. A
// pattern that fails to compile either way is matched as a literal path,
// per §4.3's "glob patterns that fail to parse are attempted as literal
// paths."
func matchGlob(pattern, relPath string) bool {
	pattern = filepath.ToSlash(pattern)
	relPath = filepath.ToSlash(relPath)

	if !strings.Contains(pattern, "**") {
		if ok, err := filepath.Match(pattern, relPath); err == nil {
			if ok {
				return true
			}
			// filepath.Match doesn't let "*" cross "/"; also try the
			// recursive translation so "*.go" style patterns without an
			// explicit "**" still reach nested files, matching how most
			// CI stash configs expect includes to behave.
		}
	}

	if re := globRegexp(pattern); re != nil {
		return re.MatchString(relPath)
	}

	return pattern == relPath
}

var globRegexpCache sync.Map // pattern string -> *regexp.Regexp (nil entries cached too)

func globRegexp(pattern string) *regexp.Regexp {
	if cached, ok := globRegexpCache.Load(pattern); ok {
		re, _ := cached.(*regexp.Regexp)
		return re
	}

	var b strings.Builder
	b.WriteString("^")
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				b.WriteString(".*")
				i++
				if i+1 < len(runes) && runes[i+1] == '/' {
					i++
				}
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		case '.', '+', '(', ')', '|', '^', '$', '[', ']', '{', '}', '\\':
			b.WriteString("\\")
			b.WriteRune(runes[i])
		default:
			b.WriteRune(runes[i])
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		globRegexpCache.Store(pattern, (*regexp.Regexp)(nil))
		return nil
	}
	globRegexpCache.Store(pattern, re)
	return re
}

// matchAny reports whether relPath matches at least one pattern.
func matchAny(patterns []string, relPath string) bool {
	for _, p := range patterns {
		if matchGlob(p, relPath) {
			return true
		}
	}
	return false
}

// splitPatternList splits a comma-separated glob list (Stash.Includes /
// Stash.Excludes, ArchiveArtifacts.Pattern when multi-valued), trimming
// whitespace and dropping empty entries.
func splitPatternList(list string) []string {
	if list == "" {
		return nil
	}
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
