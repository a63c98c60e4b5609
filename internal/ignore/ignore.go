// Package ignore implements path exclusion for scans: a fixed default list
// plus an optional per-project .a8ignore override file.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"
)

// OverrideFileName is the project-relative override file.
const OverrideFileName = ".a8ignore"

// DefaultPatterns covers generated and dependency directories common to
// almost all modern projects, plus minified and lockfile noise.
func DefaultPatterns() []string {
	return []string{
		"node_modules", ".git", "dist", "build", "vendor", "__pycache__",
		".venv", "venv", ".next", ".cache", ".tmp", "site-packages",
		"*.min.js", "*.min.css", "*.map", "*.log", "package-lock.json",
	}
}

// Matcher holds an ordered, deduplicated pattern list.
type Matcher struct {
	patterns []string
}

// Load builds a Matcher from the defaults plus any .a8ignore entries under
// root. Blank lines and # comments are skipped; trailing slashes are trimmed
// so "dist/" and "dist" mean the same thing. Order is preserved, duplicates
// dropped. An unreadable override file is treated as absent.
func Load(root string) Matcher {
	patterns := DefaultPatterns()

	if f, err := os.Open(filepath.Join(root, OverrideFileName)); err == nil {
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			patterns = append(patterns, strings.TrimSuffix(line, "/"))
		}
		_ = f.Close()
	}

	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return Matcher{patterns: out}
}

// New builds a Matcher from an explicit pattern list (used in tests and by
// callers that manage patterns themselves).
func New(patterns []string) Matcher {
	return Matcher{patterns: patterns}
}

// Patterns returns the effective pattern list in load order.
func (m Matcher) Patterns() []string {
	out := make([]string, len(m.patterns))
	copy(out, m.patterns)
	return out
}

// ShouldIgnore reports whether path should be excluded from scanning. The
// path is made project-relative against root when possible. Non-glob
// patterns match whole path segments only: pattern "env" matches "env/x.py"
// but never "environment.py". Glob patterns are matched against both the
// relative path and the bare filename.
func (m Matcher) ShouldIgnore(path, root string) bool {
	rel := relativize(path, root)
	name := filepath.Base(rel)
	parts := strings.Split(rel, "/")

	for _, raw := range m.patterns {
		pattern := strings.TrimSuffix(strings.TrimSpace(raw), "/")
		if pattern == "" {
			continue
		}
		pattern = strings.ReplaceAll(pattern, "\\", "/")

		if isGlob(pattern) {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				return true
			}
			if ok, _ := doublestar.Match(pattern, name); ok {
				return true
			}
			continue
		}

		if segmentMatch(parts, pattern) {
			return true
		}
		if rel == pattern || strings.HasPrefix(rel, pattern+"/") {
			return true
		}
		if name == pattern {
			return true
		}
	}
	return false
}

func relativize(path, root string) string {
	p := filepath.ToSlash(filepath.Clean(path))
	if root == "" {
		return p
	}
	r := filepath.ToSlash(filepath.Clean(root))
	if rel, err := filepath.Rel(r, p); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return p
}

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[]")
}

func segmentMatch(parts []string, pattern string) bool {
	for _, seg := range parts {
		if seg == pattern {
			return true
		}
	}
	return false
}
