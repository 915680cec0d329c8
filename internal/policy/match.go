package policy

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Normalize converts a path to the canonical matching form: forward slashes,
// no leading "./".
func Normalize(path string) string {
	p := filepath.ToSlash(path)
	return strings.TrimPrefix(p, "./")
}

// Match reports whether a never-edit pattern matches a path. Patterns are
// anchored full-path globs: `*` matches within one path segment, `**` spans
// segments. A malformed pattern matches nothing.
func Match(pattern, path string) bool {
	ok, err := doublestar.Match(Normalize(pattern), Normalize(path))
	if err != nil {
		return false
	}
	return ok
}

// MatchesAny returns the first pattern in patterns that matches path, or ""
// when none do.
func MatchesAny(patterns []string, path string) string {
	for _, pattern := range patterns {
		if Match(pattern, path) {
			return pattern
		}
	}
	return ""
}
