package guard

import (
	"path"
	"strings"
)

// IsProtectedPath reports whether p points at a protected filesystem
// location. The check is deliberately case-insensitive on every
// platform: over-blocking beats a case-based bypass on a
// case-insensitive filesystem.
//
// The traversal check runs first, on the raw string, before any
// normalization. A relative path can be crafted to look safe before
// normalization while resolving into a protected location, and a
// malformed path must not be able to break normalization and slip past
// the check. This function never panics for any input.
func (r *Ruleset) IsProtectedPath(p string) bool {
	if p == "" {
		return false
	}

	if containsTraversal(p) {
		return true
	}

	normalized := normalizePath(p)

	for _, prefix := range r.Paths.SystemPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return true
		}
	}

	for _, sub := range r.Paths.SensitiveSubstrings {
		if strings.Contains(normalized, sub) {
			return true
		}
	}

	for _, sub := range r.Paths.OSSubstrings {
		if strings.Contains(normalized, sub) {
			return true
		}
	}

	return false
}

// containsTraversal reports whether the raw path contains a
// parent-directory segment, with either separator style.
func containsTraversal(p string) bool {
	for _, segment := range strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == '\\'
	}) {
		if segment == ".." {
			return true
		}
	}
	return false
}

// normalizePath unifies separators, lower-cases, and structurally
// collapses "." segments for comparison against the rule tables.
func normalizePath(p string) string {
	normalized := strings.ToLower(strings.ReplaceAll(p, "\\", "/"))
	cleaned := path.Clean(normalized)
	if strings.HasSuffix(normalized, "/") && !strings.HasSuffix(cleaned, "/") {
		// Keep the trailing separator so directory prefixes like "/etc/"
		// still match a bare "/etc/".
		cleaned += "/"
	}
	return cleaned
}
