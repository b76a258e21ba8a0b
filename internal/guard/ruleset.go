// Package guard implements the built-in pattern classification and
// protected-path rules used by the builtin hooks.
package guard

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

//go:embed ruleset.toml
var defaultRuleset []byte

// Category is a named group of textual patterns describing one class of
// dangerous operation.
type Category struct {
	Name     string
	compiled []*regexp.Regexp
	raw      []string
}

// Patterns returns the original pattern strings of the category.
func (c *Category) Patterns() []string {
	return append([]string(nil), c.raw...)
}

// PathRules holds the protected-path tables used by the path guard.
type PathRules struct {
	// SystemPrefixes are prefix-matched against the normalized path.
	SystemPrefixes []string
	// SensitiveSubstrings are matched anywhere in the normalized path.
	SensitiveSubstrings []string
	// OSSubstrings are OS-specific locations, matched anywhere.
	OSSubstrings []string
}

// Ruleset is the versioned set of pattern categories and path rules.
// A Ruleset is immutable after load; Classify and IsProtectedPath are
// pure functions of (input, ruleset).
type Ruleset struct {
	Version    string
	Categories []Category
	Paths      PathRules
}

// rulesetFile mirrors the on-disk TOML shape.
type rulesetFile struct {
	Version    string `toml:"version"`
	Categories []struct {
		Name     string   `toml:"name"`
		Patterns []string `toml:"patterns"`
	} `toml:"category"`
	Paths struct {
		SystemPrefixes      []string `toml:"system_prefixes"`
		SensitiveSubstrings []string `toml:"sensitive_substrings"`
		OSSubstrings        []string `toml:"os_substrings"`
	} `toml:"paths"`
}

// DefaultRuleset parses and compiles the embedded ruleset. The embedded
// file is validated by tests, so a failure here is a build defect.
func DefaultRuleset() *Ruleset {
	rs, err := parseRuleset(defaultRuleset)
	if err != nil {
		panic(fmt.Sprintf("embedded ruleset is invalid: %v", err))
	}
	return rs
}

// LoadRuleset reads and compiles a ruleset from path. An invalid pattern
// is a load error, not a silent skip: a guard running with half its
// rules missing is worse than one that refuses to start.
func LoadRuleset(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset: %w", err)
	}
	rs, err := parseRuleset(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ruleset %s: %w", path, err)
	}
	return rs, nil
}

func parseRuleset(data []byte) (*Ruleset, error) {
	var file rulesetFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	if file.Version == "" {
		return nil, fmt.Errorf("ruleset version is required")
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("ruleset has no categories")
	}

	rs := &Ruleset{Version: file.Version}
	seen := make(map[string]bool, len(file.Categories))
	for _, c := range file.Categories {
		if c.Name == "" {
			return nil, fmt.Errorf("category without a name")
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate category %q", c.Name)
		}
		seen[c.Name] = true

		cat := Category{Name: c.Name, raw: c.Patterns}
		for _, p := range c.Patterns {
			// Case-insensitive substring search; anchoring is up to the
			// pattern author.
			re, err := regexp.Compile(`(?i)` + p)
			if err != nil {
				return nil, fmt.Errorf("category %q pattern %q: %w", c.Name, p, err)
			}
			cat.compiled = append(cat.compiled, re)
		}
		rs.Categories = append(rs.Categories, cat)
	}

	rs.Paths = PathRules{
		SystemPrefixes:      file.Paths.SystemPrefixes,
		SensitiveSubstrings: file.Paths.SensitiveSubstrings,
		OSSubstrings:        file.Paths.OSSubstrings,
	}
	return rs, nil
}
