package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-root ignore file, read from the top of each root.
const IgnoreFileName = ".integrityignore"

// defaultIgnorePatterns are always applied regardless of config or .integrityignore.
var defaultIgnorePatterns = []string{IgnoreFileName}

// ignorePattern is a parsed ignore pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // true = match against relative path; false = match against each path element
}

// IgnoreMatcher checks file paths against a set of ignore patterns.
// Patterns without '/' match against any single element of the relative path,
// so "*.log" hides every log file and ".git" hides everything below a .git directory.
// Patterns with '/' match against the relative path from the root, or any
// leading part of it.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, ignorePattern{
			pattern:   strings.Trim(raw, "/"),
			matchPath: strings.Contains(strings.Trim(raw, "/"), "/"),
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether the given relative path should be ignored.
// relativePath should use filepath separators and be relative to the root.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	if len(m.patterns) == 0 || relativePath == "" {
		return false
	}

	// Normalize to forward slashes for consistent matching.
	elems := strings.Split(filepath.ToSlash(relativePath), "/")

	for _, p := range m.patterns {
		if p.matchPath {
			for i := range elems {
				if match(p.pattern, strings.Join(elems[:i+1], "/")) {
					return true
				}
			}
			continue
		}
		for _, elem := range elems {
			if match(p.pattern, elem) {
				return true
			}
		}
	}
	return false
}

// match wraps filepath.Match; a malformed pattern never matches.
func match(pattern, name string) bool {
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
