package scan

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Filter defines criteria for including/excluding files during a scan.
type Filter struct {
	// Include is a list of name or path patterns to include (supports wildcards)
	Include []string
	// Exclude is a list of name or path patterns to exclude (supports wildcards)
	Exclude []string
	// ExcludeDirs is a list of directory names to skip entirely (e.g. ".git")
	ExcludeDirs []string
	// MinSize is the minimum file size to include
	MinSize int64
	// MaxSize is the maximum file size to include (0 means no limit)
	MaxSize int64

	// Compiled patterns (internal)
	includePatterns []*regexp.Regexp
	excludePatterns []*regexp.Regexp
	excludeDirs     []*regexp.Regexp
}

// NewFilter creates a filter that matches every file.
func NewFilter() *Filter {
	return &Filter{}
}

// Compile compiles the filter patterns for efficient matching.
func (f *Filter) Compile() error {
	var err error

	f.includePatterns, err = compilePatterns(f.Include)
	if err != nil {
		return err
	}

	f.excludePatterns, err = compilePatterns(f.Exclude)
	if err != nil {
		return err
	}

	f.excludeDirs, err = compilePatterns(f.ExcludeDirs)
	if err != nil {
		return err
	}

	return nil
}

// Match checks a file, given by its slash-separated path relative to the
// scan root, and its size.
func (f *Filter) Match(relPath string, size int64) bool {
	if !f.matchPath(relPath) {
		return false
	}
	return f.MatchSize(size)
}

// MatchSize checks the size bounds.
func (f *Filter) MatchSize(size int64) bool {
	if size < f.MinSize {
		return false
	}
	if f.MaxSize > 0 && size > f.MaxSize {
		return false
	}
	return true
}

// SkipDir reports whether a directory with the given base name is excluded.
func (f *Filter) SkipDir(name string) bool {
	for _, pattern := range f.excludeDirs {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}

// matchPath tests patterns against both the base name and the relative path,
// so "*.png" and "assets/*" both work.
func (f *Filter) matchPath(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	name := relPath
	if idx := strings.LastIndex(relPath, "/"); idx != -1 {
		name = relPath[idx+1:]
	}

	// If include patterns are specified, the file must match at least one
	if len(f.includePatterns) > 0 {
		matched := false
		for _, pattern := range f.includePatterns {
			if pattern.MatchString(name) || pattern.MatchString(relPath) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, pattern := range f.excludePatterns {
		if pattern.MatchString(name) || pattern.MatchString(relPath) {
			return false
		}
	}

	return true
}

// MatchPattern reports whether name matches a single wildcard pattern.
func MatchPattern(pattern, name string) bool {
	re, err := wildcardToRegexp(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(name)
}

// compilePatterns converts wildcard patterns to regexps.
func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	result := make([]*regexp.Regexp, 0, len(patterns))

	for _, pattern := range patterns {
		re, err := wildcardToRegexp(pattern)
		if err != nil {
			return nil, err
		}
		result = append(result, re)
	}

	return result, nil
}

// wildcardToRegexp converts a wildcard pattern to a regexp.
// Supports * (match any characters) and ? (match single character).
func wildcardToRegexp(pattern string) (*regexp.Regexp, error) {
	var result strings.Builder
	result.WriteString("^")

	for _, c := range pattern {
		switch c {
		case '*':
			result.WriteString(".*")
		case '?':
			result.WriteString(".")
		default:
			result.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	result.WriteString("$")
	return regexp.Compile(result.String())
}
