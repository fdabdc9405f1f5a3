package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Policy decides which file names match a table pattern.
type Policy int

const (
	// Substring matches files whose name contains the pattern,
	// case-insensitively. More than one match is ambiguous.
	Substring Policy = iota + 1

	// Exact matches files whose name without extension equals the
	// pattern, case-insensitively.
	Exact
)

// ErrInvalidPolicy is returned for an unknown match policy.
var ErrInvalidPolicy = errors.New("match policy must be substring or exact")

// ParsePolicy converts a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "substring":
		return Substring, nil
	case "exact":
		return Exact, nil
	default:
		return 0, fmt.Errorf("%w: got %q", ErrInvalidPolicy, s)
	}
}

func (p Policy) String() string {
	switch p {
	case Substring:
		return "substring"
	case Exact:
		return "exact"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Status is the outcome of a resolution.
type Status int

const (
	NotFound Status = iota
	Found
	Ambiguous
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case Ambiguous:
		return "ambiguous"
	default:
		return "not found"
	}
}

// Resolution is the result of matching a pattern against a directory.
// Path is set only when Status is Found. Candidates lists every match in
// name order.
type Resolution struct {
	Status     Status
	Path       string
	Candidates []string
}

// AmbiguousError reports a pattern matching more than one file.
type AmbiguousError struct {
	Pattern    string
	Dir        string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	names := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		names[i] = filepath.Base(c)
	}
	return fmt.Sprintf("pattern %q matches %d files in %s: %s", e.Pattern, len(e.Candidates), e.Dir, strings.Join(names, ", "))
}

// Resolve finds the file in dir matching pattern under policy. Only regular
// files are considered; names starting with "." or "_" are skipped. When
// exts is given, only files with one of those extensions are considered.
// The listing is sorted, so the result is deterministic.
func Resolve(dir, pattern string, policy Policy, exts ...string) (Resolution, error) {
	if policy != Substring && policy != Exact {
		return Resolution{}, fmt.Errorf("%w: got %s", ErrInvalidPolicy, policy)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	want := strings.ToLower(pattern)
	var candidates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		ext := filepath.Ext(name)
		if len(exts) > 0 && !hasExt(ext, exts) {
			continue
		}
		if matches(strings.ToLower(name), strings.ToLower(ext), want, policy) {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}
	sort.Strings(candidates)

	switch {
	case len(candidates) == 0:
		return Resolution{Status: NotFound}, nil
	case len(candidates) == 1:
		return Resolution{Status: Found, Path: candidates[0], Candidates: candidates}, nil
	default:
		return Resolution{Status: Ambiguous, Candidates: candidates}, nil
	}
}

func matches(name, ext, pattern string, policy Policy) bool {
	if policy == Exact {
		return strings.TrimSuffix(name, ext) == pattern
	}
	return strings.Contains(name, pattern)
}

func hasExt(ext string, exts []string) bool {
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
