// Package contentsearch filters files by the regular expressions their
// contents match.
//
// Patterns are compiled once into a Matcher, an immutable value that every
// worker evaluates independently. Files are read whole and patterns are
// searched anywhere in the buffer with multiline anchors.
package contentsearch

import (
	"errors"
	"regexp"

	apperrors "github.com/nzp/logfind/internal/errors"
)

// Mode combines the results of several patterns.
type Mode int

const (
	// All requires every pattern to match (AND).
	All Mode = iota
	// Any requires at least one pattern to match (OR).
	Any
)

// String returns "all" or "any".
func (m Mode) String() string {
	if m == Any {
		return "any"
	}
	return "all"
}

// Policy is the per-search combination rule.
type Policy struct {
	Mode            Mode
	CaseInsensitive bool
}

// Matcher holds compiled content patterns and the policy that combines them.
// It is never modified after Compile and is safe for concurrent use.
type Matcher struct {
	policy   Policy
	patterns []*regexp.Regexp
}

// Compile compiles every pattern with multiline anchors and, when the policy
// asks for it, case folding. All patterns are compiled before returning, and
// each invalid one contributes its own errors.ErrInvalidPattern to the
// joined error.
func Compile(patterns []string, policy Policy) (*Matcher, error) {
	flags := "(?m)"
	if policy.CaseInsensitive {
		flags = "(?mi)"
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	var errs []error
	for _, p := range patterns {
		re, err := regexp.Compile(flags + p)
		if err != nil {
			errs = append(errs, apperrors.InvalidPattern(p, err))
			continue
		}
		compiled = append(compiled, re)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &Matcher{policy: policy, patterns: compiled}, nil
}

// Policy returns the combination policy.
func (m *Matcher) Policy() Policy {
	return m.policy
}

// Len returns the number of patterns.
func (m *Matcher) Len() int {
	return len(m.patterns)
}

// Match reports whether content satisfies the policy. Evaluation stops as
// soon as the outcome is known. With no patterns, All matches everything and
// Any matches nothing.
func (m *Matcher) Match(content []byte) bool {
	if m.policy.Mode == Any {
		for _, re := range m.patterns {
			if re.Match(content) {
				return true
			}
		}
		return false
	}

	for _, re := range m.patterns {
		if !re.Match(content) {
			return false
		}
	}
	return true
}
