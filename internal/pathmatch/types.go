// Package pathmatch finds files whose full path matches a regular expression.
//
// The walk prunes whole subtrees by matching each directory name against the
// corresponding "/"-separated segment of the pattern, so a search rooted high
// in the filesystem only visits directories that can contribute to a match.
// A segment such as ".*" that is meant to span several directory levels will
// only ever match one level: this is an accepted approximation, and every
// returned path is still verified against the complete pattern.
package pathmatch

import (
	"sort"
)

// Separator is the segment delimiter used in path patterns and in the paths
// they are tested against. Paths are converted with filepath.ToSlash so
// patterns are written the same way on every platform.
const Separator = "/"

// SkipFunc receives directories and links the walk could not or would not
// follow. The walk always continues after calling it.
type SkipFunc func(path string, err error)

// Options configures a path search.
type Options struct {
	// FollowSymlinks descends into symlinked directories.
	// Cycles are detected and reported through OnSkip.
	FollowSymlinks bool

	// OnSkip is called for every directory that is skipped because it could
	// not be read, and for every symlink cycle. May be nil.
	OnSkip SkipFunc
}

// Set is a deduplicated collection of absolute file paths.
type Set map[string]struct{}

// NewSet creates a set holding the given paths.
func NewSet(paths ...string) Set {
	s := make(Set, len(paths))
	for _, p := range paths {
		s[p] = struct{}{}
	}
	return s
}

// Add inserts a path.
func (s Set) Add(path string) {
	s[path] = struct{}{}
}

// Has reports whether path is in the set.
func (s Set) Has(path string) bool {
	_, ok := s[path]
	return ok
}

// Len returns the number of paths.
func (s Set) Len() int {
	return len(s)
}

// Union adds every path of other to s. other is not modified.
func (s Set) Union(other Set) {
	for p := range other {
		s[p] = struct{}{}
	}
}

// Sorted returns the paths in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
