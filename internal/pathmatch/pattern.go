package pathmatch

import (
	"path/filepath"
	"regexp"
	"strings"

	apperrors "github.com/nzp/logfind/internal/errors"
)

// Pattern is a compiled path regular expression.
type Pattern struct {
	source   string
	re       *regexp.Regexp
	segments []string
	absolute bool
}

// Compile parses a path pattern. The returned error matches
// errors.ErrInvalidPattern.
func Compile(pattern string) (*Pattern, error) {
	re, err := compilePrefix(pattern)
	if err != nil {
		return nil, apperrors.InvalidPattern(pattern, err)
	}

	return &Pattern{
		source:   pattern,
		re:       re,
		segments: splitSegments(pattern),
		absolute: strings.HasPrefix(pattern, Separator),
	}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source pattern.
func (p *Pattern) String() string {
	return p.source
}

// Segments returns the directory segments of the pattern, without the empty
// leading segment of an absolute pattern. The last element is the terminal
// segment matched against file names.
func (p *Pattern) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// Absolute reports whether the pattern is matched against absolute paths.
// Relative patterns are matched against the path relative to the walk root.
func (p *Pattern) Absolute() bool {
	return p.absolute
}

// Match reports whether path, a file below root, satisfies the complete
// pattern. It applies the same subject rules as the walk and no pruning.
func (p *Pattern) Match(root, path string) bool {
	subject, ok := p.subject(root, path)
	if !ok {
		return false
	}
	return p.re.MatchString(subject)
}

// subject returns the string a file path is tested against.
func (p *Pattern) subject(root, path string) (string, bool) {
	if p.absolute {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", false
		}
		return filepath.ToSlash(abs), true
	}

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// compilePrefix compiles re so that it only matches at position 0 of the
// subject while allowing trailing unmatched text.
func compilePrefix(re string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + re + `)`)
}

// splitSegments splits a pattern on the separator and drops the empty
// segment produced by a leading separator. A separator inside a bracket
// expression such as [^/] does not split. An escaped separator \/ does,
// and the backslash is dropped with it.
func splitSegments(pattern string) []string {
	var parts []string
	start, inClass := 0, false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\':
			if !inClass && i+1 < len(pattern) && pattern[i+1] == '/' {
				parts = append(parts, pattern[start:i])
				start = i + 2
			}
			i++
		case inClass:
			if c == '[' && strings.HasPrefix(pattern[i:], "[:") {
				if end := strings.Index(pattern[i+2:], ":]"); end >= 0 {
					i += end + 3
				}
			} else if c == ']' {
				inClass = false
			}
		case c == '[':
			inClass = true
			if i+1 < len(pattern) && pattern[i+1] == '^' {
				i++
			}
			// A leading ] is a literal member of the class.
			if i+1 < len(pattern) && pattern[i+1] == ']' {
				i++
			}
		case c == '/':
			parts = append(parts, pattern[start:i])
			start = i + 1
		}
	}
	parts = append(parts, pattern[start:])

	if parts[0] == "" {
		parts = parts[1:]
	}
	return parts
}
