package pathmatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	apperrors "github.com/nzp/logfind/internal/errors"
)

// segmentCacheSize bounds the number of compiled segment regexes kept
// across searches. Config files rarely hold more than a few dozen patterns.
const segmentCacheSize = 512

// Matcher walks directory trees for path patterns.
// It is safe for concurrent use; each FindPaths call owns its walk state.
type Matcher struct {
	// segments caches compiled segment regexes by source. A nil entry
	// means the segment does not compile on its own and never prunes.
	segments *lru.Cache[string, *regexp.Regexp]
}

// New creates a Matcher.
func New() (*Matcher, error) {
	cache, err := lru.New[string, *regexp.Regexp](segmentCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create segment cache: %w", err)
	}
	return &Matcher{segments: cache}, nil
}

// FindPaths returns every file below root whose path matches pattern.
// See (*Matcher).FindPaths.
func FindPaths(ctx context.Context, root, pattern string, opts Options) (Set, error) {
	m, err := New()
	if err != nil {
		return nil, err
	}
	return m.FindPaths(ctx, root, pattern, opts)
}

// FindPaths compiles pattern and walks root for matching files.
//
// An invalid pattern fails with errors.ErrInvalidPattern before any I/O. A
// missing root fails with errors.ErrNotFound. Directories that cannot be
// read are skipped and reported through opts.OnSkip.
func (m *Matcher) FindPaths(ctx context.Context, root, pattern string, opts Options) (Set, error) {
	p, err := Compile(pattern)
	if err != nil {
		return nil, err
	}
	return m.Find(ctx, root, p, opts)
}

// Find walks root for files matching a compiled pattern.
func (m *Matcher) Find(ctx context.Context, root string, p *Pattern, opts Options) (Set, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NotFound(absRoot, err)
		}
		// Exists but unreadable: best effort, nothing found.
		w := m.newWalk(absRoot, p, opts)
		w.skip(absRoot, apperrors.PermissionDenied(absRoot, err))
		return w.found, nil
	}
	if !info.IsDir() {
		return nil, apperrors.NotFound(absRoot, fmt.Errorf("not a directory"))
	}

	w := m.newWalk(absRoot, p, opts)

	segs, ok := w.alignRoot(p.segments)
	if !ok {
		slog.Debug("pattern cannot match below root",
			slog.String("root", absRoot),
			slog.String("pattern", p.source))
		return w.found, nil
	}

	if opts.FollowSymlinks {
		w.active[realPath(absRoot)] = struct{}{}
	}

	if err := w.walk(ctx, absRoot, segs); err != nil {
		return nil, err
	}

	slog.Debug("path_search_complete",
		slog.String("root", absRoot),
		slog.String("pattern", p.source),
		slog.Int("files", len(w.found)))

	return w.found, nil
}

// Selects reports whether a walk of root for p would select path, a file
// below root, without touching the file system. Each directory between root
// and path must match the segment the walk would test it against, at the
// depth where the walk stops descending.
func (m *Matcher) Selects(root string, p *Pattern, path string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	w := m.newWalk(absRoot, p, Options{})
	segs, ok := w.alignRoot(p.segments)
	if !ok {
		return false
	}

	rel, err := filepath.Rel(absRoot, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	var dirs []string
	if dir := filepath.Dir(rel); dir != "." {
		dirs = strings.Split(filepath.ToSlash(dir), Separator)
	}

	if len(dirs) != max(len(segs)-1, 0) {
		return false
	}
	for i, dir := range dirs {
		if !w.segmentMatches(segs[i], dir) {
			return false
		}
	}
	return p.Match(absRoot, path)
}

// walk holds the state of one FindPaths call.
type walk struct {
	m       *Matcher
	root    string
	pattern *Pattern
	opts    Options
	found   Set
	// active holds the resolved directories on the current descent path
	// when following symlinks; a link back into it is a cycle.
	active map[string]struct{}
}

func (m *Matcher) newWalk(root string, p *Pattern, opts Options) *walk {
	return &walk{
		m:       m,
		root:    root,
		pattern: p,
		opts:    opts,
		found:   make(Set),
		active:  make(map[string]struct{}),
	}
}

// alignRoot consumes the segments an absolute pattern spends on the root's
// own path components. It reports false if a component cannot match.
func (w *walk) alignRoot(segs []string) ([]string, bool) {
	if !w.pattern.absolute {
		return segs, true
	}

	for _, comp := range strings.Split(filepath.ToSlash(w.root), Separator) {
		if comp == "" {
			continue
		}
		if len(segs) <= 1 {
			break
		}
		if !w.segmentMatches(segs[0], comp) {
			return nil, false
		}
		segs = segs[1:]
	}
	return segs, true
}

// walk visits dir with the remaining segments. Each recursive call receives
// its own slice header, so sibling branches never observe each other's
// consumed segments.
func (w *walk) walk(ctx context.Context, dir string, segs []string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.skip(dir, apperrors.PermissionDenied(dir, err))
		return nil
	}

	if len(segs) > 1 {
		for _, entry := range entries {
			if !w.segmentMatches(segs[0], entry.Name()) {
				continue
			}
			child := filepath.Join(dir, entry.Name())
			key, ok := w.descend(child, entry)
			if !ok {
				continue
			}
			if key != "" {
				w.active[key] = struct{}{}
			}
			err := w.walk(ctx, child, segs[1:])
			if key != "" {
				delete(w.active, key)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if w.isDir(path, entry) {
			continue
		}
		if w.pattern.Match(w.root, path) {
			w.found.Add(path)
		}
	}
	return nil
}

// descend reports whether the walk should enter child. When following
// symlinks it also returns the resolved path that identifies child on the
// current descent path.
func (w *walk) descend(child string, entry fs.DirEntry) (string, bool) {
	if !w.opts.FollowSymlinks {
		return "", entry.IsDir()
	}
	if entry.IsDir() {
		return realPath(child), true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return "", false
	}

	resolved, err := filepath.EvalSymlinks(child)
	if err != nil {
		w.skip(child, apperrors.PermissionDenied(child, err))
		return "", false
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		return "", false
	}
	if _, seen := w.active[resolved]; seen {
		w.skip(child, apperrors.New(apperrors.ErrCodeSymlinkCycle,
			fmt.Sprintf("symlink cycle: %s -> %s", child, resolved), nil).
			WithDetail("path", child))
		return "", false
	}
	return resolved, true
}

// realPath resolves symlinks in path, falling back to path itself.
func realPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}

// isDir reports whether entry is a directory, resolving symlinks so that a
// link to a directory is never treated as a file.
func (w *walk) isDir(path string, entry fs.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// segmentMatches prefix-matches a single directory name against a segment.
func (w *walk) segmentMatches(segment, name string) bool {
	re := w.m.segment(segment)
	if re == nil {
		return true
	}
	return re.MatchString(name)
}

func (w *walk) skip(path string, err error) {
	slog.Debug("skipping directory",
		slog.String("path", path),
		slog.String("error", err.Error()))
	if w.opts.OnSkip != nil {
		w.opts.OnSkip(path, err)
	}
}

// segment returns the compiled prefix regex for a segment, or nil when the
// segment is not a valid expression on its own, e.g. a group that spans a
// separator. Such segments do not prune.
func (m *Matcher) segment(source string) *regexp.Regexp {
	if re, ok := m.segments.Get(source); ok {
		return re
	}
	re, err := compilePrefix(source)
	if err != nil {
		re = nil
	}
	m.segments.Add(source, re)
	return re
}
