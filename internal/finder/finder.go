// Package finder runs the two-stage search: collect candidate files whose
// paths match any of the path regexes, then keep the candidates whose
// contents satisfy the search terms.
package finder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nzp/logfind/internal/contentsearch"
	"github.com/nzp/logfind/internal/pathmatch"
)

// Request describes one search.
type Request struct {
	// Root is the directory the path regexes are walked from.
	Root string
	// PathRegexes select candidate files. Their results are unioned.
	PathRegexes []string
	// Terms are the content regexes combined according to Policy.
	Terms  []string
	Policy contentsearch.Policy
	// Workers bounds concurrent file reads. 0 means one per CPU.
	Workers        int
	FollowSymlinks bool
}

// Skip records a directory or file that could not be examined.
type Skip struct {
	Path string
	Err  error
}

// Result is the outcome of Find.
type Result struct {
	// Candidates are the files selected by the path regexes, sorted.
	Candidates []string
	// Matches are the candidates whose contents satisfy the terms, in
	// candidate order.
	Matches  []string
	Skipped  []Skip
	Duration time.Duration
}

// CandidateOptions configures Candidates.
type CandidateOptions struct {
	FollowSymlinks bool
	OnSkip         pathmatch.SkipFunc
}

// Finder runs searches with a shared path matcher so that segment regexes
// compiled for one search are reused by the next.
type Finder struct {
	paths *pathmatch.Matcher
}

// New creates a Finder.
func New() (*Finder, error) {
	m, err := pathmatch.New()
	if err != nil {
		return nil, err
	}
	return &Finder{paths: m}, nil
}

// CompilePaths compiles every path regex. Invalid regexes are all reported
// in one joined error.
func CompilePaths(pathRegexes []string) ([]*pathmatch.Pattern, error) {
	patterns := make([]*pathmatch.Pattern, 0, len(pathRegexes))
	var errs []error
	for _, re := range pathRegexes {
		p, err := pathmatch.Compile(re)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		patterns = append(patterns, p)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return patterns, nil
}

// Candidates walks root once per path regex and unions the results. No
// directory is read unless every path regex compiles.
func (f *Finder) Candidates(ctx context.Context, root string, pathRegexes []string, opts CandidateOptions) (pathmatch.Set, error) {
	patterns, err := CompilePaths(pathRegexes)
	if err != nil {
		return nil, err
	}

	walkOpts := pathmatch.Options{
		FollowSymlinks: opts.FollowSymlinks,
		OnSkip:         opts.OnSkip,
	}

	all := make(pathmatch.Set)
	for _, p := range patterns {
		found, err := f.paths.Find(ctx, root, p, walkOpts)
		if err != nil {
			return nil, err
		}
		all.Union(found)
	}
	return all, nil
}

// Find collects candidates for req and searches their contents.
func (f *Finder) Find(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	// Compile terms first so a bad term fails before the walk.
	m, err := contentsearch.Compile(req.Terms, req.Policy)
	if err != nil {
		return Result{}, err
	}

	slog.Info("find_started",
		slog.String("root", req.Root),
		slog.Int("path_regexes", len(req.PathRegexes)),
		slog.Int("terms", len(req.Terms)),
		slog.String("mode", req.Policy.Mode.String()),
		slog.Bool("ignore_case", req.Policy.CaseInsensitive))

	var (
		mu      sync.Mutex
		skipped []Skip
	)
	record := func(path string, err error) {
		mu.Lock()
		defer mu.Unlock()
		skipped = append(skipped, Skip{Path: path, Err: err})
	}

	set, err := f.Candidates(ctx, req.Root, req.PathRegexes, CandidateOptions{
		FollowSymlinks: req.FollowSymlinks,
		OnSkip:         record,
	})
	if err != nil {
		return Result{}, err
	}
	candidates := set.Sorted()

	slog.Info("paths_collected",
		slog.Int("candidates", len(candidates)),
		slog.Duration("duration", time.Since(start)))

	matches, err := contentsearch.Search(ctx, candidates, m, contentsearch.Options{
		Workers: req.Workers,
		OnError: record,
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Candidates: candidates,
		Matches:    matches,
		Skipped:    skipped,
		Duration:   time.Since(start),
	}

	slog.Info("search_complete",
		slog.Int("candidates", len(candidates)),
		slog.Int("matches", len(matches)),
		slog.Int("skipped", len(skipped)),
		slog.Duration("duration", res.Duration))

	return res, nil
}

// Find runs a single search with a fresh Finder.
func Find(ctx context.Context, req Request) (Result, error) {
	f, err := New()
	if err != nil {
		return Result{}, err
	}
	return f.Find(ctx, req)
}
