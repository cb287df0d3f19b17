package cli

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/nzp/logfind/internal/contentsearch"
	"github.com/nzp/logfind/internal/finder"
	"github.com/nzp/logfind/internal/output"
	"github.com/nzp/logfind/internal/pathmatch"
	"github.com/nzp/logfind/internal/watcher"
)

// liveSearch re-evaluates changed files against a finished search.
type liveSearch struct {
	root     string
	patterns []*pathmatch.Pattern
	paths    *pathmatch.Matcher
	matcher  *contentsearch.Matcher

	// candidates and matched only grow or shrink from the watch loop.
	candidates pathmatch.Set
	matched    pathmatch.Set
}

func newLiveSearch(req finder.Request, res finder.Result) (*liveSearch, error) {
	patterns, err := finder.CompilePaths(req.PathRegexes)
	if err != nil {
		return nil, err
	}
	paths, err := pathmatch.New()
	if err != nil {
		return nil, err
	}
	m, err := contentsearch.Compile(req.Terms, req.Policy)
	if err != nil {
		return nil, err
	}
	return &liveSearch{
		root:       req.Root,
		patterns:   patterns,
		paths:      paths,
		matcher:    m,
		candidates: pathmatch.NewSet(res.Candidates...),
		matched:    pathmatch.NewSet(res.Matches...),
	}, nil
}

// isCandidate reports whether path was selected by the walk or, for a file
// created since, would have been selected by it.
func (l *liveSearch) isCandidate(path string) bool {
	if l.candidates.Has(path) {
		return true
	}
	for _, p := range l.patterns {
		if l.paths.Selects(l.root, p, path) {
			l.candidates.Add(path)
			return true
		}
	}
	return false
}

// update applies a batch of events and returns the paths that started
// matching, in batch order.
func (l *liveSearch) update(ctx context.Context, batch []watcher.FileEvent, onSkip func(string, error)) ([]string, error) {
	var changed []string
	for _, e := range batch {
		if !e.Operation.Exists() {
			delete(l.matched, e.Path)
			continue
		}
		if l.isCandidate(e.Path) {
			changed = append(changed, e.Path)
		}
	}
	if len(changed) == 0 {
		return nil, nil
	}

	found, err := contentsearch.Search(ctx, changed, l.matcher, contentsearch.Options{
		Workers: 1,
		OnError: onSkip,
	})
	if err != nil {
		return nil, err
	}

	now := pathmatch.NewSet(found...)
	var started []string
	for _, path := range changed {
		switch {
		case !now.Has(path):
			// Reported again if it matches later.
			delete(l.matched, path)
		case !l.matched.Has(path):
			l.matched.Add(path)
			started = append(started, path)
		}
	}
	return started, nil
}

// watchDirs returns the root and the directories holding candidates.
func watchDirs(root string, candidates []string) []string {
	set := pathmatch.NewSet(root)
	for _, c := range candidates {
		set.Add(filepath.Dir(c))
	}
	return set.Sorted()
}

// watch keeps reporting candidates that start matching until ctx ends.
func (a *app) watch(ctx context.Context, out *output.Writer, req finder.Request, res finder.Result, poll bool) error {
	live, err := newLiveSearch(req, res)
	if err != nil {
		return err
	}

	w, err := watcher.New(watcher.Options{ForcePolling: poll})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	dirs := watchDirs(req.Root, res.Candidates)
	slog.Info("watch_started",
		slog.Int("dirs", len(dirs)),
		slog.Int("candidates", len(res.Candidates)),
		slog.Bool("poll", poll))

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx, dirs) }()

	onSkip := func(path string, err error) {
		slog.Debug("item_skipped", slog.String("path", path), slog.String("error", err.Error()))
		if a.opts.verbose {
			out.Skip(path, err)
		}
	}

	errs := w.Errors()
	for {
		select {
		case <-ctx.Done():
			<-done
			slog.Info("watch_stopped", slog.Uint64("dropped_batches", w.DroppedBatches()))
			return nil
		case err := <-done:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case batch, ok := <-w.Events():
			if !ok {
				err := <-done
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			started, err := live.update(ctx, batch, onSkip)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				return err
			}
			for _, path := range started {
				if err := out.Match(path); err != nil {
					return err
				}
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}
