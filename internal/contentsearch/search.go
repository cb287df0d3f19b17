package contentsearch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"runtime"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/nzp/logfind/internal/errors"
)

// Options configures a content search.
type Options struct {
	// Workers bounds the number of files read concurrently.
	// 0 means runtime.NumCPU(); 1 searches sequentially.
	Workers int

	// OnError is called for every file that is skipped because it could not
	// be read or is not valid UTF-8. It may be called from several
	// goroutines at once. May be nil.
	OnError func(path string, err error)
}

// SearchPatterns compiles patterns and searches files with them.
func SearchPatterns(ctx context.Context, files []string, patterns []string, policy Policy, opts Options) ([]string, error) {
	m, err := Compile(patterns, policy)
	if err != nil {
		return nil, err
	}
	return Search(ctx, files, m, opts)
}

// Search returns the files whose contents satisfy m, in input order with
// duplicates removed. The result does not depend on the number of workers.
//
// Unreadable files are skipped and reported through opts.OnError. If ctx is
// cancelled no further files are started and ctx.Err() is returned.
func Search(ctx context.Context, files []string, m *Matcher, opts Options) ([]string, error) {
	start := time.Now()

	files = dedupe(files)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	matched := make([]bool, len(files))

	var err error
	if workers == 1 {
		err = searchSequential(ctx, files, m, opts, matched)
	} else {
		err = searchParallel(ctx, files, m, opts, workers, matched)
	}
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(files))
	for i, ok := range matched {
		if ok {
			result = append(result, files[i])
		}
	}

	slog.Debug("content_search_complete",
		slog.Int("files", len(files)),
		slog.Int("patterns", m.Len()),
		slog.String("mode", m.Policy().Mode.String()),
		slog.Int("workers", workers),
		slog.Int("matched", len(result)),
		slog.Duration("duration", time.Since(start)))

	return result, nil
}

func searchSequential(ctx context.Context, files []string, m *Matcher, opts Options, matched []bool) error {
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		matched[i] = matchFile(path, m, opts)
	}
	return nil
}

// searchParallel runs one task per file with at most workers in flight.
// Each task writes only its own slot of matched.
func searchParallel(ctx context.Context, files []string, m *Matcher, opts Options, workers int, matched []bool) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range files {
		// g.Go blocks while the limit is reached; stop dispatching once
		// the caller gives up.
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			matched[i] = matchFile(path, m, opts)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// matchFile reads path and evaluates m against its contents. A file that
// cannot be read counts as not matching.
func matchFile(path string, m *Matcher, opts Options) bool {
	content, err := readText(path)
	if err != nil {
		slog.Debug("skipping unreadable file",
			slog.String("path", path),
			slog.String("error", err.Error()))
		if opts.OnError != nil {
			opts.OnError(path, err)
		}
		return false
	}
	return m.Match(content)
}

var errNotText = errors.New("content is not valid UTF-8")

func readText(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.FileUnreadable(path, err)
	}
	if !utf8.Valid(content) {
		return nil, apperrors.FileUnreadable(path, errNotText)
	}
	return content, nil
}

// dedupe drops repeated paths, keeping the first occurrence.
func dedupe(files []string) []string {
	seen := make(map[string]struct{}, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
