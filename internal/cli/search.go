package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nzp/logfind/internal/config"
	"github.com/nzp/logfind/internal/contentsearch"
	apperrors "github.com/nzp/logfind/internal/errors"
	"github.com/nzp/logfind/internal/finder"
	"github.com/nzp/logfind/internal/output"
)

// searchOptions are the flags of the root search command.
type searchOptions struct {
	or         bool
	ignoreCase bool
	timeout    time.Duration
	watch      bool
	poll       bool
}

func (a *app) runSearch(cmd *cobra.Command, terms []string, opts searchOptions) error {
	cfg, err := a.settings(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("or") {
		cfg.Search.Any = opts.or
	}
	if flags.Changed("ignore-case") {
		cfg.Search.IgnoreCase = opts.ignoreCase
	}

	pathRegexes, err := a.pathRegexes()
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	out := output.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Output.Format)
	req := a.request(cfg, pathRegexes, terms)

	f, err := finder.New()
	if err != nil {
		return err
	}
	res, err := f.Find(ctx, req)
	if err != nil {
		return interrupted(err, opts.timeout)
	}

	a.reportSkips(out, res.Skipped)
	err = out.Report(output.Report{
		Root:    req.Root,
		Terms:   terms,
		Mode:    req.Policy.Mode.String(),
		Matches: res.Matches,
		Skipped: len(res.Skipped),
	})
	if err != nil {
		return err
	}

	if !opts.watch {
		return nil
	}
	return a.watch(ctx, out, req, res, opts.poll)
}

// request builds a finder request from resolved settings.
func (a *app) request(cfg *config.Config, pathRegexes, terms []string) finder.Request {
	policy := contentsearch.Policy{
		Mode:            contentsearch.All,
		CaseInsensitive: cfg.Search.IgnoreCase,
	}
	if cfg.Search.Any {
		policy.Mode = contentsearch.Any
	}
	return finder.Request{
		Root:           cfg.Root,
		PathRegexes:    pathRegexes,
		Terms:          terms,
		Policy:         policy,
		Workers:        cfg.Workers,
		FollowSymlinks: cfg.FollowSymlinks,
	}
}

// reportSkips prints skipped items with --verbose and logs them otherwise.
func (a *app) reportSkips(out *output.Writer, skipped []finder.Skip) {
	for _, s := range skipped {
		slog.Debug("item_skipped", slog.String("path", s.Path), slog.String("error", s.Err.Error()))
		if a.opts.verbose {
			out.Skip(s.Path, s.Err)
		}
	}
	if len(skipped) > 0 && !a.opts.verbose {
		slog.Info("items_skipped", slog.Int("count", len(skipped)))
	}
}

// interrupted turns a context error into a cancellation error.
func interrupted(err error, timeout time.Duration) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.New(apperrors.ErrCodeCancelled,
			fmt.Sprintf("search timed out after %s", timeout), err).
			WithSuggestion("narrow the path regexes or raise --timeout")
	case errors.Is(err, context.Canceled):
		return apperrors.New(apperrors.ErrCodeCancelled, "search interrupted", err)
	default:
		return err
	}
}
