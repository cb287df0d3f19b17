package cli

import (
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/nzp/logfind/internal/finder"
	"github.com/nzp/logfind/internal/output"
)

func (a *app) newPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "List the files selected by the path regexes",
		Long: `List every file below the root whose path matches one of the path
regexes, without searching contents. Useful to check a new regex.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPaths(cmd)
		},
	}
}

func (a *app) runPaths(cmd *cobra.Command) error {
	cfg, err := a.settings(cmd)
	if err != nil {
		return err
	}
	pathRegexes, err := a.pathRegexes()
	if err != nil {
		return err
	}

	f, err := finder.New()
	if err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		skipped []finder.Skip
	)
	start := time.Now()
	set, err := f.Candidates(cmd.Context(), cfg.Root, pathRegexes, finder.CandidateOptions{
		FollowSymlinks: cfg.FollowSymlinks,
		OnSkip: func(path string, err error) {
			mu.Lock()
			defer mu.Unlock()
			skipped = append(skipped, finder.Skip{Path: path, Err: err})
		},
	})
	if err != nil {
		return interrupted(err, 0)
	}

	slog.Info("paths_collected",
		slog.Int("candidates", set.Len()),
		slog.Duration("duration", time.Since(start)))

	out := output.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Output.Format)
	a.reportSkips(out, skipped)
	return out.Paths(set.Sorted())
}
