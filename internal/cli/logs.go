package cli

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	apperrors "github.com/nzp/logfind/internal/errors"
	"github.com/nzp/logfind/internal/logging"
	"github.com/nzp/logfind/internal/output"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	grep    string
	noColor bool
	file    string
}

func (a *app) newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the debug log",
		Long: fmt.Sprintf(`Show the log written by --debug (%s).

By default the last 50 lines are shown. Use -f to follow new entries.`,
			logging.DefaultLogPath(a.profile.Name)),
		Example: fmt.Sprintf(`  %[1]s logs                 # last 50 lines
  %[1]s logs -n 200 --level warn
  %[1]s logs -f --grep search  # follow search events`, a.profile.Name),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runLogs(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "F", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level to show (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.grep, "grep", "", "Show only lines matching this regex")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.file, "file", "", "Path to log file")

	return cmd
}

func (a *app) runLogs(cmd *cobra.Command, opts logsOptions) error {
	path, err := logging.FindLogFile(a.profile.Name, opts.file)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeNotFound, err.Error(), nil)
	}

	var pattern *regexp.Regexp
	if opts.grep != "" {
		pattern, err = regexp.Compile(opts.grep)
		if err != nil {
			return apperrors.InvalidPattern(opts.grep, err)
		}
	}

	out := cmd.OutOrStdout()
	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		Color:   !opts.noColor && output.ColorEnabled(out),
	}, out)

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)

	if !opts.follow {
		return nil
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Following %s... (Ctrl+C to stop)\n", path)
	return viewer.Follow(cmd.Context(), path, func(e logging.Entry) {
		viewer.Print([]logging.Entry{e})
	})
}
