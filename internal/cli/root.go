// Package cli provides the command tree shared by logfind and prefind.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nzp/logfind/internal/config"
	apperrors "github.com/nzp/logfind/internal/errors"
	"github.com/nzp/logfind/internal/logging"
	"github.com/nzp/logfind/internal/profiling"
	"github.com/nzp/logfind/pkg/version"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	root           string
	configDir      string
	format         string
	workers        int
	followSymlinks bool
	verbose        bool
	debug          bool
	profileCPU     string
	profileMem     string
}

// app is the state of one invocation.
type app struct {
	profile Profile
	opts    globalOptions

	// format is the resolved output format, used to render a failure.
	format   string
	profiler *profiling.Profiler
	cleanups []func()
}

// NewRootCmd creates the root command for p.
func NewRootCmd(p Profile) *cobra.Command {
	return newApp(p).command()
}

func newApp(p Profile) *app {
	return &app{profile: p, format: config.FormatText}
}

func (a *app) command() *cobra.Command {
	var search searchOptions

	cmd := &cobra.Command{
		Use:   a.profile.Name + " [flags] TERM...",
		Short: a.profile.Short,
		Long: fmt.Sprintf(`%s walks %s and keeps the files whose path matches one of the
path regexes listed in the %s file, then prints those whose contents
match every TERM (or any TERM with --or).

Path regexes are matched against whole paths, one directory level at a
time, so a segment like "apt" prunes every other subtree early.`,
			a.profile.Name, a.profile.DefaultRoot, "~/"+a.profile.ConfigFile),
		Example: fmt.Sprintf(`  %[1]s error                 # files containing "error"
  %[1]s -i -o timeout refused  # either term, any case
  %[1]s -w sshd                # keep watching for new matches
  %[1]s paths                  # list candidate files only`, a.profile.Name),
		Version:       version.Version,
		Args:          a.requireTerms,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSearch(cmd, args, search)
		},
	}

	cmd.SetVersionTemplate(a.profile.Name + " version {{.Version}}\n")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperrors.ValidationError(err.Error(), err)
	})

	home, _ := os.UserHomeDir()

	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.opts.root, "root", "r", "", fmt.Sprintf("Directory to walk (default %s)", a.profile.DefaultRoot))
	pf.StringVarP(&a.opts.configDir, "config-dir", "c", home, "Directory holding the "+a.profile.ConfigFile+" path regex file")
	pf.StringVarP(&a.opts.format, "format", "f", config.FormatText, "Output format (text|json)")
	pf.IntVarP(&a.opts.workers, "workers", "j", 0, "Files searched concurrently (default one per CPU)")
	pf.BoolVar(&a.opts.followSymlinks, "follow-symlinks", false, "Descend into symlinked directories")
	pf.BoolVarP(&a.opts.verbose, "verbose", "v", false, "Report skipped files and directories")
	pf.BoolVar(&a.opts.debug, "debug", false, "Enable debug logging to "+logging.DefaultLogPath(a.profile.Name))
	pf.StringVar(&a.opts.profileCPU, "profile-cpu", "", "Write CPU profile to file")
	pf.StringVar(&a.opts.profileMem, "profile-mem", "", "Write memory profile to file")

	f := cmd.Flags()
	f.BoolVarP(&search.or, "or", "o", false, "Match files containing any term")
	f.BoolVarP(&search.ignoreCase, "ignore-case", "i", false, "Match terms case-insensitively")
	f.DurationVar(&search.timeout, "timeout", 0, "Abort the search after this long (0 = no limit)")
	f.BoolVarP(&search.watch, "watch", "w", false, "Keep running and report files as they start matching")
	f.BoolVar(&search.poll, "poll", false, "Watch by polling instead of file system notifications")

	cmd.PersistentPreRunE = a.start
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return a.stop()
	}

	cmd.AddCommand(a.newPathsCmd())
	cmd.AddCommand(a.newConfigCmd())
	cmd.AddCommand(a.newDoctorCmd())
	cmd.AddCommand(a.newLogsCmd())
	cmd.AddCommand(newVersionCmd(a.profile.Name))

	return cmd
}

func (a *app) requireTerms(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		return apperrors.ValidationError("at least one search term is required", nil).
			WithSuggestion(fmt.Sprintf("run '%s --help' for usage", a.profile.Name))
	}
	return nil
}

// start sets up logging and profiling before any command runs.
func (a *app) start(cmd *cobra.Command, _ []string) error {
	if a.opts.debug {
		logger, cleanup, err := logging.Setup(logging.DebugConfig(a.profile.Name))
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		a.cleanups = append(a.cleanups, cleanup)
		slog.SetDefault(logger)
		slog.Info("debug_logging_enabled",
			slog.String("log_file", logging.DefaultLogPath(a.profile.Name)),
			slog.String("version", version.Version),
			slog.String("command", cmd.CommandPath()))
	} else {
		slog.SetDefault(logging.NewConsoleLogger(cmd.ErrOrStderr(), "warn"))
	}

	cfg := profiling.Config{CPUPath: a.opts.profileCPU, HeapPath: a.opts.profileMem}
	if cfg.Enabled() {
		p, err := profiling.Start(cfg)
		if err != nil {
			return err
		}
		a.profiler = p
	}
	return nil
}

// stop flushes profiles and closes the debug log. It is safe to call more
// than once.
func (a *app) stop() error {
	var err error
	if a.profiler != nil {
		err = a.profiler.Stop()
		a.profiler = nil
	}
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
	return err
}

// settings resolves the configuration of this invocation: profile defaults,
// then the settings file and environment, then the flags that were set.
func (a *app) settings(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(a.profile.Name, config.NewConfig(a.profile.DefaultRoot))
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("root") {
		cfg.Root = a.opts.root
	}
	if flags.Changed("format") {
		cfg.Output.Format = a.opts.format
	}
	if flags.Changed("workers") {
		cfg.Workers = a.opts.workers
	}
	if flags.Changed("follow-symlinks") {
		cfg.FollowSymlinks = a.opts.followSymlinks
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Output.Format = strings.ToLower(cfg.Output.Format)

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, apperrors.ValidationError(fmt.Sprintf("invalid root %s", cfg.Root), err)
	}
	cfg.Root = root

	a.format = cfg.Output.Format
	if !a.opts.debug {
		slog.SetDefault(logging.NewConsoleLogger(cmd.ErrOrStderr(), cfg.Log.Level))
	}
	return cfg, nil
}

// pathRegexes reads the path regex dotfile of the profile.
func (a *app) pathRegexes() ([]string, error) {
	return config.ListPathRegexes(a.opts.configDir, a.profile.ConfigFile)
}

// withTimeout bounds ctx by d when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// Run executes the command tree of p with args and returns the process exit
// code. Failures are rendered to stderr.
func Run(ctx context.Context, p Profile, args []string, stdout, stderr io.Writer) int {
	a := newApp(p)
	cmd := a.command()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		slog.Debug("command_failed", slog.Any("error", apperrors.FormatForLog(err)))
	}
	// PersistentPostRunE does not run when a command fails.
	if stopErr := a.stop(); err == nil {
		err = stopErr
	}
	if err == nil {
		return 0
	}

	writeError(stderr, err, a.format)
	return 1
}

// Execute runs p with the process arguments until it completes or the
// process is interrupted.
func Execute(p Profile) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, p, os.Args[1:], os.Stdout, os.Stderr)
}

func writeError(w io.Writer, err error, format string) {
	if format == config.FormatJSON {
		if data, jerr := apperrors.FormatJSON(err); jerr == nil {
			_, _ = fmt.Fprintln(w, string(data))
			return
		}
	}
	_, _ = fmt.Fprint(w, apperrors.FormatForCLI(err))
}
