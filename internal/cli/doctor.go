package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nzp/logfind/internal/config"
	apperrors "github.com/nzp/logfind/internal/errors"
	"github.com/nzp/logfind/internal/logging"
	"github.com/nzp/logfind/internal/preflight"
)

func (a *app) newDoctorCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that searches can run",
		Long: `Check the settings, the walk root, the path regex file and the
file descriptor limit, and count the files the path regexes select.
Exits non-zero when a required check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDoctor(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	return cmd
}

func (a *app) runDoctor(cmd *cobra.Command, jsonOutput bool) error {
	var results []preflight.CheckResult

	settings := preflight.CheckResult{Name: "settings", Required: true, Status: preflight.StatusPass}
	cfg, err := a.settings(cmd)
	if err != nil {
		settings.Status = preflight.StatusFail
		settings.Message = err.Error()
		// Check the rest against the built-in defaults.
		cfg = config.NewConfig(a.profile.DefaultRoot)
		if cmd.Flags().Changed("root") {
			cfg.Root = a.opts.root
		}
	} else {
		settings.Message = config.UserConfigPath(a.profile.Name)
		if _, err := os.Stat(settings.Message); err != nil {
			settings.Message = "defaults (no settings file)"
		}
	}
	results = append(results, settings)

	checker := preflight.New(
		preflight.WithName(a.profile.Name),
		preflight.WithVerbose(a.opts.verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results = append(results, checker.RunAll(cmd.Context(), preflight.Target{
		Root:       cfg.Root,
		ConfigDir:  a.opts.configDir,
		ConfigFile: a.profile.ConfigFile,
		Workers:    cfg.Workers,
		LogDir:     logging.DefaultLogDir(a.profile.Name),
	})...)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Status string                  `json:"status"`
			Checks []preflight.CheckResult `json:"checks"`
		}{checker.SummaryStatus(results), results}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return apperrors.ValidationError(
			fmt.Sprintf("%s cannot search with the current setup", a.profile.Name), nil)
	}
	return nil
}
