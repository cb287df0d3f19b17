package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nzp/logfind/internal/config"
	"github.com/nzp/logfind/internal/output"
)

func (a *app) newConfigCmd() *cobra.Command {
	name := a.profile.Name
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage settings and the path regex file",
		Long: fmt.Sprintf(`Manage the settings file and the path regex file.

Settings precedence (lowest to highest):
  1. Built-in defaults (root %s)
  2. Settings file (%s)
  3. Environment variables (%s*)
  4. Command-line flags

Path regexes are read from %s in the config dir (-c, default $HOME).`,
			a.profile.DefaultRoot, config.UserConfigPath(name), config.EnvPrefix(name), a.profile.ConfigFile),
		Example: fmt.Sprintf(`  # Write the settings file and a starter path regex file
  %[1]s config init

  # Show effective settings
  %[1]s config show

  # Print file locations
  %[1]s config path`, name),
	}

	cmd.AddCommand(a.newConfigInitCmd())
	cmd.AddCommand(a.newConfigShowCmd())
	cmd.AddCommand(a.newConfigPathCmd())

	return cmd
}

func (a *app) newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the settings file",
		Long: `Write the effective settings to the settings file and create the path
regex file if it does not exist yet. An existing settings file is only
replaced with --force, after a timestamped backup is taken.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing settings file")

	return cmd
}

func (a *app) runConfigInit(cmd *cobra.Command, force bool) error {
	cfg, err := a.settings(cmd)
	if err != nil {
		return err
	}
	out := output.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), config.FormatText)

	path, backup, err := config.InitUserConfig(a.profile.Name, cfg, force)
	if err != nil {
		return err
	}
	if backup != "" {
		out.Warningf("previous settings saved to %s", backup)
	}
	out.Successf("Settings written to %s", path)

	dotfile, created, err := config.InitPathRegexes(a.opts.configDir, a.profile.ConfigFile, a.profile.Examples)
	if err != nil {
		return err
	}
	if created {
		out.Successf("Path regex file created at %s", dotfile)
	}
	return nil
}

func (a *app) newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.settings(cmd)
			if err != nil {
				return err
			}
			if jsonOutput || cfg.Output.Format == config.FormatJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func (a *app) newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the settings and path regex file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(w, "settings: %s\n", config.UserConfigPath(a.profile.Name)); err != nil {
				return err
			}
			_, err := fmt.Fprintf(w, "path regexes: %s\n", filepath.Join(a.opts.configDir, a.profile.ConfigFile))
			return err
		},
	}
}
