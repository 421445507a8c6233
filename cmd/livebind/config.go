// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/livebind/livebind/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `livebind config` command tree.
// Subcommands that read configuration use the App's ConfigProvider.
func newConfigCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage livebind configuration",
		Long: `Manage livebind configuration.

Configuration is stored in:
  - Linux: ~/.config/livebind/config.cue
  - macOS: ~/Library/Application Support/livebind/config.cue
  - Windows: %APPDATA%\livebind\config.cue

Every key can be overridden with a LIVEBIND_ environment variable, e.g.
LIVEBIND_LOG_LEVEL=debug or LIVEBIND_RUNTIME_MAX_LOAD_DEPTH=64.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd, app, rootFlags)
			if err != nil {
				return failCommand(app.stderr, err, rootFlags.verbose, s.glamourStyle())
			}
			showConfig(app, rootFlags, s.cfg)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, created, err := config.CreateDefaultConfig()
			if err != nil {
				return failCommand(app.stderr, fmt.Errorf("failed to create config: %w", err), rootFlags.verbose, config.ColorSchemeAuto.GlamourStyle())
			}
			if !created {
				fmt.Fprintf(app.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), path)
				return nil
			}
			fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir, err := config.ConfigDir()
			if err != nil {
				return failCommand(app.stderr, err, rootFlags.verbose, config.ColorSchemeAuto.GlamourStyle())
			}
			cfgFile, err := config.ConfigFilePath()
			if err != nil {
				return failCommand(app.stderr, err, rootFlags.verbose, config.ColorSchemeAuto.GlamourStyle())
			}
			fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
			fmt.Fprintf(app.stdout, "Config file: %s\n", cfgFile)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd, app, rootFlags)
			if err != nil {
				return failCommand(app.stderr, err, rootFlags.verbose, s.glamourStyle())
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(s.cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(app *App, rootFlags *rootFlagValues, cfg *config.Config) {
	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	out := app.stdout

	fmt.Fprintln(out, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(out)

	path, err := config.ResolvePath(config.LoadOptions{ConfigFilePath: rootFlags.configPath})
	if err != nil || path == "" {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	} else {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), path)
	}

	section := func(name string, pairs ...string) {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%s:\n", keyStyle.Render(name))
		for i := 0; i+1 < len(pairs); i += 2 {
			fmt.Fprintf(out, "  %s: %s\n", pairs[i], valueStyle.Render(pairs[i+1]))
		}
	}

	section("runtime",
		"compat_exports", fmt.Sprint(cfg.Runtime.CompatExports),
		"passthrough_require", fmt.Sprint(cfg.Runtime.PassthroughRequire),
		"max_load_depth", fmt.Sprint(int(cfg.Runtime.MaxLoadDepth)),
	)
	section("log", "level", cfg.Log.Level.String())
	section("watch",
		"debounce", cfg.Watch.Debounce.String(),
		"patterns", listOrNone(cfg.Watch.Patterns),
		"ignore", listOrNone(cfg.Watch.Ignore),
	)
	section("ui",
		"verbose", fmt.Sprint(cfg.UI.Verbose),
		"color_scheme", cfg.UI.ColorScheme.String(),
	)
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
