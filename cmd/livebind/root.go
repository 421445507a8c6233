// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlagValues holds the persistent flags shared by every subcommand.
type rootFlagValues struct {
	verbose      bool
	configPath   string
	maxLoadDepth int
}

// NewRootCommand builds the livebind command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "livebind",
		Short: "Load module sets with live bindings",
		Long: TitleStyle.Render("livebind") + SubtitleStyle.Render(" - Load module sets with live bindings") + `

livebind loads modules described by CUE or TOML manifests onto a
live-binding graph. Importers see every change to an exported binding,
including across import cycles, and legacy modules that mutate a single
exports value interoperate with live ones.

` + SubtitleStyle.Render("Examples:") + `
  livebind run ./main.cue             Print the entry module's namespace
  livebind run ./main.cue -e url      Print one exported binding
  livebind graph ./main.cue           Show load order and import cycles
  livebind watch ./main.cue           Rebind modules when manifests change
  livebind config show                Show current configuration`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output and debug logs")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is $HOME/.config/livebind/config.cue)")
	rootCmd.PersistentFlags().IntVar(&flags.maxLoadDepth, "max-load-depth", 0, "limit nested module loads, 0 for no limit (overrides runtime.max_load_depth)")

	rootCmd.AddCommand(
		newRunCommand(app, flags),
		newGraphCommand(app, flags),
		newWatchCommand(app, flags),
		newConfigCommand(app, flags),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI with the process arguments and exits.
// This is called by main.main().
func Execute() {
	os.Exit(Run(context.Background(), os.Args[1:]))
}

// Run executes the command tree with args and returns the exit code.
func Run(ctx context.Context, args []string) int {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("✗ ")+err.Error())
		return 1
	}

	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	if err := fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(handleError),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		return 1
	}
	return 0
}

// handleError prints errors commands did not render themselves.
func handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}
