// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/livebind/livebind/internal/config"
	"github.com/livebind/livebind/internal/issue"
	"github.com/livebind/livebind/internal/manifest"
	"github.com/livebind/livebind/pkg/eventloop"
	"github.com/livebind/livebind/pkg/livebind"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

type (
	// settings is the configuration a command runs with after flags were
	// applied on top of the loaded file.
	settings struct {
		cfg     *config.Config
		verbose bool
		logger  *log.Logger
	}

	// session is one loaded module set. Every field is owned by the
	// goroutine that created it; other goroutines go through loop.
	session struct {
		settings
		path   string
		loop   *eventloop.Loop
		graph  *livebind.Graph
		loader *manifest.Loader
		entry  *livebind.Entry
	}
)

// loadSettings loads the configuration and applies the persistent flags.
func loadSettings(cmd *cobra.Command, app *App, flags *rootFlagValues) (*settings, error) {
	loaded, err := app.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		if _, ok := issue.AsActionable(err); ok {
			return nil, err
		}
		return nil, issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(flags.configPath).
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			Build()
	}

	cfg := *loaded
	if cmd.Flags().Changed("max-load-depth") {
		cfg.Runtime.MaxLoadDepth = config.LoadDepthLimit(flags.maxLoadDepth)
		if err := cfg.Runtime.MaxLoadDepth.Validate(); err != nil {
			return nil, fmt.Errorf("--max-load-depth: %w", err)
		}
	}

	verbose := flags.verbose || cfg.UI.Verbose
	logger := log.NewWithOptions(app.stderr, log.Options{
		Prefix: "livebind",
		Level:  cfg.Log.Level.Level(),
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return &settings{cfg: &cfg, verbose: verbose, logger: logger}, nil
}

// glamourStyle returns the style used for catalog entries, falling back to
// the default scheme before configuration is available.
func (s *settings) glamourStyle() string {
	if s == nil || s.cfg == nil {
		return config.ColorSchemeAuto.GlamourStyle()
	}
	return s.cfg.UI.ColorScheme.GlamourStyle()
}

// openSession builds a graph with the host builtins and loads the module
// at manifestPath as the entry module. The loop is drained before
// returning, so every Import issued during loading has settled.
func openSession(s *settings, app *App, manifestPath string) (*session, error) {
	abs, err := filepath.Abs(manifestPath)
	if err != nil {
		return nil, classifyLoadError(err, manifestPath)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, classifyLoadError(err, manifestPath)
	}

	loop := eventloop.New()
	graph := livebind.NewGraph(livebind.Options{
		Loop:               loop,
		Logger:             s.logger,
		MaxLoadDepth:       int(s.cfg.Runtime.MaxLoadDepth),
		CompatExports:      s.cfg.Runtime.CompatExports,
		PassthroughRequire: s.cfg.Runtime.PassthroughRequire,
	})
	if err := manifest.RegisterHostBuiltins(graph.Builtins(), app.environ, Version); err != nil {
		return nil, err
	}
	loader, err := manifest.NewLoader(graph, filepath.Dir(abs))
	if err != nil {
		return nil, classifyLoadError(err, manifestPath)
	}

	mod, err := loader.Load(abs, nil)
	if err != nil {
		return nil, classifyLoadError(err, manifestPath)
	}
	if err := loader.Settle(); err != nil {
		return nil, classifyLoadError(err, manifestPath)
	}

	entry, ok := graph.Entry(mod.ID)
	if !ok {
		return nil, fmt.Errorf("module %q has no graph entry", mod.ID)
	}
	s.logger.Debug("module set loaded", "entry", mod.ID, "modules", len(loader.Modules()))

	return &session{
		settings: *s,
		path:     abs,
		loop:     loop,
		graph:    graph,
		loader:   loader,
		entry:    entry,
	}, nil
}

// printNamespace writes one "name = value" line per binding.
func printNamespace(w io.Writer, ns *livebind.Namespace) {
	ns.Range(func(name livebind.ExportName, value any) bool {
		fmt.Fprintf(w, "%s = %s\n", CmdStyle.Render(string(name)), formatValue(value))
		return true
	})
}

func formatValue(value any) string {
	if livebind.IsUninitialized(value) {
		return VerboseStyle.Render(manifest.Format(value))
	}
	return SuccessStyle.Render(manifest.Format(value))
}
