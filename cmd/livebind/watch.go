// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"

	"github.com/livebind/livebind/internal/manifest"
	"github.com/livebind/livebind/internal/watch"
	"github.com/livebind/livebind/pkg/livebind"

	"github.com/spf13/cobra"
)

// newWatchCommand creates the `livebind watch` command.
func newWatchCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <manifest>",
		Short: "Rebind modules when their manifests change",
		Long: `Load the module set rooted at <manifest>, print the entry namespace, then
watch the manifest directory. When a live module's manifest changes its
export templates are applied in place and every importer is updated; the
bindings of the entry module that changed are printed.

Changes to legacy modules or to what a module imports need a restart.
Watched files are selected by watch.patterns and watch.ignore.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd, app, rootFlags)
			if err != nil {
				return failCommand(app.stderr, err, rootFlags.verbose, s.glamourStyle())
			}
			sess, err := openSession(s, app, args[0])
			if err != nil {
				return failCommand(app.stderr, err, s.verbose, s.glamourStyle())
			}
			printNamespace(app.stdout, sess.entry.Namespace())

			if err := runWatch(cmd.Context(), app, sess); err != nil {
				return failCommand(app.stderr, err, s.verbose, s.glamourStyle())
			}
			return nil
		},
	}
}

// runWatch drives the session's loop on the calling goroutine while the
// watcher feeds it changes, until ctx is done or the watcher fails.
func runWatch(ctx context.Context, app *App, sess *session) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	root := sess.loader.Root()
	rebinder := newRebinder(app, sess)
	w, err := watch.New(watch.Config{
		BaseDir:  root,
		Patterns: sess.cfg.Watch.Patterns,
		Ignore:   sess.cfg.Watch.Ignore,
		Debounce: sess.cfg.Watch.Debounce,
		Loop:     sess.loop,
		Logger:   sess.logger,
		OnChange: rebinder.apply,
	})
	if err != nil {
		return classifyWatchError(err, root)
	}

	fmt.Fprintf(app.stdout, "\n%s Watching %s for changes (Ctrl+C to stop)...\n",
		VerboseHighlightStyle.Render("→"), root)

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- w.Run(ctx)
		sess.loop.Stop()
	}()

	if err := sess.loop.Run(ctx); err != nil {
		cancel()
		<-watchErr
		return err
	}
	cancel()
	if err := <-watchErr; err != nil {
		return classifyWatchError(err, root)
	}
	return nil
}

// rebinder applies manifest changes to a session and reports how the
// entry namespace moved. It only runs on the session's loop.
type rebinder struct {
	sess     *session
	stdout   io.Writer
	stderr   io.Writer
	snapshot map[livebind.ExportName]string
}

func newRebinder(app *App, sess *session) *rebinder {
	return &rebinder{
		sess:     sess,
		stdout:   app.stdout,
		stderr:   app.stderr,
		snapshot: snapshotNamespace(sess.entry.Namespace()),
	}
}

// apply reloads every changed manifest that belongs to a loaded module.
// Failures are reported and watching continues, so the user can fix the
// file and save again.
func (r *rebinder) apply(changed []string) error {
	rebound := 0
	for _, rel := range changed {
		path := filepath.Join(r.sess.loader.Root(), filepath.FromSlash(rel))
		entry, err := r.sess.loader.Reload(path)
		var restart *manifest.RestartRequiredError
		switch {
		case errors.Is(err, manifest.ErrNotLoaded):
			r.sess.logger.Debug("ignore change", "path", rel)
		case errors.As(err, &restart):
			fmt.Fprintf(r.stderr, "%s %s: %s, restart to apply\n", WarningStyle.Render("!"), restart.Module, restart.Reason)
		case err != nil:
			renderError(r.stderr, classifyLoadError(err, rel), r.sess.verbose, r.sess.glamourStyle())
		default:
			rebound++
			fmt.Fprintf(r.stdout, "%s rebound %s\n", VerboseHighlightStyle.Render("↻"), CmdStyle.Render(string(entry.ID())))
		}
	}
	if rebound > 0 {
		r.report()
	}
	return nil
}

// report prints the entry bindings that changed since the last report.
func (r *rebinder) report() {
	current := snapshotNamespace(r.sess.entry.Namespace())
	changes := 0
	r.sess.entry.Namespace().Range(func(name livebind.ExportName, value any) bool {
		old, had := r.snapshot[name]
		now := current[name]
		if had && old == now {
			return true
		}
		changes++
		if had {
			fmt.Fprintf(r.stdout, "  %s: %s → %s\n", CmdStyle.Render(string(name)), VerboseStyle.Render(old), formatValue(value))
		} else {
			fmt.Fprintf(r.stdout, "  %s: %s\n", CmdStyle.Render(string(name)), formatValue(value))
		}
		return true
	})
	for _, name := range slices.Sorted(maps.Keys(r.snapshot)) {
		if _, ok := current[name]; !ok {
			old := r.snapshot[name]
			changes++
			fmt.Fprintf(r.stdout, "  %s: %s → %s\n", CmdStyle.Render(string(name)), VerboseStyle.Render(old), VerboseStyle.Render("removed"))
		}
	}
	if changes == 0 {
		fmt.Fprintf(r.stdout, "  %s\n", SubtitleStyle.Render("(entry namespace unchanged)"))
	}
	r.snapshot = current
}

// snapshotNamespace renders every binding so later states can be compared
// without holding on to mutable values.
func snapshotNamespace(ns *livebind.Namespace) map[livebind.ExportName]string {
	out := make(map[livebind.ExportName]string, ns.Len())
	ns.Range(func(name livebind.ExportName, value any) bool {
		out[name] = manifest.Format(value)
		return true
	})
	return out
}
