// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/livebind/livebind/internal/dag"
	"github.com/livebind/livebind/internal/issue"
	"github.com/livebind/livebind/pkg/livebind"

	"github.com/spf13/cobra"
)

// newGraphCommand creates the `livebind graph` command.
func newGraphCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	var showBuiltins bool

	graphCmd := &cobra.Command{
		Use:   "graph <manifest>",
		Short: "Show the load order and import cycles of a module set",
		Long: `Load the module set rooted at <manifest> and print every module in load
order, each after the modules it imports. Import cycles do not fail the
load; they are reported together with the order in which loading started.`,
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
			printGraph(app.stdout, sess, showBuiltins)
			return nil
		},
	}

	graphCmd.Flags().BoolVar(&showBuiltins, "builtins", false, "also list the builtin module ids")
	return graphCmd
}

// printGraph writes the module list of sess. When the import graph has a
// cycle the modules are listed in the order loading started instead.
func printGraph(w io.Writer, sess *session, showBuiltins bool) {
	order, err := sess.graph.LoadOrder()
	var cycle *dag.CycleError
	if errors.As(err, &cycle) {
		order = sess.loader.Modules()
	}

	fmt.Fprintln(w, TitleStyle.Render("Modules"))
	for i, id := range order {
		entry, ok := sess.graph.Entry(id)
		if !ok {
			continue
		}
		line := fmt.Sprintf("  %d. %s %s", i+1, CmdStyle.Render(string(id)), SubtitleStyle.Render("("+moduleKind(sess, entry)+")"))
		if id == sess.entry.ID() {
			line += " " + TitleStyle.Render("entry")
		}
		fmt.Fprintln(w, line)
		if children := entry.ChildIDs(); len(children) > 0 {
			fmt.Fprintf(w, "     %s %s\n", VerboseStyle.Render("imports:"), joinIDs(children))
		}
	}

	if cycle != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s %s\n", WarningStyle.Render("! import cycle:"), strings.Join(cycle.Cycle, " -> "))
		fmt.Fprintf(w, "  %s\n", VerboseStyle.Render(issueTitle(issue.DependencyCycleId)))
	}

	if showBuiltins {
		fmt.Fprintln(w)
		fmt.Fprintln(w, TitleStyle.Render("Builtins"))
		for _, id := range sess.graph.Builtins().IDs() {
			fmt.Fprintf(w, "  - %s\n", CmdStyle.Render(string(id)))
		}
	}
}

// moduleKind names the manifest kind of a loaded module, falling back to
// the entry's source type for modules the loader does not know.
func moduleKind(sess *session, entry *livebind.Entry) string {
	if m, ok := sess.loader.Manifest(entry.ID()); ok {
		return string(m.Kind)
	}
	return entry.SourceType().String()
}

func joinIDs(ids []livebind.ModuleID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, string(id))
	}
	return strings.Join(parts, ", ")
}

// issueTitle returns the first heading of a catalog entry.
func issueTitle(id issue.Id) string {
	catalog := issue.Get(id)
	if catalog == nil {
		return ""
	}
	for line := range strings.Lines(string(catalog.MarkdownMsg())) {
		if title, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return title
		}
	}
	return ""
}
