// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/livebind/livebind/internal/manifest"
	"github.com/livebind/livebind/pkg/livebind"

	"github.com/spf13/cobra"
)

// newRunCommand creates the `livebind run` command.
func newRunCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	var exportName string

	runCmd := &cobra.Command{
		Use:   "run <manifest>",
		Short: "Load a module set and print the entry module's namespace",
		Long: `Load the module described by <manifest> together with everything it
imports, then print the namespace of that module.

With --export only the named binding is printed, without styling, so the
value can be used by scripts.`,
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

			ns := sess.entry.Namespace()
			if exportName == "" {
				printNamespace(app.stdout, ns)
				return nil
			}

			value, ok := ns.Get(livebind.ExportName(exportName))
			if !ok {
				err := fmt.Errorf("module %q has no export %q", sess.entry.ID(), exportName)
				return failCommand(app.stderr, err, s.verbose, s.glamourStyle())
			}
			fmt.Fprintln(app.stdout, manifest.Format(value))
			return nil
		},
	}

	runCmd.Flags().StringVarP(&exportName, "export", "e", "", "print a single exported binding")
	return runCmd
}
