// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/livebind/livebind/internal/issue"
	"github.com/livebind/livebind/internal/manifest"
	"github.com/livebind/livebind/pkg/livebind"
)

// classifyLoadError maps an error from loading a module set to an
// ActionableError linked to the matching catalog issue. Errors that are
// already actionable pass through unchanged.
func classifyLoadError(err error, resource string) *issue.ActionableError {
	if err == nil {
		return nil
	}
	if ae, ok := issue.AsActionable(err); ok {
		return ae
	}

	ctx := issue.NewErrorContext().WithResource(resource).Wrap(err)
	switch {
	case errors.Is(err, fs.ErrPermission):
		ctx.WithOperation("read manifest").
			WithIssue(issue.PermissionDeniedId).
			WithSuggestion("Check that the manifest and its directory are readable")
	case errors.Is(err, livebind.ErrModuleNotFound):
		ctx.WithOperation("load module").
			WithIssue(issue.ModuleNotFoundId).
			WithSuggestions(
				"Relative ids resolve against the importing manifest's directory",
				"Builtin ids such as livebind:env need no manifest",
			)
	case errors.Is(err, fs.ErrNotExist):
		ctx.WithOperation("read manifest").
			WithIssue(issue.ManifestNotFoundId).
			WithSuggestion("Check the manifest path")
	case errors.Is(err, livebind.ErrLoadDepthExceeded):
		ctx.WithOperation("load module").
			WithIssue(issue.LoadDepthExceededId).
			WithSuggestion("Raise runtime.max_load_depth or pass --max-load-depth 0")
	case errors.Is(err, livebind.ErrGetterFailed):
		ctx.WithOperation("compute exports").
			WithIssue(issue.GetterFailedId).
			WithSuggestion("Check the export templates of the module named above")
	case errors.Is(err, manifest.ErrParse),
		errors.Is(err, manifest.ErrInvalidManifest),
		errors.Is(err, manifest.ErrUnsupportedFormat):
		ctx.WithOperation("parse manifest").
			WithIssue(issue.ManifestParseErrorId).
			WithSuggestion("Manifests must end in .cue or .toml and match the module schema")
	default:
		ctx.WithOperation("load module").
			WithIssue(issue.ModuleBodyFailedId)
	}
	return ctx.Build()
}

// classifyWatchError wraps a watcher failure.
func classifyWatchError(err error, resource string) *issue.ActionableError {
	if ae, ok := issue.AsActionable(err); ok {
		return ae
	}
	return issue.NewErrorContext().
		WithOperation("watch manifests").
		WithResource(resource).
		WithIssue(issue.WatchFailedId).
		Wrap(err).
		Build()
}

// renderError writes err to w. Verbose output adds the error chain and the
// rendered catalog entry the error links to.
func renderError(w io.Writer, err error, verbose bool, glamourStyle string) {
	ae, ok := issue.AsActionable(err)
	if !ok {
		fmt.Fprintln(w, ErrorStyle.Render("✗ ")+err.Error())
		return
	}
	fmt.Fprintln(w, ErrorStyle.Render("✗ ")+ae.Format(verbose))

	catalog := ae.CatalogIssue()
	if catalog == nil {
		return
	}
	if !verbose {
		fmt.Fprintln(w, VerboseStyle.Render("\nRun with --verbose for more help."))
		return
	}
	rendered, renderErr := catalog.Render(glamourStyle)
	if renderErr != nil {
		return
	}
	fmt.Fprint(w, rendered)
}

// failCommand renders err and returns the ExitError the root command turns
// into exit status 1.
func failCommand(w io.Writer, err error, verbose bool, glamourStyle string) error {
	renderError(w, err, verbose, glamourStyle)
	return &ExitError{Code: 1, Err: err}
}
