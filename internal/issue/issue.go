// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ManifestNotFoundId Id = iota + 1
	ManifestParseErrorId
	ModuleNotFoundId
	DependencyCycleId
	GetterFailedId
	LoadDepthExceededId
	ModuleBodyFailedId
	ConfigLoadFailedId
	WatchFailedId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to look up the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // project documentation
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue as terminal Markdown using the glamour style at
// stylePath ("dark", "light", "notty" or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("\n- <" + string(link) + ">")
		}
		for _, link := range i.extLinks {
			md.WriteString("\n- <" + string(link) + ">")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	manifestNotFoundIssue = &Issue{
		id: ManifestNotFoundId,
		mdMsg: `
# Manifest not found!

livebind needs a manifest describing the module set to load.

## Things you can try:
- Pass the manifest path explicitly:
~~~
$ livebind run ./modules.cue
~~~

- Manifests may be written in CUE (` + "`.cue`" + `) or TOML (` + "`.toml`" + `).`,
	}

	manifestParseErrorIssue = &Issue{
		id: ManifestParseErrorId,
		mdMsg: `
# Failed to parse manifest!

The manifest could not be decoded or does not match the module schema.

## Things you can try:
- ` + "`kind`" + ` is "live" (the default) or "legacy"
- Import a whole namespace with ` + "`as`" + `, or pick bindings with ` + "`names`" + `
- ` + "`require`" + ` and ` + "`replace_exports`" + ` are only valid on legacy modules

## Example manifests:
~~~cue
// main.cue
imports: [{from: "./config", names: {port: "port"}}]
exports: url: "http://localhost:${port}"
~~~

~~~toml
# config.toml
kind = "legacy"

[exports]
port = "8080"
~~~`,
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# Module not found!

A module imported or required an id for which there is neither a builtin
nor a manifest file.

## Things you can try:
- Check the spelling of the id in ` + "`imports`" + `, ` + "`reexports`" + ` or ` + "`require`" + `
- List the builtin ids with:
~~~
$ livebind graph --builtins ./modules.cue
~~~`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle detected!

Modules import each other in a loop. Loading still succeeds: each module
sees the bindings that were assigned when the cycle closed, and receives
the rest once the module that owns them finishes.

## Things you can try:
- Move shared bindings into a module both sides import
- Read values inside exported functions rather than at load time`,
	}

	getterFailedIssue = &Issue{
		id: GetterFailedId,
		mdMsg: `
# Export could not be computed!

Reading an exported binding failed while the module's namespace was being
recomputed. Nested loads were unwound before this error was reported.

## Things you can try:
- Check export templates for expansions that cannot succeed, such as ` + "`$((1/0))`" + `
- Run with ` + "`--verbose`" + ` to see which module and name failed`,
	}

	loadDepthExceededIssue = &Issue{
		id: LoadDepthExceededId,
		mdMsg: `
# Load depth exceeded!

Modules were nested deeper than ` + "`runtime.max_load_depth`" + ` allows.

## Things you can try:
- Raise the limit in your configuration:
~~~cue
runtime: max_load_depth: 512
~~~

- Or set it to 0 to remove the limit.`,
	}

	moduleBodyFailedIssue = &Issue{
		id: ModuleBodyFailedId,
		mdMsg: `
# Module body failed!

A module returned an error while it was being executed. Importers that
were waiting on it receive the same error.

## Things you can try:
- Run with ` + "`--verbose`" + ` to see the full error chain
- Check the module's export templates and required modules`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or does not match the schema.

## Things you can try:
- Show where livebind looks for it:
~~~
$ livebind config path
~~~

- Write a fresh default file:
~~~
$ livebind config init
~~~`,
	}

	watchFailedIssue = &Issue{
		id: WatchFailedId,
		mdMsg: `
# Watching failed!

The file watcher could not be started or stopped reporting changes.

## Things you can try:
- Check that the manifest directory exists and is readable
- On Linux, raise ` + "`fs.inotify.max_user_watches`" + `
- Narrow ` + "`watch.patterns`" + ` or extend ` + "`watch.ignore`" + ``,
		extLinks: []HttpLink{"https://github.com/fsnotify/fsnotify"},
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

livebind could not read a manifest or write its configuration.

## Things you can try:
- Check file and directory permissions
- Run from a directory you own`,
	}

	issues = map[Id]*Issue{
		manifestNotFoundIssue.Id():   manifestNotFoundIssue,
		manifestParseErrorIssue.Id(): manifestParseErrorIssue,
		moduleNotFoundIssue.Id():     moduleNotFoundIssue,
		dependencyCycleIssue.Id():    dependencyCycleIssue,
		getterFailedIssue.Id():       getterFailedIssue,
		loadDepthExceededIssue.Id():  loadDepthExceededIssue,
		moduleBodyFailedIssue.Id():   moduleBodyFailedIssue,
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		watchFailedIssue.Id():        watchFailedIssue,
		permissionDeniedIssue.Id():   permissionDeniedIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
