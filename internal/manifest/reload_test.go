// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/livebind/livebind/internal/testutil"
	"github.com/livebind/livebind/pkg/livebind"
)

func TestLoader_ReloadPropagates(t *testing.T) {
	t.Parallel()

	graph, loader := newTestLoader(t, map[string]string{
		"main.cue": `
imports: [{from: "./util", names: {who: "name"}}]
exports: greeting: "hello ${who}"
`,
		"legacy.toml": `
kind = "legacy"

[[require]]
from = "./util"
as = "util"
`,
		"util.cue": `
exports: {
	name: "world"
	old:  "gone soon"
}
default: "v1"
`,
	})

	main := mustLoad(t, graph, loader, "main")
	mustLoad(t, graph, loader, "legacy")
	util, _ := graph.Entry("util")
	updates := main.Updates()

	utilPath := filepath.Join(loader.Root(), "util.cue")
	testutil.MustWriteFile(t, utilPath, `
exports: {
	name:  "livebind"
	added: "new"
}
`)

	entry, err := loader.Reload(utilPath)
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if entry != util {
		t.Error("Reload() should return the module's existing entry")
	}

	assertExport(t, util, "name", "livebind")
	assertExport(t, util, "added", "new")
	assertExport(t, main, "greeting", "hello livebind")
	if main.Updates() <= updates {
		t.Error("importer should have been recomputed")
	}
	if v := util.Namespace().Value("old"); !livebind.IsUninitialized(v) {
		t.Errorf("removed export = %#v, want Uninitialized", v)
	}
	if v := util.Namespace().Value("default"); !livebind.IsUninitialized(v) {
		t.Errorf("removed default = %#v, want Uninitialized", v)
	}

	exports := util.Exports()
	if got, _ := exports.Get("name"); got != "livebind" {
		t.Errorf("exports object name = %#v, want livebind", got)
	}
	if _, ok := exports.Get("old"); ok {
		t.Error("removed export should be deleted from the exports object")
	}
}

func TestLoader_ReloadRejects(t *testing.T) {
	t.Parallel()

	graph, loader := newTestLoader(t, map[string]string{
		"main.cue":   `imports: [{from: "./util", as: "u"}]`,
		"util.cue":   `exports: name: "x"`,
		"old.toml":   "kind = \"legacy\"\n[exports]\na = \"1\"\n",
		"never.cue":  `exports: a: "1"`,
		"broken.cue": `exports: a: "1"`,
	})
	mustLoad(t, graph, loader, "main")
	mustLoad(t, graph, loader, "old")
	mustLoad(t, graph, loader, "broken")
	root := loader.Root()

	testutil.MustWriteFile(t, filepath.Join(root, "main.cue"), `imports: [{from: "./util", as: "renamed"}]`)
	testutil.MustWriteFile(t, filepath.Join(root, "old.toml"), "kind = \"legacy\"\n[exports]\na = \"2\"\n")
	testutil.MustWriteFile(t, filepath.Join(root, "broken.cue"), `exports: {`)

	tests := []struct {
		name     string
		file     string
		sentinel error
	}{
		{name: "imports changed", file: "main.cue", sentinel: ErrRestartRequired},
		{name: "legacy module", file: "old.toml", sentinel: ErrRestartRequired},
		{name: "never loaded", file: "never.cue", sentinel: ErrNotLoaded},
		{name: "syntax error", file: "broken.cue", sentinel: ErrParse},
	}

	for _, tt := range tests {
		_, err := loader.Reload(filepath.Join(root, tt.file))
		if !errors.Is(err, tt.sentinel) {
			t.Errorf("%s: Reload() error = %v, want %v", tt.name, err, tt.sentinel)
		}
	}

	// A rejected reload leaves the running module untouched.
	broken, _ := graph.Entry("broken")
	assertExport(t, broken, "a", "1")
}
