// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	"github.com/livebind/livebind/pkg/livebind"
)

var (
	// ErrNotLoaded is returned by Reload for files no loaded module came from.
	ErrNotLoaded = errors.New("module not loaded")
	// ErrRestartRequired is the sentinel error wrapped by RestartRequiredError.
	ErrRestartRequired = errors.New("change requires a restart")
)

// RestartRequiredError reports a manifest change that cannot be applied to
// the running graph: legacy modules, and changes to what a module loads.
type RestartRequiredError struct {
	Module livebind.ModuleID
	Reason string
}

// Error implements the error interface.
func (e *RestartRequiredError) Error() string {
	return fmt.Sprintf("module %q: %s", e.Module, e.Reason)
}

// Unwrap returns ErrRestartRequired for errors.Is() compatibility.
func (e *RestartRequiredError) Unwrap() error { return ErrRestartRequired }

// Reload re-reads the manifest at path and applies new export templates
// and default value to the loaded live module in place. The module's
// namespace is recomputed and every importer is updated through its
// setters. Exports that were removed become Uninitialized.
func (l *Loader) Reload(path string) (*livebind.Entry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("reload %s: %w", path, err)
	}
	modID := l.ModuleID(abs)
	rec, ok := l.records[modID]
	if !ok {
		return nil, fmt.Errorf("reload %s: %w", path, ErrNotLoaded)
	}

	m, err := Parse(abs)
	if err != nil {
		return nil, fmt.Errorf("reload module %q: %w", modID, err)
	}
	old := rec.manifest
	switch {
	case old.Kind != KindLive || m.Kind != KindLive:
		return nil, &RestartRequiredError{Module: modID, Reason: "legacy modules run once"}
	case !old.sameShape(m):
		return nil, &RestartRequiredError{Module: modID, Reason: "imports changed"}
	}

	rec.manifest = m
	var added livebind.GetterPairs
	for _, name := range m.ExportNames() {
		if _, had := old.Exports[name]; !had {
			added = append(added, livebind.GetterPair{Name: livebind.ExportName(name), Get: rec.getter(name)})
		}
	}
	rec.runtime.Export(added)
	switch {
	case m.Default != nil:
		rec.runtime.Default(*m.Default)
	case old.Default != nil:
		rec.runtime.Export(livebind.GetterPairs{{Name: livebind.DefaultName, Get: livebind.Const(livebind.Uninitialized)}})
	}

	l.logger.Debug("reload manifest", "module", modID, "added", len(added))
	if _, err := rec.runtime.Update(nil); err != nil {
		return nil, err
	}

	entry := rec.runtime.Entry()
	syncExports(entry.Namespace(), rec.module.Exports)
	return entry, nil
}

// syncExports mirrors a recomputed namespace onto the exports object
// legacy importers hold.
func syncExports(ns *livebind.Namespace, exports *livebind.Exports) {
	ns.Range(func(name livebind.ExportName, value any) bool {
		if livebind.IsUninitialized(value) {
			exports.Delete(name)
		} else {
			exports.Set(name, value)
		}
		return true
	})
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
