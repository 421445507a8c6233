// SPDX-License-Identifier: MPL-2.0

package livebind

import "fmt"

type (
	// Body is a module body accepted by Runtime.Run: a LiveBody or a LegacyBody.
	Body interface {
		isBody()
	}

	// RequireFunc synchronously loads a module and returns its exports value.
	RequireFunc func(id string) (*Exports, error)

	// LegacyBody is a factory-style module body. It receives the current
	// exports object, a require function, its module record, filename and
	// directory. It may replace mod.Exports entirely.
	LegacyBody func(exports *Exports, require RequireFunc, mod *Module, filename, dirname string) error

	// LiveBody is a live-binding module body. exports is nil unless the graph
	// was built with Options.CompatExports.
	LiveBody func(rt *Runtime, exports *Exports) error
)

func (LegacyBody) isBody() {}
func (LiveBody) isBody()   {}

// runLegacy executes a factory body, then folds whatever exports object the
// module ended up with back into the entry importers already hold.
func (r *Runtime) runLegacy(body LegacyBody, require RequireFunc) error {
	mod, entry, g := r.module, r.entry, r.graph
	exported := entry.exports
	mod.Exports = exported

	if !g.opts.PassthroughRequire || require == nil {
		require = g.wrapRequire(entry, mod)
	}

	if err := body(exported, require, mod, mod.Filename, mod.Dir()); err != nil {
		return fmt.Errorf("run module %q: %w", mod.ID, err)
	}
	mod.Loaded = true
	if mod.Exports == nil {
		mod.Exports = NewExports()
	}

	if mod.Exports != exported {
		g.logger.Debug("exports replaced", "module", mod.ID)
	}
	entry.Merge(g.freshEntry(mod))
	g.rebind(entry, mod.Exports)

	if _, err := entry.Update(); err != nil {
		return err
	}
	entry.Loaded()
	return nil
}

// runLive executes a live-binding body, finalizes the namespace and copies
// it onto the exports object for legacy importers.
func (r *Runtime) runLive(body LiveBody) error {
	mod, entry, g := r.module, r.entry, r.graph
	exported := entry.exports
	mod.Exports = exported
	exported.MarkESModule()
	entry.sourceType = SourceLiveBinding

	var arg *Exports
	if g.opts.CompatExports {
		arg = exported
	}
	if err := body(r, arg); err != nil {
		return fmt.Errorf("run module %q: %w", mod.ID, err)
	}
	mod.Loaded = true

	if _, err := entry.Update(); err != nil {
		return err
	}
	entry.Loaded()
	entry.namespace.copyTo(exported)
	return nil
}
