// SPDX-License-Identifier: MPL-2.0

package livebind

import "path/filepath"

type (
	// Module is the record a loader hands to the Graph: the module's id, the
	// file it came from, and its exports value.
	Module struct {
		ID       ModuleID
		Filename string
		Exports  *Exports
		Loaded   bool
		Parent   *Module
	}

	// Loader turns an identifier into a loaded module. Implementations
	// resolve id relative to parent, return the cached module for ids they
	// already started loading (including modules still executing, which is
	// how cycles are closed), and otherwise create the module, enable a
	// Runtime for it and run its body.
	Loader interface {
		Load(id string, parent *Module) (*Module, error)
	}

	// LoaderFunc adapts a function to the Loader interface.
	LoaderFunc func(id string, parent *Module) (*Module, error)
)

// NewModule creates a module record with an empty exports object.
func NewModule(id ModuleID, filename string, parent *Module) *Module {
	return &Module{
		ID:       id,
		Filename: filename,
		Exports:  NewExports(),
		Parent:   parent,
	}
}

// Dir returns the directory of the module's file.
func (m *Module) Dir() string {
	if m.Filename == "" {
		return ""
	}
	return filepath.Dir(m.Filename)
}

// Load calls f.
func (f LoaderFunc) Load(id string, parent *Module) (*Module, error) {
	return f(id, parent)
}
