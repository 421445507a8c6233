// SPDX-License-Identifier: MPL-2.0

// Package manifest is a declarative module loader for the livebind graph.
//
// Each module is a small CUE or TOML file declaring what it imports and
// exports. Export values are shell-style templates such as
// "hello ${name}" whose variables are bindings imported from other
// modules, so a module's exports change when the modules it imports
// change. Live modules are wired through Runtime.Watch and recompute
// through getters; legacy modules call require and assign their exports
// once, the way factory-style modules do.
package manifest
