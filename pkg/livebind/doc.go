// SPDX-License-Identifier: MPL-2.0

// Package livebind layers live-binding module semantics over an eager,
// synchronous module system whose modules expose a single mutable exports
// value.
//
// Every loaded module owns an Entry in a Graph. Module bodies talk to their
// Entry through a Runtime: they register getters for the names they export,
// and watch other modules with setters that are re-run every time the watched
// module recomputes its namespace. Importers therefore observe the value an
// exported binding has at the moment of use, not the value it had at import
// time, including across circular imports.
//
// Two execution strategies exist and are selected by the Go type of the body
// handed to Runtime.Run:
//   - LiveBody declares named bindings through the Runtime.
//   - LegacyBody receives the exports object and a require function and
//     mutates (or replaces) the exports object directly.
//
// The Graph is single-threaded. All calls must happen on the goroutine that
// drives the Graph's eventloop.Loop; other goroutines hand work over with
// Loop.Submit.
package livebind
