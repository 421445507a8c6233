// SPDX-License-Identifier: MPL-2.0

// Package benchmark provides benchmarks for PGO profile generation.
// They cover the hot paths of loading a module set:
//   - manifest parsing (CUE and TOML) and template expansion
//   - loading import chains and cycles onto a graph
//   - recompute propagation from one module to many importers
//   - hot rebinding of a changed manifest
//
// To generate a profile, run:
//
//	go test ./internal/benchmark -run '^$' -bench . -cpuprofile default.pgo
package benchmark
