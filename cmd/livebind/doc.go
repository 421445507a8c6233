// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the CLI commands for livebind.
//
// The commands load a manifest module set onto a live-binding graph and
// report on it: run prints the entry module's namespace, graph prints load
// order and import cycles, watch rebinds modules as their manifests change,
// and config manages the user configuration file.
package cmd
