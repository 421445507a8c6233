// SPDX-License-Identifier: MPL-2.0

// Package cueutil holds the CUE parsing steps shared by the configuration
// loader and the manifest loader:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify it with the schema definition
//  3. Validate and decode into a Go value
//
// Errors carry the file name and the JSON-style path of the offending field.
package cueutil
