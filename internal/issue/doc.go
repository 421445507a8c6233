// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing errors for the livebind CLI.
//
// An ActionableError names the operation that failed, the module or file it
// concerned and what the user can do about it. Errors can point at an entry
// of the issue catalog, a set of Markdown guides rendered with glamour.
package issue
