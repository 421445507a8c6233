// SPDX-License-Identifier: MPL-2.0

// Package testutil holds test helpers that fail the test instead of
// returning errors: environment overrides, filesystem fixtures and
// cleanup of closers.
package testutil
