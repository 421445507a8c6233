// SPDX-License-Identifier: MPL-2.0

// Package config handles livebind configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/livebind/config.cue (or the XDG equivalent on
// Linux, ~/Library/Application Support/livebind/config.cue on macOS, %APPDATA%\livebind\config.cue
// on Windows). It controls the module graph options (compatibility exports, require
// passthrough, load depth limit), logging, watch mode and terminal output.
//
// Files are validated against the embedded CUE schema (config_schema.cue) before they are
// merged over the defaults. LIVEBIND_* environment variables override file values.
package config
