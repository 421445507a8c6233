// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
)

const (
	// LogLevelDebug logs module loads, watches and merges.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs lifecycle events.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs recoverable problems only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs failures only.
	LogLevelError LogLevel = "error"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidLoadDepthLimit is returned for negative load depth limits.
	ErrInvalidLoadDepthLimit = errors.New("invalid load depth limit")
	// ErrInvalidWatchConfig is the sentinel error wrapped by InvalidWatchConfigError.
	ErrInvalidWatchConfig = errors.New("invalid watch config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level of log output.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// LoadDepthLimit bounds nested synchronous module loads. Zero means unlimited.
	LoadDepthLimit int

	// InvalidLoadDepthLimitError is returned for negative limits.
	InvalidLoadDepthLimitError struct {
		Value LoadDepthLimit
	}

	// InvalidWatchConfigError collects the field errors of a WatchConfig.
	InvalidWatchConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError collects the field errors of a Config.
	// It wraps ErrInvalidConfig and every field error.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Runtime configures the module graph.
		Runtime RuntimeConfig `json:"runtime" mapstructure:"runtime"`
		// Log configures the logger.
		Log LogConfig `json:"log" mapstructure:"log"`
		// Watch configures `livebind watch`.
		Watch WatchConfig `json:"watch" mapstructure:"watch"`
		// UI configures terminal output.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// RuntimeConfig mirrors the options of a livebind.Graph.
	RuntimeConfig struct {
		CompatExports      bool           `json:"compat_exports" mapstructure:"compat_exports"`
		PassthroughRequire bool           `json:"passthrough_require" mapstructure:"passthrough_require"`
		MaxLoadDepth       LoadDepthLimit `json:"max_load_depth" mapstructure:"max_load_depth"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
	}

	// WatchConfig configures file watching.
	WatchConfig struct {
		// Debounce coalesces bursts of file events.
		Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
		// Patterns are doublestar globs of files that trigger a rebind.
		Patterns []string `json:"patterns" mapstructure:"patterns"`
		// Ignore are doublestar globs excluded from Patterns.
		Ignore []string `json:"ignore" mapstructure:"ignore"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables the full error chain and debug logs.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
		// ColorScheme selects the issue rendering style.
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Runtime: RuntimeConfig{MaxLoadDepth: 0},
		Log:     LogConfig{Level: LogLevelInfo},
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
			Patterns: []string{"**/*.cue", "**/*.toml"},
			Ignore:   []string{"**/.git/**"},
		},
		UI: UIConfig{ColorScheme: ColorSchemeAuto},
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// Validate returns an error if the LogLevel is not recognized.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return &InvalidLogLevelError{Value: l}
	}
}

// Level converts the LogLevel for charmbracelet/log. Unknown values map to info.
func (l LogLevel) Level() log.Level {
	level, err := log.ParseLevel(string(l))
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// Error implements the error interface.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// Validate returns an error if the ColorScheme is not recognized.
func (cs ColorScheme) Validate() error {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return nil
	default:
		return &InvalidColorSchemeError{Value: cs}
	}
}

// GlamourStyle returns the glamour style name for the scheme.
func (cs ColorScheme) GlamourStyle() string {
	switch cs {
	case ColorSchemeDark, ColorSchemeLight:
		return string(cs)
	default:
		return "auto"
	}
}

// Error implements the error interface.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// Validate returns an error for negative limits.
func (d LoadDepthLimit) Validate() error {
	if d < 0 {
		return &InvalidLoadDepthLimitError{Value: d}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidLoadDepthLimitError) Error() string {
	return fmt.Sprintf("invalid load depth limit %d: must be >= 0", e.Value)
}

// Unwrap returns ErrInvalidLoadDepthLimit for errors.Is() compatibility.
func (e *InvalidLoadDepthLimitError) Unwrap() error { return ErrInvalidLoadDepthLimit }

// Validate checks the debounce and that every glob is well formed.
func (w WatchConfig) Validate() error {
	var errs []error
	if w.Debounce < 0 {
		errs = append(errs, fmt.Errorf("debounce %s: must not be negative", w.Debounce))
	}
	for _, p := range append(append([]string(nil), w.Patterns...), w.Ignore...) {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("malformed glob %q", p))
		}
	}
	if len(errs) > 0 {
		return &InvalidWatchConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidWatchConfigError) Error() string {
	return fmt.Sprintf("invalid watch config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidWatchConfig for errors.Is() compatibility.
func (e *InvalidWatchConfigError) Unwrap() error { return ErrInvalidWatchConfig }

// Validate checks every field of the configuration.
func (c Config) Validate() error {
	var errs []error
	if err := c.Runtime.MaxLoadDepth.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Log.Level.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Watch.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.UI.ColorScheme.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig followed by the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
