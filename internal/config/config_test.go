// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/livebind/livebind/internal/issue"
	"github.com/livebind/livebind/internal/testutil"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	testutil.MustWriteFile(t, path, content)
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Parallel()

	cfg, path, err := loadWithOptions(t.Context(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("load error = %v", err)
	}
	if path != "" {
		t.Errorf("resolved path = %q, want none", path)
	}

	want := DefaultConfig()
	if cfg.Log.Level != want.Log.Level || cfg.Watch.Debounce != want.Watch.Debounce {
		t.Errorf("cfg = %+v, want defaults %+v", cfg, want)
	}
	if !slices.Equal(cfg.Watch.Patterns, want.Watch.Patterns) {
		t.Errorf("patterns = %v, want %v", cfg.Watch.Patterns, want.Watch.Patterns)
	}
}

func TestLoad_FromConfigDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	written := writeConfig(t, dir, `
runtime: {
	compat_exports: true
	max_load_depth: 16
}
log: level: "debug"
watch: {
	debounce: "250ms"
	patterns: ["modules/**/*.cue"]
}
`)

	cfg, path, err := loadWithOptions(t.Context(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("load error = %v", err)
	}
	if path != written {
		t.Errorf("resolved path = %q, want %q", path, written)
	}
	if !cfg.Runtime.CompatExports || cfg.Runtime.PassthroughRequire {
		t.Errorf("runtime = %+v", cfg.Runtime)
	}
	if cfg.Runtime.MaxLoadDepth != 16 {
		t.Errorf("max_load_depth = %d, want 16", cfg.Runtime.MaxLoadDepth)
	}
	if cfg.Log.Level != LogLevelDebug {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Watch.Debounce != 250*time.Millisecond {
		t.Errorf("debounce = %s, want 250ms", cfg.Watch.Debounce)
	}
	if !slices.Equal(cfg.Watch.Patterns, []string{"modules/**/*.cue"}) {
		t.Errorf("patterns = %v", cfg.Watch.Patterns)
	}
	// Untouched sections keep their defaults.
	if cfg.UI.ColorScheme != ColorSchemeAuto {
		t.Errorf("color scheme = %q, want auto", cfg.UI.ColorScheme)
	}
}

func TestLoad_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "syntax error", content: "runtime: {"},
		{name: "unknown field", content: `cache: enabled: true`},
		{name: "negative depth", content: `runtime: max_load_depth: -1`},
		{name: "unknown level", content: `log: level: "trace"`},
		{name: "bad duration", content: `watch: debounce: "soon"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			path := writeConfig(t, dir, tt.content)

			_, _, err := loadWithOptions(t.Context(), LoadOptions{ConfigDirPath: dir})
			ae, ok := issue.AsActionable(err)
			if !ok {
				t.Fatalf("error = %v, want an ActionableError", err)
			}
			if ae.Issue != issue.ConfigLoadFailedId {
				t.Errorf("issue = %d, want ConfigLoadFailedId", ae.Issue)
			}
			if ae.Resource != path {
				t.Errorf("resource = %q, want %q", ae.Resource, path)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope.cue")
	_, _, err := loadWithOptions(t.Context(), LoadOptions{ConfigFilePath: missing})
	ae, ok := issue.AsActionable(err)
	if !ok {
		t.Fatalf("error = %v, want an ActionableError", err)
	}
	if !strings.Contains(ae.Error(), "config file not found") {
		t.Errorf("error = %q", ae.Error())
	}
	if !ae.HasSuggestions() {
		t.Error("missing file error should carry suggestions")
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Cleanup(testutil.MustSetenv(t, "LIVEBIND_LOG_LEVEL", "warn"))
	t.Cleanup(testutil.MustSetenv(t, "LIVEBIND_RUNTIME_MAX_LOAD_DEPTH", "4"))

	dir := t.TempDir()
	writeConfig(t, dir, `log: level: "debug"`)

	cfg, _, err := loadWithOptions(t.Context(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("load error = %v", err)
	}
	if cfg.Log.Level != LogLevelWarn {
		t.Errorf("log level = %q, want the environment's warn", cfg.Log.Level)
	}
	if cfg.Runtime.MaxLoadDepth != 4 {
		t.Errorf("max_load_depth = %d, want 4", cfg.Runtime.MaxLoadDepth)
	}
}

func TestLoad_InvalidEnvironmentOverride(t *testing.T) {
	t.Cleanup(testutil.MustSetenv(t, "LIVEBIND_UI_COLOR_SCHEME", "neon"))

	_, _, err := loadWithOptions(t.Context(), LoadOptions{ConfigDirPath: t.TempDir()})
	if !errors.Is(err, ErrInvalidColorScheme) {
		t.Fatalf("error = %v, want ErrInvalidColorScheme in the chain", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, _, err := loadWithOptions(ctx, LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	t.Parallel()

	want := DefaultConfig()
	want.Runtime.PassthroughRequire = true
	want.Runtime.MaxLoadDepth = 8
	want.Log.Level = LogLevelError
	want.Watch.Debounce = 2 * time.Second
	want.Watch.Ignore = []string{"**/.git/**", "dist/**"}
	want.UI.Verbose = true
	want.UI.ColorScheme = ColorSchemeLight

	dir := t.TempDir()
	writeConfig(t, dir, GenerateCUE(want))

	got, _, err := loadWithOptions(t.Context(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if got.Runtime != want.Runtime || got.Log != want.Log || got.UI != want.UI {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got.Watch.Debounce != want.Watch.Debounce || !slices.Equal(got.Watch.Ignore, want.Watch.Ignore) {
		t.Errorf("watch = %+v, want %+v", got.Watch, want.Watch)
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "livebind")
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)

	path, created, err := CreateDefaultConfig()
	if err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}
	if !created || path != filepath.Join(dir, "config.cue") {
		t.Fatalf("CreateDefaultConfig() = %q, %v", path, created)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file missing: %v", err)
	}

	if _, created, err = CreateDefaultConfig(); err != nil || created {
		t.Errorf("second CreateDefaultConfig() created=%v err=%v, want existing file kept", created, err)
	}

	cfg, err := NewProvider().Load(t.Context(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != LogLevelInfo {
		t.Errorf("log level = %q, want info", cfg.Log.Level)
	}
}

func TestStaticProvider(t *testing.T) {
	t.Parallel()

	cfg, err := StaticProvider{}.Load(t.Context(), LoadOptions{})
	if err != nil || cfg.Log.Level != LogLevelInfo {
		t.Errorf("zero StaticProvider should return defaults, got %+v, %v", cfg, err)
	}

	fixed := &Config{Log: LogConfig{Level: LogLevelDebug}}
	if got, _ := (StaticProvider{Config: fixed}).Load(t.Context(), LoadOptions{}); got != fixed {
		t.Error("StaticProvider should return its configuration unchanged")
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := (StaticProvider{}).Load(ctx, LoadOptions{}); err == nil {
		t.Error("StaticProvider should honor a canceled context")
	}
}
