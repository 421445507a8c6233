// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/livebind/livebind/pkg/livebind"
)

const (
	// EnvModuleID is the builtin exposing an environment snapshot, one
	// export per variable.
	EnvModuleID livebind.ModuleID = "livebind:env"
	// PlatformModuleID is the builtin describing the host: os, arch, go
	// and version.
	PlatformModuleID livebind.ModuleID = "livebind:platform"
)

// RegisterHostBuiltins registers the env and platform builtins. environ
// holds "KEY=value" pairs, usually os.Environ(); version is the livebind
// version reported by the platform module.
func RegisterHostBuiltins(reg *livebind.BuiltinRegistry, environ []string, version string) error {
	env := livebind.NewExports()
	sorted := slices.Clone(environ)
	slices.Sort(sorted)
	for _, kv := range sorted {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		env.Set(livebind.ExportName(key), value)
	}
	if _, err := reg.Register(EnvModuleID, env); err != nil {
		return fmt.Errorf("register %s: %w", EnvModuleID, err)
	}

	_, err := reg.RegisterNamespace(PlatformModuleID, livebind.GetterPairs{
		{Name: "os", Get: livebind.Const(runtime.GOOS)},
		{Name: "arch", Get: livebind.Const(runtime.GOARCH)},
		{Name: "go", Get: livebind.Const(runtime.Version())},
		{Name: "version", Get: livebind.Const(version)},
	})
	if err != nil {
		return fmt.Errorf("register %s: %w", PlatformModuleID, err)
	}
	return nil
}
