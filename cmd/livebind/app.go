// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/livebind/livebind/internal/config"
)

type (
	// App wires the services shared by every command. Command handlers
	// receive an App reference instead of reaching for globals, so tests can
	// run them with captured output and a fixed configuration.
	App struct {
		Config  ConfigProvider
		stdout  io.Writer
		stderr  io.Writer
		environ []string
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Stdout io.Writer
		Stderr io.Writer
		// Environ is the snapshot exposed by the livebind:env builtin.
		Environ []string
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Environ == nil {
		deps.Environ = os.Environ()
	}

	return &App{
		Config:  deps.Config,
		stdout:  deps.Stdout,
		stderr:  deps.Stderr,
		environ: deps.Environ,
	}, nil
}
