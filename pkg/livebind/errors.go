// SPDX-License-Identifier: MPL-2.0

package livebind

import (
	"errors"
	"fmt"
)

var (
	// ErrGetterFailed is the sentinel error wrapped by GetterError.
	ErrGetterFailed = errors.New("getter failed")
	// ErrModuleNotFound is the sentinel error wrapped by ModuleNotFoundError.
	ErrModuleNotFound = errors.New("module not found")
	// ErrLoadDepthExceeded is returned when nested loads exceed Options.MaxLoadDepth.
	ErrLoadDepthExceeded = errors.New("load depth exceeded")
	// ErrNoLoader is returned when a non-builtin module is requested from a
	// Graph that was built without a Loader.
	ErrNoLoader = errors.New("no module loader configured")
	// ErrUnsupportedBody is returned by Run for bodies of an unknown type.
	ErrUnsupportedBody = errors.New("unsupported module body")
	// ErrImportPanicked is the sentinel error wrapped by ImportPanicError.
	ErrImportPanicked = errors.New("import panicked")
)

type (
	// GetterError reports a getter that panicked during a recompute.
	// It wraps ErrGetterFailed, and the panic value when that value is an error.
	GetterError struct {
		Module ModuleID
		Name   ExportName
		Value  any
	}

	// ModuleNotFoundError is returned by loaders for unresolvable identifiers.
	// It wraps ErrModuleNotFound for errors.Is() compatibility.
	ModuleNotFoundError struct {
		ID     string
		Parent ModuleID
	}

	// ImportPanicError reports a panic raised while an Import was loading
	// its module, by the module body or by a setter. It wraps
	// ErrImportPanicked, and the panic value when that value is an error.
	ImportPanicError struct {
		ID     string
		Parent ModuleID
		Value  any
	}

	// LoadDepthError reports the depth at which ErrLoadDepthExceeded was hit.
	LoadDepthError struct {
		Depth int
		Limit int
	}
)

// Error implements the error interface.
func (e *GetterError) Error() string {
	return fmt.Sprintf("getter %q of module %q panicked: %v", e.Name, e.Module, e.Value)
}

// Unwrap returns ErrGetterFailed and, when the panic value is an error, that error.
func (e *GetterError) Unwrap() []error {
	if err, ok := e.Value.(error); ok {
		return []error{ErrGetterFailed, err}
	}
	return []error{ErrGetterFailed}
}

// Error implements the error interface.
func (e *ModuleNotFoundError) Error() string {
	if e.Parent != "" {
		return fmt.Sprintf("cannot find module %q imported from %q", e.ID, e.Parent)
	}
	return fmt.Sprintf("cannot find module %q", e.ID)
}

// Unwrap returns ErrModuleNotFound for errors.Is() compatibility.
func (e *ModuleNotFoundError) Unwrap() error { return ErrModuleNotFound }

// Error implements the error interface.
func (e *LoadDepthError) Error() string {
	return fmt.Sprintf("load depth %d exceeds limit %d", e.Depth, e.Limit)
}

// Unwrap returns ErrLoadDepthExceeded for errors.Is() compatibility.
func (e *LoadDepthError) Unwrap() error { return ErrLoadDepthExceeded }

// Error implements the error interface.
func (e *ImportPanicError) Error() string {
	return fmt.Sprintf("import of %q from %q panicked: %v", e.ID, e.Parent, e.Value)
}

// Unwrap returns ErrImportPanicked and, when the panic value is an error, that error.
func (e *ImportPanicError) Unwrap() []error {
	if err, ok := e.Value.(error); ok {
		return []error{ErrImportPanicked, err}
	}
	return []error{ErrImportPanicked}
}
