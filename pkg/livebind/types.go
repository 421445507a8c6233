// SPDX-License-Identifier: MPL-2.0

package livebind

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Wildcard is the setter name that subscribes to the whole namespace
	// instead of a single export.
	Wildcard ExportName = "*"

	// DefaultName is the export name used by Runtime.Default.
	DefaultName ExportName = "default"
)

const (
	// SourceUnknown is the source type of an entry whose module has not run yet.
	SourceUnknown SourceType = iota
	// SourceLiveBinding marks an entry whose namespace is derived from getters.
	SourceLiveBinding
	// SourceLegacy marks an entry whose namespace mirrors a mutable exports object.
	SourceLegacy
)

var (
	// Uninitialized is returned by getters for bindings that have not been
	// assigned yet. Recomputes record it without failing, and named setters
	// are not invoked for it.
	Uninitialized any = uninitialized{}

	// ErrInvalidModuleID is the sentinel error wrapped by InvalidModuleIDError.
	ErrInvalidModuleID = errors.New("invalid module id")
	// ErrInvalidExportName is the sentinel error wrapped by InvalidExportNameError.
	ErrInvalidExportName = errors.New("invalid export name")
)

type (
	uninitialized struct{}

	// ModuleID identifies a loaded module. It is the key of the Graph arena.
	ModuleID string

	// InvalidModuleIDError is returned when a ModuleID is empty or whitespace-only.
	// It wraps ErrInvalidModuleID for errors.Is() compatibility.
	InvalidModuleIDError struct {
		Value ModuleID
	}

	// ExportName is the name of an exported binding, or Wildcard in setter pairs.
	ExportName string

	// InvalidExportNameError is returned when an ExportName is empty.
	// It wraps ErrInvalidExportName for errors.Is() compatibility.
	InvalidExportNameError struct {
		Value ExportName
	}

	// SourceType tells how an entry's namespace is produced.
	SourceType int

	// Getter computes the current value of an exported binding.
	// It returns Uninitialized while the binding is not assigned.
	Getter func() any

	// Setter receives a watched binding's value after every recompute of the
	// notifying entry. Wildcard setters receive the entry's *Namespace.
	Setter func(value any, from *Entry)

	// GetterPair associates an export name with its getter.
	GetterPair struct {
		Name ExportName
		Get  Getter
	}

	// GetterPairs is an ordered list of getters. Later pairs overwrite
	// earlier ones with the same name.
	GetterPairs []GetterPair

	// SetterPair associates an export name (or Wildcard) with a setter.
	SetterPair struct {
		Name ExportName
		Set  Setter
	}

	// SetterPairs is an ordered list of setters, invoked in order.
	SetterPairs []SetterPair
)

func (uninitialized) String() string { return "<uninitialized>" }

// IsUninitialized reports whether v is the Uninitialized sentinel.
func IsUninitialized(v any) bool {
	_, ok := v.(uninitialized)
	return ok
}

// String returns the module id.
func (m ModuleID) String() string { return string(m) }

// Validate returns an error if the module id is empty or whitespace-only.
func (m ModuleID) Validate() error {
	if strings.TrimSpace(string(m)) == "" {
		return &InvalidModuleIDError{Value: m}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidModuleIDError) Error() string {
	return fmt.Sprintf("invalid module id %q: must not be empty", e.Value)
}

// Unwrap returns ErrInvalidModuleID for errors.Is() compatibility.
func (e *InvalidModuleIDError) Unwrap() error { return ErrInvalidModuleID }

// String returns the export name.
func (n ExportName) String() string { return string(n) }

// Validate returns an error if the export name is empty.
func (n ExportName) Validate() error {
	if n == "" {
		return &InvalidExportNameError{Value: n}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidExportNameError) Error() string {
	return fmt.Sprintf("invalid export name %q: must not be empty", e.Value)
}

// Unwrap returns ErrInvalidExportName for errors.Is() compatibility.
func (e *InvalidExportNameError) Unwrap() error { return ErrInvalidExportName }

// String returns a human-readable source type.
func (s SourceType) String() string {
	switch s {
	case SourceLiveBinding:
		return "live-binding"
	case SourceLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// Const returns a getter that always returns v.
func Const(v any) Getter {
	return func() any { return v }
}

// Names returns the export names in order.
func (p GetterPairs) Names() []ExportName {
	names := make([]ExportName, 0, len(p))
	for _, pair := range p {
		names = append(names, pair.Name)
	}
	return names
}

// Validate checks every pair has a name and a getter.
func (p GetterPairs) Validate() error {
	var errs []error
	for i, pair := range p {
		if err := pair.Name.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("getter[%d]: %w", i, err))
		}
		if pair.Get == nil {
			errs = append(errs, fmt.Errorf("getter[%d] %q: nil getter", i, pair.Name))
		}
	}
	return errors.Join(errs...)
}

// Validate checks every pair has a name and a setter.
func (p SetterPairs) Validate() error {
	var errs []error
	for i, pair := range p {
		if err := pair.Name.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("setter[%d]: %w", i, err))
		}
		if pair.Set == nil {
			errs = append(errs, fmt.Errorf("setter[%d] %q: nil setter", i, pair.Name))
		}
	}
	return errors.Join(errs...)
}
