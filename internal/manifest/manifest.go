// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/livebind/livebind/internal/cueutil"

	"github.com/pelletier/go-toml/v2"
)

const (
	// KindLive declares a live-binding module.
	KindLive Kind = "live"
	// KindLegacy declares a factory-style module.
	KindLegacy Kind = "legacy"

	extCUE  = ".cue"
	extTOML = ".toml"
)

//go:embed manifest_schema.cue
var manifestSchema []byte

var (
	// ErrInvalidManifest is the sentinel error wrapped by InvalidManifestError.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrUnsupportedFormat is returned for files that are neither CUE nor TOML.
	ErrUnsupportedFormat = errors.New("unsupported manifest format")
	// ErrParse is the sentinel error wrapped by ParseError.
	ErrParse = errors.New("manifest parse failed")
	// ErrInvalidKind is the sentinel error wrapped by InvalidKindError.
	ErrInvalidKind = errors.New("invalid module kind")

	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

type (
	// Kind selects the execution strategy of a module.
	Kind string

	// InvalidKindError is returned when a Kind value is not recognized.
	// It wraps ErrInvalidKind for errors.Is() compatibility.
	InvalidKindError struct {
		Value Kind
	}

	// Manifest is the declaration of one module.
	Manifest struct {
		Kind Kind `json:"kind" toml:"kind"`

		// Imports are live imports (live modules only).
		Imports []Import `json:"imports,omitempty" toml:"imports,omitempty"`
		// Dynamic are imports resolved on the next tick of the graph's
		// loop rather than while the module loads (live modules only).
		// Their variables stay unbound until then.
		Dynamic []Import `json:"dynamic,omitempty" toml:"dynamic,omitempty"`
		// Reexports re-export every name of the listed modules (live modules only).
		Reexports []string `json:"reexports,omitempty" toml:"reexports,omitempty"`
		// Require loads modules synchronously (legacy modules only).
		Require []Require `json:"require,omitempty" toml:"require,omitempty"`

		// Exports maps export names to templates.
		Exports map[string]string `json:"exports,omitempty" toml:"exports,omitempty"`
		// Default is the value of the "default" export. Legacy modules with
		// ReplaceExports export it as their single value.
		Default *string `json:"default,omitempty" toml:"default,omitempty"`

		// ReplaceExports makes a legacy module assign a new exports object
		// instead of mutating the one it was given.
		ReplaceExports bool `json:"replace_exports,omitempty" toml:"replace_exports,omitempty"`

		// Path is the file the manifest was read from.
		Path string `json:"-" toml:"-"`

		templates map[string]*Template
	}

	// Import binds names of another module to local template variables.
	Import struct {
		From string `json:"from" toml:"from"`
		// Names maps local variable names to exported names.
		Names map[string]string `json:"names,omitempty" toml:"names,omitempty"`
		// As binds the module's whole namespace to one variable,
		// read in templates as ${as[name]}.
		As string `json:"as,omitempty" toml:"as,omitempty"`
	}

	// Require binds the exports object of a synchronously loaded module.
	Require struct {
		From string `json:"from" toml:"from"`
		As   string `json:"as" toml:"as"`
	}

	// ParseError reports a manifest that is not well-formed CUE or TOML, or
	// that does not match the manifest schema.
	ParseError struct {
		Path string
		Err  error
	}

	// InvalidManifestError lists every problem found in a manifest.
	InvalidManifestError struct {
		Path        string
		FieldErrors []error
	}
)

// Parse reads a manifest file, choosing the format by extension.
func Parse(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest at %s: %w", path, err)
	}
	return ParseBytes(data, path)
}

// ParseBytes parses manifest content. path selects the format and is used
// in error messages.
func ParseBytes(data []byte, path string) (*Manifest, error) {
	var (
		m   *Manifest
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case extCUE:
		m, err = parseCUE(data, path)
	case extTOML:
		m, err = parseTOML(data, path)
	default:
		return nil, fmt.Errorf("%w: %q (want %s or %s)", ErrUnsupportedFormat, ext, extCUE, extTOML)
	}
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	m.Path = path
	if m.Kind == "" {
		m.Kind = KindLive
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseCUE(data []byte, path string) (*Manifest, error) {
	result, err := cueutil.ParseAndDecode[Manifest](manifestSchema, data, "#Manifest",
		cueutil.WithFilename(path),
	)
	if err != nil {
		return nil, err
	}
	return result.Value, nil
}

func parseTOML(data []byte, path string) (*Manifest, error) {
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return nil, err
	}

	var m Manifest
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return nil, fmt.Errorf("%s:%d:%d: %s", path, row, col, decodeErr.Error())
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// Validate checks the manifest and compiles its templates. Problems are
// collected rather than reported one at a time.
func (m *Manifest) Validate() error {
	var errs []error
	if err := m.Kind.Validate(); err != nil {
		errs = append(errs, err)
	}

	switch m.Kind {
	case KindLive:
		if len(m.Require) > 0 {
			errs = append(errs, errors.New("require: only legacy modules can require (use imports)"))
		}
		if m.ReplaceExports {
			errs = append(errs, errors.New("replace_exports: only legacy modules can replace their exports"))
		}
	case KindLegacy:
		if len(m.Imports) > 0 || len(m.Dynamic) > 0 || len(m.Reexports) > 0 {
			errs = append(errs, errors.New("imports: legacy modules load dependencies with require"))
		}
	}

	locals := make(map[string]string)
	declare := func(name, source string) {
		switch {
		case !identifierPattern.MatchString(name):
			errs = append(errs, fmt.Errorf("%s: %q is not a valid variable name", source, name))
		case locals[name] != "":
			errs = append(errs, fmt.Errorf("%s: variable %q already bound by %s", source, name, locals[name]))
		default:
			locals[name] = source
		}
	}

	checkImport := func(source string, imp Import) {
		if imp.From == "" {
			errs = append(errs, fmt.Errorf("%s: from is required", source))
		}
		if imp.As == "" && len(imp.Names) == 0 {
			errs = append(errs, fmt.Errorf("%s: bind at least one name or set as", source))
		}
		if imp.As != "" {
			declare(imp.As, source)
		}
		for _, local := range slices.Sorted(maps.Keys(imp.Names)) {
			declare(local, source)
		}
	}
	for i, imp := range m.Imports {
		checkImport(fmt.Sprintf("imports[%d]", i), imp)
	}
	for i, imp := range m.Dynamic {
		checkImport(fmt.Sprintf("dynamic[%d]", i), imp)
	}
	for i, req := range m.Require {
		source := fmt.Sprintf("require[%d]", i)
		if req.From == "" {
			errs = append(errs, fmt.Errorf("%s: from is required", source))
		}
		declare(req.As, source)
	}
	for i, from := range m.Reexports {
		if from == "" {
			errs = append(errs, fmt.Errorf("reexports[%d]: module id is required", i))
		}
	}

	m.templates = make(map[string]*Template, len(m.Exports))
	for _, name := range m.ExportNames() {
		if name == "" {
			errs = append(errs, errors.New("exports: empty export name"))
			continue
		}
		tpl, err := ParseTemplate(m.Exports[name])
		if err != nil {
			errs = append(errs, fmt.Errorf("exports.%s: %w", name, err))
			continue
		}
		m.templates[name] = tpl
	}

	if len(errs) > 0 {
		return &InvalidManifestError{Path: m.Path, FieldErrors: errs}
	}
	return nil
}

// ExportNames returns the export names in sorted order.
func (m *Manifest) ExportNames() []string {
	return slices.Sorted(maps.Keys(m.Exports))
}

// Template returns the compiled template of an export.
func (m *Manifest) Template(name string) (*Template, bool) {
	tpl, ok := m.templates[name]
	return tpl, ok
}

// Dependencies returns every module id the manifest loads, in declaration order.
func (m *Manifest) Dependencies() []string {
	var deps []string
	for _, imp := range m.Imports {
		deps = append(deps, imp.From)
	}
	for _, imp := range m.Dynamic {
		deps = append(deps, imp.From)
	}
	deps = append(deps, m.Reexports...)
	for _, req := range m.Require {
		deps = append(deps, req.From)
	}
	return deps
}

// sameShape reports whether two manifests differ only in export templates
// and the default value, the changes a loaded live module can take in place.
func (m *Manifest) sameShape(other *Manifest) bool {
	return m.Kind == other.Kind &&
		m.ReplaceExports == other.ReplaceExports &&
		slices.EqualFunc(m.Imports, other.Imports, sameImport) &&
		slices.EqualFunc(m.Dynamic, other.Dynamic, sameImport) &&
		slices.Equal(m.Reexports, other.Reexports) &&
		slices.Equal(m.Require, other.Require)
}

func sameImport(a, b Import) bool {
	return a.From == b.From && a.As == b.As && maps.Equal(a.Names, b.Names)
}

// String returns the string representation of the Kind.
func (k Kind) String() string { return string(k) }

// Validate returns an error if the Kind is not recognized.
func (k Kind) Validate() error {
	switch k {
	case KindLive, KindLegacy:
		return nil
	default:
		return &InvalidKindError{Value: k}
	}
}

// Error implements the error interface.
func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("invalid module kind %q (valid: live, legacy)", e.Value)
}

// Unwrap returns ErrInvalidKind for errors.Is() compatibility.
func (e *InvalidKindError) Unwrap() error { return ErrInvalidKind }

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse manifest %s: %v", e.Path, e.Err)
}

// Unwrap returns ErrParse and the underlying error.
func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

// Error implements the error interface.
func (e *InvalidManifestError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "invalid manifest %s:", e.Path)
	for _, err := range e.FieldErrors {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap returns ErrInvalidManifest followed by the field errors.
func (e *InvalidManifestError) Unwrap() []error {
	return append([]error{ErrInvalidManifest}, e.FieldErrors...)
}
