// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/livebind/livebind/pkg/livebind"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// ErrUnbound is returned by Expand in strict mode when a template reads a
// variable that has no value yet.
var ErrUnbound = errors.New("unbound template variable")

type (
	// Template is an export value written as a shell word: literal text
	// with ${name}, ${name:-fallback} and ${ns[key]} references. Command
	// substitution is rejected.
	Template struct {
		source string
		word   *syntax.Word
	}

	// Vars holds the values template variables resolve to. Values are
	// converted when read, so a *livebind.Namespace stored once reflects
	// every later recompute of its module.
	Vars map[string]any

	// varsEnviron adapts Vars to the expand package.
	varsEnviron struct {
		vars Vars
	}
)

// ParseTemplate compiles a template.
func ParseTemplate(source string) (*Template, error) {
	word, err := syntax.NewParser().Document(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("parse template %q: %w", source, err)
	}
	if word == nil {
		word = &syntax.Word{}
	}

	var walkErr error
	syntax.Walk(word, func(node syntax.Node) bool {
		switch node.(type) {
		case *syntax.CmdSubst, *syntax.ProcSubst:
			walkErr = fmt.Errorf("template %q: command substitution is not supported", source)
			return false
		}
		return walkErr == nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return &Template{source: source, word: word}, nil
}

// String returns the template source.
func (t *Template) String() string {
	return t.source
}

// Variables returns the names the template reads, sorted.
func (t *Template) Variables() []string {
	var names []string
	syntax.Walk(t.word, func(node syntax.Node) bool {
		if pe, ok := node.(*syntax.ParamExp); ok && pe.Param != nil {
			names = append(names, pe.Param.Value)
		}
		return true
	})
	slices.Sort(names)
	return slices.Compact(names)
}

// Expand renders the template. In strict mode a variable without a value
// fails with ErrUnbound instead of expanding to the empty string.
func (t *Template) Expand(vars Vars, strict bool) (string, error) {
	cfg := &expand.Config{
		Env:     varsEnviron{vars: vars},
		NoUnset: strict,
	}
	out, err := expand.Document(cfg, t.word)
	if err != nil {
		var unset expand.UnsetParameterError
		if errors.As(err, &unset) {
			return "", fmt.Errorf("%w: %s", ErrUnbound, unset.Node.Param.Value)
		}
		return "", fmt.Errorf("expand %q: %w", t.source, err)
	}
	return out, nil
}

// Get implements expand.Environ.
func (e varsEnviron) Get(name string) expand.Variable {
	v, ok := e.vars[name]
	if !ok {
		return expand.Variable{}
	}
	return toVariable(v)
}

// Each implements expand.Environ.
func (e varsEnviron) Each(fn func(name string, vr expand.Variable) bool) {
	for name, v := range e.vars {
		vr := toVariable(v)
		if !vr.IsSet() {
			continue
		}
		if !fn(name, vr) {
			return
		}
	}
}

// toVariable converts a binding value. Namespaces and exports objects
// become associative arrays; Uninitialized and nil are unset.
func toVariable(v any) expand.Variable {
	switch v := v.(type) {
	case nil:
		return expand.Variable{}
	case *livebind.Namespace:
		m := make(map[string]string, v.Len())
		v.Range(func(name livebind.ExportName, value any) bool {
			if !livebind.IsUninitialized(value) {
				m[string(name)] = Format(value)
			}
			return true
		})
		return expand.Variable{Set: true, Kind: expand.Associative, Map: m}
	case *livebind.Exports:
		if value, ok := v.Value(); ok {
			return expand.Variable{Set: true, Kind: expand.String, Str: Format(value)}
		}
		m := make(map[string]string, v.Len())
		for _, name := range v.Names() {
			value, _ := v.Get(name)
			m[string(name)] = Format(value)
		}
		return expand.Variable{Set: true, Kind: expand.Associative, Map: m}
	default:
		if livebind.IsUninitialized(v) {
			return expand.Variable{}
		}
		return expand.Variable{Set: true, Kind: expand.String, Str: Format(v)}
	}
}

// Format renders a binding value the way templates and the CLI show it.
func Format(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case *livebind.Exports:
		if value, ok := v.Value(); ok {
			return Format(value)
		}
		parts := make([]string, 0, v.Len())
		for _, name := range v.Names() {
			value, _ := v.Get(name)
			parts = append(parts, fmt.Sprintf("%s=%s", name, Format(value)))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *livebind.Namespace:
		parts := make([]string, 0, v.Len())
		v.Range(func(name livebind.ExportName, value any) bool {
			parts = append(parts, fmt.Sprintf("%s=%s", name, Format(value)))
			return true
		})
		return "{" + strings.Join(parts, ", ") + "}"
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
