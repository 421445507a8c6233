// SPDX-License-Identifier: MPL-2.0

package livebind

import (
	"errors"
	"slices"
	"testing"
)

func newDetachedEntry(t *testing.T, id ModuleID) (*Graph, *Entry) {
	t.Helper()
	g := NewGraph(Options{})
	mod := NewModule(id, "", nil)
	mod.Exports.MarkESModule()
	return g, g.EntryFor(mod)
}

func TestEntry_AddGettersOverwritesInPlace(t *testing.T) {
	t.Parallel()

	_, entry := newDetachedEntry(t, "m")
	entry.AddGetters(GetterPairs{{Name: "a", Get: Const(1)}, {Name: "b", Get: Const(2)}})
	entry.AddGetters(GetterPairs{{Name: "a", Get: Const(10)}, {Name: "c", Get: Const(3)}})

	if got := entry.GetterNames(); !slices.Equal(got, []ExportName{"a", "b", "c"}) {
		t.Errorf("unexpected getter names %v", got)
	}
	if entry.Namespace().Len() != 0 {
		t.Error("AddGetters must not recompute")
	}

	if _, err := entry.Update(); err != nil {
		t.Fatalf("update: %v", err)
	}
	if entry.Namespace().Value("a") != 10 {
		t.Errorf("expected later getter to win, got %v", entry.Namespace().Value("a"))
	}
}

func TestEntry_SettersRunAfterEveryGetter(t *testing.T) {
	t.Parallel()

	_, entry := newDetachedEntry(t, "m")
	lastEvaluated := false
	entry.AddGetters(GetterPairs{
		{Name: "first", Get: Const("one")},
		{Name: "last", Get: func() any { lastEvaluated = true; return "two" }},
	})

	var sawNamespace []ExportName
	entry.AddSetters(SetterPairs{{Name: "first", Set: func(_ any, from *Entry) {
		if !lastEvaluated {
			t.Error("setter ran before every getter was evaluated")
		}
		sawNamespace = from.Namespace().Names()
	}}}, nil)

	if _, err := entry.Update(); err != nil {
		t.Fatalf("update: %v", err)
	}
	if !slices.Equal(sawNamespace, []ExportName{"first", "last"}) {
		t.Errorf("setter saw partial namespace %v", sawNamespace)
	}
}

func TestEntry_SetterDelivery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setter  ExportName
		getters GetterPairs
		want    []any
	}{
		{
			name:    "named value",
			setter:  "x",
			getters: GetterPairs{{Name: "x", Get: Const(1)}},
			want:    []any{1},
		},
		{
			name:    "uninitialized skipped",
			setter:  "x",
			getters: GetterPairs{{Name: "x", Get: Const(Uninitialized)}},
			want:    nil,
		},
		{
			name:    "absent skipped",
			setter:  "missing",
			getters: GetterPairs{{Name: "x", Get: Const(1)}},
			want:    nil,
		},
		{
			name:    "nil is delivered",
			setter:  "x",
			getters: GetterPairs{{Name: "x", Get: Const(nil)}},
			want:    []any{nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, entry := newDetachedEntry(t, "m")
			entry.AddGetters(tt.getters)
			var got []any
			entry.AddSetters(SetterPairs{{Name: tt.setter, Set: func(v any, _ *Entry) {
				got = append(got, v)
			}}}, nil)

			if _, err := entry.Update(); err != nil {
				t.Fatalf("update: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_WildcardReceivesNamespace(t *testing.T) {
	t.Parallel()

	_, entry := newDetachedEntry(t, "m")
	entry.AddGetters(GetterPairs{{Name: "x", Get: Const(Uninitialized)}})

	var got any
	entry.AddSetters(SetterPairs{{Name: Wildcard, Set: func(v any, _ *Entry) { got = v }}}, nil)
	if _, err := entry.Update(); err != nil {
		t.Fatalf("update: %v", err)
	}

	ns, ok := got.(*Namespace)
	if !ok || ns != entry.Namespace() {
		t.Fatalf("expected the entry's namespace, got %T", got)
	}
	if !IsUninitialized(ns.Value("x")) {
		t.Error("wildcard setters see uninitialized bindings as they are")
	}
}

func TestEntry_SettersRunInRegistrationOrder(t *testing.T) {
	t.Parallel()

	_, entry := newDetachedEntry(t, "m")
	entry.AddGetters(GetterPairs{{Name: "x", Get: Const(1)}})

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		entry.AddSetters(SetterPairs{{Name: "x", Set: func(any, *Entry) { order = append(order, name) }}}, nil)
	}
	if _, err := entry.Update(); err != nil {
		t.Fatalf("update: %v", err)
	}
	if !slices.Equal(order, []string{"first", "second", "third"}) {
		t.Errorf("unexpected order %v", order)
	}
}

func TestEntry_ReentrantUpdateIsNoop(t *testing.T) {
	t.Parallel()

	_, entry := newDetachedEntry(t, "m")
	entry.AddGetters(GetterPairs{{Name: "x", Get: Const(1)}})

	calls := 0
	entry.AddSetters(SetterPairs{{Name: "x", Set: func(_ any, from *Entry) {
		calls++
		if _, err := from.Update(); err != nil {
			t.Errorf("nested update: %v", err)
		}
	}}}, nil)

	if _, err := entry.Update(); err != nil {
		t.Fatalf("update: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 setter call, got %d", calls)
	}
	if entry.Updates() != 1 {
		t.Errorf("expected 1 completed update, got %d", entry.Updates())
	}
}

func TestEntry_GetterPanicKeepsPreviousNamespace(t *testing.T) {
	t.Parallel()

	_, entry := newDetachedEntry(t, "m")
	fail := false
	entry.AddGetters(GetterPairs{
		{Name: "ok", Get: Const("fine")},
		{Name: "flaky", Get: func() any {
			if fail {
				panic("flaky getter")
			}
			return "before"
		}},
	})
	if _, err := entry.Update(); err != nil {
		t.Fatalf("first update: %v", err)
	}

	fail = true
	_, err := entry.Update()
	var getterErr *GetterError
	if !errors.As(err, &getterErr) {
		t.Fatalf("expected *GetterError, got %v", err)
	}
	if getterErr.Value != "flaky getter" {
		t.Errorf("unexpected panic value %v", getterErr.Value)
	}
	if entry.Namespace().Value("flaky") != "before" {
		t.Error("failed recompute must not commit a partial namespace")
	}

	fail = false
	if _, err := entry.Update(); err != nil {
		t.Errorf("entry must recover after a failed recompute: %v", err)
	}
}

func TestEntry_MergeFoldsFreshState(t *testing.T) {
	t.Parallel()

	g, held := newDetachedEntry(t, "held")
	held.AddGetters(GetterPairs{{Name: "old", Get: Const("o")}})

	fresh := newEntry(g, "held", NewExports())
	fresh.AddGetters(GetterPairs{{Name: "new", Get: Const("n")}})
	fresh.addChild("dep")
	fresh.sourceType = SourceLegacy
	fresh.loaded = true
	fresh.AddSetters(SetterPairs{{Name: "new", Set: func(any, *Entry) {}}}, nil)
	if _, err := fresh.Update(); err != nil {
		t.Fatalf("update: %v", err)
	}

	if held.Merge(fresh) != held {
		t.Fatal("Merge must return the receiver")
	}
	if !slices.Equal(held.GetterNames(), []ExportName{"old", "new"}) {
		t.Errorf("unexpected getters %v", held.GetterNames())
	}
	if !slices.Equal(held.ChildIDs(), []ModuleID{"dep"}) {
		t.Errorf("unexpected children %v", held.ChildIDs())
	}
	if held.SourceType() != SourceLegacy || !held.IsLoaded() {
		t.Errorf("expected legacy loaded entry, got %v loaded=%v", held.SourceType(), held.IsLoaded())
	}
	if held.Namespace().Value("new") != "n" {
		t.Error("expected namespace of the fresh entry")
	}
	if len(held.setters) != 0 {
		t.Error("Merge must not copy setters")
	}
}

func TestEntry_LegacyNamespaceFromExports(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		exports     func() *Exports
		wantDefault func(*Exports) any
		wantNames   []ExportName
	}{
		{
			name: "properties",
			exports: func() *Exports {
				e := NewExports()
				e.Set("a", 1)
				return e
			},
			wantDefault: func(e *Exports) any { return e },
			wantNames:   []ExportName{DefaultName, "a"},
		},
		{
			name:        "single value",
			exports:     func() *Exports { return NewValueExports("whole") },
			wantDefault: func(*Exports) any { return "whole" },
			wantNames:   []ExportName{DefaultName},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := NewGraph(Options{})
			exports := tt.exports()
			mod := NewModule("legacy", "", nil)
			mod.Exports = exports
			mod.Loaded = true
			entry := g.EntryFor(mod)
			if entry.SourceType() != SourceLegacy {
				t.Fatalf("expected legacy source type, got %v", entry.SourceType())
			}

			if _, err := entry.Update(); err != nil {
				t.Fatalf("update: %v", err)
			}
			if got := entry.Namespace().Value(DefaultName); got != tt.wantDefault(exports) {
				t.Errorf("default = %v", got)
			}
			if !slices.Equal(entry.Namespace().Names(), tt.wantNames) {
				t.Errorf("names = %v, want %v", entry.Namespace().Names(), tt.wantNames)
			}
		})
	}
}
