// SPDX-License-Identifier: MPL-2.0

package livebind

import (
	"errors"
	"io"
	"slices"
	"strings"
	"testing"
)

func TestLiveBinding_ImporterSeesReassignment(t *testing.T) {
	t.Parallel()

	var aRT *Runtime
	x := BindingOf(1)
	seen := NewBinding[int]()

	g, l := newTestGraph(t, Options{}, map[string]Body{
		"a": LiveBody(func(rt *Runtime, _ *Exports) error {
			aRT = rt
			rt.Export(GetterPairs{{Name: "x", Get: x.Getter()}})
			return nil
		}),
		"b": LiveBody(func(rt *Runtime, _ *Exports) error {
			return rt.Watch("a", SetterPairs{{Name: "x", Set: seen.Setter()}})
		}),
	})
	l.mustLoad(t, "b")

	if seen.Value() != 1 {
		t.Fatalf("expected b to see x=1, got %d", seen.Value())
	}

	x.Set(2)
	if _, err := aRT.Update(nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	if seen.Value() != 2 {
		t.Errorf("expected b to see x=2 without re-importing, got %d", seen.Value())
	}
	if l.requests["a"] != 1 {
		t.Errorf("expected a to be requested once, got %d", l.requests["a"])
	}
	if got := mustEntry(t, g, "a").Namespace().Value("x"); got != 2 {
		t.Errorf("expected namespace x=2, got %v", got)
	}
}

func TestUpdate_RedeliversUnchangedValues(t *testing.T) {
	t.Parallel()

	var aRT *Runtime
	var delivered []any

	_, l := newTestGraph(t, Options{}, map[string]Body{
		"a": LiveBody(func(rt *Runtime, _ *Exports) error {
			aRT = rt
			rt.Export(GetterPairs{{Name: "x", Get: Const(1)}})
			return nil
		}),
		"b": LiveBody(func(rt *Runtime, _ *Exports) error {
			return rt.Watch("a", SetterPairs{{Name: "x", Set: func(v any, _ *Entry) {
				delivered = append(delivered, v)
			}}})
		}),
	})
	l.mustLoad(t, "b")

	for range 2 {
		if _, err := aRT.Update(nil); err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	if !slices.Equal(delivered, []any{1, 1, 1}) {
		t.Errorf("expected every recompute to re-deliver x=1, got %v", delivered)
	}
}

func TestCycle_BothModulesObserveFinalValues(t *testing.T) {
	t.Parallel()

	aVal := NewBinding[string]()
	bVal := NewBinding[string]()
	fromA := NewBinding[string]()
	fromB := NewBinding[string]()

	g, l := newTestGraph(t, Options{}, map[string]Body{
		"a": LiveBody(func(rt *Runtime, _ *Exports) error {
			rt.Export(GetterPairs{{Name: "a", Get: aVal.Getter()}})
			if err := rt.Watch("b", SetterPairs{{Name: "b", Set: fromB.Setter()}}); err != nil {
				return err
			}
			aVal.Set("A")
			return nil
		}),
		"b": LiveBody(func(rt *Runtime, _ *Exports) error {
			rt.Export(GetterPairs{{Name: "b", Get: bVal.Getter()}})
			if err := rt.Watch("a", SetterPairs{{Name: "a", Set: fromA.Setter()}}); err != nil {
				return err
			}
			if fromA.IsSet() {
				return errors.New("b received a before a assigned it")
			}
			bVal.Set("B")
			return nil
		}),
	})
	l.mustLoad(t, "a")

	if fromA.Value() != "A" {
		t.Errorf("expected b to observe a=A, got %q", fromA.Value())
	}
	if fromB.Value() != "B" {
		t.Errorf("expected a to observe b=B, got %q", fromB.Value())
	}
	for _, id := range []ModuleID{"a", "b"} {
		entry := mustEntry(t, g, id)
		if !entry.IsLoaded() {
			t.Errorf("expected %s to be loaded", id)
		}
		entry.Namespace().Range(func(name ExportName, v any) bool {
			if IsUninitialized(v) {
				t.Errorf("%s.%s still uninitialized", id, name)
			}
			return true
		})
	}
	if g.LoadState().Depth() != 0 {
		t.Errorf("expected load depth 0, got %d", g.LoadState().Depth())
	}
}

func TestScenario_ImportResolvesLiveFunctionExport(t *testing.T) {
	t.Parallel()

	var aRT *Runtime
	x := NewBinding[int]()
	xInB := NewBinding[int]()

	g, l := newTestGraph(t, Options{}, map[string]Body{
		"a.mjs": LiveBody(func(rt *Runtime, _ *Exports) error {
			aRT = rt
			rt.Export(GetterPairs{{Name: "x", Get: x.Getter()}})
			x.Set(1)
			return rt.Watch("b.mjs", nil)
		}),
		"b.mjs": LiveBody(func(rt *Runtime, _ *Exports) error {
			rt.Export(GetterPairs{{Name: "y", Get: Const(func() int { return xInB.Value() })}})
			return rt.Watch("a.mjs", SetterPairs{{Name: "x", Set: xInB.Setter()}})
		}),
	})
	l.mustLoad(t, "a.mjs")

	future := aRT.Import("b.mjs")
	if future.Settled() {
		t.Fatal("import must not settle before the next tick")
	}
	g.Loop().Drain()

	ns, err := future.Result()
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	y, ok := ns.Value("y").(func() int)
	if !ok {
		t.Fatalf("expected y to be func() int, got %T", ns.Value("y"))
	}
	if y() != 1 {
		t.Errorf("expected y() = 1, got %d", y())
	}

	x.Set(2)
	if _, err := aRT.Update(nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	if xInB.Value() != 2 {
		t.Errorf("expected b's setter to receive 2, got %d", xInB.Value())
	}
	if y() != 2 {
		t.Errorf("expected y() = 2 after update, got %d", y())
	}
}

func TestImport_RejectsUnknownModule(t *testing.T) {
	t.Parallel()

	g, _ := newTestGraph(t, Options{}, map[string]Body{})
	rt := g.Enable(NewModule("root", "/virtual/root", nil))

	future := rt.Import("missing")
	if n := g.Loop().Drain(); n != 1 {
		t.Errorf("expected 1 task, got %d", n)
	}

	_, err := future.Result()
	if !errors.Is(err, ErrModuleNotFound) {
		t.Fatalf("expected ErrModuleNotFound, got %v", err)
	}
	var notFound *ModuleNotFoundError
	if !errors.As(err, &notFound) || notFound.Parent != "root" {
		t.Errorf("expected not-found error naming parent root, got %v", err)
	}
	if g.LoadState().Depth() != 0 {
		t.Errorf("expected load depth 0 after failure, got %d", g.LoadState().Depth())
	}
}

func TestUpdate_DiamondRecomputesPerPath(t *testing.T) {
	t.Parallel()

	watchAll := func(ids ...string) LiveBody {
		return func(rt *Runtime, _ *Exports) error {
			for _, id := range ids {
				if err := rt.Watch(id, SetterPairs{{Name: Wildcard, Set: func(any, *Entry) {}}}); err != nil {
					return err
				}
			}
			return nil
		}
	}
	g, loader := newTestGraph(t, Options{}, map[string]Body{
		"a": watchAll("b", "c"),
		"b": watchAll("d"),
		"c": watchAll("d"),
		"d": constModule(map[ExportName]any{"v": 1}, "v"),
	})
	loader.mustLoad(t, "a")

	a, d := mustEntry(t, g, "a"), mustEntry(t, g, "d")
	before := a.Updates()
	if _, err := d.Update(); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got := a.Updates() - before; got != 2 {
		t.Errorf("a recomputed %d times for one change of d, want 2 (once per path)", got)
	}
}

func TestImport_SettlesWhenLoadFails(t *testing.T) {
	t.Parallel()

	errBody := errors.New("body failed")
	panicSetter := func(any, *Entry) { panic("setter failed") }

	tests := []struct {
		name        string
		bodies      map[string]Body
		wantIs      []error
		wantPanic   bool
		wantMessage string
	}{
		{
			name: "body panics",
			bodies: map[string]Body{"target": LiveBody(func(*Runtime, *Exports) error {
				var counts map[string]int
				counts["x"]++
				return nil
			})},
			wantIs:      []error{ErrImportPanicked},
			wantPanic:   true,
			wantMessage: `import of "target" from "root" panicked`,
		},
		{
			name: "body panics with error",
			bodies: map[string]Body{"target": LiveBody(func(*Runtime, *Exports) error {
				panic(errBody)
			})},
			wantIs:    []error{ErrImportPanicked, errBody},
			wantPanic: true,
		},
		{
			name: "legacy body panics",
			bodies: map[string]Body{"target": LegacyBody(func(*Exports, RequireFunc, *Module, string, string) error {
				panic("legacy failed")
			})},
			wantIs:    []error{ErrImportPanicked},
			wantPanic: true,
		},
		{
			name: "setter panics",
			bodies: map[string]Body{
				"target": LiveBody(func(rt *Runtime, _ *Exports) error {
					return rt.Watch("leaf", SetterPairs{{Name: "v", Set: panicSetter}})
				}),
				"leaf": constModule(map[ExportName]any{"v": 1}, "v"),
			},
			wantIs:    []error{ErrImportPanicked},
			wantPanic: true,
		},
		{
			name: "body returns error",
			bodies: map[string]Body{"target": LiveBody(func(*Runtime, *Exports) error {
				return errBody
			})},
			wantIs: []error{errBody},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g, _ := newTestGraph(t, Options{}, tt.bodies)
			rt := g.Enable(NewModule("root", "/virtual/root", nil))

			future := rt.Import("target")
			if n := g.Loop().Drain(); n != 1 {
				t.Errorf("expected 1 task, got %d", n)
			}
			if !future.Settled() {
				t.Fatal("expected the future to settle")
			}

			_, err := future.Result()
			for _, target := range tt.wantIs {
				if !errors.Is(err, target) {
					t.Errorf("expected errors.Is(%v, %v)", err, target)
				}
			}
			var panicErr *ImportPanicError
			if got := errors.As(err, &panicErr); got != tt.wantPanic {
				t.Errorf("errors.As(*ImportPanicError) = %v, want %v (err %v)", got, tt.wantPanic, err)
			}
			if tt.wantMessage != "" && (err == nil || !strings.Contains(err.Error(), tt.wantMessage)) {
				t.Errorf("expected message containing %q, got %v", tt.wantMessage, err)
			}
			if g.LoadState().Depth() != 0 {
				t.Errorf("expected load depth 0 after failure, got %d", g.LoadState().Depth())
			}

			var gotErr error
			future.Then(func(_ *Namespace, err error) { gotErr = err })
			if gotErr != err {
				t.Errorf("Then() delivered %v, want %v", gotErr, err)
			}
		})
	}
}

func TestImport_RejectsWhenLoopStopped(t *testing.T) {
	t.Parallel()

	g, _ := newTestGraph(t, Options{}, map[string]Body{})
	rt := g.Enable(NewModule("root", "", nil))
	g.Loop().Stop()

	_, err := rt.Import("anything").Result()
	if err == nil {
		t.Fatal("expected import on a stopped loop to reject")
	}
}

func TestWatch_GetterPanicReleasesLoadDepth(t *testing.T) {
	t.Parallel()

	g, _ := newTestGraph(t, Options{}, map[string]Body{
		"bad": LiveBody(func(rt *Runtime, _ *Exports) error {
			rt.Export(GetterPairs{{Name: "boom", Get: func() any { panic(io.ErrUnexpectedEOF) }}})
			return nil
		}),
	})
	rt := g.Enable(NewModule("root", "", nil))

	err := rt.Watch("bad", SetterPairs{{Name: "boom", Set: func(any, *Entry) {}}})
	if !errors.Is(err, ErrGetterFailed) {
		t.Fatalf("expected ErrGetterFailed, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected panic value in chain, got %v", err)
	}
	var getterErr *GetterError
	if !errors.As(err, &getterErr) || getterErr.Name != "boom" || getterErr.Module != "bad" {
		t.Errorf("unexpected getter error %#v", getterErr)
	}
	if g.LoadState().Depth() != 0 {
		t.Errorf("expected load depth 0, got %d", g.LoadState().Depth())
	}
}

func TestWatch_RejectsInvalidSetters(t *testing.T) {
	t.Parallel()

	g, l := newTestGraph(t, Options{}, map[string]Body{})
	rt := g.Enable(NewModule("root", "", nil))

	err := rt.Watch("a", SetterPairs{{Name: "", Set: func(any, *Entry) {}}})
	if !errors.Is(err, ErrInvalidExportName) {
		t.Fatalf("expected ErrInvalidExportName, got %v", err)
	}
	if l.requests["a"] != 0 {
		t.Error("invalid setters must not trigger a load")
	}
}

func TestNamespaceSetter_ReexportsLaterNames(t *testing.T) {
	t.Parallel()

	var cRT *Runtime
	late := NewBinding[string]()

	g, l := newTestGraph(t, Options{}, map[string]Body{
		"c": LiveBody(func(rt *Runtime, _ *Exports) error {
			cRT = rt
			rt.Export(GetterPairs{{Name: "p", Get: Const(1)}, {Name: "q", Get: Const(2)}})
			rt.Default("c-default")
			return nil
		}),
		"r": LiveBody(func(rt *Runtime, _ *Exports) error {
			rt.Export(GetterPairs{{Name: "own", Get: Const("r")}})
			return rt.Watch("c", SetterPairs{{Name: Wildcard, Set: rt.NSSetter()}})
		}),
	})
	l.mustLoad(t, "r")

	r := mustEntry(t, g, "r")
	if got := r.Namespace().Names(); !slices.Equal(got, []ExportName{"own", "p", "q"}) {
		t.Fatalf("unexpected names %v", got)
	}

	cRT.Export(GetterPairs{{Name: "late", Get: late.Getter()}})
	late.Set("z")
	if _, err := cRT.Update(nil); err != nil {
		t.Fatalf("update: %v", err)
	}

	if got := r.Namespace().Value("late"); got != "z" {
		t.Errorf("expected re-exported late=z, got %v", got)
	}
	if r.Namespace().Has(DefaultName) {
		t.Error("default must not be re-exported")
	}
}

func TestRun_LiveCopiesNamespaceOntoExports(t *testing.T) {
	t.Parallel()

	var required *Exports
	_, l := newTestGraph(t, Options{}, map[string]Body{
		"lib": constModule(map[ExportName]any{"n": 42, "s": "str"}, "n", "s"),
		"legacy": LegacyBody(func(_ *Exports, require RequireFunc, _ *Module, _, _ string) error {
			var err error
			required, err = require("lib")
			return err
		}),
	})
	lib := l.mustLoad(t, "lib")
	l.mustLoad(t, "legacy")

	if required != lib.Exports {
		t.Fatal("require must return the live module's exports object")
	}
	if !required.IsESModule() {
		t.Error("expected exports to be marked as live-binding")
	}
	if v, _ := required.Get("n"); v != 42 {
		t.Errorf("expected n=42 on exports, got %v", v)
	}
	if !slices.Equal(required.Names(), []ExportName{"n", "s"}) {
		t.Errorf("unexpected export names %v", required.Names())
	}
}

func TestRun_CompatExports(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		compat  bool
		wantNil bool
	}{
		{name: "default", compat: false, wantNil: true},
		{name: "compat", compat: true, wantNil: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewGraph(Options{CompatExports: tt.compat})
			mod := NewModule("m", "", nil)

			var got *Exports
			err := g.Enable(mod).Run(LiveBody(func(_ *Runtime, exports *Exports) error {
				got = exports
				return nil
			}), nil)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if (got == nil) != tt.wantNil {
				t.Errorf("exports nil = %v, want %v", got == nil, tt.wantNil)
			}
			if !tt.wantNil && got != mod.Exports {
				t.Error("compat body must receive the module's exports object")
			}
		})
	}
}

func TestRun_BodyErrorPropagates(t *testing.T) {
	t.Parallel()

	errBody := errors.New("body failed")
	g := NewGraph(Options{})
	mod := NewModule("m", "", nil)

	err := g.Enable(mod).Run(LiveBody(func(*Runtime, *Exports) error { return errBody }), nil)
	if !errors.Is(err, errBody) {
		t.Fatalf("expected body error, got %v", err)
	}
	if mod.Loaded {
		t.Error("module must not be marked loaded after a failed body")
	}
}

func TestRun_UnsupportedBody(t *testing.T) {
	t.Parallel()

	g := NewGraph(Options{})
	err := g.Enable(NewModule("m", "", nil)).Run(nil, nil)
	if !errors.Is(err, ErrUnsupportedBody) {
		t.Fatalf("expected ErrUnsupportedBody, got %v", err)
	}
}

func TestFacade_AliasesMatchLongNames(t *testing.T) {
	t.Parallel()

	g := NewGraph(Options{})
	if _, err := g.Builtins().Register("host", NewExports()); err != nil {
		t.Fatalf("register: %v", err)
	}
	mod := NewModule("m", "", nil)
	var f Facade = g.Enable(mod)

	err := f.R(LiveBody(func(rt *Runtime, _ *Exports) error {
		var short Facade = rt
		short.D("dflt")
		short.E(GetterPairs{{Name: "e", Get: Const("E")}})
		if err := short.W("host", SetterPairs{{Name: Wildcard, Set: short.N()}}); err != nil {
			return err
		}
		v, err := short.U(7)
		if v != 7 {
			t.Errorf("expected U to pass 7 through, got %v", v)
		}
		return err
	}), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	ns := g.Enable(mod).Entry().Namespace()
	if ns.Value(DefaultName) != "dflt" || ns.Value("e") != "E" {
		t.Errorf("unexpected namespace %v", ns.Map())
	}

	future := f.I("host")
	g.Loop().Drain()
	if _, err := future.Result(); err != nil {
		t.Errorf("import via alias: %v", err)
	}
}

func TestPass_KeepsType(t *testing.T) {
	t.Parallel()

	g := NewGraph(Options{})
	rt := g.Enable(NewModule("m", "", nil))
	counter := BindingOf(1)
	rt.Export(GetterPairs{{Name: "counter", Get: counter.Getter()}})

	counter.Set(counter.Value() + 3)
	got, err := Pass(rt, counter.Value())
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
	if rt.Entry().Namespace().Value("counter") != 4 {
		t.Error("expected Pass to recompute the namespace")
	}
}
