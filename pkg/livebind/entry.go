// SPDX-License-Identifier: MPL-2.0

package livebind

import "slices"

type (
	// Entry is the graph node of one module's exported bindings. It holds
	// the getters the module registered, the setters its dependents
	// registered, and the namespace computed by the most recent Update.
	//
	// Entries never hold other entries directly: children, re-export
	// delegates and setter consumers are module ids resolved through the
	// owning Graph.
	Entry struct {
		id    ModuleID
		graph *Graph

		exports   *Exports
		namespace *Namespace

		getterNames []ExportName
		getters     map[ExportName]Getter

		// delegates are the modules whose names this entry re-exports.
		// They are consulted on every recompute, so names a delegate adds
		// later still show up here.
		delegates []ModuleID

		setters []setterRegistration

		children []ModuleID

		sourceType SourceType
		loaded     bool
		updating   bool
		updates    int
	}

	setterRegistration struct {
		pairs    SetterPairs
		consumer ModuleID
	}
)

func newEntry(g *Graph, id ModuleID, exports *Exports) *Entry {
	if exports == nil {
		exports = NewExports()
	}
	return &Entry{
		id:         id,
		graph:      g,
		exports:    exports,
		namespace:  newNamespace(),
		getters:    make(map[ExportName]Getter),
		sourceType: SourceUnknown,
	}
}

// ID returns the id of the module owning the entry.
func (e *Entry) ID() ModuleID {
	return e.id
}

// Exports returns the exports value currently associated with the entry.
func (e *Entry) Exports() *Exports {
	return e.exports
}

// Namespace returns the live namespace view.
func (e *Entry) Namespace() *Namespace {
	return e.namespace
}

// SourceType returns how the namespace is produced.
func (e *Entry) SourceType() SourceType {
	return e.sourceType
}

// IsLoaded reports whether the module body finished executing.
func (e *Entry) IsLoaded() bool {
	return e.loaded
}

// Updates returns the number of completed recomputes.
func (e *Entry) Updates() int {
	return e.updates
}

// GetterNames returns the names of the getters registered directly on the entry.
func (e *Entry) GetterNames() []ExportName {
	return slices.Clone(e.getterNames)
}

// Children returns the child entries the module imported, in import order.
func (e *Entry) Children() []*Entry {
	out := make([]*Entry, 0, len(e.children))
	for _, id := range e.children {
		if child := e.graph.lookup(id); child != nil {
			out = append(out, child)
		}
	}
	return out
}

// ChildIDs returns the ids of the imported modules, in import order.
func (e *Entry) ChildIDs() []ModuleID {
	return slices.Clone(e.children)
}

// AddGetters registers getters, overwriting existing ones with the same
// name. It does not recompute.
func (e *Entry) AddGetters(pairs GetterPairs) *Entry {
	for _, pair := range pairs {
		if pair.Get == nil {
			continue
		}
		if _, ok := e.getters[pair.Name]; !ok {
			e.getterNames = append(e.getterNames, pair.Name)
		}
		e.getters[pair.Name] = pair.Get
	}
	return e
}

// AddGettersFrom re-exports every name of child except "default". Names
// declared by this entry take precedence.
func (e *Entry) AddGettersFrom(child *Entry) *Entry {
	if child == nil || child == e || slices.Contains(e.delegates, child.id) {
		return e
	}
	e.delegates = append(e.delegates, child.id)
	return e
}

// AddSetters registers setters on behalf of consumer, which may be nil.
// Setters run on the next Update; the entry is returned so callers can
// chain into it.
func (e *Entry) AddSetters(pairs SetterPairs, consumer *Entry) *Entry {
	if len(pairs) == 0 {
		return e
	}
	reg := setterRegistration{pairs: slices.Clone(pairs)}
	if consumer != nil {
		reg.consumer = consumer.id
	}
	e.setters = append(e.setters, reg)
	return e
}

// Loaded marks the entry as finalized. Namespace values are not touched.
func (e *Entry) Loaded() *Entry {
	e.loaded = true
	return e
}

// Merge folds the getters, delegates, children and namespace of other into
// e so that holders of e observe the state built in other. It is used when
// a legacy module replaced its exports object. Setters are not copied.
func (e *Entry) Merge(other *Entry) *Entry {
	if other == nil || other == e {
		return e
	}
	for _, name := range other.getterNames {
		e.AddGetters(GetterPairs{{Name: name, Get: other.getters[name]}})
	}
	for _, id := range other.delegates {
		if id != e.id && !slices.Contains(e.delegates, id) {
			e.delegates = append(e.delegates, id)
		}
	}
	for _, id := range other.children {
		e.addChild(id)
	}
	if other.namespace.Len() > 0 {
		staged := make([]binding, 0, other.namespace.Len())
		other.namespace.Range(func(name ExportName, value any) bool {
			staged = append(staged, binding{name: name, value: value})
			return true
		})
		e.namespace.commit(staged)
	}
	if other.sourceType != SourceUnknown {
		e.sourceType = other.sourceType
	}
	if other.loaded {
		e.loaded = true
	}
	return e
}

// Update recomputes the namespace and notifies dependents.
//
// Every getter is evaluated before the namespace is replaced, and setters
// run only after that, in registration order. Named setters are skipped
// while their binding is absent or Uninitialized; wildcard setters always
// receive the namespace. Every call re-delivers values to every setter,
// including values that did not change.
//
// Consumers whose setters ran are updated afterwards, so changes flow
// through chains of modules. Calling Update on an entry whose Update is
// already on the stack returns immediately; the outer pass delivers the
// final state.
//
// Consumers are not deduplicated across paths: in a diamond where b and c
// both import d and a imports both, one Update of d recomputes a twice.
// The cost of a change grows with the number of import paths leading away
// from the entry, not with the number of distinct dependents.
func (e *Entry) Update() (*Entry, error) {
	if e.updating {
		return e, nil
	}
	e.updating = true
	defer func() { e.updating = false }()

	staged, err := e.evaluate()
	if err != nil {
		return e, err
	}
	e.namespace.commit(staged)
	e.updates++

	consumers := e.runSetters()
	for _, id := range consumers {
		consumer := e.graph.lookup(id)
		if consumer == nil {
			continue
		}
		if _, err := consumer.Update(); err != nil {
			return e, err
		}
	}
	return e, nil
}

// runSetters invokes the registered setters against the committed
// namespace and returns the consumers that were notified.
func (e *Entry) runSetters() []ModuleID {
	var consumers []ModuleID
	// Setters may register further setters on e; those wait for the next pass.
	for _, reg := range slices.Clone(e.setters) {
		ran := false
		for _, pair := range reg.pairs {
			if pair.Name == Wildcard {
				pair.Set(e.namespace, e)
				ran = true
				continue
			}
			value, ok := e.namespace.Get(pair.Name)
			if !ok || IsUninitialized(value) {
				continue
			}
			pair.Set(value, e)
			ran = true
		}
		if ran && reg.consumer != "" && reg.consumer != e.id && !slices.Contains(consumers, reg.consumer) {
			consumers = append(consumers, reg.consumer)
		}
	}
	return consumers
}

// evaluate runs every effective getter and returns the staged bindings.
func (e *Entry) evaluate() ([]binding, error) {
	pairs := e.effectiveGetters(map[ModuleID]bool{}, false)
	staged := make([]binding, 0, len(pairs))
	for _, pair := range pairs {
		value, err := e.callGetter(pair)
		if err != nil {
			return nil, err
		}
		staged = append(staged, binding{name: pair.Name, value: value})
	}
	return staged, nil
}

// effectiveGetters lists the getters that produce the namespace: the
// entry's own getters, the properties of a legacy exports object, then the
// names of every delegate. reexport drops "default", as re-exporting all
// names never forwards it.
func (e *Entry) effectiveGetters(visited map[ModuleID]bool, reexport bool) GetterPairs {
	visited[e.id] = true
	seen := make(map[ExportName]bool)
	var pairs GetterPairs

	add := func(name ExportName, get Getter) {
		if seen[name] || (reexport && name == DefaultName) {
			return
		}
		seen[name] = true
		pairs = append(pairs, GetterPair{Name: name, Get: get})
	}

	for _, name := range e.getterNames {
		add(name, e.getters[name])
	}

	if e.sourceType != SourceLiveBinding {
		exports := e.exports
		if v, ok := exports.Value(); ok {
			add(DefaultName, Const(v))
		} else {
			add(DefaultName, Const(exports))
		}
		for _, name := range exports.Names() {
			add(name, func() any {
				v, _ := exports.Get(name)
				return v
			})
		}
	}

	for _, id := range e.delegates {
		if visited[id] {
			continue
		}
		child := e.graph.lookup(id)
		if child == nil {
			continue
		}
		for _, pair := range child.effectiveGetters(visited, true) {
			add(pair.Name, pair.Get)
		}
	}
	return pairs
}

// callGetter evaluates one getter, turning a panic into a *GetterError.
func (e *Entry) callGetter(pair GetterPair) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &GetterError{Module: e.id, Name: pair.Name, Value: r}
		}
	}()
	return pair.Get(), nil
}

func (e *Entry) addChild(id ModuleID) {
	if id == "" || slices.Contains(e.children, id) {
		return
	}
	e.children = append(e.children, id)
}

// resetSetters drops every registered setter.
func (e *Entry) resetSetters() {
	e.setters = nil
}
