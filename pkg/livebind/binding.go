// SPDX-License-Identifier: MPL-2.0

package livebind

// Binding is a typed variable cell for module bodies. Its getter reports
// Uninitialized until the first Set, and its setter assigns values
// delivered by watched modules.
type Binding[T any] struct {
	value T
	set   bool
}

// NewBinding creates an unassigned binding.
func NewBinding[T any]() *Binding[T] {
	return &Binding[T]{}
}

// BindingOf creates a binding holding v.
func BindingOf[T any](v T) *Binding[T] {
	return &Binding[T]{value: v, set: true}
}

// Get returns the value and whether it was assigned.
func (b *Binding[T]) Get() (T, bool) {
	return b.value, b.set
}

// Value returns the value, or the zero value when unassigned.
func (b *Binding[T]) Value() T {
	return b.value
}

// Set assigns v.
func (b *Binding[T]) Set(v T) {
	b.value = v
	b.set = true
}

// IsSet reports whether the binding was assigned.
func (b *Binding[T]) IsSet() bool {
	return b.set
}

// Getter returns a getter reading the binding.
func (b *Binding[T]) Getter() Getter {
	return func() any {
		if !b.set {
			return Uninitialized
		}
		return b.value
	}
}

// Setter returns a setter assigning delivered values. Values of another
// type are ignored; nil assigns the zero value.
func (b *Binding[T]) Setter() Setter {
	return func(v any, _ *Entry) {
		if v == nil {
			var zero T
			b.Set(zero)
			return
		}
		if t, ok := v.(T); ok {
			b.Set(t)
		}
	}
}
