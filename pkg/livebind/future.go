// SPDX-License-Identifier: MPL-2.0

package livebind

import (
	"context"
	"errors"
	"sync"
)

// ErrPending is returned by Future.Result before the future settles.
var ErrPending = errors.New("import still pending")

// Future is the result of Runtime.Import. It settles exactly once, with the
// imported module's namespace or with the error that stopped the load.
type Future struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	namespace *Namespace
	err       error
	callbacks []func(*Namespace, error)
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Done returns a channel closed once the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has settled.
func (f *Future) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

// Result returns the outcome, or ErrPending while unsettled.
func (f *Future) Result() (*Namespace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.settled {
		return nil, ErrPending
	}
	return f.namespace, f.err
}

// Await blocks until the future settles or ctx is done. It must not be
// called from the goroutine driving the loop, which would never get to run
// the pending import.
func (f *Future) Await(ctx context.Context) (*Namespace, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Then registers fn to run when the future settles. If it already has, fn
// runs immediately.
func (f *Future) Then(fn func(*Namespace, error)) {
	f.mu.Lock()
	if !f.settled {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	ns, err := f.namespace, f.err
	f.mu.Unlock()
	fn(ns, err)
}

func (f *Future) resolve(ns *Namespace) {
	f.settle(ns, nil)
}

func (f *Future) reject(err error) {
	f.settle(nil, err)
}

func (f *Future) settle(ns *Namespace, err error) {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return
	}
	f.settled = true
	f.namespace = ns
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn(ns, err)
	}
}
