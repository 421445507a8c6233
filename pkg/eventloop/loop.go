// SPDX-License-Identifier: MPL-2.0

// Package eventloop provides a single-threaded cooperative task queue.
//
// Tasks submitted to a Loop run one after another on whichever goroutine
// drives the loop (Tick, Drain or Run). A task submitted while a tick is in
// progress runs on the next tick, which is what gives "next tick" deferral
// its meaning.
package eventloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrLoopAlreadyRunning is returned when Run is called on a loop that is already running.
	ErrLoopAlreadyRunning = errors.New("eventloop: loop is already running")

	// ErrLoopTerminated is returned when tasks are submitted to a stopped loop.
	ErrLoopTerminated = errors.New("eventloop: loop has been terminated")
)

type (
	// Task is a unit of work executed on the loop goroutine.
	Task func()

	// Loop is a FIFO task queue drained by a single goroutine.
	//
	// Submit is safe for concurrent use. Tick, Drain and Run must not be
	// called concurrently with each other.
	Loop struct {
		mu      sync.Mutex
		queue   []Task
		stopped bool

		// wake is signalled (non-blocking, capacity 1) whenever Submit
		// enqueues work, so that Run can sleep while the queue is empty.
		wake chan struct{}

		running atomic.Bool
		ticks   atomic.Uint64
	}
)

// New creates an empty Loop.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
	}
}

// Submit enqueues a task for the next tick.
func (l *Loop) Submit(task Task) error {
	if task == nil {
		return nil
	}

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrLoopTerminated
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Ticks returns the number of ticks that executed at least one task.
func (l *Loop) Ticks() uint64 {
	return l.ticks.Load()
}

// Tick runs every task that was queued when the tick started and returns
// how many ran. Tasks submitted by those tasks wait for the next tick.
//
// A panicking task propagates out of Tick; the tasks after it in the same
// batch are put back at the front of the queue.
func (l *Loop) Tick() int {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	if len(batch) == 0 {
		return 0
	}
	l.ticks.Add(1)

	ran := 0
	defer func() {
		if ran < len(batch) {
			rest := batch[ran+1:]
			l.mu.Lock()
			l.queue = append(append([]Task(nil), rest...), l.queue...)
			l.mu.Unlock()
		}
	}()

	for ran < len(batch) {
		batch[ran]()
		ran++
	}
	return ran
}

// Drain ticks until the queue is empty and returns the total number of
// tasks executed.
func (l *Loop) Drain() int {
	total := 0
	for {
		n := l.Tick()
		if n == 0 {
			return total
		}
		total += n
	}
}

// Run drives the loop until ctx is cancelled or Stop is called. Queued tasks
// are drained before Run returns after Stop.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopAlreadyRunning
	}
	defer l.running.Store(false)

	for {
		l.Drain()

		l.mu.Lock()
		stopped := l.stopped
		l.mu.Unlock()
		if stopped {
			l.Drain()
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
		}
	}
}

// Stop refuses further submissions and wakes a running loop so it can exit.
// It is safe to call more than once.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}
