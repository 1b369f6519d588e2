// Package eventloop provides the cooperative, single-goroutine executor
// that one client instance runs on.
//
// Every subscription callback and every state change a presentation layer
// makes runs as a func posted to the loop, so callbacks never overlap.
// Because unsubscribe flags are read on the loop immediately before each
// delivery, a cancellation made on the loop takes effect at once: no
// callback for that subscription runs after it. Code running off the loop
// gets the same guarantee by wrapping the call in Do.
package eventloop

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Do once the loop has stopped.
var ErrClosed = errors.New("eventloop: closed")

// Loop runs posted funcs one at a time in FIFO order.
type Loop struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// New returns a loop. Call Run to start executing posted funcs.
func New() *Loop {
	l := &Loop{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Post queues fn for execution. It reports false when the loop is closed,
// in which case fn is discarded.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	return true
}

// Do runs fn on the loop and waits for it to return. It must not be
// called from a func already running on the loop.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes posted funcs until Close is called or ctx ends. Funcs still
// queued at that point are dropped.
func (l *Loop) Run(ctx context.Context) {
	stop := context.AfterFunc(ctx, l.Close)
	defer stop()
	defer close(l.done)

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if l.closed {
			l.queue = nil
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
	}
}

// Close stops the loop. Queued funcs are dropped and later Posts are
// rejected. Close is idempotent.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.queue = nil
	l.cond.Broadcast()
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
