// Package actor provides a single-goroutine mailbox: the concurrency
// primitive the event indexes and the query evaluator are built on, in
// place of an actor/task scheduler ("task bound to a
// cooperative scheduler, no shared mutable memory"). It generalizes the
// ingest pipeline's worker-pool/collector idiom (internal/ingest/pipeline.go) from
// a fixed fan-out of workers down to the one-goroutine-per-actor shape
// the index and query actors need: a single owner goroutine serializes
// every state mutation, callers hand it closures and block for the
// result when they need one.
package actor

import "sync"

// Mailbox runs submitted functions one at a time on its own goroutine.
// Callers outside that goroutine never touch the wrapped state directly.
type Mailbox struct {
	inbox    chan func()
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// New starts a mailbox with the given inbox buffer size.
func New(queueSize int) *Mailbox {
	if queueSize <= 0 {
		queueSize = 1
	}
	m := &Mailbox{
		inbox:  make(chan func(), queueSize),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Mailbox) run() {
	defer close(m.done)
	for {
		select {
		case fn, ok := <-m.inbox:
			if !ok {
				return
			}
			fn()
		case <-m.stopCh:
			// Drain whatever was already enqueued before stopping, so an
			// in-flight save (or equivalent) that raced the shutdown
			// request still completes — shutdown never interrupts in-flight work.
			for {
				select {
				case fn, ok := <-m.inbox:
					if !ok {
						return
					}
					fn()
				default:
					return
				}
			}
		}
	}
}

// Send enqueues fn to run on the mailbox goroutine without waiting for
// it to complete. It reports false if the mailbox has been shut down.
func (m *Mailbox) Send(fn func()) bool {
	select {
	case <-m.stopCh:
		return false
	default:
	}
	select {
	case m.inbox <- fn:
		return true
	case <-m.stopCh:
		return false
	}
}

// Do enqueues fn and blocks until it has run, giving callers synchronous
// request/response semantics over the single-threaded actor state. It
// reports false without running fn if the mailbox is shutting down.
func (m *Mailbox) Do(fn func()) bool {
	done := make(chan struct{})
	ok := m.Send(func() {
		fn()
		close(done)
	})
	if !ok {
		return false
	}
	<-done
	return true
}

// Shutdown stops accepting new messages and waits for the goroutine to
// drain whatever was already pending, then returns.
func (m *Mailbox) Shutdown() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.done
}
