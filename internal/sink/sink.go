// Package sink implements the "Sink" collaborator in the query protocol
// table: `create`, `<event>`, `(uuid, done, runtime)`. ChannelSink is the
// in-process implementation a Query actor talks to directly; FileSink
// renders the same protocol as line-delimited JSON, the shape named for
// the out-of-scope HTTP front end (`GET /?query=...`).
package sink

import (
	"time"

	"github.com/evidex/evidex/internal/event"
	"github.com/google/uuid"
)

// Notification is the terminal `(uuid, done, runtime)` tuple a sink
// receives once a query finishes or is cancelled.
type Notification struct {
	ID      uuid.UUID
	Done    bool
	Runtime time.Duration
}

// ChannelSink forwards matched events and the terminal notification over
// buffered Go channels, the collaborator a Query actor is given in-process
// when no external transport is involved.
type ChannelSink struct {
	events  chan event.Event
	notify  chan Notification
	created bool
}

// NewChannel constructs a ChannelSink with the given event buffer depth.
func NewChannel(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan event.Event, buffer),
		notify: make(chan Notification, 1),
	}
}

// Events returns the channel matched events are pushed onto. Callers
// should range over it until it closes (on Done).
func (s *ChannelSink) Events() <-chan event.Event { return s.events }

// Notify returns the channel the terminal (uuid, done, runtime) tuple is
// delivered on, exactly once.
func (s *ChannelSink) Notify() <-chan Notification { return s.notify }

// Create marks the sink ready to receive events, matching the `create`
// verb.
func (s *ChannelSink) Create() error {
	s.created = true
	return nil
}

// Push forwards a single matched event, the `<event>` verb.
func (s *ChannelSink) Push(e event.Event) error {
	s.events <- e
	return nil
}

// Done delivers the terminal notification and closes the event channel,
// signalling no further events will arrive.
func (s *ChannelSink) Done(id uuid.UUID, done bool, runtime time.Duration) error {
	close(s.events)
	s.notify <- Notification{ID: id, Done: done, Runtime: runtime}
	close(s.notify)
	return nil
}
