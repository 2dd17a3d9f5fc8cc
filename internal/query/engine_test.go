package query

import (
	"testing"
	"time"

	"github.com/evidex/evidex/internal/bitstream"
	"github.com/evidex/evidex/internal/event"
	"github.com/evidex/evidex/internal/expr"
	"github.com/evidex/evidex/internal/value"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIndex always falls back to full scan, returning the whole universe
// as the candidate set and never answering a leaf predicate — exercising
// the Start() fallback path without a real bitmap index.
type fakeIndex struct {
	universe bitstream.Bitstream
}

func (f *fakeIndex) LoadAST(expr.Node) error { return nil }
func (f *fakeIndex) Lookup(expr.Node) (bitstream.Bitstream, bool) {
	return bitstream.Bitstream{}, false
}
func (f *fakeIndex) Universe() bitstream.Bitstream { return f.universe }

type fakeArchive struct {
	chunks [][]event.Event
}

func (f *fakeArchive) Get(bitstream.Bitstream) (<-chan []event.Event, error) {
	ch := make(chan []event.Event, len(f.chunks))
	for _, c := range f.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

type fakeSink struct {
	created bool
	pushed  []event.Event
	doneID  uuid.UUID
	done    bool
}

func (f *fakeSink) Create() error { f.created = true; return nil }
func (f *fakeSink) Push(e event.Event) error {
	f.pushed = append(f.pushed, e)
	return nil
}
func (f *fakeSink) Done(id uuid.UUID, done bool, _ time.Duration) error {
	f.doneID = id
	f.done = done
	return nil
}

func TestQueryStartFallsBackToUniverseWhenIndexCannotAnswer(t *testing.T) {
	events := []event.Event{
		{ID: 1, Name: "flow", Timestamp: time.Now(), Data: value.RecordValue(value.CountValue(80))},
		{ID: 2, Name: "flow", Timestamp: time.Now(), Data: value.RecordValue(value.CountValue(443))},
	}
	archive := &fakeArchive{chunks: [][]event.Event{events}}
	index := &fakeIndex{universe: bitstream.New(0)}
	sink := &fakeSink{}

	q, err := New(archive, index, sink, "@0 == 80")
	require.NoError(t, err)

	require.NoError(t, q.Start())
	assert.True(t, sink.created)

	more, err := q.NextChunk()
	require.NoError(t, err)
	assert.False(t, more)
	require.Len(t, sink.pushed, 1)
	assert.Equal(t, uint64(80), mustCount(sink.pushed[0].Data))

	stats := q.Statistics()
	assert.Equal(t, uint64(1), stats.FullScanFallbacks)
	assert.Equal(t, uint64(2), stats.EventsScanned)
	assert.Equal(t, uint64(1), stats.EventsMatched)

	require.NoError(t, q.Shutdown())
	assert.True(t, sink.done)
	assert.Equal(t, q.ID(), sink.doneID)
}

func TestQueryNextChunkRespectsBatchSize(t *testing.T) {
	events := []event.Event{
		{ID: 1, Name: "flow", Timestamp: time.Now(), Data: value.RecordValue(value.CountValue(80))},
		{ID: 2, Name: "flow", Timestamp: time.Now(), Data: value.RecordValue(value.CountValue(80))},
		{ID: 3, Name: "flow", Timestamp: time.Now(), Data: value.RecordValue(value.CountValue(80))},
	}
	archive := &fakeArchive{chunks: [][]event.Event{{events[0]}, {events[1]}, {events[2]}}}
	index := &fakeIndex{universe: bitstream.New(0)}
	sink := &fakeSink{}

	q, err := New(archive, index, sink, "@0 == 80")
	require.NoError(t, err)
	q.SetBatchSize(2)

	require.NoError(t, q.Start())
	more, err := q.NextChunk()
	require.NoError(t, err)
	assert.True(t, more)
	assert.Len(t, sink.pushed, 2)

	more, err = q.NextChunk()
	require.NoError(t, err)
	assert.False(t, more)
	assert.Len(t, sink.pushed, 3)
}

func mustCount(v value.Value) uint64 {
	elems, _ := value.AsElems(v)
	n, _ := value.AsCount(elems[0])
	return n
}
