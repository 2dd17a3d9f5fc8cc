package query

import (
	"time"

	"github.com/evidex/evidex/internal/actor"
	"github.com/evidex/evidex/internal/event"
	"github.com/evidex/evidex/internal/expr"
	"github.com/google/uuid"
)

// Query is the protocol actor for evaluating a compiled expression: constructed over an
// archive, an index pair, and a sink, it compiles a query string once
// and then answers the verbs `start`, `source`, `set batch_size`,
// `get statistics`, `next chunk`, and `shutdown`. It is
// storage-agnostic in the same sense a reusable evaluator must be — archive,
// index, and sink are interfaces, never a concrete RocksDB or file type.
//
// All state is owned by a single mailbox goroutine; every exported
// method is a synchronous request/response round trip through it, which
// is what gives the "index calls are serialized" and "single-threaded
// within a task" guarantees without any locking in this type.
type Query struct {
	mailbox *actor.Mailbox

	id      uuid.UUID
	archive ArchiveRef
	index   IndexRef
	sink    SinkRef

	queryString string
	ast         expr.Node
	eval        *Evaluator

	batchSize int
	stats     Statistics

	source      <-chan []event.Event
	sourceOpen  bool
	done        bool
	shutdownReq bool
}

// New parses, normalizes, validates, and compiles queryString, returning
// a Query actor ready for Start. It does not itself touch the index or
// archive — those happen on Start.
func New(archive ArchiveRef, index IndexRef, sink SinkRef, queryString string) (*Query, error) {
	ast, err := expr.Parse(queryString)
	if err != nil {
		return nil, err
	}
	ast = expr.Normalize(ast)
	if err := expr.Validate(ast); err != nil {
		return nil, err
	}
	eval, err := Compile(ast)
	if err != nil {
		return nil, err
	}
	return &Query{
		mailbox:     actor.New(16),
		id:          uuid.New(),
		archive:     archive,
		index:       index,
		sink:        sink,
		queryString: queryString,
		ast:         ast,
		eval:        eval,
		batchSize:   defaultBatchSize,
	}, nil
}

// ID returns the query's session identifier, the first element of the
// `(uuid, done, runtime)` sink notification tuple.
func (q *Query) ID() uuid.UUID { return q.id }

// SetBatchSize configures how many matches NextChunk accumulates before
// returning, per the `set batch_size(n)` verb.
func (q *Query) SetBatchSize(n int) {
	q.mailbox.Do(func() {
		if n > 0 {
			q.batchSize = n
		}
	})
}

// Statistics answers `get statistics`.
func (q *Query) Statistics() Statistics {
	var snap Statistics
	q.mailbox.Do(func() { snap = q.stats.Snapshot() })
	return snap
}

// Start asks the index for event-bearing sources: it loads the AST's
// referenced index files, looks up a candidate bitstream, and opens an
// archive fetch over it. When the index cannot answer the whole
// expression (an unsupported (op, type) pair anywhere in the tree), the
// candidate set conservatively widens to every id the meta index has
// ever seen, and the fallback is recorded in Statistics.
func (q *Query) Start() error {
	var err error
	q.mailbox.Do(func() {
		q.stats.Started = time.Now()
		if loadErr := q.index.LoadAST(q.ast); loadErr != nil {
			err = loadErr
			return
		}
		candidates, ok := q.index.Lookup(q.ast)
		if !ok {
			q.stats.addFallback(countFallbacks(q.ast, q.index))
			candidates = q.index.Universe()
		}
		src, fetchErr := q.archive.Get(candidates)
		if fetchErr != nil {
			err = fetchErr
			return
		}
		if createErr := q.sink.Create(); createErr != nil {
			err = createErr
			return
		}
		q.source = src
		q.sourceOpen = true
	})
	return err
}

// Source binds an externally supplied event source in place of the one
// Start would have opened against the archive, matching the `source(src)`
// verb used when a caller already holds a materialized event stream
// (e.g. the ingest pipeline handing off freshly indexed events for a
// live query).
func (q *Query) Source(src <-chan []event.Event) {
	q.mailbox.Do(func() {
		q.source = src
		q.sourceOpen = true
	})
}

// NextChunk pulls chunks from the bound source, evaluates the compiled
// expression against each event, and forwards matches to the sink. It
// keeps pulling until either a full batch of matches has been forwarded
// since the call began or the source is exhausted, matching the
// "stops requesting when a batch of matches has been emitted since the
// last request" rule. The returned bool reports whether more chunks may
// still be available.
func (q *Query) NextChunk() (bool, error) {
	var (
		more bool
		err  error
	)
	q.mailbox.Do(func() {
		if !q.sourceOpen || q.done || q.shutdownReq {
			more = false
			return
		}
		matched := 0
		for matched < q.batchSize {
			events, ok := <-q.source
			if !ok {
				q.done = true
				break
			}
			q.stats.addScanned(uint64(len(events)))
			for _, e := range events {
				if q.shutdownReq {
					break
				}
				if q.eval.Eval(e) {
					if pushErr := q.sink.Push(e); pushErr != nil {
						err = pushErr
						return
					}
					matched++
					q.stats.addMatched(1)
				}
			}
			if q.shutdownReq {
				break
			}
		}
		q.stats.addChunk()
		more = !q.done && !q.shutdownReq
	})
	return more, err
}

// Shutdown stops the query from requesting further chunks, lets any
// chunk already mid-evaluation finish (NextChunk's loop body checks
// shutdownReq between events, never mid-event), then notifies the sink
// with the `(uuid, done, runtime)` tuple and tears down the mailbox.
func (q *Query) Shutdown() error {
	var (
		runtime time.Time
		started time.Time
		done    bool
		err     error
	)
	q.mailbox.Do(func() {
		q.shutdownReq = true
		started = q.stats.Started
		done = q.done
	})
	runtime = time.Now()
	q.mailbox.Shutdown()
	if q.sink != nil {
		err = q.sink.Done(q.id, done, runtime.Sub(started))
	}
	return err
}
