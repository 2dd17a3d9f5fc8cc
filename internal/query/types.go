package query

import (
	"sync"
	"time"

	"github.com/evidex/evidex/internal/bitstream"
	"github.com/evidex/evidex/internal/event"
	"github.com/evidex/evidex/internal/expr"
	"github.com/google/uuid"
)

// defaultBatchSize is the number of matching events a query accumulates
// before returning a chunk, absent an explicit `set batch_size`.
const defaultBatchSize = 256

// ArchiveRef is the collaborator a query pulls materialized events from,
// satisfied by package archive's RocksDB-backed store. Get streams the
// events named by ids back in unspecified internal order; callers that
// need id order re-sort (the evaluator does not require it).
type ArchiveRef interface {
	Get(ids bitstream.Bitstream) (<-chan []event.Event, error)
}

// IndexRef is the collaborator a query asks for an index-backed
// candidate bitstream, satisfied by *actor.IndexPair.
type IndexRef interface {
	LoadAST(ast expr.Node) error
	Lookup(ast expr.Node) (bitstream.Bitstream, bool)
	Universe() bitstream.Bitstream
}

// SinkRef is the collaborator a query forwards matching events to,
// satisfied by package sink's channel sink and file sink.
type SinkRef interface {
	Create() error
	Push(e event.Event) error
	Done(id uuid.UUID, done bool, runtime time.Duration) error
}

// Statistics tracks the partial-failure telemetry the evaluator reports: how
// many predicates in the compiled expression could not be answered by
// the bitmap layer and required full-scan revalidation, alongside basic
// throughput counters. Safe for concurrent access from the query's
// mailbox goroutine and from a caller polling `get statistics`.
type Statistics struct {
	mu                sync.Mutex
	EventsScanned     uint64
	EventsMatched     uint64
	ChunksEmitted     uint64
	FullScanFallbacks uint64
	Started           time.Time
}

func (s *Statistics) addScanned(n uint64) {
	s.mu.Lock()
	s.EventsScanned += n
	s.mu.Unlock()
}

func (s *Statistics) addMatched(n uint64) {
	s.mu.Lock()
	s.EventsMatched += n
	s.mu.Unlock()
}

func (s *Statistics) addChunk() {
	s.mu.Lock()
	s.ChunksEmitted++
	s.mu.Unlock()
}

func (s *Statistics) addFallback(n uint64) {
	s.mu.Lock()
	s.FullScanFallbacks += n
	s.mu.Unlock()
}

// Snapshot returns a copy of the current counters, safe to read without
// racing concurrent updates.
func (s *Statistics) Snapshot() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Statistics{
		EventsScanned:     s.EventsScanned,
		EventsMatched:     s.EventsMatched,
		ChunksEmitted:     s.ChunksEmitted,
		FullScanFallbacks: s.FullScanFallbacks,
		Started:           s.Started,
	}
}

// countFallbacks walks ast and counts leaf predicates the index pair
// could not answer, used once at Start to size the "unsupported_op"
// telemetry before any chunk has been evaluated.
func countFallbacks(ast expr.Node, index IndexRef) uint64 {
	switch n := ast.(type) {
	case expr.Predicate:
		if _, ok := index.Lookup(n); ok {
			return 0
		}
		return 1
	case expr.Negation:
		return countFallbacks(n.Expr, index)
	case expr.Conjunction:
		return countFallbacksAll(n.Exprs, index)
	case expr.Disjunction:
		return countFallbacksAll(n.Exprs, index)
	default:
		return 0
	}
}

func countFallbacksAll(exprs []expr.Node, index IndexRef) uint64 {
	var total uint64
	for _, n := range exprs {
		total += countFallbacks(n, index)
	}
	return total
}
