package ingest

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evidex/evidex/internal/actor"
	"github.com/evidex/evidex/internal/archive"
	"github.com/evidex/evidex/internal/event"
)

// PipelineConfig configures the parallel ingestion pipeline, the generic
// analogue of a ledger-range PipelineConfig.
type PipelineConfig struct {
	Workers     int // Number of parallel workers
	BatchSize   int // Records to batch before an archive write
	QueueSize   int // Channel buffer size
	SaveIndexes bool
}

// PipelineStats tracks pipeline performance.
type PipelineStats struct {
	LinesProcessed int64
	EventsIndexed  int64
	ExtractErrors  int64
	WriteTimeNs    int64
}

// lineResult is the result of extracting a single telemetry line.
type lineResult struct {
	Line  uint64
	Event event.Event
	Error error
}

// Pipeline is a parallel ingestion pipeline: workers extract event.Events
// from decoded telemetry records concurrently, while a single collector
// goroutine reassembles them in stream order, assigns monotonic ids, and
// writes them to the archive and index actors — directly grounded on the
// worker/collector split used by ledger-oriented ingest pipelines, with the
// ledger reader replaced by a schema-driven JSON extractor and the
// RocksDB event store replaced by the archive and actor.IndexPair
// collaborators.
type Pipeline struct {
	config   PipelineConfig
	stats    PipelineStats
	archive  *archive.Archive
	index    *actor.IndexPair
	registry Registry

	jobs    chan Record
	results chan lineResult

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}

	onProgress func(line uint64, linesProcessed, eventsTotal int)
	onError    func(line uint64, err error)
}

// NewPipeline creates a new parallel ingestion pipeline writing to arc
// and idx, extracting records according to registry.
func NewPipeline(config PipelineConfig, arc *archive.Archive, idx *actor.IndexPair, registry Registry) *Pipeline {
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.QueueSize <= 0 {
		config.QueueSize = config.Workers * 2
	}

	return &Pipeline{
		config:   config,
		archive:  arc,
		index:    idx,
		registry: registry,
		jobs:     make(chan Record, config.QueueSize),
		results:  make(chan lineResult, config.QueueSize),
		stopCh:   make(chan struct{}),
	}
}

// SetProgressCallback sets the progress callback.
func (p *Pipeline) SetProgressCallback(fn func(line uint64, linesProcessed, eventsTotal int)) {
	p.onProgress = fn
}

// SetErrorCallback sets the per-line error callback; a line the
// extractor rejects is reported but does not stop the run, matching the
// "ingest never fails on a single bad record" property.
func (p *Pipeline) SetErrorCallback(fn func(line uint64, err error)) {
	p.onError = fn
}

// Run reads newline-delimited JSON telemetry records from r to
// completion, extracting, indexing, and archiving every well-formed one.
func (p *Pipeline) Run(r io.Reader) error {
	if err := p.index.Scan(); err != nil {
		return fmt.Errorf("ingest: scan indexes: %w", err)
	}

	records, scanErrs := ReadRecords(r)

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	collectDone := make(chan error, 1)
	go func() { collectDone <- p.collector() }()

	go func() {
		defer close(p.jobs)
		for rec := range records {
			select {
			case p.jobs <- rec:
			case <-p.stopCh:
				return
			}
		}
	}()

	p.wg.Wait()
	close(p.results)

	err := <-collectDone
	if err != nil {
		return err
	}

	for scanErr := range scanErrs {
		atomic.AddInt64(&p.stats.ExtractErrors, 1)
		if p.onError != nil {
			line := uint64(0)
			var lineErr *LineError
			if errors.As(scanErr, &lineErr) {
				line = lineErr.Line
			}
			p.onError(line, scanErr)
		}
	}

	if p.config.SaveIndexes {
		if saveErr := p.index.Save(); saveErr != nil {
			return fmt.Errorf("ingest: save indexes: %w", saveErr)
		}
	}
	return nil
}

// worker extracts events from records pulled off jobs.
func (p *Pipeline) worker() {
	defer p.wg.Done()
	for rec := range p.jobs {
		e, err := ExtractEvent(rec, p.registry)
		result := lineResult{Line: rec.Line, Event: e, Error: err}
		select {
		case p.results <- result:
		case <-p.stopCh:
			return
		}
	}
}

// collector receives results and writes them to the archive and index
// actors in stream order, reassembling out-of-order worker output with a
// pending buffer exactly as a ledger-reassembling collector would.
func (p *Pipeline) collector() error {
	pending := make(map[uint64]lineResult)
	nextLine := uint64(1)

	var linesProcessed, totalEvents int
	lastProgressTime := time.Now()

	var batch []event.Event
	batchStartLine := nextLine

	for {
		result, ok := <-p.results
		if ok {
			pending[result.Line] = result
		} else if len(pending) == 0 {
			break
		} else {
			for pending[nextLine].Line != nextLine {
				nextLine++
			}
		}

		for {
			r, ok := pending[nextLine]
			if !ok {
				break
			}
			delete(pending, nextLine)
			nextLine++
			linesProcessed++
			atomic.AddInt64(&p.stats.LinesProcessed, 1)

			if r.Error != nil {
				atomic.AddInt64(&p.stats.ExtractErrors, 1)
				if p.onError != nil {
					p.onError(r.Line, r.Error)
				}
				continue
			}

			id, err := p.archive.AllocateID()
			if err != nil {
				return fmt.Errorf("ingest: allocate id for line %d: %w", r.Line, err)
			}
			r.Event.ID = id

			if err := p.index.Index(r.Event); err != nil {
				return fmt.Errorf("ingest: index event at line %d: %w", r.Line, err)
			}

			batch = append(batch, r.Event)
			totalEvents++
			atomic.AddInt64(&p.stats.EventsIndexed, 1)

			if len(batch) >= p.config.BatchSize {
				writeStart := time.Now()
				if err := p.archive.PutBatch(batch); err != nil {
					return fmt.Errorf("ingest: write batch for lines %d-%d: %w", batchStartLine, r.Line, err)
				}
				atomic.AddInt64(&p.stats.WriteTimeNs, time.Since(writeStart).Nanoseconds())
				batch = make([]event.Event, 0, p.config.BatchSize)
				batchStartLine = nextLine
			}

			if p.onProgress != nil && (linesProcessed%1000 == 0 || time.Since(lastProgressTime) > 5*time.Second) {
				p.onProgress(r.Line, linesProcessed, totalEvents)
				lastProgressTime = time.Now()
			}
		}
	}

	if len(batch) > 0 {
		writeStart := time.Now()
		if err := p.archive.PutBatch(batch); err != nil {
			return fmt.Errorf("ingest: write final batch: %w", err)
		}
		atomic.AddInt64(&p.stats.WriteTimeNs, time.Since(writeStart).Nanoseconds())
	}

	if p.onProgress != nil {
		p.onProgress(nextLine-1, linesProcessed, totalEvents)
	}

	return nil
}

// Stop requests the pipeline wind down without processing further
// records already queued.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// GetStats returns the current pipeline stats.
func (p *Pipeline) GetStats() PipelineStats {
	return PipelineStats{
		LinesProcessed: atomic.LoadInt64(&p.stats.LinesProcessed),
		EventsIndexed:  atomic.LoadInt64(&p.stats.EventsIndexed),
		ExtractErrors:  atomic.LoadInt64(&p.stats.ExtractErrors),
		WriteTimeNs:    atomic.LoadInt64(&p.stats.WriteTimeNs),
	}
}

// GetWriteTime returns the total archive write time.
func (p *Pipeline) GetWriteTime() time.Duration {
	return time.Duration(atomic.LoadInt64(&p.stats.WriteTimeNs))
}
