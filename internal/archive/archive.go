// Package archive implements the write-ahead event store as an
// external collaborator: a github.com/linxGnu/grocksdb-backed key-value
// store, grounded on a RocksDB column-family
// layout and merge-operator-based counter idiom, generalized from
// ledger/XDR storage to arbitrary zstd-compressed, binary-codec-encoded
// events keyed by id.
package archive

import (
	"encoding/binary"
	"fmt"

	"github.com/evidex/evidex/internal/bitstream"
	"github.com/evidex/evidex/internal/event"
	"github.com/klauspost/compress/zstd"
	"github.com/linxGnu/grocksdb"
)

const (
	cfDefault  = "default"  // metadata (next-id counter)
	cfEvents   = "events"   // id -> zstd-compressed encoded event
	nextIDKey  = "next_id"
	chunkEvents = 256 // events per chunk sent on the Get() channel
)

// idAddMergeOperator accumulates id allocations without a read-modify-write
// round trip by summing big-endian uint64 operands (registered as
// "uint64-add").
type idAddMergeOperator struct{}

func (idAddMergeOperator) Name() string { return "uint64-add" }

func (idAddMergeOperator) FullMerge(key, existing []byte, operands [][]byte) ([]byte, bool) {
	var total uint64
	if len(existing) == 8 {
		total = binary.BigEndian.Uint64(existing)
	}
	for _, op := range operands {
		if len(op) == 8 {
			total += binary.BigEndian.Uint64(op)
		}
	}
	result := make([]byte, 8)
	binary.BigEndian.PutUint64(result, total)
	return result, true
}

func (idAddMergeOperator) PartialMerge(key, left, right []byte) ([]byte, bool) {
	var a, b uint64
	if len(left) == 8 {
		a = binary.BigEndian.Uint64(left)
	}
	if len(right) == 8 {
		b = binary.BigEndian.Uint64(right)
	}
	result := make([]byte, 8)
	binary.BigEndian.PutUint64(result, a+b)
	return result, true
}

// Archive is the RocksDB-backed event store satisfying package query's
// ArchiveRef: Get streams chunks of events named by a candidate
// bitstream.
type Archive struct {
	db         *grocksdb.DB
	wo         *grocksdb.WriteOptions
	ro         *grocksdb.ReadOptions
	cfHandles  []*grocksdb.ColumnFamilyHandle
	cfDefaultH *grocksdb.ColumnFamilyHandle
	cfEventsH  *grocksdb.ColumnFamilyHandle
	baseOpts   *grocksdb.Options
	cfOpts     []*grocksdb.Options
	mergeOp    grocksdb.MergeOperator
	encoder    *zstd.Encoder
	decoder    *zstd.Decoder
}

// Open creates or opens the archive rooted at dbPath.
func Open(dbPath string) (*Archive, error) {
	baseOpts := grocksdb.NewDefaultOptions()
	baseOpts.SetCreateIfMissing(true)
	baseOpts.SetCreateIfMissingColumnFamilies(true)
	baseOpts.SetCompression(grocksdb.NoCompression) // payload is pre-compressed by zstd

	defaultOpts := grocksdb.NewDefaultOptions()
	mergeOp := idAddMergeOperator{}
	defaultOpts.SetMergeOperator(mergeOp)

	eventsOpts := grocksdb.NewDefaultOptions()
	eventsOpts.SetCompression(grocksdb.NoCompression)

	cfNames := []string{cfDefault, cfEvents}
	cfOpts := []*grocksdb.Options{defaultOpts, eventsOpts}

	db, cfHandles, err := grocksdb.OpenDbColumnFamilies(baseOpts, dbPath, cfNames, cfOpts)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", dbPath, err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: new zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("archive: new zstd decoder: %w", err)
	}

	return &Archive{
		db:         db,
		wo:         grocksdb.NewDefaultWriteOptions(),
		ro:         grocksdb.NewDefaultReadOptions(),
		cfHandles:  cfHandles,
		cfDefaultH: cfHandles[0],
		cfEventsH:  cfHandles[1],
		baseOpts:   baseOpts,
		cfOpts:     cfOpts,
		mergeOp:    mergeOp,
		encoder:    enc,
		decoder:    dec,
	}, nil
}

// Close releases every RocksDB and zstd resource the archive holds.
func (a *Archive) Close() {
	a.encoder.Close()
	a.decoder.Close()
	a.wo.Destroy()
	a.ro.Destroy()
	a.db.Close()
	for _, opt := range a.cfOpts {
		opt.Destroy()
	}
	a.baseOpts.Destroy()
}

// AllocateID returns the next monotonically increasing event id (1-based;
// 0 is reserved per I2), merging a +1 delta into the counter rather than
// reading, incrementing, and writing back.
func (a *Archive) AllocateID() (uint64, error) {
	delta := make([]byte, 8)
	binary.BigEndian.PutUint64(delta, 1)
	if err := a.db.MergeCF(a.wo, a.cfDefaultH, []byte(nextIDKey), delta); err != nil {
		return 0, fmt.Errorf("archive: allocate id: %w", err)
	}
	val, err := a.db.GetCF(a.ro, a.cfDefaultH, []byte(nextIDKey))
	if err != nil {
		return 0, fmt.Errorf("archive: read id counter: %w", err)
	}
	defer val.Free()
	data := val.Data()
	if len(data) != 8 {
		return 0, fmt.Errorf("archive: corrupt id counter (len %d)", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// Put persists e under its own id, zstd-compressing the binary-codec
// encoding.
func (a *Archive) Put(e event.Event) error {
	raw := encodeEvent(e)
	compressed := a.encoder.EncodeAll(raw, nil)
	key := idKey(e.ID)
	if err := a.db.PutCF(a.wo, a.cfEventsH, key, compressed); err != nil {
		return fmt.Errorf("archive: put event %d: %w", e.ID, err)
	}
	return nil
}

// PutBatch writes a slice of events in one RocksDB write batch.
func (a *Archive) PutBatch(events []event.Event) error {
	batch := grocksdb.NewWriteBatch()
	defer batch.Destroy()
	for _, e := range events {
		compressed := a.encoder.EncodeAll(encodeEvent(e), nil)
		batch.PutCF(a.cfEventsH, idKey(e.ID), compressed)
	}
	if err := a.db.Write(a.wo, batch); err != nil {
		return fmt.Errorf("archive: put batch: %w", err)
	}
	return nil
}

func (a *Archive) get(id uint64) (event.Event, bool, error) {
	val, err := a.db.GetCF(a.ro, a.cfEventsH, idKey(id))
	if err != nil {
		return event.Event{}, false, fmt.Errorf("archive: get event %d: %w", id, err)
	}
	defer val.Free()
	data := val.Data()
	if data == nil {
		return event.Event{}, false, nil
	}
	raw, err := a.decoder.DecodeAll(data, nil)
	if err != nil {
		return event.Event{}, false, fmt.Errorf("archive: decompress event %d: %w", id, err)
	}
	e, err := decodeEvent(raw)
	if err != nil {
		return event.Event{}, false, fmt.Errorf("archive: decode event %d: %w", id, err)
	}
	return e, true, nil
}

// Get implements package query's ArchiveRef: it streams the events named
// by the set bits of ids back over a channel in fixed-size chunks,
// closing the channel once every id has been attempted. Ids with no
// stored event (e.g. a conservative full-scan candidate set that
// includes gaps) are silently skipped.
func (a *Archive) Get(ids bitstream.Bitstream) (<-chan []event.Event, error) {
	positions := ids.Iterator()
	out := make(chan []event.Event, 4)
	go func() {
		defer close(out)
		chunk := make([]event.Event, 0, chunkEvents)
		for _, pos := range positions {
			e, ok, err := a.get(pos)
			if err != nil || !ok {
				continue
			}
			chunk = append(chunk, e)
			if len(chunk) == chunkEvents {
				out <- chunk
				chunk = make([]event.Event, 0, chunkEvents)
			}
		}
		if len(chunk) > 0 {
			out <- chunk
		}
	}()
	return out, nil
}

func idKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}
