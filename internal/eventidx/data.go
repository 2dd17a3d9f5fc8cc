package eventidx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/evidex/evidex/internal/bitmapidx"
	"github.com/evidex/evidex/internal/bitstream"
	"github.com/evidex/evidex/internal/event"
	"github.com/evidex/evidex/internal/expr"
	"github.com/evidex/evidex/internal/value"
)

// DataIndex indexes every scalar field of an event's record, one bitmap
// index per distinct record offset, grouped secondarily by value type so a
// type-extractor query ("every field of type addr") can fan out across all
// offsets that happen to hold that type. Vector, set, and table fields are
// never indexed (see DESIGN.md's open-question decision); nested records
// are descended into depth-first with the offset growing by one level.
type DataIndex struct {
	dir     string
	offsets map[string]bitmapidx.Index
	keys    map[string]event.Offset
	types   map[value.Tag][]bitmapidx.Index
	files   map[value.Tag][]string
}

// NewDataIndex constructs an empty data index rooted at dir.
func NewDataIndex(dir string) *DataIndex {
	return &DataIndex{
		dir:     dir,
		offsets: make(map[string]bitmapidx.Index),
		keys:    make(map[string]event.Offset),
		types:   make(map[value.Tag][]bitmapidx.Index),
		files:   make(map[value.Tag][]string),
	}
}

func (d *DataIndex) pathify(o event.Offset) string {
	return filepath.Join(d.dir, "@"+o.String()+".idx")
}

func offsetFromFilename(path string) (event.Offset, error) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".idx")
	base = strings.TrimPrefix(base, "@")
	return event.ParseOffset(base)
}

// Scan discovers persisted per-offset index files (@<offset>.idx) under
// dir, skipping any other file there, without
// decoding their bitstreams, populating the type registry used to satisfy
// type-extractor loads lazily.
func (d *DataIndex) Scan() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &IOError{Op: "readdir", Path: d.dir, Err: err}
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "@") || !strings.HasSuffix(entry.Name(), ".idx") {
			continue
		}
		path := filepath.Join(d.dir, entry.Name())
		f, err := os.Open(path)
		if err != nil {
			return &IOError{Op: "open", Path: path, Err: err}
		}
		header := make([]byte, 8)
		_, err = io.ReadFull(f, header)
		f.Close()
		if err != nil {
			return &CorruptIndexError{Path: path, Err: err}
		}
		vt, err := bitmapidx.PeekValueType(header)
		if err != nil {
			return &CorruptIndexError{Path: path, Err: err}
		}
		d.files[vt] = append(d.files[vt], path)
	}
	return nil
}

func (d *DataIndex) loadFile(path string, wantType *value.Tag) error {
	off, err := offsetFromFilename(path)
	if err != nil {
		return &CorruptIndexError{Path: path, Err: err}
	}
	if _, ok := d.offsets[off.String()]; ok {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return &IOError{Op: "read", Path: path, Err: err}
	}
	vt, err := bitmapidx.PeekValueType(data)
	if err != nil {
		return &CorruptIndexError{Path: path, Err: err}
	}
	if wantType != nil && vt != *wantType {
		return fmt.Errorf("eventidx: type mismatch at %s: wanted %v, got %v", path, *wantType, vt)
	}
	idx, err := bitmapidx.Unarchive(data)
	if err != nil {
		return &CorruptIndexError{Path: path, Err: err}
	}
	key := off.String()
	d.offsets[key] = idx
	d.keys[key] = off
	d.types[vt] = append(d.types[vt], idx)
	return nil
}

// Load ensures the index(es) referenced by pred's extractor operand are
// resident, loading from disk on first touch. A KeyExtractor operand is
// expected to already have been resolved to an OffsetExtractor by the
// query compiler (package query) before reaching this layer.
func (d *DataIndex) Load(pred expr.Predicate) error {
	val, ok := constantSide(pred)
	if !ok {
		return nil
	}
	vt := value.Which(val)
	switch ext := extractorSide(pred).(type) {
	case expr.OffsetExtractor:
		key := ext.Offset.String()
		if _, ok := d.offsets[key]; ok {
			return nil
		}
		path := d.pathify(ext.Offset)
		if _, err := os.Stat(path); err != nil {
			return nil
		}
		return d.loadFile(path, &vt)
	case expr.TypeExtractor:
		if len(d.types[ext.Type]) > 0 {
			return nil
		}
		for _, path := range d.files[ext.Type] {
			if err := d.loadFile(path, nil); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

func (d *DataIndex) indexFor(o event.Offset, t value.Tag) (bitmapidx.Index, error) {
	key := o.String()
	if idx, ok := d.offsets[key]; ok {
		return idx, nil
	}
	for _, path := range d.files[t] {
		off, err := offsetFromFilename(path)
		if err == nil && off.Equal(o) {
			if err := d.loadFile(path, &t); err != nil {
				return nil, err
			}
			return d.offsets[key], nil
		}
	}
	idx, err := bitmapidx.New(t)
	if err != nil {
		return nil, err
	}
	idx.Append(1, false)
	cp := append(event.Offset(nil), o...)
	d.offsets[key] = idx
	d.keys[key] = cp
	d.types[t] = append(d.types[t], idx)
	return idx, nil
}

// Index descends e's record depth-first, pushing every non-container
// scalar field into its offset-keyed bitmap index. An empty record is a
// no-op success (a documented boundary case).
func (d *DataIndex) Index(e event.Event) error {
	if e.Empty() {
		return nil
	}
	elems, ok := value.AsElems(e.Data)
	if !ok {
		return nil
	}
	o := event.Offset{0}
	return d.indexRecord(elems, e.ID, &o)
}

func (d *DataIndex) indexRecord(elems []value.Value, id uint64, o *event.Offset) error {
	if len(*o) == 0 {
		return nil
	}
	for _, v := range elems {
		t := value.Which(v)
		switch {
		case t == value.None:
			// unset field: nothing to index, still advances the offset.
		case t == value.Record:
			inner, _ := value.AsElems(v)
			if len(inner) > 0 {
				*o = append(*o, 0)
				if err := d.indexRecord(inner, id, o); err != nil {
					return err
				}
				*o = (*o)[:len(*o)-1]
			}
		case !value.IsContainer(t):
			idx, err := d.indexFor(*o, t)
			if err != nil {
				return err
			}
			if err := idx.PushBack(v, id); err != nil {
				return err
			}
		}
		(*o)[len(*o)-1]++
	}
	return nil
}

// Save persists every offset index with pending appends since the last
// checkpoint.
func (d *DataIndex) Save() error {
	dirty := false
	for _, idx := range d.offsets {
		if idx.Appended() > 0 {
			dirty = true
			break
		}
	}
	if !dirty {
		return nil
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: d.dir, Err: err}
	}
	for key, idx := range d.offsets {
		if idx.Appended() == 0 {
			continue
		}
		blob, err := bitmapidx.Archive(idx)
		if err != nil {
			return err
		}
		path := d.pathify(d.keys[key])
		if err := os.WriteFile(path, blob, 0o644); err != nil {
			return &IOError{Op: "write", Path: path, Err: err}
		}
		idx.Checkpoint()
	}
	return nil
}

// Lookup evaluates a single leaf predicate whose extractor operand is an
// offset or a type against the resident index(es), returning (zero, false)
// when the predicate is out of scope for the data index (e.g. a name or
// timestamp predicate, which MetaIndex answers instead).
func (d *DataIndex) Lookup(pred expr.Predicate) (bitstream.Bitstream, bool) {
	val, ok := constantSide(pred)
	if !ok {
		return bitstream.Bitstream{}, false
	}
	switch ext := extractorSide(pred).(type) {
	case expr.OffsetExtractor:
		idx, ok := d.offsets[ext.Offset.String()]
		if !ok {
			return bitstream.Bitstream{}, false
		}
		return idx.Lookup(pred.Op, val)
	case expr.TypeExtractor:
		var result bitstream.Bitstream
		found := false
		for _, idx := range d.types[ext.Type] {
			r, ok := idx.Lookup(pred.Op, val)
			if !ok {
				continue
			}
			if !found {
				result = r
				found = true
			} else {
				result = bitstream.Or(result, r)
			}
		}
		return result, found
	default:
		return bitstream.Bitstream{}, false
	}
}
