package actor

import (
	"github.com/evidex/evidex/internal/bitstream"
	"github.com/evidex/evidex/internal/event"
	"github.com/evidex/evidex/internal/eventidx"
	"github.com/evidex/evidex/internal/expr"
)

// MetaIndexActor serializes access to an eventidx.MetaIndex behind a
// mailbox, matching the "index calls are serialized within one data
// index" ordering guarantee.
type MetaIndexActor struct {
	mailbox *Mailbox
	index   *eventidx.MetaIndex
}

// NewMetaIndexActor starts the actor rooted at dir.
func NewMetaIndexActor(dir string) (*MetaIndexActor, error) {
	idx, err := eventidx.NewMetaIndex(dir)
	if err != nil {
		return nil, err
	}
	return &MetaIndexActor{mailbox: New(64), index: idx}, nil
}

func (a *MetaIndexActor) Scan() error {
	var err error
	a.mailbox.Do(func() { err = a.index.Scan() })
	return err
}

func (a *MetaIndexActor) Load(pred expr.Predicate) error {
	var err error
	a.mailbox.Do(func() { err = a.index.Load(pred) })
	return err
}

func (a *MetaIndexActor) Index(e event.Event) error {
	var err error
	a.mailbox.Do(func() { err = a.index.Index(e) })
	return err
}

func (a *MetaIndexActor) Save() error {
	var err error
	a.mailbox.Do(func() { err = a.index.Save() })
	return err
}

func (a *MetaIndexActor) Lookup(pred expr.Predicate) (bitstream.Bitstream, bool) {
	var (
		result bitstream.Bitstream
		found  bool
	)
	a.mailbox.Do(func() { result, found = a.index.Lookup(pred) })
	return result, found
}

// Universe returns the full id range the meta index has ever seen, for
// full-scan-fallback candidate sets.
func (a *MetaIndexActor) Universe() bitstream.Bitstream {
	var bs bitstream.Bitstream
	a.mailbox.Do(func() { bs = a.index.Universe() })
	return bs
}

// Shutdown drains pending messages, letting an in-flight Save finish,
// then terminates the actor.
func (a *MetaIndexActor) Shutdown() { a.mailbox.Shutdown() }

// DataIndexActor serializes access to an eventidx.DataIndex behind a
// mailbox.
type DataIndexActor struct {
	mailbox *Mailbox
	index   *eventidx.DataIndex
}

// NewDataIndexActor starts the actor rooted at dir.
func NewDataIndexActor(dir string) *DataIndexActor {
	return &DataIndexActor{mailbox: New(64), index: eventidx.NewDataIndex(dir)}
}

func (a *DataIndexActor) Scan() error {
	var err error
	a.mailbox.Do(func() { err = a.index.Scan() })
	return err
}

func (a *DataIndexActor) Load(pred expr.Predicate) error {
	var err error
	a.mailbox.Do(func() { err = a.index.Load(pred) })
	return err
}

func (a *DataIndexActor) Index(e event.Event) error {
	var err error
	a.mailbox.Do(func() { err = a.index.Index(e) })
	return err
}

func (a *DataIndexActor) Save() error {
	var err error
	a.mailbox.Do(func() { err = a.index.Save() })
	return err
}

func (a *DataIndexActor) Lookup(pred expr.Predicate) (bitstream.Bitstream, bool) {
	var (
		result bitstream.Bitstream
		found  bool
	)
	a.mailbox.Do(func() { result, found = a.index.Lookup(pred) })
	return result, found
}

func (a *DataIndexActor) Shutdown() { a.mailbox.Shutdown() }

// IndexPair bundles the sibling meta and data actors that together
// answer a lookup over one AST, matching the "two sibling actors,
// both rooted at a filesystem directory" shape. Index and Save fan out
// to both; Lookup walks the AST and routes each leaf predicate to
// whichever sibling claims it, combining sub-results with AND/OR/NOT in
// the same shape the AST itself combines them.
type IndexPair struct {
	Meta *MetaIndexActor
	Data *DataIndexActor
}

// NewIndexPair starts both sibling actors rooted at dir (meta files and
// per-offset data files side by side directly under dir).
func NewIndexPair(dir string) (*IndexPair, error) {
	meta, err := NewMetaIndexActor(dir)
	if err != nil {
		return nil, err
	}
	data := NewDataIndexActor(dir)
	return &IndexPair{Meta: meta, Data: data}, nil
}

func (p *IndexPair) Scan() error {
	if err := p.Meta.Scan(); err != nil {
		return err
	}
	return p.Data.Scan()
}

func (p *IndexPair) Index(e event.Event) error {
	if err := p.Meta.Index(e); err != nil {
		return err
	}
	return p.Data.Index(e)
}

func (p *IndexPair) Save() error {
	if err := p.Meta.Save(); err != nil {
		return err
	}
	return p.Data.Save()
}

// Universe delegates to the meta actor's id high-water mark.
func (p *IndexPair) Universe() bitstream.Bitstream { return p.Meta.Universe() }

func (p *IndexPair) Shutdown() {
	p.Meta.Shutdown()
	p.Data.Shutdown()
}

// Lookup evaluates ast against the index pair, returning (bitstream,
// true) when every leaf predicate was answered by a bitmap index and
// (zero, false) the moment any leaf is unsupported — signalling the
// caller to fall back to full-scan revalidation (the unsupported_op
// rule, lifted to whole-expression granularity).
func (p *IndexPair) Lookup(ast expr.Node) (bitstream.Bitstream, bool) {
	switch n := ast.(type) {
	case expr.Predicate:
		return p.lookupPredicate(n)
	case expr.Negation:
		inner, ok := p.Lookup(n.Expr)
		if !ok {
			return bitstream.Bitstream{}, false
		}
		return inner.Not(), true
	case expr.Conjunction:
		return p.lookupCombinator(n.Exprs, bitstream.And)
	case expr.Disjunction:
		return p.lookupCombinator(n.Exprs, bitstream.Or)
	default:
		return bitstream.Bitstream{}, false
	}
}

func (p *IndexPair) lookupCombinator(exprs []expr.Node, combine func(a, b bitstream.Bitstream) bitstream.Bitstream) (bitstream.Bitstream, bool) {
	var acc bitstream.Bitstream
	for i, n := range exprs {
		r, ok := p.Lookup(n)
		if !ok {
			return bitstream.Bitstream{}, false
		}
		if i == 0 {
			acc = r
			continue
		}
		acc = combine(acc, r)
	}
	return acc, true
}

func (p *IndexPair) lookupPredicate(pred expr.Predicate) (bitstream.Bitstream, bool) {
	if r, ok := p.Meta.Lookup(pred); ok {
		return r, true
	}
	if r, ok := p.Data.Lookup(pred); ok {
		return r, true
	}
	return bitstream.Bitstream{}, false
}

// LoadAST pre-loads every index file an AST's extractors reference,
// fanning the same Load call out to both siblings for every leaf
// predicate.
func (p *IndexPair) LoadAST(ast expr.Node) error {
	switch n := ast.(type) {
	case expr.Predicate:
		if err := p.Meta.Load(n); err != nil {
			return err
		}
		return p.Data.Load(n)
	case expr.Negation:
		return p.LoadAST(n.Expr)
	case expr.Conjunction:
		for _, e := range n.Exprs {
			if err := p.LoadAST(e); err != nil {
				return err
			}
		}
		return nil
	case expr.Disjunction:
		for _, e := range n.Exprs {
			if err := p.LoadAST(e); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}
