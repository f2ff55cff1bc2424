package stream

import (
	"iter"
	"maps"
	"slices"
)

// Table owns every stream of one connection, keyed by stream id.
type Table struct {
	streams map[uint64]*Stream
}

func NewTable() *Table {
	return &Table{
		streams: make(map[uint64]*Stream),
	}
}

// GetOrCreate returns the stream for id, creating an empty one on first use.
func (t *Table) GetOrCreate(id uint64) *Stream {
	s, ok := t.streams[id]
	if !ok {
		s = New()
		t.streams[id] = s
	}
	return s
}

func (t *Table) Get(id uint64) (*Stream, bool) {
	s, ok := t.streams[id]
	return s, ok
}

func (t *Table) Remove(id uint64) {
	delete(t.streams, id)
}

func (t *Table) Len() int {
	return len(t.streams)
}

// IDs returns every stream id in ascending order.
func (t *Table) IDs() []uint64 {
	return slices.Sorted(maps.Keys(t.streams))
}

// Filter lazily yields the ids of streams matching pred, in map order. pred is
// evaluated as the sequence advances. The table must not be mutated until the
// iteration completes; collect the ids first when the loop body mutates it.
func (t *Table) Filter(pred func(*Stream) bool) iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		for id, s := range t.streams {
			if !pred(s) {
				continue
			}
			if !yield(id) {
				return
			}
		}
	}
}

// Readable yields ids of streams with bytes ready for the application.
func (t *Table) Readable() iter.Seq[uint64] {
	return t.Filter((*Stream).CanRead)
}

// Writable yields ids of streams with unsent bytes.
func (t *Table) Writable() iter.Seq[uint64] {
	return t.Filter((*Stream).CanWrite)
}
