package stream

// RangeBuf is a byte payload tagged with the absolute stream offset of its first byte.
type RangeBuf struct {
	data []byte
	off  uint64
}

// NewRangeBuf copies data so the caller may reuse its slice.
func NewRangeBuf(data []byte, off uint64) RangeBuf {
	cp := make([]byte, len(data))
	copy(cp, data)
	return RangeBuf{data: cp, off: off}
}

func (b RangeBuf) Off() uint64 {
	return b.off
}

func (b RangeBuf) Len() uint64 {
	return uint64(len(b.data))
}

func (b RangeBuf) End() uint64 {
	return b.off + uint64(len(b.data))
}

// Bytes returns the payload. Callers must not modify it.
func (b RangeBuf) Bytes() []byte {
	return b.data
}

// trimFront drops every byte below off.
func (b RangeBuf) trimFront(off uint64) RangeBuf {
	if off <= b.off {
		return b
	}
	if off >= b.End() {
		return RangeBuf{off: b.End()}
	}
	return RangeBuf{data: b.data[off-b.off:], off: off}
}

// split cuts b after n bytes. n must be < b.Len().
func (b RangeBuf) split(n uint64) (RangeBuf, RangeBuf) {
	head := RangeBuf{data: b.data[:n:n], off: b.off}
	tail := RangeBuf{data: b.data[n:], off: b.off + n}
	return head, tail
}

// rangeHeap is a min-heap of chunks ordered by offset only.
type rangeHeap []RangeBuf

func (h rangeHeap) Len() int           { return len(h) }
func (h rangeHeap) Less(i, j int) bool { return h[i].off < h[j].off }
func (h rangeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *rangeHeap) Push(x any) {
	*h = append(*h, x.(RangeBuf))
}

func (h *rangeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = RangeBuf{}
	*h = old[:n-1]
	return item
}
