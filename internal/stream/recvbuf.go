package stream

import "container/heap"

// RecvBuf reassembles out-of-order chunks and releases the contiguous prefix
// starting at the next expected offset.
//
// Chunks are kept in a min-heap keyed by offset. Overlap is resolved against the
// delivery cursor: anything wholly below it is dropped on Push or when it reaches
// the front, and anything straddling it is trimmed, so a byte is never delivered
// twice even when retransmissions carry different lengths.
type RecvBuf struct {
	pending rangeHeap
	off     uint64
	highest uint64

	finalSize  uint64
	finalKnown bool
}

// Push inserts buf. Chunks that add nothing past the delivery cursor are dropped.
func (r *RecvBuf) Push(buf RangeBuf) error {
	if r.finalKnown && buf.End() > r.finalSize {
		return ErrFinalSize
	}
	if buf.End() > r.highest {
		r.highest = buf.End()
	}
	if buf.End() <= r.off {
		return nil
	}
	heap.Push(&r.pending, buf.trimFront(r.off))
	return nil
}

// Pop drains every chunk that is contiguous with the delivery cursor and
// returns them as one RangeBuf starting at the pre-pop cursor. The result is
// empty when the front of the buffer is still a gap.
func (r *RecvBuf) Pop() RangeBuf {
	out := RangeBuf{off: r.off}
	for r.Ready() {
		buf := heap.Pop(&r.pending).(RangeBuf).trimFront(r.off)
		if out.data == nil {
			out.data = buf.data
		} else {
			out.data = append(out.data, buf.data...)
		}
		r.off += buf.Len()
		r.discardStale()
	}
	return out
}

// Ready reports whether Pop would return at least one byte.
func (r *RecvBuf) Ready() bool {
	if len(r.pending) == 0 {
		return false
	}
	return r.pending[0].off <= r.off
}

// Len is the buffered extent: the highest offset seen minus the delivery
// cursor. Gaps count, so Len > 0 does not imply Ready.
func (r *RecvBuf) Len() uint64 {
	if r.highest < r.off {
		return 0
	}
	return r.highest - r.off
}

// Off is the next offset the application expects.
func (r *RecvBuf) Off() uint64 {
	return r.off
}

// SetFinalSize records the total stream length announced by the peer.
func (r *RecvBuf) SetFinalSize(size uint64) error {
	if r.finalKnown {
		if size != r.finalSize {
			return ErrFinalSizeChange
		}
		return nil
	}
	if size < r.highest {
		return ErrFinalSize
	}
	r.finalSize = size
	r.finalKnown = true
	return nil
}

// Finished reports whether every byte up to the final size was delivered.
func (r *RecvBuf) Finished() bool {
	return r.finalKnown && r.off == r.finalSize
}

// discardStale pops front chunks the cursor has already moved past.
func (r *RecvBuf) discardStale() {
	for len(r.pending) > 0 && r.pending[0].End() <= r.off {
		heap.Pop(&r.pending)
	}
}
