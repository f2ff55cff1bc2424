package stream

// SendBuf queues application writes in order and hands them out in
// transport-sized pieces.
type SendBuf struct {
	pending  []RangeBuf
	off      uint64
	writeOff uint64
	unsent   uint64

	fin     bool
	finSent bool
}

// Push queues data at the write cursor and returns the offset assigned to it.
func (s *SendBuf) Push(data []byte) uint64 {
	off := s.writeOff
	if len(data) == 0 {
		return off
	}
	buf := NewRangeBuf(data, off)
	s.pending = append(s.pending, buf)
	s.writeOff += buf.Len()
	s.unsent += buf.Len()
	return off
}

// Pop returns at most maxLen bytes from the front of the queue. A front chunk
// larger than the remaining budget is split and its tail stays queued.
func (s *SendBuf) Pop(maxLen uint64) RangeBuf {
	out := RangeBuf{off: s.off}
	remaining := maxLen
	for remaining > 0 && len(s.pending) > 0 {
		take := s.pending[0]
		if take.Len() > remaining {
			var tail RangeBuf
			take, tail = take.split(remaining)
			s.pending[0] = tail
		} else {
			s.pending[0] = RangeBuf{}
			s.pending = s.pending[1:]
		}

		if out.data == nil {
			out.data = take.data
		} else {
			out.data = append(out.data, take.data...)
		}
		remaining -= take.Len()
		s.unsent -= take.Len()
		s.off += take.Len()
	}
	if len(s.pending) == 0 {
		s.pending = nil
	}
	return out
}

func (s *SendBuf) Ready() bool {
	return s.unsent > 0
}

func (s *SendBuf) Len() uint64 {
	return s.unsent
}

// Off is the offset of the next byte Pop will return.
func (s *SendBuf) Off() uint64 {
	return s.off
}

// Finish closes the write side. Queued bytes are still handed out.
func (s *SendBuf) Finish() {
	s.fin = true
}

func (s *SendBuf) Finished() bool {
	return s.fin
}

// FinPending reports a finished, fully drained buffer whose end has not been
// signalled to the peer yet.
func (s *SendBuf) FinPending() bool {
	return s.fin && !s.finSent && s.unsent == 0
}

func (s *SendBuf) MarkFinSent() {
	s.finSent = true
}
