package stream

// Stream pairs one receive reorder buffer with one send chunk buffer.
type Stream struct {
	recv RecvBuf
	send SendBuf
}

// Stats is a point-in-time view of one stream's buffers.
type Stats struct {
	RecvOffset   uint64 `json:"recv_offset"`
	Buffered     uint64 `json:"buffered"`
	Readable     bool   `json:"readable"`
	RecvFinished bool   `json:"recv_finished"`
	SendOffset   uint64 `json:"send_offset"`
	Unsent       uint64 `json:"unsent"`
	Writable     bool   `json:"writable"`
	SendFinished bool   `json:"send_finished"`
}

func New() *Stream {
	return &Stream{}
}

func (s *Stream) PushRecv(buf RangeBuf) error {
	return s.recv.Push(buf)
}

func (s *Stream) PopRecv() RangeBuf {
	return s.recv.Pop()
}

// PushSend queues data for sending and returns its stream offset.
func (s *Stream) PushSend(data []byte) (uint64, error) {
	if s.send.Finished() {
		return 0, ErrStreamFinished
	}
	return s.send.Push(data), nil
}

func (s *Stream) PopSend(maxLen uint64) RangeBuf {
	return s.send.Pop(maxLen)
}

func (s *Stream) CanRead() bool {
	return s.recv.Ready()
}

func (s *Stream) CanWrite() bool {
	return s.send.Ready()
}

// SetFinalSize records the peer's announced stream length.
func (s *Stream) SetFinalSize(size uint64) error {
	return s.recv.SetFinalSize(size)
}

// RecvFinished reports that the peer's stream was read to its final size.
func (s *Stream) RecvFinished() bool {
	return s.recv.Finished()
}

// Finish closes the local send side after any queued bytes.
func (s *Stream) Finish() {
	s.send.Finish()
}

func (s *Stream) FinPending() bool {
	return s.send.FinPending()
}

func (s *Stream) MarkFinSent() {
	s.send.MarkFinSent()
}

func (s *Stream) Stats() Stats {
	return Stats{
		RecvOffset:   s.recv.Off(),
		Buffered:     s.recv.Len(),
		Readable:     s.recv.Ready(),
		RecvFinished: s.recv.Finished(),
		SendOffset:   s.send.Off(),
		Unsent:       s.send.Len(),
		Writable:     s.send.Ready(),
		SendFinished: s.send.Finished(),
	}
}
