package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/danmuck/streamcore/internal/observability"
	"github.com/danmuck/streamcore/internal/protocol/frame"
	"github.com/danmuck/streamcore/internal/stream"
	"github.com/rs/zerolog"
)

var ErrConnClosed = errors.New("transport: connection closed")

// StreamStats is one stream's buffer state keyed by id.
type StreamStats struct {
	ID uint64 `json:"id"`
	stream.Stats
}

// Conn multiplexes many streams over one ordered frame channel. Every method
// takes the connection-wide lock; the stream table is never touched outside it.
type Conn struct {
	id     string
	cfg    Config
	logger zerolog.Logger

	mu       sync.Mutex
	streams  *stream.Table
	nextSend uint64
	closed   bool

	readable chan struct{}
}

func NewConn(id string, cfg Config, logger zerolog.Logger) *Conn {
	observability.RegisterMetrics()
	return &Conn{
		id:       id,
		cfg:      cfg.WithDefaults(),
		logger:   logger,
		streams:  stream.NewTable(),
		readable: make(chan struct{}, 1),
	}
}

func (c *Conn) ID() string {
	return c.id
}

// HandleFrame feeds one inbound STREAM frame into its stream's reorder buffer.
func (c *Conn) HandleFrame(f frame.Frame) error {
	id := f.Header.StreamID
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnClosed
	}
	s := c.streams.GetOrCreate(id)
	err := pushFrame(s, f)
	notify := s.CanRead() || s.RecvFinished()
	// Series are written under the lock so Close cannot forget them first.
	observability.RecordStreamFrame(c.id, observability.DirectionIn, len(f.Payload))
	observability.SetOpenStreams(c.id, c.streams.Len())
	if err != nil {
		observability.RecordStreamFrameError(c.id, frameErrorReason(err))
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Uint64("stream_id", id).Uint64("offset", f.Header.Offset).Err(err).Msg("stream frame rejected")
		return fmt.Errorf("transport: stream %d: %w", id, err)
	}

	c.logger.Trace().
		Uint64("stream_id", id).
		Uint64("offset", f.Header.Offset).
		Int("len", len(f.Payload)).
		Bool("fin", f.Fin()).
		Msg("stream frame received")
	if notify {
		select {
		case c.readable <- struct{}{}:
		default:
		}
	}
	return nil
}

// pushFrame applies the final size before the payload so a rejected FIN frame
// leaves the stream untouched.
func pushFrame(s *stream.Stream, f frame.Frame) error {
	if f.Fin() {
		if err := s.SetFinalSize(f.End()); err != nil {
			return err
		}
	}
	if len(f.Payload) == 0 {
		return nil
	}
	return s.PushRecv(stream.NewRangeBuf(f.Payload, f.Header.Offset))
}

func frameErrorReason(err error) string {
	switch {
	case errors.Is(err, stream.ErrFinalSizeChange):
		return "final_size_change"
	case errors.Is(err, stream.ErrFinalSize):
		return "final_size"
	default:
		return "other"
	}
}

// ReadableNotify fires after an inbound frame leaves some stream readable or
// completes its receive side.
func (c *Conn) ReadableNotify() <-chan struct{} {
	return c.readable
}

// Read returns the next contiguous run of bytes on stream id. An empty result
// means nothing is ready yet.
func (c *Conn) Read(id uint64) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.streams.Get(id)
	if !ok {
		return nil
	}
	return s.PopRecv().Bytes()
}

// RecvFinished reports that stream id was read up to the peer's final size.
func (c *Conn) RecvFinished(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.streams.Get(id)
	return ok && s.RecvFinished()
}

// Write queues data on stream id and returns the offset assigned to it.
func (c *Conn) Write(id uint64, data []byte) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrConnClosed
	}
	off, err := c.streams.GetOrCreate(id).PushSend(data)
	if err != nil {
		return 0, fmt.Errorf("transport: stream %d: %w", id, err)
	}
	return off, nil
}

// Finish closes the send side of stream id once queued bytes are flushed.
func (c *Conn) Finish(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streams.GetOrCreate(id).Finish()
}

// Readable returns a snapshot of stream ids with bytes ready, ascending.
func (c *Conn) Readable() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(c.streams.Readable())
}

// Writable returns a snapshot of stream ids with unsent bytes, ascending.
func (c *Conn) Writable() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(c.streams.Writable())
}

// Remove drops stream id and its buffers.
func (c *Conn) Remove(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.streams.Remove(id)
	observability.SetOpenStreams(c.id, c.streams.Len())
}

// NextFrame segments the next outbound frame, serving streams round-robin by
// id. budget caps the payload; zero or anything above MaxFramePayload uses
// MaxFramePayload. ok is false when no stream has bytes or a pending FIN, or
// once the Conn is closed.
func (c *Conn) NextFrame(budget uint64) (frame.Frame, bool) {
	if budget == 0 || budget > c.cfg.MaxFramePayload {
		budget = c.cfg.MaxFramePayload
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return frame.Frame{}, false
	}
	ids := slices.Sorted(c.streams.Filter(sendable))
	if len(ids) == 0 {
		return frame.Frame{}, false
	}
	id := ids[0]
	if i, _ := slices.BinarySearch(ids, c.nextSend); i < len(ids) {
		id = ids[i]
	}
	c.nextSend = id + 1

	s, _ := c.streams.Get(id)
	buf := s.PopSend(budget)
	fin := s.FinPending()
	if fin {
		s.MarkFinSent()
	}
	observability.RecordStreamFrame(c.id, observability.DirectionOut, int(buf.Len()))
	return frame.NewStreamFrame(id, buf.Off(), buf.Bytes(), fin), true
}

func sendable(s *stream.Stream) bool {
	return s.CanWrite() || s.FinPending()
}

// Flush writes frames to w until no stream has anything left to send. Frames
// are dequeued before they are written, so a write error closes the Conn:
// the bytes in flight cannot be resent.
func (c *Conn) Flush(w io.Writer) (int, error) {
	n := 0
	for {
		f, ok := c.NextFrame(0)
		if !ok {
			return n, nil
		}
		if err := frame.WriteFrame(w, f, c.cfg.Limits); err != nil {
			c.Close()
			return n, fmt.Errorf("transport: write frame stream=%d: %w", f.Header.StreamID, err)
		}
		n++
		c.logger.Trace().
			Uint64("stream_id", f.Header.StreamID).
			Uint64("offset", f.Header.Offset).
			Int("len", len(f.Payload)).
			Bool("fin", f.Fin()).
			Msg("stream frame sent")
	}
}

type deadlineWriter interface {
	SetWriteDeadline(t time.Time) error
}

// FlushConn is Flush with the configured write timeout applied to conns that
// support deadlines.
func (c *Conn) FlushConn(w io.Writer) (int, error) {
	if dw, ok := w.(deadlineWriter); ok && c.cfg.WriteTimeout > 0 {
		_ = dw.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
		defer dw.SetWriteDeadline(time.Time{})
	}
	return c.Flush(w)
}

// Serve reads frames from r until EOF, a frame error, or ctx is done. When ctx
// ends and r is an io.Closer, r is closed to unblock the pending read.
func (c *Conn) Serve(ctx context.Context, r io.Reader) error {
	done := make(chan struct{})
	defer close(done)
	if closer, ok := r.(io.Closer); ok {
		go func() {
			select {
			case <-ctx.Done():
				_ = closer.Close()
			case <-done:
			}
		}()
	}

	for {
		f, err := frame.ReadFrame(r, c.cfg.Limits)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			observability.RecordStreamFrameError(c.id, "decode")
			return fmt.Errorf("transport: read frame: %w", err)
		}
		if err := c.HandleFrame(f); err != nil {
			return err
		}
	}
}

// Stats returns per-stream buffer state, ascending by id.
func (c *Conn) Stats() []StreamStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := c.streams.IDs()
	out := make([]StreamStats, 0, len(ids))
	for _, id := range ids {
		s, _ := c.streams.Get(id)
		out = append(out, StreamStats{ID: id, Stats: s.Stats()})
	}
	return out
}

// Close tears down the stream table. Further writes and frames are rejected.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.streams = stream.NewTable()
	observability.ForgetConn(c.id)
}
