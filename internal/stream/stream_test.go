package stream

import (
	"errors"
	"testing"

	"github.com/danmuck/streamcore/internal/testutil/testlog"
)

func TestStreamReadabilityMatchesPop(t *testing.T) {
	testlog.Start(t)
	s := New()
	if s.CanRead() {
		t.Fatalf("new stream should not be readable")
	}

	_ = s.PushRecv(NewRangeBuf([]byte("world"), 5))
	if s.CanRead() {
		t.Fatalf("stream with a leading gap should not be readable")
	}
	if read := s.PopRecv(); read.Len() != 0 {
		t.Fatalf("expected empty read, got %q", read.Bytes())
	}

	_ = s.PushRecv(NewRangeBuf([]byte("hello"), 0))
	if !s.CanRead() {
		t.Fatalf("expected readable stream")
	}
	if read := s.PopRecv(); string(read.Bytes()) != "helloworld" {
		t.Fatalf("read got=%q", read.Bytes())
	}
	if s.CanRead() {
		t.Fatalf("drained stream should not be readable")
	}
}

func TestStreamWritabilityTracksUnsent(t *testing.T) {
	testlog.Start(t)
	s := New()
	if s.CanWrite() {
		t.Fatalf("new stream should not be writable")
	}
	if _, err := s.PushSend([]byte("ping")); err != nil {
		t.Fatalf("push send: %v", err)
	}
	if !s.CanWrite() {
		t.Fatalf("expected writable stream")
	}
	s.PopSend(2)
	if !s.CanWrite() {
		t.Fatalf("partially drained stream should stay writable")
	}
	s.PopSend(2)
	if s.CanWrite() {
		t.Fatalf("drained stream should not be writable")
	}
}

func TestStreamPushSendAfterFinish(t *testing.T) {
	testlog.Start(t)
	s := New()
	s.Finish()
	if _, err := s.PushSend([]byte("late")); !errors.Is(err, ErrStreamFinished) {
		t.Fatalf("expected ErrStreamFinished, got %v", err)
	}
	if !s.FinPending() {
		t.Fatalf("expected fin pending on empty finished stream")
	}
}

func TestStreamStats(t *testing.T) {
	testlog.Start(t)
	s := New()
	_ = s.PushRecv(NewRangeBuf([]byte("abc"), 0))
	_ = s.PushRecv(NewRangeBuf([]byte("xyz"), 10))
	s.PopRecv()
	_, _ = s.PushSend([]byte("hello"))
	s.PopSend(2)

	got := s.Stats()
	want := Stats{
		RecvOffset: 3,
		Buffered:   10,
		SendOffset: 2,
		Unsent:     3,
		Writable:   true,
	}
	if got != want {
		t.Fatalf("stats got=%+v want=%+v", got, want)
	}
}
