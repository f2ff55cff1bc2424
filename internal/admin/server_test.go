package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/streamcore/internal/auth"
	"github.com/danmuck/streamcore/internal/protocol/frame"
	"github.com/danmuck/streamcore/internal/testutil/testlog"
	"github.com/danmuck/streamcore/internal/transport"
	"github.com/rs/zerolog"
)

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	return getWithAuth(t, s, path, "")
}

func getWithAuth(t *testing.T, s *Server, path, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthAndReady(t *testing.T) {
	testlog.Start(t)
	s := New("node-a", "127.0.0.1:0", nil, nil)

	if rr := get(t, s, "/health"); rr.Code != http.StatusOK {
		t.Fatalf("health status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := get(t, s, "/ready"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected not ready, got %d", rr.Code)
	}
	s.SetReady(true)
	rr := get(t, s, "/ready")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ready"] != true || body["service"] != "node-a" {
		t.Fatalf("unexpected ready body: %#v", body)
	}
}

func TestStreamsListsTrackedConns(t *testing.T) {
	testlog.Start(t)
	s := New("node-a", "127.0.0.1:0", nil, nil)

	conn := transport.NewConn("conn-1", transport.DefaultConfig(), zerolog.Nop())
	if err := conn.HandleFrame(frame.NewStreamFrame(4, 0, []byte("hello"), false)); err != nil {
		t.Fatalf("handle frame: %v", err)
	}
	s.Track(conn)

	rr := get(t, s, "/streams")
	if rr.Code != http.StatusOK {
		t.Fatalf("streams status=%d", rr.Code)
	}
	var body struct {
		Conns []struct {
			ID      string `json:"id"`
			Streams []struct {
				ID       uint64 `json:"id"`
				Buffered uint64 `json:"buffered"`
				Readable bool   `json:"readable"`
			} `json:"streams"`
		} `json:"conns"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Conns) != 1 || body.Conns[0].ID != "conn-1" {
		t.Fatalf("unexpected conns: %+v", body.Conns)
	}
	streams := body.Conns[0].Streams
	if len(streams) != 1 || streams[0].ID != 4 || streams[0].Buffered != 5 || !streams[0].Readable {
		t.Fatalf("unexpected streams: %+v", streams)
	}

	if rr := get(t, s, "/streams/conn-1"); rr.Code != http.StatusOK {
		t.Fatalf("conn status=%d", rr.Code)
	}
	s.Untrack("conn-1")
	rr = get(t, s, "/streams/conn-1")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after untrack, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), ErrConnNotFound.Error()) {
		t.Fatalf("unexpected not found body: %s", rr.Body.String())
	}
	if _, err := s.Conn("conn-1"); !errors.Is(err, ErrConnNotFound) || !strings.HasPrefix(err.Error(), "admin: ") {
		t.Fatalf("unexpected conn lookup error: %v", err)
	}
}

func TestMetricsEndpointExposesStreamCounters(t *testing.T) {
	testlog.Start(t)
	s := New("node-a", "127.0.0.1:0", nil, nil)
	conn := transport.NewConn("conn-metrics", transport.DefaultConfig(), zerolog.Nop())
	_ = conn.HandleFrame(frame.NewStreamFrame(0, 0, []byte("x"), false))

	rr := get(t, s, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "streamcore_stream_frames_total") {
		t.Fatalf("metrics output missing stream frame counter")
	}
}

func TestStreamsRequireTokenWhenGuarded(t *testing.T) {
	testlog.Start(t)
	s := New("node-a", "127.0.0.1:0", nil, auth.StaticToken("s3cret"))

	if rr := get(t, s, "/streams"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
	if rr := getWithAuth(t, s, "/streams", "Bearer wrong"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rr.Code)
	}
	if rr := getWithAuth(t, s, "/streams", "Bearer s3cret"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}
	if rr := get(t, s, "/health"); rr.Code != http.StatusOK {
		t.Fatalf("health must stay open, got %d", rr.Code)
	}
}
