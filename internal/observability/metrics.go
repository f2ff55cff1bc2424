package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamcore",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "streamcore",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	streamFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamcore",
			Subsystem: "stream",
			Name:      "frames_total",
			Help:      "STREAM frames handled per connection and direction.",
		},
		[]string{"conn", "direction"},
	)
	streamBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamcore",
			Subsystem: "stream",
			Name:      "bytes_total",
			Help:      "Stream payload bytes per connection and direction.",
		},
		[]string{"conn", "direction"},
	)
	streamFrameErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamcore",
			Subsystem: "stream",
			Name:      "frame_errors_total",
			Help:      "Inbound STREAM frames rejected by the stream layer.",
		},
		[]string{"conn", "reason"},
	)
	streamsOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "streamcore",
			Subsystem: "stream",
			Name:      "open",
			Help:      "Streams tracked per connection.",
		},
		[]string{"conn"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, streamFrames, streamBytes, streamFrameErrors, streamsOpen)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordStreamFrame counts one STREAM frame and its payload bytes.
func RecordStreamFrame(conn, direction string, payloadLen int) {
	RegisterMetrics()
	streamFrames.WithLabelValues(conn, direction).Inc()
	streamBytes.WithLabelValues(conn, direction).Add(float64(payloadLen))
}

func RecordStreamFrameError(conn, reason string) {
	RegisterMetrics()
	streamFrameErrors.WithLabelValues(conn, reason).Inc()
}

func SetOpenStreams(conn string, n int) {
	RegisterMetrics()
	streamsOpen.WithLabelValues(conn).Set(float64(n))
}

// ForgetConn drops every series labelled with conn once a connection is torn
// down.
func ForgetConn(conn string) {
	RegisterMetrics()
	labels := prometheus.Labels{"conn": conn}
	streamFrames.DeletePartialMatch(labels)
	streamBytes.DeletePartialMatch(labels)
	streamFrameErrors.DeletePartialMatch(labels)
	streamsOpen.DeletePartialMatch(labels)
}
