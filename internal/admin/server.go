// Package admin serves the HTTP health, metrics and stream inspection surface
// of a streamcore node.
package admin

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/danmuck/streamcore/internal/auth"
	"github.com/danmuck/streamcore/internal/observability"
	"github.com/danmuck/streamcore/internal/transport"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

// StatsSource is a live connection whose streams can be listed.
type StatsSource interface {
	ID() string
	Stats() []transport.StreamStats
}

type ConnInfo struct {
	ID      string                  `json:"id"`
	Streams []transport.StreamStats `json:"streams"`
}

var ErrConnNotFound = errors.New("admin: connection not found")

type Server struct {
	ID       string
	Addr     string
	Appeared time.Time

	router *gin.Engine
	guard  auth.Validator

	mu    sync.RWMutex
	conns map[string]StatsSource
	ready bool
}

// New builds the admin router. A nil guard leaves /streams open.
func New(id, addr string, corsOrigins []string, guard auth.Validator) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		router:   r,
		guard:    guard,
		conns:    make(map[string]StatsSource),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// SetReady flips the /ready check. A node is ready once its stream listener
// or dialed connection is up.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()
}

func (s *Server) Track(c StatsSource) {
	s.mu.Lock()
	s.conns[c.ID()] = c
	s.mu.Unlock()
}

func (s *Server) Untrack(id string) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ready", func(c *gin.Context) {
		s.mu.RLock()
		ready := s.ready
		s.mu.RUnlock()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"service": s.ID,
			"version": version,
		})
	})

	streams := s.router.Group("/streams")
	if s.guard != nil {
		streams.Use(requireToken(s.guard))
	}
	streams.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"conns": s.ListConns()})
	})

	streams.GET("/:conn", func(c *gin.Context) {
		info, err := s.Conn(c.Param("conn"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	})
}

// ListConns snapshots every tracked connection, ordered by id.
func (s *Server) ListConns() []ConnInfo {
	s.mu.RLock()
	sources := make([]StatsSource, 0, len(s.conns))
	for _, c := range s.conns {
		sources = append(sources, c)
	}
	s.mu.RUnlock()

	out := make([]ConnInfo, 0, len(sources))
	for _, c := range sources {
		out = append(out, ConnInfo{ID: c.ID(), Streams: c.Stats()})
	}
	slices.SortFunc(out, func(a, b ConnInfo) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

func (s *Server) Conn(id string) (ConnInfo, error) {
	s.mu.RLock()
	c, ok := s.conns[id]
	s.mu.RUnlock()
	if !ok {
		return ConnInfo{}, ErrConnNotFound
	}
	return ConnInfo{ID: id, Streams: c.Stats()}, nil
}

// Serve runs the admin listener until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("node", s.ID).Str("addr", s.Addr).Msg("admin listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requireToken(v auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok || v.Validate(token) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrUnauthorized.Error()})
			return
		}
		c.Next()
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
