// Package status serves the read-only observability surface: health, the
// Prometheus registry, recent attempt history and per-user schedule state.
package status

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"attbot/internal/attendance"
	"attbot/internal/httpmiddleware"
	"attbot/internal/store"
)

// UserStatus is one orchestrator's schedule entry.
type UserStatus struct {
	User  string    `json:"user"`
	State string    `json:"state"`
	Next  time.Time `json:"next,omitempty"`
}

// Server exposes the bot's state over HTTP. All endpoints are read-only.
type Server struct {
	Addr          string
	Repo          *attendance.Repository
	Redis         *store.Redis
	Registry      *prometheus.Registry
	Orchestrators map[string]*attendance.Orchestrator
	Log           *zap.Logger

	srv *http.Server
}

// New builds the server; a nil logger defaults to zap.NewNop.
func New(addr string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{Addr: addr, Orchestrators: make(map[string]*attendance.Orchestrator), Log: log}
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.NewSimpleTokenBucket(120, 120).GinMiddleware())

	if s.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})))
	}

	r.GET("/healthz", s.handleHealth)
	r.GET("/v1/attempts", s.handleAttempts)
	r.GET("/v1/schedule", s.handleSchedule)
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	redisHealthy := s.Redis.Healthy(c.Request.Context())
	status := http.StatusOK
	c.JSON(status, gin.H{
		"status":  "ok",
		"redis":   redisHealthy,
		"history": s.Repo != nil,
		"users":   len(s.Orchestrators),
	})
}

func (s *Server) handleAttempts(c *gin.Context) {
	if s.Repo == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "attempt history not configured"})
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	attempts, err := s.Repo.ListAttempts(c.Request.Context(), c.Query("user"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

func (s *Server) handleSchedule(c *gin.Context) {
	out := make([]UserStatus, 0, len(s.Orchestrators))
	for user, o := range s.Orchestrators {
		state, next := o.Status()
		out = append(out, UserStatus{User: user, State: string(state), Next: next})
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// Run serves until ctx is cancelled, then drains with a 10s grace period.
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         s.Addr,
		Handler:      s.router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Log.Info("status server listening", zap.String("addr", s.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
