package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatlens/pkg/analytics"
	"chatlens/pkg/chatlog"
)

const (
	defaultAddress  = "127.0.0.1:5000"
	shutdownTimeout = 5 * time.Second
)

// Analyzer is the engine surface the API serves.
type Analyzer interface {
	Conversations(ctx context.Context, code string) ([]chatlog.ConversationSummary, error)
	Analyze(ctx context.Context, code string, conversationID string) (*analytics.Result, error)
	Words(ctx context.Context, code string, conversationID string, passcode string) ([]analytics.Frequency, error)
	Emojis(ctx context.Context, code string, conversationID string) ([]analytics.Frequency, error)
	CountSubstring(ctx context.Context, code string, conversationID string, needle string) (int, error)
	ParticipantWindow(ctx context.Context, code string, conversationID string, participant string, days int, mode analytics.WindowMode) (analytics.ParticipantWindowResult, error)
}

// Options configures the HTTP listener.
type Options struct {
	Address      string
	AllowOrigins []string
	// DataRoot is probed by /readyz.
	DataRoot string
}

// Service is the JSON API over the analytics engine.
type Service struct {
	opts     Options
	analyzer Analyzer
	log      *slog.Logger
	router   *gin.Engine

	mu        sync.RWMutex
	startedAt time.Time
	listening bool
}

type statusResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Error         string `json:"error,omitempty"`
}

// NewService wires routes and middleware.
func NewService(analyzer Analyzer, opts Options, log *slog.Logger) (*Service, error) {
	if analyzer == nil {
		return nil, errors.New("analyzer is required")
	}
	if opts.Address == "" {
		opts.Address = defaultAddress
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		opts:     opts,
		analyzer: analyzer,
		log:      log.With("component", "server.http"),
	}
	s.router = s.newRouter()

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Service) Handler() http.Handler {
	return s.router
}

func (s *Service) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(s.accessLog())
	router.Use(recordMetrics())

	if len(s.opts.AllowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  s.opts.AllowOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", requestIDHeader},
			ExposeHeaders: []string{"Content-Length", requestIDHeader},
			MaxAge:        12 * time.Hour,
		}))
	}

	router.GET("/healthz", s.handleHealth)
	router.GET("/readyz", s.handleReady)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/codes/:code/conversations")
	api.GET("", s.handleList)
	api.GET("/:id", s.handleAnalyze)
	api.POST("/:id/words", s.handleWords)
	api.POST("/:id/emojis", s.handleEmojis)
	api.POST("/:id/count", s.handleCount)
	api.POST("/:id/participant-window", s.handleParticipantWindow)

	router.NoRoute(func(c *gin.Context) {
		respondError(c, chatlog.NewError(chatlog.ErrorNotFound, "route not found"))
	})

	return router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Service) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Address, err)
	}

	return s.Serve(ctx, listener)
}

// Serve runs the API on an existing listener.
func (s *Service) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.listening = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.listening = false
		s.mu.Unlock()
	}()

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-serveCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("Graceful shutdown incomplete", "error", err)
		}
	}()

	s.log.Info("API server started", "address", listener.Addr().String())
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cancel()
		<-shutdownDone
		return fmt.Errorf("serve API: %w", err)
	}

	<-shutdownDone
	s.log.Info("API server stopped")
	return nil
}

func (s *Service) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.currentStatus("ok", nil))
}

func (s *Service) handleReady(c *gin.Context) {
	if err := s.readiness(); err != nil {
		c.JSON(http.StatusServiceUnavailable, s.currentStatus("not_ready", err))
		return
	}

	c.JSON(http.StatusOK, s.currentStatus("ready", nil))
}

func (s *Service) readiness() error {
	s.mu.RLock()
	listening := s.listening
	s.mu.RUnlock()
	if !listening {
		return errors.New("listener not started")
	}

	if s.opts.DataRoot == "" {
		return nil
	}
	info, err := os.Stat(s.opts.DataRoot)
	if err != nil {
		return fmt.Errorf("data root unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data root is not a directory: %s", s.opts.DataRoot)
	}

	return nil
}

func (s *Service) currentStatus(status string, err error) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	response := statusResponse{Status: status, UptimeSeconds: uptime}
	if err != nil {
		response.Error = err.Error()
	}
	return response
}
