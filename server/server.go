package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/blueprint"
	"github.com/randalmurphal/blueprint/auth"
	"github.com/randalmurphal/blueprint/notify"
	"github.com/randalmurphal/blueprint/runstore"
)

// Backend is what the server needs from a blueprint service.
type Backend interface {
	Run(ctx context.Context, projectID string, opts blueprint.RunOptions) (*blueprint.Result, error)
	ListRuns(ctx context.Context, f runstore.Filter) ([]runstore.Run, error)
	GetRun(ctx context.Context, runID string) (*runstore.Run, error)
	RunEvents(ctx context.Context, runID string) ([]notify.Event, error)
	Events() *notify.Broadcaster
}

// Config configures a Server.
type Config struct {
	// Addr is the listen address. Defaults to ":8080".
	Addr string

	// Auth authenticates requests. Nil accepts everyone with every scope.
	Auth *auth.Authenticator

	// EventBuffer is the per-client websocket buffer. Defaults to 64.
	EventBuffer int

	Logger *slog.Logger
}

// Server is the HTTP surface of a blueprint service.
type Server struct {
	backend Backend
	auth    *auth.Authenticator
	buffer  int
	logger  *slog.Logger
	router  *gin.Engine
	http    *http.Server
}

// New builds the router.
func New(backend Backend, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Auth == nil {
		cfg.Auth = &auth.Authenticator{}
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	router := gin.New()
	s := &Server{
		backend: backend,
		auth:    cfg.Auth,
		buffer:  cfg.EventBuffer,
		logger:  cfg.Logger,
		router:  router,
	}
	router.Use(gin.Recovery(), s.requestLog(), cors())

	router.GET("/healthz", s.handleHealth)

	api := router.Group("/iba")
	{
		api.POST("/run", s.authenticate(auth.ScopeRunsWrite), s.handleRun)
		api.GET("/runs", s.authenticate(auth.ScopeRunsRead), s.handleListRuns)
		api.GET("/runs/:id", s.authenticate(auth.ScopeRunsRead), s.handleGetRun)
	}
	router.GET("/ws/events", s.authenticate(auth.ScopeRunsRead), s.handleEvents)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// =============================================================================
// Middleware
// =============================================================================

const principalKey = "principal"

// authenticate rejects requests without a valid credential holding scope.
func (s *Server) authenticate(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authorization := c.GetHeader("Authorization")
		apiKey := c.GetHeader("X-API-Key")
		if token := c.Query("access_token"); token != "" && authorization == "" {
			authorization = "Bearer " + token
		}
		if key := c.Query("api_key"); key != "" && apiKey == "" {
			apiKey = key
		}

		p, err := s.auth.Authenticate(authorization, apiKey)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if err := p.Require(scope); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func principal(c *gin.Context) auth.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(auth.Principal); ok {
			return p
		}
	}
	return auth.Principal{}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
