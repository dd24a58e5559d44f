package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jardins/ghlsync/internal/config"
	"github.com/jardins/ghlsync/internal/errors"
	"github.com/jardins/ghlsync/internal/logging"
	"github.com/jardins/ghlsync/internal/metrics"
	"github.com/jardins/ghlsync/internal/models"
	"github.com/jardins/ghlsync/internal/store"
)

// Server exposes run status and location state over HTTP in serve mode.
// Tokens never leave the process: location responses are redacted down to
// provisioning state.
type Server struct {
	router     *gin.Engine
	config     config.ServerConfig
	tokens     store.TokenStore
	runs       *store.RunStore
	metrics    *metrics.Metrics
	logger     *logging.Logger
	httpServer *http.Server
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates the serve-mode HTTP server.
func NewServer(cfg config.ServerConfig, tokens store.TokenStore, runs *store.RunStore, m *metrics.Metrics, logger *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	if logger == nil {
		logger = logging.NewLogger()
	}

	server := &Server{
		router:  gin.New(),
		config:  cfg,
		tokens:  tokens,
		runs:    runs,
		metrics: m,
		logger:  logger,
	}
	server.router.HandleMethodNotAllowed = true
	server.router.Use(gin.Recovery())
	server.router.Use(metrics.Middleware(m))
	server.router.Use(loggingMiddleware(logger))

	server.setupRoutes()
	return server
}

func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		runID := c.GetHeader("X-Run-ID")
		if runID == "" {
			runID = logging.NewRunID()
		}
		ctx := logging.WithRunID(c.Request.Context(), runID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		logger.InfoWithContext(ctx, "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", time.Since(start).Seconds(),
		)
	}
}

func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", s.handleStatus)
		v1.GET("/locations", s.handleLocations)
	}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HTTPPort)

	if s.httpServer == nil {
		s.httpServer = &http.Server{
			Addr:              addr,
			Handler:           s.router,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	s.logger.Info("starting HTTP server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return &errors.ErrServerStart{Addr: addr, Err: err}
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return &errors.ErrServerShutdown{Err: err}
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusOK, gin.H{"last_run": nil})
		return
	}

	run, stages, err := s.runs.LastRun()
	if err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "run history read failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "run history unavailable"})
		return
	}
	if run == nil {
		c.JSON(http.StatusOK, gin.H{"last_run": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"last_run": run,
		"stages":   stages,
	})
}

// locationView is the redacted form of a location: provisioning state only,
// never the token itself.
type locationView struct {
	ID          string              `json:"id"`
	Provisioned bool                `json:"provisioned"`
	TokenError  *models.ErrorRecord `json:"token_error,omitempty"`
}

func (s *Server) handleLocations(c *gin.Context) {
	locations, err := s.tokens.LoadLocations()
	if err != nil {
		var notFound *errors.ErrStateNotFound
		if stderrors.As(err, &notFound) {
			c.JSON(http.StatusOK, gin.H{"locations": []locationView{}})
			return
		}
		s.logger.ErrorWithContext(c.Request.Context(), "locations read failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "locations unavailable"})
		return
	}

	views := make([]locationView, 0, len(locations))
	for i := range locations {
		loc := &locations[i]
		views = append(views, locationView{
			ID:          loc.ID,
			Provisioned: loc.AccessToken() != "",
			TokenError:  loc.TokenError(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"locations": views})
}
