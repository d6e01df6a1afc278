package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/egvia-interpret-server/internal/domain"
	"github.com/egvia-interpret-server/internal/middleware"
	"github.com/egvia-interpret-server/internal/pipeline"
)

// Server represents the HTTP server
type Server struct {
	config       *domain.ServerConfig
	orchestrator *pipeline.Orchestrator
	logger       *logrus.Logger
	router       *gin.Engine
	server       *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(config *domain.ServerConfig, orchestrator *pipeline.Orchestrator, logger *logrus.Logger) *Server {
	if logger.GetLevel() == logrus.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware())
	router.Use(middleware.RequestID())

	server := &Server{
		config:       config,
		orchestrator: orchestrator,
		logger:       logger,
		router:       router,
	}
	server.setupRoutes()
	return server
}

// Router exposes the underlying handler, used by tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	v1 := s.router.Group("/v1")
	{
		v1.POST("/interpret", s.handleInterpret)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleInterpret runs one interpretation pipeline per request. Malformed
// requests are the only caller-visible 4xx; abstentions come back in-band
// as 200 responses.
func (s *Server) handleInterpret(c *gin.Context) {
	var req domain.InterpretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    domain.ErrInvalidRequest,
			"message": "request body is not a valid interpretation request",
			"details": err.Error(),
		})
		return
	}

	response, err := s.orchestrator.Run(c.Request.Context(), &req)
	if err != nil {
		if reqErr, ok := domain.AsRequestError(err); ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":       domain.ErrInvalidRequest,
				"message":    "request failed validation",
				"violations": reqErr.Violations,
			})
			return
		}
		s.logger.WithError(err).Error("Interpretation run failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    domain.ErrInternalServer,
			"message": "interpretation run failed",
		})
		return
	}

	c.JSON(http.StatusOK, response)
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
