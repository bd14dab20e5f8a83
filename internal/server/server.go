// Package server exposes the question-answering pipeline over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"k9/internal/graphstore"
	"k9/internal/pipeline"
)

// AskRequest is the POST /ask body.
type AskRequest struct {
	SessionID  string         `json:"session_id"`
	Question   string         `json:"question" binding:"required"`
	Enrichment map[string]any `json:"enrichment"`
}

// AskResponse is the POST /ask reply.
type AskResponse struct {
	SessionID       string                        `json:"session_id"`
	Answer          string                        `json:"answer"`
	Intent          string                        `json:"intent,omitempty"`
	Clarification   bool                          `json:"clarification,omitempty"`
	Reasoning       []string                      `json:"reasoning,omitempty"`
	Recommendations []*graphstore.Recommendations `json:"recommendations,omitempty"`
}

// Server wires the orchestrator behind a gin router.
type Server struct {
	orch    *pipeline.Orchestrator
	metrics *RequestMetrics
	logger  *zap.Logger
	version string
}

// New builds the server. reg may be nil to use the default Prometheus
// registry.
func New(orch *pipeline.Orchestrator, logger *zap.Logger, version string, reg prometheus.Registerer) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		orch:    orch,
		metrics: NewRequestMetrics(reg),
		logger:  logger,
		version: version,
	}
}

// Router registers the routes and returns the gin engine.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.health())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/ask", s.ask())
	return router
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("api listening", zap.String("addr", addr))
	return s.Router().Run(addr)
}

func (s *Server) health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.version})
	}
}

func (s *Server) ask() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
			return
		}

		start := time.Now()
		res, err := s.orch.Answer(c.Request.Context(), req.SessionID, req.Question, req.Enrichment)
		s.metrics.DurationSeconds.Observe(time.Since(start).Seconds())

		if err != nil {
			s.logger.Error("turn failed",
				zap.String("session", req.SessionID), zap.Error(err))
			s.metrics.RequestsTotal.WithLabelValues("unknown", "error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal execution error"})
			return
		}

		intent := "unknown"
		if res.Command != nil && res.Command.Intent != "" {
			intent = string(res.Command.Intent)
		}
		s.metrics.RequestsTotal.WithLabelValues(intent, "ok").Inc()
		if res.Clarification {
			s.metrics.ClarificationsTotal.Inc()
		}

		resp := AskResponse{
			SessionID:       res.SessionID,
			Answer:          res.Answer,
			Intent:          intent,
			Clarification:   res.Clarification,
			Recommendations: res.Recommendations,
		}
		if res.State != nil {
			resp.Reasoning = res.State.Reasoning
		}
		c.JSON(http.StatusOK, resp)
	}
}
