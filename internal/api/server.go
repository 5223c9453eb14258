package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/llmgate/llmgate/internal/config"
	"github.com/llmgate/llmgate/internal/constant"
)

// Server is the HTTP front door. One handler per inbound protocol, all
// delegating to the orchestrator.
type Server struct {
	orchestrator *Orchestrator
	engine       *gin.Engine
	httpServer   *http.Server
}

// NewServer builds the gin engine and registers the protocol routes.
func NewServer(cfg *config.Config, orchestrator *Orchestrator) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		orchestrator: orchestrator,
		engine:       engine,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: engine,
		},
	}

	engine.POST("/v1/chat/completions", s.handleOpenAIChat)
	engine.POST("/v1/responses", s.handleOpenAIResponses)
	engine.POST("/v1/messages", s.handleClaudeMessages)
	engine.GET("/v1/models", s.handleOpenAIModels)
	engine.GET("/v1beta/models", s.handleGeminiModels)
	engine.POST("/v1beta/models/:action", s.handleGemini)
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return s
}

// Run starts listening; it blocks until the server stops.
func (s *Server) Run() error {
	log.Infof("API server listening on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleOpenAIChat(c *gin.Context) {
	s.handleCompletion(c, constant.ProtocolOpenAI, "", false)
}

func (s *Server) handleOpenAIResponses(c *gin.Context) {
	s.handleCompletion(c, constant.ProtocolOpenAIResponses, "", false)
}

func (s *Server) handleClaudeMessages(c *gin.Context) {
	s.handleCompletion(c, constant.ProtocolClaude, "", false)
}

// handleGemini dispatches /v1beta/models/{model}:{method}. Gin sees the
// whole "{model}:{method}" segment as one parameter.
func (s *Server) handleGemini(c *gin.Context) {
	action := c.Param("action")
	model, method, ok := strings.Cut(action, ":")
	if !ok {
		writeError(c, constant.ProtocolGemini, http.StatusNotFound, fmt.Errorf("unknown action %q", action))
		return
	}
	switch method {
	case "generateContent":
		s.handleCompletion(c, constant.ProtocolGemini, model, c.Query("alt") == "sse")
	case "streamGenerateContent":
		s.handleCompletion(c, constant.ProtocolGemini, model, true)
	default:
		writeError(c, constant.ProtocolGemini, http.StatusNotFound, fmt.Errorf("unsupported method %q", method))
	}
}

// handleCompletion is the shared request path. For Gemini the model and
// stream flag come from the URL; everyone else carries them in the body.
func (s *Server) handleCompletion(c *gin.Context, protocol, pathModel string, pathStream bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, protocol, http.StatusBadRequest, fmt.Errorf("read request body: %w", err))
		return
	}

	model := pathModel
	stream := pathStream
	if protocol != constant.ProtocolGemini {
		model = gjson.GetBytes(body, "model").String()
		stream = gjson.GetBytes(body, "stream").Bool()
	}
	if model == "" {
		writeError(c, protocol, http.StatusBadRequest, fmt.Errorf("missing model"))
		return
	}

	if stream {
		s.streamCompletion(c, protocol, model, body)
		return
	}

	payload, status, err := s.orchestrator.Complete(c.Request.Context(), protocol, model, body)
	if err != nil {
		writeError(c, protocol, status, err)
		return
	}
	c.Data(http.StatusOK, "application/json", payload)
}

func (s *Server) streamCompletion(c *gin.Context, protocol, model string, body []byte) {
	events, errs := s.orchestrator.CompleteStream(c.Request.Context(), protocol, model, body)

	started := false
	flusher, _ := c.Writer.(http.Flusher)
	for event := range events {
		if !started {
			started = true
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Writer.WriteHeader(http.StatusOK)
		}
		_, _ = c.Writer.WriteString(event)
		if flusher != nil {
			flusher.Flush()
		}
	}

	if streamErr := <-errs; streamErr != nil {
		if !started {
			writeError(c, protocol, streamErr.StatusCode, streamErr.Err)
			return
		}
		// Headers are gone; the best we can do is an error event.
		_, _ = c.Writer.WriteString(errorEvent(protocol, streamErr.Err))
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Server) handleOpenAIModels(c *gin.Context) {
	s.handleModels(c, constant.ProtocolOpenAI)
}

func (s *Server) handleGeminiModels(c *gin.Context) {
	s.handleModels(c, constant.ProtocolGemini)
}

func (s *Server) handleModels(c *gin.Context, protocol string) {
	payload, err := s.orchestrator.ListModels(c.Request.Context(), protocol)
	if err != nil {
		writeError(c, protocol, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "application/json", payload)
}

func writeError(c *gin.Context, protocol string, status int, err error) {
	switch protocol {
	case constant.ProtocolClaude:
		c.JSON(status, gin.H{
			"type": "error",
			"error": gin.H{
				"type":    claudeErrorType(status),
				"message": err.Error(),
			},
		})
	case constant.ProtocolGemini:
		c.JSON(status, gin.H{
			"error": gin.H{
				"code":    status,
				"message": err.Error(),
				"status":  geminiErrorStatus(status),
			},
		})
	default:
		c.JSON(status, gin.H{
			"error": gin.H{
				"message": err.Error(),
				"type":    "api_error",
				"code":    status,
			},
		})
	}
}

// errorEvent formats a mid-stream failure in the caller's dialect.
func errorEvent(protocol string, err error) string {
	quoted := strings.ReplaceAll(err.Error(), `"`, `\"`)
	switch protocol {
	case constant.ProtocolClaude:
		return fmt.Sprintf("event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"api_error\",\"message\":\"%s\"}}\n\n", quoted)
	default:
		return fmt.Sprintf("data: {\"error\":{\"message\":\"%s\",\"type\":\"api_error\"}}\n\n", quoted)
	}
}

func claudeErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request_error"
	case http.StatusUnauthorized:
		return "authentication_error"
	case http.StatusNotFound:
		return "not_found_error"
	case http.StatusTooManyRequests:
		return "rate_limit_error"
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return "overloaded_error"
	default:
		return "api_error"
	}
}

func geminiErrorStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}
