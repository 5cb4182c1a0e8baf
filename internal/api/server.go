// Package api exposes the agent over HTTP.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bi-agent/internal/common/errors"
	"bi-agent/internal/common/logger"
	"bi-agent/internal/common/validation"
	"bi-agent/internal/orchestrator"
	"bi-agent/internal/tracer"
)

const (
	RequestIDHeader = "X-Request-ID"

	maxBodyBytes = 64 << 10
	readyTimeout = 5 * time.Second
)

var askSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["question"],
	"properties": {
		"question": {"type": "string", "maxLength": 2000}
	}
}`)

// Answerer runs one question end to end.
type Answerer interface {
	Answer(ctx context.Context, question string) orchestrator.Result
}

// ReadinessChecker reports whether the data backend can serve fetches.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	answerer Answerer
	ready    ReadinessChecker
	logger   logger.Logger
}

func NewServer(answerer Answerer, ready ReadinessChecker, log logger.Logger) *Server {
	return &Server{
		answerer: answerer,
		ready:    ready,
		logger:   log.With(map[string]interface{}{"component": "api"}),
	}
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	RequestID string                `json:"requestId"`
	Answer    orchestrator.Response `json:"answer"`
	Trace     []tracer.Event        `json:"trace"`
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	return s.withRequestID(mux)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	requestID := w.Header().Get(RequestIDHeader)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.NewInvalidRequestError("read body: "+err.Error()))
		return
	}

	if result := askSchema.ValidateBytes(body); !result.Valid {
		s.writeError(w, http.StatusBadRequest, errors.NewInvalidRequestError(result.Error()))
		return
	}

	var req askRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.NewInvalidRequestError(err.Error()))
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		s.writeError(w, http.StatusBadRequest, errors.NewInvalidRequestError("question must not be blank"))
		return
	}

	result := s.answerer.Answer(r.Context(), question)

	s.logger.Info("question answered", map[string]interface{}{
		"requestId":   requestID,
		"outcome":     string(result.Answer.Outcome()),
		"traceEvents": len(result.Trace),
	})

	s.writeJSON(w, http.StatusOK, askResponse{
		RequestID: requestID,
		Answer:    result.Answer,
		Trace:     result.Trace,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.ready.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", map[string]interface{}{"error": err})
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// withRequestID echoes the caller's request id or mints one.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		s.logger.Debug("request", map[string]interface{}{
			"requestId": id,
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    sw.status,
			"ms":        time.Since(start).Milliseconds(),
		})
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// writeJSON encodes payload before any header is sent, so an unencodable payload
// becomes a 500 instead of a truncated 200.
func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("response encoding failed", map[string]interface{}{
			"error":  err,
			"status": status,
		})
		body, _ = json.Marshal(map[string]interface{}{
			"error":   "Unexpected error",
			"code":    string(errors.ErrCodeInternal),
			"details": err.Error(),
		})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func (s *Server) writeError(w http.ResponseWriter, status int, err *errors.StandardError) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   err.Message,
		"code":    string(err.Code),
		"details": err.Details,
	})
}
