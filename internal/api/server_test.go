package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bi-agent/internal/analytics"
	"bi-agent/internal/common/logger"
	"bi-agent/internal/orchestrator"
	"bi-agent/internal/tracer"
)

type stubAnswerer struct {
	questions []string
}

func (s *stubAnswerer) Answer(_ context.Context, question string) orchestrator.Result {
	s.questions = append(s.questions, question)
	tr := tracer.New()
	tr.Record("clarification", "Missing timeframe for business question", 0, 0)
	return orchestrator.Result{
		Answer: orchestrator.ClarificationResponse{
			ClarificationNeeded: true,
			Question:            "Which timeframe?",
			Caveats:             []string{"c"},
		},
		Trace: tr.Events(),
	}
}

type stubReadiness struct {
	err error
}

func (s stubReadiness) Ping(context.Context) error { return s.err }

func newTestServer(t *testing.T, ready error) (*stubAnswerer, http.Handler) {
	answerer := &stubAnswerer{}
	srv := NewServer(answerer, stubReadiness{err: ready}, logger.NewTestLogger(t))
	return answerer, srv.Handler()
}

func TestAsk_ReturnsAnswerAndTrace(t *testing.T) {
	answerer, h := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"  How is the pipeline this quarter?  "}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"How is the pipeline this quarter?"}, answerer.questions)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.NotEmpty(t, body["requestId"])
	assert.Equal(t, w.Header().Get(RequestIDHeader), body["requestId"])

	answer := body["answer"].(map[string]interface{})
	assert.Equal(t, true, answer["clarification_needed"])
	assert.Equal(t, "Which timeframe?", answer["question"])

	trace := body["trace"].([]interface{})
	require.Len(t, trace, 1)
	assert.Equal(t, "clarification", trace[0].(map[string]interface{})["step"])
}

func TestAsk_EchoesRequestID(t *testing.T) {
	_, h := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"pipeline"}`))
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	assert.Contains(t, w.Body.String(), `"requestId":"req-123"`)
}

func TestAsk_RejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"blank question", `{"question":"   "}`},
		{"empty question", `{"question":""}`},
		{"missing question", `{}`},
		{"wrong type", `{"question": 42}`},
		{"malformed json", `{"question":`},
		{"too long", `{"question":"` + strings.Repeat("a", 2001) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answerer, h := newTestServer(t, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"INVALID_REQUEST"`)
			assert.Empty(t, answerer.questions)
		})
	}
}

func TestAsk_RejectsOtherMethods(t *testing.T) {
	_, h := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ask", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestReady(t *testing.T) {
	t.Run("backend reachable", func(t *testing.T) {
		_, h := newTestServer(t, nil)

		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())
	})

	t.Run("backend down", func(t *testing.T) {
		_, h := newTestServer(t, stderrors.New("postgres: connection refused"))

		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "connection refused")
	})
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

type unencodableAnswerer struct{}

func (unencodableAnswerer) Answer(context.Context, string) orchestrator.Result {
	inf := math.Inf(1)
	return orchestrator.Result{
		Answer: orchestrator.AnalyticsResponse{
			Receivables: analytics.ReceivableSummary{Availability: analytics.Computed, TotalReceivable: &inf},
		},
	}
}

func TestAsk_UnencodableAnswerIsInternalError(t *testing.T) {
	h := NewServer(unencodableAnswerer{}, stubReadiness{}, logger.NewTestLogger(t)).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"overview all-time"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
	assert.Contains(t, body["details"], "unsupported value")
}
