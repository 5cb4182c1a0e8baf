package resolvebusinessintent

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bi-agent/internal/common/config"
	"bi-agent/internal/common/errors"
	"bi-agent/internal/common/logger"
	"bi-agent/internal/models"
	"bi-agent/internal/resolver"
)

// workerLogger narrows the shared logger to this package's Logger.
type workerLogger struct {
	logger.Logger
}

func (w workerLogger) With(fields map[string]interface{}) Logger {
	return workerLogger{w.Logger.With(fields)}
}

type failingStrategy struct{}

func (failingStrategy) Source() models.ParserSource { return models.SourceLLM }

func (failingStrategy) Resolve(context.Context, string) (models.ParsedQuery, error) {
	return models.ParsedQuery{}, errors.NewConfigurationError("GEMINI_API_KEY is not set")
}

type fixedStrategy struct {
	q models.ParsedQuery
}

func (fixedStrategy) Source() models.ParserSource { return models.SourceLLM }

func (f fixedStrategy) Resolve(context.Context, string) (models.ParsedQuery, error) {
	return f.q, nil
}

func newHandler(t *testing.T, primary ...resolver.Strategy) *Handler {
	log := logger.NewTestLogger(t)
	return NewHandler(&Config{Timeout: time.Second}, resolver.New(log, primary...), workerLogger{log})
}

func TestHandler_Execute_RuleFallback(t *testing.T) {
	h := newHandler(t, failingStrategy{})

	out, err := h.Execute(context.Background(), &Input{Question: "What is the receivable risk in mining this quarter?"})
	require.NoError(t, err)

	assert.Equal(t, models.IntentReceivables, out.ParsedQuery.Intent)
	assert.Equal(t, models.SectorMining, out.ParsedQuery.Sector)
	assert.Equal(t, models.SourceRules, out.ParsedQuery.Source)
	assert.False(t, out.ParsedQuery.NeedsClarification)

	require.Len(t, out.Trace, 1)
	assert.Equal(t, resolver.StepFallback, out.Trace[0].Step)
	assert.Contains(t, out.Trace[0].Detail, "GEMINI_API_KEY is not set")
}

func TestHandler_Execute_LLMAnswer(t *testing.T) {
	h := newHandler(t, fixedStrategy{q: models.ParsedQuery{
		Intent:    models.IntentConversion,
		Sector:    models.SectorRenewables,
		Timeframe: "last quarter",
	}})

	out, err := h.Execute(context.Background(), &Input{Question: "renewables conversion last quarter"})
	require.NoError(t, err)

	assert.Equal(t, models.SourceLLM, out.ParsedQuery.Source)
	require.Len(t, out.Trace, 1)
	assert.Equal(t, resolver.StepLLMParse, out.Trace[0].Step)
	assert.Equal(t, "intent=conversion, sector=renewables, timeframe=last quarter", out.Trace[0].Detail)
}

func TestHandler_Execute_NeedsClarification(t *testing.T) {
	h := newHandler(t)

	out, err := h.Execute(context.Background(), &Input{Question: "How is our pipeline?"})
	require.NoError(t, err)

	assert.True(t, out.ParsedQuery.NeedsClarification)
	assert.Equal(t, models.DefaultClarification, out.ParsedQuery.ClarificationQuestion)
}

func TestHandler_Execute_BlankQuestion(t *testing.T) {
	h := newHandler(t)

	_, err := h.Execute(context.Background(), &Input{Question: "   "})

	require.Error(t, err)
	var stdErr *errors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, errors.ErrCodeInvalidRequest, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestOutput_JobVariables(t *testing.T) {
	h := newHandler(t)

	out, err := h.Execute(context.Background(), &Input{Question: "overview for all-time"})
	require.NoError(t, err)

	raw, err := json.Marshal(out)
	require.NoError(t, err)

	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &vars))

	parsed := vars["parsedQuery"].(map[string]interface{})
	assert.Equal(t, "overview", parsed["intent"])
	assert.Nil(t, parsed["sector"])
	assert.Equal(t, "rules", parsed["source"])
	assert.Len(t, vars["trace"], 1)
}

func TestInputSchema(t *testing.T) {
	assert.True(t, inputSchema.ValidateBytes([]byte(`{"question":"q"}`)).Valid)
	assert.False(t, inputSchema.ValidateBytes([]byte(`{"question":""}`)).Valid)
	assert.False(t, inputSchema.ValidateBytes([]byte(`{"q":"x"}`)).Valid)
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 30*time.Second, LoadConfig(config.WorkerConfig{}).Timeout)
	assert.Equal(t, 5*time.Second, LoadConfig(config.WorkerConfig{Timeout: 5000}).Timeout)
}
