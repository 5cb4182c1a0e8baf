package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "bi-agent/internal/common/errors"
	"bi-agent/internal/common/logger"
	"bi-agent/internal/common/observability"
	"bi-agent/internal/models"
	"bi-agent/internal/resolver"
	"bi-agent/internal/tracer"
)

// ============================================================================
// Test Helpers
// ============================================================================

type fakeSource struct {
	mu         sync.Mutex
	deals      *models.DealTable
	workOrders *models.WorkOrderTable
	dealsErr   error
	woErr      error
	sectors    []models.Sector
	calls      int
}

func (f *fakeSource) Name() string { return "local" }

func (f *fakeSource) FetchDeals(ctx context.Context, sector models.Sector) (*models.DealTable, error) {
	f.mu.Lock()
	f.calls++
	f.sectors = append(f.sectors, sector)
	f.mu.Unlock()
	if f.dealsErr != nil {
		return nil, f.dealsErr
	}
	return f.deals, nil
}

func (f *fakeSource) FetchWorkOrders(ctx context.Context, sector models.Sector) (*models.WorkOrderTable, error) {
	f.mu.Lock()
	f.calls++
	f.sectors = append(f.sectors, sector)
	f.mu.Unlock()
	if f.woErr != nil {
		return nil, f.woErr
	}
	return f.workOrders, nil
}

func newFakeSource() *fakeSource {
	deals := &models.DealTable{
		Columns: models.RequiredDealColumns,
		Rows: []models.Deal{
			{Name: "A", Status: models.DealStatusWon, Stage: "S1", Sector: "Mining"},
			{Name: "B", Status: models.DealStatusOpen, Stage: "S1", Sector: "Mining"},
			{Name: "C", Status: models.DealStatusDead, Stage: "S2", Sector: "Renewables"},
			{Name: "D", Status: models.DealStatusOpen, Stage: "S2", Sector: "Mining"},
		},
	}
	workOrders := &models.WorkOrderTable{
		Columns: models.RequiredWorkOrderColumns,
		Rows: []models.WorkOrder{
			{DealName: "A", Sector: "Mining", AmountReceivable: "1,000"},
			{DealName: "A", Sector: "Mining", AmountReceivable: "-50"},
			{DealName: "Z", Sector: "Renewables", AmountReceivable: "200"},
		},
	}
	return &fakeSource{deals: deals, workOrders: workOrders}
}

func newTestOrchestrator(t *testing.T, src *fakeSource) *Orchestrator {
	t.Helper()
	log := logger.NewTestLogger(t)
	return New(resolver.New(log), src, log)
}

func steps(events []tracer.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Step
	}
	return out
}

func toMap(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

// ============================================================================
// Tests
// ============================================================================

func TestAnswer_Clarification(t *testing.T) {
	src := newFakeSource()
	result := newTestOrchestrator(t, src).Answer(context.Background(), "How is our pipeline looking?")

	clar, ok := result.Answer.(ClarificationResponse)
	require.True(t, ok, "expected a clarification, got %T", result.Answer)
	assert.True(t, clar.ClarificationNeeded)
	assert.Equal(t, models.DefaultClarification, clar.Question)
	assert.Equal(t, []string{"I can answer now, but timeframe assumptions may be wrong."}, clar.Caveats)
	assert.Equal(t, 0, src.calls)

	assert.Equal(t, []string{resolver.StepFallback, StepClarification}, steps(result.Trace))
	last := result.Trace[1]
	assert.Equal(t, "Missing timeframe for business question", last.Detail)
	assert.Equal(t, 0, *last.Rows)
	assert.Equal(t, int64(0), *last.MS)

	m := toMap(t, result.Answer)
	assert.Equal(t, true, m["clarification_needed"])
}

func TestAnswer_FetchFailure(t *testing.T) {
	src := newFakeSource()
	src.dealsErr = apperrors.NewDataFetchError("monday", errors.New("MONDAY_API_TOKEN is not set"))

	result := newTestOrchestrator(t, src).Answer(context.Background(), "pipeline by stage this quarter")

	errResp, ok := result.Answer.(ErrorResponse)
	require.True(t, ok, "expected an error response, got %T", result.Answer)
	assert.False(t, errResp.ClarificationNeeded)
	assert.Equal(t, "Data fetch failed. Check monday token, board IDs, and column mappings.", errResp.Error)
	assert.Contains(t, errResp.Details, "MONDAY_API_TOKEN is not set")
	assert.Equal(t, "Try local mode or verify monday configuration and retry.", errResp.NextQuestionSuggestion)
	assert.Equal(t, []string{"No analytics were computed because live data access failed."}, errResp.Caveats)

	assert.Equal(t, []string{resolver.StepFallback, StepError}, steps(result.Trace))
	assert.True(t, strings.HasPrefix(result.Trace[1].Detail, "data_fetch_failed: "))
	assert.Contains(t, result.Trace[1].Detail, "MONDAY_API_TOKEN is not set")

	m := toMap(t, result.Answer)
	assert.Equal(t, false, m["clarification_needed"])
	assert.IsType(t, "", m["details"])
	assert.NotContains(t, m, "pipeline")
	assert.NotContains(t, m, "receivables")
	assert.NotContains(t, m, "key_metrics")
}

func TestAnswer_WorkOrderFailureKeepsDealsEvent(t *testing.T) {
	src := newFakeSource()
	src.woErr = errors.New("work order board unavailable")

	result := newTestOrchestrator(t, src).Answer(context.Background(), "pipeline by stage this quarter")

	_, ok := result.Answer.(ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, []string{resolver.StepFallback, StepGetDeals, StepError}, steps(result.Trace))
	assert.Equal(t, "data_fetch_failed: work order board unavailable", result.Trace[2].Detail)
}

// slowDealsSource finishes the deals fetch only after the work-order fetch has failed.
type slowDealsSource struct {
	*fakeSource
	woFailed chan struct{}
}

func (s *slowDealsSource) FetchDeals(ctx context.Context, sector models.Sector) (*models.DealTable, error) {
	<-s.woFailed
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(50 * time.Millisecond):
	}
	return s.fakeSource.FetchDeals(ctx, sector)
}

func (s *slowDealsSource) FetchWorkOrders(ctx context.Context, sector models.Sector) (*models.WorkOrderTable, error) {
	defer close(s.woFailed)
	return nil, errors.New("work order board unavailable")
}

func TestAnswer_WorkOrderFailureDoesNotCancelDealsFetch(t *testing.T) {
	src := &slowDealsSource{fakeSource: newFakeSource(), woFailed: make(chan struct{})}
	log := logger.NewTestLogger(t)
	orch := New(resolver.New(log), src, log)

	result := orch.Answer(context.Background(), "pipeline by stage this quarter")

	_, ok := result.Answer.(ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, []string{resolver.StepFallback, StepGetDeals, StepError}, steps(result.Trace))
	assert.Equal(t, 4, *result.Trace[1].Rows)
	assert.Equal(t, "data_fetch_failed: work order board unavailable", result.Trace[2].Detail)
}

func TestAnswer_ExtremeReceivableKeepsResponseEncodable(t *testing.T) {
	src := newFakeSource()
	src.workOrders.Rows = append(src.workOrders.Rows,
		models.WorkOrder{DealName: "B", Sector: "Mining", AmountReceivable: "1e400"},
		models.WorkOrder{DealName: "C", Sector: "Mining", AmountReceivable: "1e9999999"},
	)

	result := newTestOrchestrator(t, src).Answer(context.Background(), "all-time overview")

	resp, ok := result.Answer.(AnalyticsResponse)
	require.True(t, ok, "expected analytics, got %T", result.Answer)
	assert.Contains(t, resp.FinalAnswer, "total receivables 1150.00")

	_, err := json.Marshal(result)
	require.NoError(t, err)
}

func TestAnswer_Overview(t *testing.T) {
	src := newFakeSource()
	result := newTestOrchestrator(t, src).Answer(context.Background(), "Give me the big picture")

	resp, ok := result.Answer.(AnalyticsResponse)
	require.True(t, ok, "expected analytics, got %T", result.Answer)
	assert.Equal(t, models.IntentOverview, resp.Intent)
	assert.Equal(t, models.SourceRules, resp.IntentParserSource)
	assert.Equal(t,
		"Overview across all sectors: 4 deals, total receivables 1150.00, and 1 cross-board linked deals."+
			" Note: results may be affected by missing or inconsistent source data.",
		resp.FinalAnswer)
	assert.Equal(t, "Analyzed 4 deals and 3 work orders", resp.Summary)
	assert.Equal(t, 4, resp.KeyMetrics.PipelineRows)
	require.NotNil(t, resp.KeyMetrics.NegativeReceivables)
	assert.Equal(t, 1, *resp.KeyMetrics.NegativeReceivables)
	assert.Equal(t, 1, resp.KeyMetrics.CrossBoardOverlap)
	assert.Equal(t, "Do you want this split by owner or by deal stage?", resp.NextQuestionSuggestion)
	assert.Len(t, resp.Caveats, 2)

	m := toMap(t, resp)
	details, ok := m["details"].(map[string]interface{})
	require.True(t, ok)
	for _, key := range []string{"pipeline", "conversion", "receivable_risk", "sector_performance"} {
		assert.Contains(t, details, key)
	}
	for _, key := range []string{"pipeline", "receivables", "cross_board", "key_metrics", "summary"} {
		assert.Contains(t, m, key)
	}

	assert.Equal(t,
		[]string{resolver.StepFallback, StepGetDeals, StepGetWorkOrders, StepAnalyticsCompute},
		steps(result.Trace))
	assert.Equal(t, "backend=local, sector=none", result.Trace[1].Detail)
	assert.Equal(t, 4, *result.Trace[1].Rows)
	assert.Equal(t, 3, *result.Trace[2].Rows)
	assert.Equal(t, "intent=overview", result.Trace[3].Detail)
}

func TestAnswer_IntentNarratives(t *testing.T) {
	const caveat = " Note: results may be affected by missing or inconsistent source data."

	tests := []struct {
		name      string
		question  string
		intent    models.Intent
		narrative string
		details   interface{}
	}{
		{
			name:      "pipeline",
			question:  "pipeline by stage this quarter",
			intent:    models.IntentPipeline,
			narrative: "Pipeline across all sectors has 4 deals: 1 won, 2 open, and 1 dead.",
		},
		{
			name:      "conversion",
			question:  "what is our win rate this quarter",
			intent:    models.IntentConversion,
			narrative: "Conversion across all sectors: win rate 25.0%, dead rate 25.0%, open rate 50.0%.",
		},
		{
			name:      "sector performance",
			question:  "which sector did best this year",
			intent:    models.IntentSectorPerformance,
			narrative: "Sector performance across all sectors is computed from deals and work orders. Top sector by deal volume: Mining.",
		},
		{
			name:      "receivables scoped to a sector",
			question:  "outstanding receivables in mining this quarter",
			intent:    models.IntentReceivables,
			narrative: "Receivable risk for Mining shows 1 negative receivable rows and 1 high-outstanding rows.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			result := newTestOrchestrator(t, src).Answer(context.Background(), tt.question)

			resp, ok := result.Answer.(AnalyticsResponse)
			require.True(t, ok, "expected analytics, got %T", result.Answer)
			assert.Equal(t, tt.intent, resp.Intent)
			assert.Equal(t, tt.narrative+caveat, resp.FinalAnswer)
			assert.Equal(t, "intent="+string(tt.intent), result.Trace[len(result.Trace)-1].Detail)
		})
	}
}

func TestAnswer_SectorIsPassedToSource(t *testing.T) {
	src := newFakeSource()
	result := newTestOrchestrator(t, src).Answer(context.Background(), "pipeline in renewables this quarter")

	resp, ok := result.Answer.(AnalyticsResponse)
	require.True(t, ok)
	assert.Equal(t, []models.Sector{models.SectorRenewables, models.SectorRenewables}, src.sectors)
	assert.Equal(t, "Analyzed 4 deals and 3 work orders for Renewables", resp.Summary)
	assert.True(t, strings.HasPrefix(resp.FinalAnswer, "Pipeline for Renewables has"))
	assert.Equal(t, "backend=local, sector=renewables", result.Trace[1].Detail)
}

func TestAnswer_ReceivablesNotComputable(t *testing.T) {
	src := newFakeSource()
	src.workOrders = &models.WorkOrderTable{Columns: []string{models.ColWODealName}}

	result := newTestOrchestrator(t, src).Answer(context.Background(), "outstanding collection this quarter")

	resp, ok := result.Answer.(AnalyticsResponse)
	require.True(t, ok)
	assert.Nil(t, resp.KeyMetrics.NegativeReceivables)
	assert.Contains(t, resp.FinalAnswer, "shows n/a negative receivable rows and n/a high-outstanding rows")

	m := toMap(t, resp)
	assert.Nil(t, m["key_metrics"].(map[string]interface{})["negative_receivables"])
}

func TestAnswer_EmptyTables(t *testing.T) {
	src := newFakeSource()
	src.deals = &models.DealTable{Columns: models.RequiredDealColumns}
	src.workOrders = &models.WorkOrderTable{Columns: models.RequiredWorkOrderColumns}

	result := newTestOrchestrator(t, src).Answer(context.Background(), "which sector did best this year")

	resp, ok := result.Answer.(AnalyticsResponse)
	require.True(t, ok)
	assert.Contains(t, resp.FinalAnswer, "Top sector by deal volume: N/A.")
	assert.Equal(t, "Analyzed 0 deals and 0 work orders", resp.Summary)
}

func TestAnswer_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	obs := observability.NewWithRegisterer("orchestrator-test", prometheus.NewRegistry(), sdktrace.WithSpanProcessor(recorder))
	defer obs.Shutdown()

	log := logger.NewNoOpLogger()
	o := New(resolver.New(log), newFakeSource(), log, WithObservability(obs))
	o.Answer(context.Background(), "pipeline this quarter")

	names := make([]string, 0)
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"orchestrator.fetch", "orchestrator.answer"}, names)
}
