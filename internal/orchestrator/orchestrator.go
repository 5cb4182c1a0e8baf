// Package orchestrator answers one business question: resolve the intent, fetch
// both boards, compute analytics and assemble the response.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"bi-agent/internal/analytics"
	"bi-agent/internal/common/logger"
	"bi-agent/internal/common/metrics"
	"bi-agent/internal/common/observability"
	"bi-agent/internal/datasource"
	"bi-agent/internal/models"
	"bi-agent/internal/tracer"
)

// Trace steps recorded by the orchestrator itself.
const (
	StepClarification    = "clarification"
	StepGetDeals         = "get_deals"
	StepGetWorkOrders    = "get_work_orders"
	StepError            = "error"
	StepAnalyticsCompute = "analytics_compute"
)

// State is a stage of the per-question state machine. It is only logged.
type State string

const (
	StateResolving  State = "resolving"
	StateClarifying State = "clarifying"
	StateFetching   State = "fetching"
	StateComputing  State = "computing"
	StateResponding State = "responding"
	StateFailed     State = "failed"
)

// IntentResolver turns a question into a ParsedQuery and records its own trace event.
type IntentResolver interface {
	Resolve(ctx context.Context, question string, tr *tracer.Tracer) models.ParsedQuery
}

type Orchestrator struct {
	resolver IntentResolver
	source   datasource.Source
	logger   logger.Logger
	obs      *observability.Observability
}

type Option func(*Orchestrator)

// WithObservability enables spans and OpenTelemetry question metrics.
func WithObservability(obs *observability.Observability) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

func New(resolver IntentResolver, source datasource.Source, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver: resolver,
		source:   source,
		logger:   log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Answer runs one question through the state machine. It never fails: fetch
// errors become an ErrorResponse and everything else degrades in place.
func (o *Orchestrator) Answer(ctx context.Context, question string) Result {
	start := time.Now()
	ctx, span := o.obs.StartSpan(ctx, "orchestrator.answer")

	tr := tracer.New()
	answer, intent := o.run(ctx, question, tr)

	outcome := answer.Outcome()
	metrics.QuestionsTotal.WithLabelValues(string(outcome), string(intent)).Inc()
	o.obs.RecordQuestion(ctx, string(outcome), string(intent), time.Since(start))

	span.SetAttributes(
		attribute.String("question.outcome", string(outcome)),
		attribute.String("question.intent", string(intent)),
		attribute.Int("trace.events", tr.Len()),
	)
	var spanErr error
	if e, ok := answer.(ErrorResponse); ok {
		spanErr = errors.New(e.Details)
	}
	observability.EndSpan(span, spanErr)

	return Result{Answer: answer, Trace: tr.Events()}
}

func (o *Orchestrator) run(ctx context.Context, question string, tr *tracer.Tracer) (Response, models.Intent) {
	o.transition(StateResolving, nil)
	parsed := o.resolver.Resolve(ctx, question, tr)

	fields := map[string]interface{}{
		"intent": string(parsed.Intent),
		"sector": parsed.Sector.String(),
		"source": string(parsed.Source),
	}

	if parsed.NeedsClarification {
		o.transition(StateClarifying, fields)
		tr.Record(StepClarification, "Missing timeframe for business question", 0, 0)
		q := parsed.ClarificationQuestion
		if q == "" {
			q = models.DefaultClarification
		}
		return newClarification(q), parsed.Intent
	}

	o.transition(StateFetching, fields)
	deals, workOrders, err := o.fetch(ctx, parsed.Sector, tr)
	if err != nil {
		fields["error"] = err
		o.transition(StateFailed, fields)
		tr.Record(StepError, "data_fetch_failed: "+err.Error(), 0, 0)
		return newFetchError(err.Error()), parsed.Intent
	}

	o.transition(StateComputing, fields)
	resp := compute(parsed, deals, workOrders)
	tr.Record(StepAnalyticsCompute, "intent="+string(parsed.Intent), 0, 0)

	o.transition(StateResponding, fields)
	return resp, parsed.Intent
}

// fetch loads both boards concurrently. Neither fetch cancels the other, so a failed
// work-order fetch still leaves a completed deals fetch in the trace. Events are
// recorded afterwards in a fixed order, deals first, and a deals error wins over a
// work-order error.
func (o *Orchestrator) fetch(ctx context.Context, sector models.Sector, tr *tracer.Tracer) (*models.DealTable, *models.WorkOrderTable, error) {
	ctx, span := o.obs.StartSpan(ctx, "orchestrator.fetch",
		attribute.String("backend", o.source.Name()),
		attribute.String("sector", sector.String()),
	)

	var (
		deals      *models.DealTable
		workOrders *models.WorkOrderTable
		dealsM     tracer.Measurement
		woM        tracer.Measurement
		dealsErr   error
		woErr      error
	)

	var g errgroup.Group
	g.Go(func() error {
		dealsM, dealsErr = tracer.Measure(func() (int, error) {
			var err error
			deals, err = o.source.FetchDeals(ctx, sector)
			return deals.Len(), err
		})
		return dealsErr
	})
	g.Go(func() error {
		woM, woErr = tracer.Measure(func() (int, error) {
			var err error
			workOrders, err = o.source.FetchWorkOrders(ctx, sector)
			return workOrders.Len(), err
		})
		return woErr
	})
	_ = g.Wait()

	detail := fmt.Sprintf("backend=%s, sector=%s", o.source.Name(), sector.String())

	if dealsErr != nil {
		observability.EndSpan(span, dealsErr)
		return nil, nil, dealsErr
	}
	tr.RecordMeasurement(StepGetDeals, detail, dealsM)
	if woErr != nil {
		observability.EndSpan(span, woErr)
		return nil, nil, woErr
	}
	tr.RecordMeasurement(StepGetWorkOrders, detail, woM)

	observability.EndSpan(span, nil)
	return deals, workOrders, nil
}

func compute(parsed models.ParsedQuery, deals *models.DealTable, workOrders *models.WorkOrderTable) AnalyticsResponse {
	pipe := analytics.PipelineSummarize(deals)
	recv := analytics.ReceivableSummarize(workOrders)
	overlap := analytics.CrossBoardOverlapCount(deals, workOrders)

	var (
		details   interface{}
		narrative string
	)

	switch parsed.Intent {
	case models.IntentPipeline:
		details = analytics.PipelineByStageStatus(deals)
		narrative = pipelineNarrative(parsed.Sector, pipe)
	case models.IntentSectorPerformance:
		perf := analytics.SectorBreakdown(deals, workOrders)
		details = perf
		narrative = sectorNarrative(parsed.Sector, perf)
	case models.IntentConversion:
		conv := analytics.ConversionRates(deals)
		details = conv
		narrative = conversionNarrative(parsed.Sector, conv)
	case models.IntentReceivables:
		risk := analytics.ReceivableRiskProfile(workOrders)
		details = risk
		narrative = receivablesNarrative(parsed.Sector, risk)
	default:
		details = OverviewDetails{
			Pipeline:          analytics.PipelineByStageStatus(deals),
			Conversion:        analytics.ConversionRates(deals),
			ReceivableRisk:    analytics.ReceivableRiskProfile(workOrders),
			SectorPerformance: analytics.SectorBreakdown(deals, workOrders),
		}
		narrative = overviewNarrative(parsed.Sector, pipe, recv, overlap)
	}

	caveats := make([]string, len(answerCaveats))
	copy(caveats, answerCaveats)

	return AnalyticsResponse{
		IntentParserSource: parsed.Source,
		Intent:             parsed.Intent,
		FinalAnswer:        narrative + plainCaveat,
		Summary:            summaryLine(parsed.Sector, pipe.Rows, workOrders.Len()),
		KeyMetrics: KeyMetrics{
			PipelineRows:        pipe.Rows,
			NegativeReceivables: recv.NegativeCount,
			CrossBoardOverlap:   overlap.OverlapCount,
		},
		Details:                details,
		Pipeline:               pipe,
		Receivables:            recv,
		CrossBoard:             overlap,
		Caveats:                caveats,
		NextQuestionSuggestion: answerSuggestion,
	}
}

func (o *Orchestrator) transition(state State, fields map[string]interface{}) {
	entry := map[string]interface{}{"state": string(state)}
	for k, v := range fields {
		entry[k] = v
	}
	if state == StateFailed {
		o.logger.Warn("question failed", entry)
		return
	}
	o.logger.Info("question state", entry)
}
