// Package resolver turns a free-text question into a models.ParsedQuery.
//
// Strategies are tried in order and the first one that succeeds wins. The rule
// strategy never fails, so a Resolver built with New always produces a query.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"bi-agent/internal/common/logger"
	"bi-agent/internal/common/metrics"
	"bi-agent/internal/models"
	"bi-agent/internal/tracer"
)

const (
	StepLLMParse = "llm_intent_parse"
	StepFallback = "intent_parse_fallback"
)

// Strategy resolves a question or fails; failures hand over to the next strategy.
type Strategy interface {
	Source() models.ParserSource
	Resolve(ctx context.Context, question string) (models.ParsedQuery, error)
}

type Resolver struct {
	strategies []Strategy
	logger     logger.Logger
}

// New builds a resolver that tries primary strategies in order and falls back to
// the rule strategy.
func New(log logger.Logger, primary ...Strategy) *Resolver {
	strategies := make([]Strategy, 0, len(primary)+1)
	strategies = append(strategies, primary...)
	strategies = append(strategies, NewRuleStrategy())
	return &Resolver{strategies: strategies, logger: log}
}

// Resolve never fails. It records exactly one trace event: llm_intent_parse when the
// LLM strategy answered, intent_parse_fallback with the triggering error otherwise.
func (r *Resolver) Resolve(ctx context.Context, question string, tr *tracer.Tracer) models.ParsedQuery {
	var lastErr error
	for _, s := range r.strategies {
		q, err := s.Resolve(ctx, question)
		if err != nil {
			lastErr = err
			r.logger.Warn("intent strategy failed, falling back", map[string]interface{}{
				"source": string(s.Source()),
				"error":  err,
			})
			continue
		}

		q.Source = s.Source()
		r.trace(tr, q, lastErr)
		return q
	}

	// only reachable if every strategy, rules included, failed
	q := models.ParsedQuery{
		Intent:                models.IntentOverview,
		ClarificationQuestion: models.DefaultClarification,
		Source:                models.SourceRules,
	}
	r.trace(tr, q, lastErr)
	return q
}

func (r *Resolver) trace(tr *tracer.Tracer, q models.ParsedQuery, lastErr error) {
	metrics.IntentResolutions.WithLabelValues(string(q.Source)).Inc()

	if q.Source == models.SourceLLM {
		tr.Record(StepLLMParse, fmt.Sprintf("intent=%s, sector=%s, timeframe=%s",
			q.Intent, q.Sector, timeframeOrNone(q.Timeframe)), 0, 0)
		return
	}

	if lastErr == nil {
		lastErr = errors.New("no primary strategy configured")
	}
	tr.Record(StepFallback, fmt.Sprintf("intent=%s, sector=%s, reason=%v",
		q.Intent, q.Sector, lastErr), 0, 0)
}

func timeframeOrNone(tf string) string {
	if tf == "" {
		return "none"
	}
	return tf
}
