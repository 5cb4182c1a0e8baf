package orchestrator

import (
	"bi-agent/internal/analytics"
	"bi-agent/internal/models"
	"bi-agent/internal/tracer"
)

// Outcome labels which terminal state produced a response.
type Outcome string

const (
	OutcomeClarification Outcome = "clarification"
	OutcomeError         Outcome = "error"
	OutcomeAnswered      Outcome = "answered"
)

// Response is one of ClarificationResponse, ErrorResponse or AnalyticsResponse.
type Response interface {
	Outcome() Outcome
}

// Result pairs the answer with the trace of the request that produced it.
type Result struct {
	Answer Response       `json:"answer"`
	Trace  []tracer.Event `json:"trace"`
}

type ClarificationResponse struct {
	ClarificationNeeded bool     `json:"clarification_needed"`
	Question            string   `json:"question"`
	Caveats             []string `json:"caveats"`
}

func (ClarificationResponse) Outcome() Outcome { return OutcomeClarification }

type ErrorResponse struct {
	ClarificationNeeded    bool     `json:"clarification_needed"`
	Error                  string   `json:"error"`
	Details                string   `json:"details"`
	NextQuestionSuggestion string   `json:"next_question_suggestion"`
	Caveats                []string `json:"caveats"`
}

func (ErrorResponse) Outcome() Outcome { return OutcomeError }

// KeyMetrics are the headline numbers shown above every answer.
// NegativeReceivables is null when the receivable column was not computable.
type KeyMetrics struct {
	PipelineRows        int  `json:"pipeline_rows"`
	NegativeReceivables *int `json:"negative_receivables"`
	CrossBoardOverlap   int  `json:"cross_board_overlap"`
}

// OverviewDetails carries every intent-specific analytic at once.
type OverviewDetails struct {
	Pipeline          analytics.PipelineBreakdown `json:"pipeline"`
	Conversion        analytics.ConversionMetrics `json:"conversion"`
	ReceivableRisk    analytics.ReceivableRisk    `json:"receivable_risk"`
	SectorPerformance analytics.SectorPerformance `json:"sector_performance"`
}

// AnalyticsResponse is the full answer. Details holds the intent-shaped result:
// PipelineBreakdown, SectorPerformance, ConversionMetrics, ReceivableRisk or
// OverviewDetails.
type AnalyticsResponse struct {
	ClarificationNeeded    bool                        `json:"clarification_needed"`
	IntentParserSource     models.ParserSource         `json:"intent_parser_source"`
	Intent                 models.Intent               `json:"intent"`
	FinalAnswer            string                      `json:"final_answer"`
	Summary                string                      `json:"summary"`
	KeyMetrics             KeyMetrics                  `json:"key_metrics"`
	Details                interface{}                 `json:"details"`
	Pipeline               analytics.PipelineSummary   `json:"pipeline"`
	Receivables            analytics.ReceivableSummary `json:"receivables"`
	CrossBoard             analytics.CrossBoardOverlap `json:"cross_board"`
	Caveats                []string                    `json:"caveats"`
	NextQuestionSuggestion string                      `json:"next_question_suggestion"`
}

func (AnalyticsResponse) Outcome() Outcome { return OutcomeAnswered }

const (
	clarificationCaveat = "I can answer now, but timeframe assumptions may be wrong."

	fetchFailedMessage    = "Data fetch failed. Check monday token, board IDs, and column mappings."
	fetchFailedSuggestion = "Try local mode or verify monday configuration and retry."
	fetchFailedCaveat     = "No analytics were computed because live data access failed."

	answerSuggestion = "Do you want this split by owner or by deal stage?"
)

var answerCaveats = []string{
	"Data includes missing values and flagged anomalies.",
	"Close dates and deal values are sparse in parts of deals data.",
}

func newClarification(question string) ClarificationResponse {
	return ClarificationResponse{
		ClarificationNeeded: true,
		Question:            question,
		Caveats:             []string{clarificationCaveat},
	}
}

func newFetchError(details string) ErrorResponse {
	return ErrorResponse{
		Error:                  fetchFailedMessage,
		Details:                details,
		NextQuestionSuggestion: fetchFailedSuggestion,
		Caveats:                []string{fetchFailedCaveat},
	}
}
