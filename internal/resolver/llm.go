package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "bi-agent/internal/common/errors"
	"bi-agent/internal/common/gemini"
	"bi-agent/internal/models"
)

const systemInstruction = "You are an intent parser for a BI agent. Return ONLY valid JSON with keys: " +
	"intent, sector, timeframe, needs_clarification, clarification_question. " +
	"intent must be one of: pipeline, receivables, conversion, sector_performance, overview. " +
	"sector must be one of: mining, renewables, railways, powerline, construction, others, or null. " +
	"If timeframe is missing for a business summary question, set needs_clarification=true " +
	"and provide a short clarification_question."

// TextGenerator is the upstream the LLM strategy talks to; *gemini.Client satisfies it.
type TextGenerator interface {
	CheckConfigured() error
	GenerateText(ctx context.Context, p gemini.Prompt) (string, error)
}

// LLMStrategy asks a text-generation model for the intent JSON. It makes exactly one
// call and never retries; any failure hands over to the next strategy.
type LLMStrategy struct {
	generator TextGenerator
}

func NewLLMStrategy(generator TextGenerator) *LLMStrategy {
	return &LLMStrategy{generator: generator}
}

func (*LLMStrategy) Source() models.ParserSource {
	return models.SourceLLM
}

func (s *LLMStrategy) Resolve(ctx context.Context, question string) (models.ParsedQuery, error) {
	if s.generator == nil {
		return models.ParsedQuery{}, apperrors.NewConfigurationError("no text generator configured")
	}
	if err := s.generator.CheckConfigured(); err != nil {
		return models.ParsedQuery{}, err
	}

	text, err := s.generator.GenerateText(ctx, gemini.Prompt{
		SystemInstruction: systemInstruction,
		UserText:          "Question: " + question,
		Temperature:       0,
		JSONResponse:      true,
	})
	if err != nil {
		return models.ParsedQuery{}, err
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &payload); err != nil || payload == nil {
		return models.ParsedQuery{}, apperrors.NewUpstreamFormatError(gemini.ServiceName,
			fmt.Sprintf("model reply is not a JSON object: %.120s", text))
	}

	q := CoercePayload(payload)
	q.Source = models.SourceLLM
	return q, nil
}
