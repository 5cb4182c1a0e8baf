package resolvebusinessintent

import (
	"bi-agent/internal/models"
	"bi-agent/internal/tracer"
)

type Input struct {
	Question string `json:"question"`
}

type Output struct {
	ParsedQuery models.ParsedQuery `json:"parsedQuery"`
	Trace       []tracer.Event     `json:"trace"`
}
