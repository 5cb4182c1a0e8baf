package answerbusinessquestion

import (
	"bi-agent/internal/orchestrator"
	"bi-agent/internal/tracer"
)

type Input struct {
	Question string `json:"question"`
}

// Output becomes the job's result variables. Outcome lets a BPMN gateway branch
// on clarification, error or answered without inspecting the answer body.
type Output struct {
	Outcome string                `json:"outcome"`
	Answer  orchestrator.Response `json:"answer"`
	Trace   []tracer.Event        `json:"trace"`
}
