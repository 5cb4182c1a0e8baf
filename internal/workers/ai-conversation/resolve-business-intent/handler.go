package resolvebusinessintent

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"bi-agent/internal/common/errors"
	"bi-agent/internal/common/metrics"
	"bi-agent/internal/common/validation"
	"bi-agent/internal/models"
	"bi-agent/internal/tracer"
)

const (
	TaskType = "resolve-business-intent"
)

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["question"],
	"properties": {
		"question": {"type": "string", "minLength": 1, "maxLength": 2000}
	}
}`)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type IntentResolver interface {
	Resolve(ctx context.Context, question string, tr *tracer.Tracer) models.ParsedQuery
}

type Handler struct {
	config       *Config
	resolver     IntentResolver
	logger       Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(config *Config, resolver IntentResolver, log Logger) *Handler {
	l := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:       config,
		resolver:     resolver,
		logger:       l,
		errorHandler: errors.NewErrorHandler(l),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if result := inputSchema.ValidateBytes([]byte(job.Variables)); !result.Valid {
		h.failJob(client, job, errors.NewInvalidRequestError(result.Error()))
		return
	}
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, errors.NewInvalidRequestError("parse input: "+err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.failJob(client, job, errors.NewInternalError(err))
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.ErrCodeUpstreamCallFailed)).Inc()
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

// Execute resolves the question. Resolution never fails; the trace records which
// strategy answered.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, errors.NewInvalidRequestError("question must not be blank")
	}

	tr := tracer.New()
	parsed := h.resolver.Resolve(ctx, question, tr)

	h.logger.Info("intent resolved", map[string]interface{}{
		"intent":             string(parsed.Intent),
		"sector":             parsed.Sector.String(),
		"source":             string(parsed.Source),
		"needsClarification": parsed.NeedsClarification,
	})

	return &Output{ParsedQuery: parsed, Trace: tr.Events()}, nil
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.AsStandard(err).Code)).Inc()
	h.errorHandler.HandleJobError(context.Background(), client, job, err)
}
