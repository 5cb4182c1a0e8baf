package answerbusinessquestion

import (
	"context"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"bi-agent/internal/common/errors"
	"bi-agent/internal/common/metrics"
	"bi-agent/internal/common/observability"
	"bi-agent/internal/common/validation"
	"bi-agent/internal/orchestrator"
)

const (
	TaskType = "answer-business-question"
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

// Answerer runs one question through resolve, fetch and compute.
type Answerer interface {
	Answer(ctx context.Context, question string) orchestrator.Result
}

type Handler struct {
	config       *Config
	answerer     Answerer
	obs          *observability.Observability
	logger       Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(config *Config, answerer Answerer, obs *observability.Observability, log Logger) *Handler {
	l := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:       config,
		answerer:     answerer,
		obs:          obs,
		logger:       l,
		errorHandler: errors.NewErrorHandler(l),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err, start)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err, start)
		return
	}

	if err := h.completeJob(ctx, client, job, output); err != nil {
		h.failJob(ctx, client, job, err, start)
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	result := inputSchema.ValidateBytes([]byte(job.Variables))
	if !result.Valid {
		return nil, errors.NewInvalidRequestError(result.Error())
	}

	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidRequestError("parse job variables: " + err.Error())
	}
	question, _ := variables["question"].(string)

	return &Input{Question: question}, nil
}

// Execute answers the question. A fetch failure is still a completed job: the
// answer carries the error shape and Outcome is "error".
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, errors.NewInvalidRequestError("question must not be blank")
	}

	result := h.answerer.Answer(ctx, question)
	outcome := result.Answer.Outcome()

	fields := map[string]interface{}{
		"outcome":     string(outcome),
		"traceEvents": len(result.Trace),
	}
	if outcome == orchestrator.OutcomeError {
		h.logger.Warn("question answered with fetch error", fields)
	} else {
		h.logger.Info("question answered", fields)
	}

	return &Output{
		Outcome: string(outcome),
		Answer:  result.Answer,
		Trace:   result.Trace,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		return errors.NewInternalError(err)
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return errors.NewUpstreamCallError("zeebe", err)
	}
	return nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	code := string(errors.AsStandard(err).Code)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")

	h.errorHandler.HandleJobError(context.Background(), client, job, err)
}
