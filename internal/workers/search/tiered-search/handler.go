// internal/workers/search/tiered-search/handler.go
package tieredsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/xeipuuv/gojsonschema"

	commonerrors "search-workers/internal/common/errors"
	"search-workers/internal/common/logger"
	"search-workers/internal/common/metrics"
	"search-workers/internal/models"
	"search-workers/internal/search"
	"search-workers/pkg/registry"
)

const (
	TaskType = "tiered-search"
)

var (
	ErrInvalidInput = errors.New("INVALID_INPUT")
	ErrSearchFailed = errors.New("SEARCH_FAILED")
)

type Handler struct {
	config   *Config
	searcher *search.Searcher
	activity *registry.Activity
	logger   logger.Logger
}

// NewHandler wires the worker to the search facade. The activity carries
// the declared input schema from the platform registry; passing nil skips
// schema validation (startup logs a warning in that case).
func NewHandler(config *Config, searcher *search.Searcher, activity *registry.Activity, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		searcher: searcher,
		activity: activity,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
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

	if err := h.validateInput(job.Variables); err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, "INVALID_INPUT").Inc()
		h.failJob(client, job, "INVALID_INPUT", err.Error())
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, "PARSE_ERROR").Inc()
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		errorCode := "SEARCH_FAILED"
		var stdErr *commonerrors.StandardError
		if errors.As(err, &stdErr) {
			errorCode = string(stdErr.Code)
		}
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()
		h.failJob(client, job, errorCode, err.Error())
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}

	start := time.Now()

	req := &models.SearchRequest{
		TenantID:     input.TenantID,
		QueryText:    input.QueryText,
		Terms:        input.Terms,
		OperatorHint: models.Wave(input.OperatorHint),
	}

	resp, err := h.searcher.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	return &Output{
		Lane:        resp.Lane,
		Rows:        resp.Rows,
		Trace:       resp.Trace,
		Suggestions: resp.Suggestions,
		SearchTime:  time.Since(start).Milliseconds(),
	}, nil
}

// validateInput checks the raw job variables against the input schema this
// task type declares in the activity registry, before any unmarshalling.
// Workers deployed without a registry entry run unvalidated.
func (h *Handler) validateInput(variables string) error {
	if h.activity == nil {
		return nil
	}
	schemaJSON, err := h.activity.InputSchemaJSON()
	if err != nil {
		return nil
	}

	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	documentLoader := gojsonschema.NewStringLoader(variables)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, errs)
	}

	return nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
		"retryable":    commonerrors.IsRetryableErrorCode(commonerrors.ErrorCode(errorCode)),
		"category":     commonerrors.GetErrorCategory(commonerrors.ErrorCode(errorCode)),
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// ValidateInput exposes schema validation for tests and tooling.
func (h *Handler) ValidateInput(variables string) error {
	return h.validateInput(variables)
}
