// internal/workers/search/classify-query-lane/handler.go
package classifyquerylane

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/xeipuuv/gojsonschema"

	"search-workers/internal/common/logger"
	"search-workers/internal/common/metrics"
	"search-workers/internal/search/lane"
	"search-workers/pkg/registry"
)

const (
	TaskType = "classify-query-lane"
)

var (
	ErrInvalidInput = errors.New("INVALID_INPUT")
)

// Handler classifies a query without planning or executing anything. It
// exists for processes that need the routing decision up front, before
// deciding whether to schedule the full search task at all.
type Handler struct {
	config     *Config
	classifier *lane.Classifier
	activity   *registry.Activity
	logger     logger.Logger
}

func NewHandler(config *Config, activity *registry.Activity, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		classifier: lane.New(),
		activity:   activity,
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, "CLASSIFICATION_FAILED").Inc()
		h.failJob(client, job, "CLASSIFICATION_FAILED", err.Error())
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.completeJob(client, job, output)
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}

	decision := h.classifier.Classify(input.QueryText, input.Terms)

	if decision.Lane.Searchable() {
		h.logger.Debug("query classified", map[string]interface{}{
			"tenantId": input.TenantID,
			"lane":     string(decision.Lane),
			"rule":     decision.Rule,
		})
	} else {
		h.logger.Warn("query classified as non-searchable", map[string]interface{}{
			"tenantId": input.TenantID,
			"lane":     string(decision.Lane),
			"rule":     decision.Rule,
		})
	}

	return &Output{
		Lane:       decision.Lane,
		Reason:     decision.Rule,
		Searchable: decision.Lane.Searchable(),
	}, nil
}

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
