// internal/search/executor/runner.go

// Package executor runs search plans against Postgres. Each step issues a
// single parameterized UNION ALL statement; between steps the runner applies
// the early-exit policy and honors context cancellation. A failing step is
// retried once and then degrades the request to a partial result instead of
// failing it.
package executor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"search-workers/internal/common/logger"
	"search-workers/internal/models"
	"search-workers/internal/search/plan"
)

// Config carries the execution caps. Limits and the similarity threshold
// are bound as query parameters, never inlined.
type Config struct {
	PerTableLimit       int
	OverallLimit        int
	EarlyExitTarget     int
	SimilarityThreshold float64
	StepRetryBackoff    time.Duration
}

// StepStat records what one executed step did, for tracing and metrics.
type StepStat struct {
	Tier     int
	Wave     models.Wave
	Tables   []string
	RowCount int
	Duration time.Duration
}

// Outcome is the raw result of running a plan. Partial means at least one
// step failed or the deadline cut execution short; the rows gathered up to
// that point are still returned.
type Outcome struct {
	Rows      []models.RawRow
	Steps     []StepStat
	EarlyExit bool
	Partial   bool
	Warnings  []string
}

type Runner struct {
	db     *sql.DB
	config Config
	logger logger.Logger
}

func NewRunner(db *sql.DB, config Config, log logger.Logger) *Runner {
	return &Runner{
		db:     db,
		config: config,
		logger: log,
	}
}

// Run executes the plan steps in order. Cancellation is only observed
// between steps; an in-flight statement runs to completion under its own
// context and whatever was gathered is kept.
func (r *Runner) Run(ctx context.Context, tenantID string, p *plan.SearchPlan) *Outcome {
	out := &Outcome{}
	if p.Empty() {
		return out
	}

	seen := make(map[string]struct{})
	distinct := 0

	for i := range p.Steps {
		step := &p.Steps[i]

		if err := ctx.Err(); err != nil {
			out.Partial = true
			out.Warnings = append(out.Warnings, fmt.Sprintf("stopped before tier %d %s wave: %v", step.Tier, step.Wave, err))
			break
		}

		start := time.Now()
		rows, err := r.executeStep(ctx, tenantID, step)
		if err != nil {
			out.Partial = true
			out.Warnings = append(out.Warnings, fmt.Sprintf("tier %d %s wave failed: %v", step.Tier, step.Wave, err))
			r.logger.Error("search step failed after retry", map[string]interface{}{
				"tier":  step.Tier,
				"wave":  string(step.Wave),
				"error": err.Error(),
			})
			break
		}

		tables := make([]string, 0, len(step.Clauses))
		for _, clause := range step.Clauses {
			tables = append(tables, clause.Binding.TableName)
		}
		out.Steps = append(out.Steps, StepStat{
			Tier:     step.Tier,
			Wave:     step.Wave,
			Tables:   tables,
			RowCount: len(rows),
			Duration: time.Since(start),
		})

		out.Rows = append(out.Rows, rows...)
		for _, row := range rows {
			key := row.SourceTable + "\x00" + row.RowID
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				distinct++
			}
		}

		if i == len(p.Steps)-1 {
			break
		}
		if r.config.EarlyExitTarget > 0 && distinct >= r.config.EarlyExitTarget {
			out.EarlyExit = true
			break
		}
		// A tier's last step closes the tier: once anything matched,
		// lower tiers stay untouched. They are fallbacks, not additions.
		if step.LastInTier && distinct > 0 {
			out.EarlyExit = true
			break
		}
	}

	return out
}

func (r *Runner) executeStep(ctx context.Context, tenantID string, step *plan.PlanStep) ([]models.RawRow, error) {
	q := buildStepQuery(tenantID, step, r.config)

	rows, err := r.queryWithRetry(ctx, q, step)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	biasByTable := make(map[string]float64, len(step.Clauses))
	confByTable := make(map[string]float64, len(step.Clauses))
	for _, clause := range step.Clauses {
		biasByTable[clause.Binding.TableName] = clause.Binding.BiasWeight
		confByTable[clause.Binding.TableName] = clause.Confidence
	}

	var out []models.RawRow
	for rows.Next() {
		var sourceTable, rowID string
		var display []byte
		if err := rows.Scan(&sourceTable, &rowID, &display); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}

		fields := make(map[string]string)
		if len(display) > 0 {
			if err := json.Unmarshal(display, &fields); err != nil {
				return nil, fmt.Errorf("decode display fields: %w", err)
			}
		}

		out = append(out, models.RawRow{
			SourceTable:   sourceTable,
			RowID:         rowID,
			DisplayFields: fields,
			Wave:          step.Wave,
			Tier:          step.Tier,
			BiasWeight:    biasByTable[sourceTable],
			Confidence:    confByTable[sourceTable],
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}
	return out, nil
}

// queryWithRetry issues the statement and retries exactly once after a
// short backoff. Context cancellation is never retried.
func (r *Runner) queryWithRetry(ctx context.Context, q stepQuery, step *plan.PlanStep) (*sql.Rows, error) {
	rows, err := r.db.QueryContext(ctx, q.SQL, q.Args...)
	if err == nil {
		return rows, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	r.logger.Warn("search step query failed, retrying", map[string]interface{}{
		"tier":  step.Tier,
		"wave":  string(step.Wave),
		"error": err.Error(),
	})

	select {
	case <-time.After(r.config.StepRetryBackoff):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return r.db.QueryContext(ctx, q.SQL, q.Args...)
}
