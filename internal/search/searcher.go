// internal/search/searcher.go

// Package search wires the full pipeline: lane classification, plan
// building, wave execution and ranking, plus the response cache in front
// of execution. Workers call Search and translate the outcome to process
// variables; everything domain-specific lives here, not in the workers.
package search

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"search-workers/internal/common/config"
	"search-workers/internal/common/errors"
	"search-workers/internal/common/logger"
	"search-workers/internal/common/metrics"
	"search-workers/internal/common/validation"
	"search-workers/internal/models"
	"search-workers/internal/search/bias"
	"search-workers/internal/search/executor"
	"search-workers/internal/search/expand"
	"search-workers/internal/search/lane"
	"search-workers/internal/search/plan"
	"search-workers/internal/search/rank"
)

type Searcher struct {
	config     *config.Config
	registry   *bias.Registry
	classifier *lane.Classifier
	builder    *plan.Builder
	runner     *executor.Runner
	ranker     *rank.Ranker
	cache      *redis.Client
	logger     logger.Logger
}

// New assembles a searcher from validated configuration. The cache client
// may be nil; the pipeline then runs every request against the database.
func New(cfg *config.Config, db *sql.DB, cache *redis.Client, registry *bias.Registry, log logger.Logger) *Searcher {
	sc := cfg.Search
	return &Searcher{
		config:     cfg,
		registry:   registry,
		classifier: lane.New(),
		builder: plan.NewBuilder(registry, expand.New(), plan.Config{
			Tier1MinBias:   sc.Tier1MinBias,
			NoLLMSubstring: sc.NoLLMSubstring,
		}),
		runner: executor.NewRunner(db, executor.Config{
			PerTableLimit:       sc.PerTableLimit,
			OverallLimit:        sc.OverallLimit,
			EarlyExitTarget:     sc.EarlyExitTarget,
			SimilarityThreshold: sc.SimilarityThreshold,
			StepRetryBackoff:    config.GetDuration(sc.StepRetryBackoff),
		}, log),
		ranker: rank.New(rank.Config{
			WaveScoreExact:      sc.WaveScoreExact,
			WaveScoreSubstring:  sc.WaveScoreSubstring,
			WaveScoreSimilarity: sc.WaveScoreSimilarity,
			Limit:               sc.OverallLimit,
		}),
		cache:  cache,
		logger: log.WithFields(map[string]interface{}{"component": "searcher"}),
	}
}

// Search runs one request through the pipeline. It returns an error only
// for malformed requests; every security, resolution or execution outcome
// is expressed in the response itself so callers can always complete.
func (s *Searcher) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()

	if result := validation.ValidateSearchRequest(req, s.config.Search.MaxQueryLength); !result.Valid {
		return nil, errors.NewInvalidRequestError(strings.Join(result.GetErrorMessages(), "; "))
	}

	ctx, cancel := context.WithTimeout(ctx, config.GetDuration(s.config.Search.RequestTimeout))
	defer cancel()

	decision := s.classifier.Classify(req.QueryText, req.Terms)
	metrics.SearchRequests.WithLabelValues(string(decision.Lane)).Inc()

	switch decision.Lane {
	case models.LaneBlocked:
		return s.blockedResponse(req, decision), nil
	case models.LaneUnknown:
		return s.unknownResponse(req, decision), nil
	}

	if resp, ok := s.cachedResponse(ctx, req, decision.Lane); ok {
		metrics.SearchCacheHits.Inc()
		return resp, nil
	}
	if s.cacheActive() {
		metrics.SearchCacheMisses.Inc()
	}

	terms := req.Terms
	if decision.ShapeTerm != nil {
		terms = append(append([]models.Term{}, req.Terms...), *decision.ShapeTerm)
	}

	searchPlan := s.builder.Build(decision.Lane, terms, req.OperatorHint)
	if searchPlan.Empty() {
		s.logger.Info("no table resolved for request", map[string]interface{}{
			"tenantId": req.TenantID,
			"lane":     string(decision.Lane),
			"terms":    len(terms),
		})
		return emptyResponse(decision.Lane), nil
	}

	outcome := s.runner.Run(ctx, req.TenantID, searchPlan)
	ranked := s.ranker.Rank(outcome.Rows)

	resp := &models.SearchResponse{
		Lane:  decision.Lane,
		Rows:  ranked,
		Trace: buildTrace(outcome),
	}

	s.recordOutcome(decision.Lane, outcome, len(ranked), start)
	s.storeInCache(ctx, req, decision.Lane, resp)

	s.logger.Info("search completed", map[string]interface{}{
		"tenantId":   req.TenantID,
		"lane":       string(decision.Lane),
		"rows":       len(ranked),
		"steps":      len(outcome.Steps),
		"earlyExit":  outcome.EarlyExit,
		"partial":    outcome.Partial,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return resp, nil
}

// blockedResponse terminates a hostile request. The decision is audited
// with the matched signature; no SQL has been planned or issued at this
// point, which is the property the blocked lane exists to guarantee.
func (s *Searcher) blockedResponse(req *models.SearchRequest, decision lane.Result) *models.SearchResponse {
	metrics.SearchBlocked.WithLabelValues(decision.Rule).Inc()
	s.logger.Warn("query blocked by security policy", map[string]interface{}{
		"tenantId":  req.TenantID,
		"signature": decision.Rule,
		"queryText": req.QueryText,
	})
	return emptyResponse(models.LaneBlocked)
}

func (s *Searcher) unknownResponse(req *models.SearchRequest, decision lane.Result) *models.SearchResponse {
	s.logger.Info("query not resolvable to entity types", map[string]interface{}{
		"tenantId": req.TenantID,
		"rule":     decision.Rule,
	})
	resp := emptyResponse(models.LaneUnknown)
	resp.Suggestions = s.suggestions()
	return resp
}

func (s *Searcher) recordOutcome(laneValue models.Lane, outcome *executor.Outcome, rowCount int, start time.Time) {
	for _, stat := range outcome.Steps {
		metrics.SearchWavesExecuted.WithLabelValues(string(stat.Wave), strconv.Itoa(stat.Tier)).Inc()
	}
	if outcome.EarlyExit {
		metrics.SearchEarlyExits.Inc()
	}
	if outcome.Partial {
		metrics.SearchPartials.Inc()
	}
	metrics.SearchRowsReturned.WithLabelValues(string(laneValue)).Observe(float64(rowCount))
	metrics.SearchDuration.WithLabelValues(string(laneValue)).Observe(time.Since(start).Seconds())
}

func emptyResponse(laneValue models.Lane) *models.SearchResponse {
	return &models.SearchResponse{
		Lane:  laneValue,
		Rows:  []models.ScoredResult{},
		Trace: emptyTrace(),
	}
}

func emptyTrace() models.SearchTrace {
	return models.SearchTrace{
		TablesHit:     []string{},
		WavesExecuted: []models.Wave{},
		TiersHit:      []int{},
	}
}

// buildTrace flattens step stats into the response trace. Lists keep first
// occurrence order and never repeat, so a trace reads as "what ran, in
// which order".
func buildTrace(outcome *executor.Outcome) models.SearchTrace {
	trace := emptyTrace()
	trace.EarlyExit = outcome.EarlyExit
	trace.Partial = outcome.Partial
	trace.Warnings = outcome.Warnings

	seenTable := make(map[string]bool)
	seenWave := make(map[models.Wave]bool)
	seenTier := make(map[int]bool)
	for _, stat := range outcome.Steps {
		for _, table := range stat.Tables {
			if !seenTable[table] {
				seenTable[table] = true
				trace.TablesHit = append(trace.TablesHit, table)
			}
		}
		if !seenWave[stat.Wave] {
			seenWave[stat.Wave] = true
			trace.WavesExecuted = append(trace.WavesExecuted, stat.Wave)
		}
		if !seenTier[stat.Tier] {
			seenTier[stat.Tier] = true
			trace.TiersHit = append(trace.TiersHit, stat.Tier)
		}
	}
	return trace
}
