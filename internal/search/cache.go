// internal/search/cache.go
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"search-workers/internal/common/config"
	"search-workers/internal/models"
	"search-workers/internal/search/expand"
)

const cacheKeyPrefix = "search:resp:"

func (s *Searcher) cacheActive() bool {
	return s.config.Search.CacheEnabled && s.cache != nil
}

// cacheKey hashes everything that determines a response: lane, hint, the
// canonical query and the term list. The tenant stays outside the hash so
// keys are greppable per tenant in redis.
func (s *Searcher) cacheKey(req *models.SearchRequest, laneValue models.Lane) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s", laneValue, req.OperatorHint, expand.Canonicalize(req.QueryText))
	for _, term := range req.Terms {
		fmt.Fprintf(h, "|%s=%s:%.3f", term.Type, expand.Canonicalize(term.Value), term.Confidence)
	}
	return cacheKeyPrefix + req.TenantID + ":" + hex.EncodeToString(h.Sum(nil))
}

// cachedResponse serves a previously computed response. Cache trouble is
// never an error; a failed lookup just runs the search.
func (s *Searcher) cachedResponse(ctx context.Context, req *models.SearchRequest, laneValue models.Lane) (*models.SearchResponse, bool) {
	if !s.cacheActive() {
		return nil, false
	}

	data, err := s.cache.Get(ctx, s.cacheKey(req, laneValue)).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("response cache read failed", map[string]interface{}{
				"tenantId": req.TenantID,
				"error":    err.Error(),
			})
		}
		return nil, false
	}

	var resp models.SearchResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		s.logger.Warn("response cache entry malformed", map[string]interface{}{
			"tenantId": req.TenantID,
			"error":    err.Error(),
		})
		return nil, false
	}

	resp.Trace.Cached = true
	return &resp, true
}

// storeInCache persists complete responses only. Partial results reflect a
// transient failure and must not outlive it.
func (s *Searcher) storeInCache(ctx context.Context, req *models.SearchRequest, laneValue models.Lane, resp *models.SearchResponse) {
	if !s.cacheActive() || resp.Trace.Partial {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return
	}

	ttl := config.GetDuration(s.config.Search.CacheTTL)
	if err := s.cache.Set(ctx, s.cacheKey(req, laneValue), data, ttl).Err(); err != nil {
		s.logger.Warn("response cache write failed", map[string]interface{}{
			"tenantId": req.TenantID,
			"error":    err.Error(),
		})
	}
}
