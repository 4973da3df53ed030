// internal/search/rank/rank.go

// Package rank fuses raw wave results into the final ordered result list.
// Ranking is pure and deterministic: the same raw rows in any order produce
// the same output, which is what makes cached and repeated searches stable.
package rank

import (
	"sort"

	"search-workers/internal/models"
)

// Config carries the per-wave score constants and the output cap.
type Config struct {
	WaveScoreExact      float64
	WaveScoreSubstring  float64
	WaveScoreSimilarity float64
	Limit               int
}

type Ranker struct {
	config Config
}

func New(config Config) *Ranker {
	return &Ranker{config: config}
}

// Rank scores, deduplicates and orders raw rows. A row found by several
// waves keeps its best score. Ordering is total: fused score descending,
// then source table, then row id, so ties never reorder between runs.
func (r *Ranker) Rank(rows []models.RawRow) []models.ScoredResult {
	best := make(map[string]models.ScoredResult)
	for _, row := range rows {
		scored := r.score(row)
		key := row.SourceTable + "\x00" + row.RowID
		if current, ok := best[key]; !ok || scored.FusedScore > current.FusedScore {
			best[key] = scored
		}
	}

	results := make([]models.ScoredResult, 0, len(best))
	for _, scored := range best {
		results = append(results, scored)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].FusedScore != results[j].FusedScore {
			return results[i].FusedScore > results[j].FusedScore
		}
		if results[i].SourceTable != results[j].SourceTable {
			return results[i].SourceTable < results[j].SourceTable
		}
		return results[i].RowID < results[j].RowID
	})

	if r.config.Limit > 0 && len(results) > r.config.Limit {
		results = results[:r.config.Limit]
	}
	return results
}

func (r *Ranker) score(row models.RawRow) models.ScoredResult {
	waveScore := r.waveScore(row.Wave)
	return models.ScoredResult{
		SourceTable:     row.SourceTable,
		RowID:           row.RowID,
		DisplayFields:   row.DisplayFields,
		Wave:            row.Wave,
		WaveScore:       waveScore,
		BiasScore:       row.BiasWeight,
		ConfidenceScore: row.Confidence,
		FusedScore:      waveScore + row.BiasWeight + row.Confidence,
	}
}

func (r *Ranker) waveScore(wave models.Wave) float64 {
	switch wave {
	case models.WaveExact:
		return r.config.WaveScoreExact
	case models.WaveSubstring:
		return r.config.WaveScoreSubstring
	case models.WaveSimilarity:
		return r.config.WaveScoreSimilarity
	default:
		return 0
	}
}
