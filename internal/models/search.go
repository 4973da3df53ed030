// internal/models/search.go
package models

// Term is one typed entity extracted upstream. The search pipeline treats
// terms as read-only input: shape is validated, semantics are not.
type Term struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
}

// SearchRequest is the job payload for the tiered-search worker, produced by
// the action-router. OperatorHint optionally narrows the wave set; lane
// policy always wins over the hint.
type SearchRequest struct {
	TenantID     string `json:"tenantId"`
	QueryText    string `json:"queryText"`
	Terms        []Term `json:"terms"`
	OperatorHint Wave   `json:"operatorHint,omitempty"`
}

// RawRow is one matched record from one table in one wave. The producing
// wave, tier, bias weight and term confidence ride along so ranking needs no
// registry lookback. Internal to the pipeline; never serialized.
type RawRow struct {
	SourceTable   string
	RowID         string
	DisplayFields map[string]string
	Wave          Wave
	Tier          int
	BiasWeight    float64
	Confidence    float64
}

// ScoredResult is one ranked row in the response.
type ScoredResult struct {
	SourceTable     string            `json:"sourceTable"`
	RowID           string            `json:"rowId"`
	DisplayFields   map[string]string `json:"displayFields"`
	Wave            Wave              `json:"wave"`
	WaveScore       float64           `json:"waveScore"`
	BiasScore       float64           `json:"biasScore"`
	ConfidenceScore float64           `json:"confidenceScore"`
	FusedScore      float64           `json:"fusedScore"`
}

// SearchTrace records what was actually attempted for a request. It is
// always populated, including for short-circuited lanes.
type SearchTrace struct {
	TablesHit     []string `json:"tablesHit"`
	WavesExecuted []Wave   `json:"wavesExecuted"`
	TiersHit      []int    `json:"tiersHit"`
	EarlyExit     bool     `json:"earlyExit"`
	Partial       bool     `json:"partial"`
	Cached        bool     `json:"cached"`
	Warnings      []string `json:"warnings,omitempty"`
}

// SearchResponse is the job output for the tiered-search worker. BLOCKED and
// UNKNOWN lanes always carry rows == []; suggestions are populated for
// UNKNOWN only.
type SearchResponse struct {
	Lane        Lane           `json:"lane"`
	Rows        []ScoredResult `json:"rows"`
	Trace       SearchTrace    `json:"trace"`
	Suggestions []string       `json:"suggestions,omitempty"`
}
