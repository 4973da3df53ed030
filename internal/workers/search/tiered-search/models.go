// internal/workers/search/tiered-search/models.go
package tieredsearch

import "search-workers/internal/models"

// Input is the job variable payload the action-router places on the
// tiered-search task. Terms arrive pre-extracted; the pipeline validates
// their shape, never their semantics.
type Input struct {
	TenantID     string        `json:"tenantId"`
	QueryText    string        `json:"queryText"`
	Terms        []models.Term `json:"terms,omitempty"`
	OperatorHint string        `json:"operatorHint,omitempty"`
}

// Output is written back to the process as job variables. Rows is always
// present, empty for BLOCKED and UNKNOWN lanes; suggestions only for UNKNOWN.
type Output struct {
	Lane        models.Lane           `json:"lane"`
	Rows        []models.ScoredResult `json:"rows"`
	Trace       models.SearchTrace    `json:"trace"`
	Suggestions []string              `json:"suggestions,omitempty"`
	SearchTime  int64                 `json:"searchTime"` // milliseconds
}
