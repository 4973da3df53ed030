// internal/workers/search/classify-query-lane/models.go
package classifyquerylane

import "search-workers/internal/models"

// Input carries the raw query and any pre-extracted terms. TenantID is
// optional and used for audit logging only; classification never touches
// tenant data.
type Input struct {
	TenantID  string        `json:"tenantId,omitempty"`
	QueryText string        `json:"queryText"`
	Terms     []models.Term `json:"terms,omitempty"`
}

// Output names the lane and the rule that decided it. Searchable lets BPMN
// gateways branch without re-encoding lane semantics in the process model.
type Output struct {
	Lane       models.Lane `json:"lane"`
	Reason     string      `json:"reason"`
	Searchable bool        `json:"searchable"`
}
