// internal/search/bias/schema.go
package bias

import (
	"search-workers/internal/models"
)

// TableBinding maps one entity type onto one searchable table. The binding
// carries every identifier the SQL builder is allowed to emit for that table:
// match columns, display columns, the row id column and the tenant column.
// Nothing outside a validated binding ever reaches a query string.
//
// Match columns must be text-typed in the database; the builder applies
// lower() and ILIKE to them directly.
type TableBinding struct {
	EntityType      models.EntityType `json:"entityType"`
	TableName       string            `json:"tableName"`
	MatchColumns    []string          `json:"matchColumns"`
	DisplayColumns  []string          `json:"displayColumns"`
	RowIDColumn     string            `json:"rowIdColumn,omitempty"`
	TenantColumn    string            `json:"tenantColumn,omitempty"`
	BiasWeight      float64           `json:"biasWeight"`
	SupportsTrigram bool              `json:"supportsTrigram"`
}

const (
	defaultRowIDColumn  = "id"
	defaultTenantColumn = "tenant_id"
)
