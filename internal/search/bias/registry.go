// internal/search/bias/registry.go
package bias

import (
	"fmt"
	"regexp"
	"sort"

	"search-workers/internal/common/errors"
	"search-workers/internal/models"
)

// identifierPattern is the only shape of table and column names the registry
// accepts. Anything else is rejected at load time, before a query can be built.
var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Registry is the immutable, validated set of table bindings. It is loaded
// once at startup; an invalid registry is a fatal configuration error, never
// a per-request condition.
type Registry struct {
	version  string
	bindings map[models.EntityType][]TableBinding
}

// Load reads and validates a bias registry from a JSON file.
func Load(path string) (*Registry, error) {
	a, err := ReadArtifact(path)
	if err != nil {
		return nil, err
	}
	return New(a.Version, a.Bindings)
}

// New builds a registry from a binding list, applying column defaults and
// rejecting any configuration the SQL builder could not safely consume.
func New(version string, bindings []TableBinding) (*Registry, error) {
	if len(bindings) == 0 {
		return nil, errors.NewConfigurationError("bias registry has no bindings")
	}

	byType := make(map[models.EntityType][]TableBinding)
	seen := make(map[string]bool)
	perTable := make(map[string]TableBinding)

	for i := range bindings {
		b := bindings[i]
		if b.RowIDColumn == "" {
			b.RowIDColumn = defaultRowIDColumn
		}
		if b.TenantColumn == "" {
			b.TenantColumn = defaultTenantColumn
		}

		if err := validateBinding(&b); err != nil {
			return nil, err
		}

		key := string(b.EntityType) + "/" + b.TableName
		if seen[key] {
			return nil, errors.NewConfigurationError(fmt.Sprintf("duplicate binding %s", key))
		}
		seen[key] = true

		// Bindings sharing a table must agree on its structural columns;
		// the planner picks one binding per table to address rows with.
		if prev, ok := perTable[b.TableName]; ok {
			if prev.RowIDColumn != b.RowIDColumn || prev.TenantColumn != b.TenantColumn {
				return nil, errors.NewConfigurationError(fmt.Sprintf("bindings for table %s disagree on row id or tenant column", b.TableName))
			}
		} else {
			perTable[b.TableName] = b
		}

		byType[b.EntityType] = append(byType[b.EntityType], b)
	}

	for _, et := range models.KnownEntityTypes() {
		if len(byType[et]) == 0 {
			return nil, errors.NewConfigurationError(fmt.Sprintf("entity type %s has no table binding", et))
		}
	}

	// Highest bias first; table name breaks ties so ordering is stable.
	for et := range byType {
		list := byType[et]
		sort.Slice(list, func(i, j int) bool {
			if list[i].BiasWeight != list[j].BiasWeight {
				return list[i].BiasWeight > list[j].BiasWeight
			}
			return list[i].TableName < list[j].TableName
		})
		byType[et] = list
	}

	return &Registry{version: version, bindings: byType}, nil
}

func validateBinding(b *TableBinding) error {
	if !b.EntityType.Known() {
		return errors.NewConfigurationError(fmt.Sprintf("binding references unknown entity type %q", b.EntityType))
	}
	if b.BiasWeight <= 0 {
		return errors.NewConfigurationError(fmt.Sprintf("binding %s/%s has non-positive bias weight %v", b.EntityType, b.TableName, b.BiasWeight))
	}
	if len(b.MatchColumns) == 0 {
		return errors.NewConfigurationError(fmt.Sprintf("binding %s/%s has no match columns", b.EntityType, b.TableName))
	}
	if len(b.DisplayColumns) == 0 {
		return errors.NewConfigurationError(fmt.Sprintf("binding %s/%s has no display columns", b.EntityType, b.TableName))
	}

	idents := []string{b.TableName, b.RowIDColumn, b.TenantColumn}
	idents = append(idents, b.MatchColumns...)
	idents = append(idents, b.DisplayColumns...)
	for _, ident := range idents {
		if !identifierPattern.MatchString(ident) {
			return errors.NewConfigurationError(fmt.Sprintf("binding %s/%s has invalid identifier %q", b.EntityType, b.TableName, ident))
		}
	}
	return nil
}

// Version returns the registry artifact version string.
func (r *Registry) Version() string {
	return r.version
}

// BindingsFor returns the bindings for an entity type, highest bias first.
// Unknown types return nil; callers drop them without building SQL.
func (r *Registry) BindingsFor(entityType models.EntityType) []TableBinding {
	return r.bindings[entityType]
}

// EntityTypes lists the bound entity types in the canonical order. It feeds
// the suggestion list for unresolvable queries.
func (r *Registry) EntityTypes() []models.EntityType {
	var out []models.EntityType
	for _, et := range models.KnownEntityTypes() {
		if len(r.bindings[et]) > 0 {
			out = append(out, et)
		}
	}
	return out
}

// TableCount returns the number of distinct tables across all bindings.
func (r *Registry) TableCount() int {
	tables := make(map[string]bool)
	for _, list := range r.bindings {
		for _, b := range list {
			tables[b.TableName] = true
		}
	}
	return len(tables)
}
