// internal/search/plan/plan.go

// Package plan turns a classified query into an ordered list of execution
// steps. A step is one (tier, wave) pair; the executor runs steps in order
// and may stop early, so the ordering here carries the whole search policy.
package plan

import (
	"search-workers/internal/models"
	"search-workers/internal/search/bias"
)

// TermPredicate binds the expanded variants of one entity type to a table's
// match columns. Columns and variants combine with OR inside the predicate.
type TermPredicate struct {
	EntityType models.EntityType
	Columns    []string
	Variants   []string
}

// TableClause is one SELECT branch of a step. Predicates combine with AND:
// a table bound by both a part number and a manufacturer term must satisfy
// both to produce a row.
type TableClause struct {
	Binding    bias.TableBinding
	Predicates []TermPredicate
	Confidence float64
}

// PlanStep is one (tier, wave) execution unit. LastInTier marks the step
// after which the executor decides whether lower tiers are consulted at all.
type PlanStep struct {
	Tier       int
	Wave       models.Wave
	Clauses    []TableClause
	LastInTier bool
}

// SearchPlan is the full ordered step list for one request. Blocked and
// unknown lanes always carry an empty plan.
type SearchPlan struct {
	Lane  models.Lane
	Steps []PlanStep
}

func (p *SearchPlan) Empty() bool {
	return p == nil || len(p.Steps) == 0
}

// Tables returns the distinct table names across all steps, in step order.
func (p *SearchPlan) Tables() []string {
	seen := make(map[string]bool)
	var out []string
	for _, step := range p.Steps {
		for _, clause := range step.Clauses {
			if !seen[clause.Binding.TableName] {
				seen[clause.Binding.TableName] = true
				out = append(out, clause.Binding.TableName)
			}
		}
	}
	return out
}
