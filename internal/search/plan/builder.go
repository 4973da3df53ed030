// internal/search/plan/builder.go
package plan

import (
	"sort"

	"search-workers/internal/models"
	"search-workers/internal/search/bias"
	"search-workers/internal/search/expand"
)

const (
	tierPrimary   = 1
	tierSecondary = 2
)

// Config carries the planning thresholds. Tier1MinBias splits resolved
// tables into the primary and secondary band; NoLLMSubstring widens the
// code-only lane beyond exact matching.
type Config struct {
	Tier1MinBias   float64
	NoLLMSubstring bool
}

// Builder resolves terms against the bias registry and lays out steps.
type Builder struct {
	registry *bias.Registry
	expander *expand.Expander
	config   Config
}

func NewBuilder(registry *bias.Registry, expander *expand.Expander, config Config) *Builder {
	return &Builder{
		registry: registry,
		expander: expander,
		config:   config,
	}
}

// resolvedTable accumulates everything bound to one table before clauses
// are laid out: the strongest binding (it decides tier and bias score) and
// the per-entity-type variant sets.
type resolvedTable struct {
	binding    bias.TableBinding
	bindings   map[models.EntityType]bias.TableBinding
	values     map[models.EntityType][]string
	confidence float64
}

// Build produces the ordered step list for a lane. Terms whose type has no
// registry binding are dropped without error; if nothing resolves, the plan
// is empty and the caller returns an empty result set.
func (b *Builder) Build(laneValue models.Lane, terms []models.Term, hint models.Wave) *SearchPlan {
	p := &SearchPlan{Lane: laneValue}
	if !laneValue.Searchable() {
		return p
	}

	waves := b.wavesFor(laneValue, hint)
	if len(waves) == 0 {
		return p
	}

	tables := b.resolve(terms)
	if len(tables) == 0 {
		return p
	}

	for _, tier := range []int{tierPrimary, tierSecondary} {
		members := b.tierMembers(tables, tier)
		if len(members) == 0 {
			continue
		}
		for _, wave := range waves {
			step := PlanStep{Tier: tier, Wave: wave}
			for _, rt := range members {
				if clause := b.buildClause(rt, wave); clause != nil {
					step.Clauses = append(step.Clauses, *clause)
				}
			}
			if len(step.Clauses) > 0 {
				p.Steps = append(p.Steps, step)
			}
		}
	}

	for i := range p.Steps {
		if i == len(p.Steps)-1 || p.Steps[i+1].Tier != p.Steps[i].Tier {
			p.Steps[i].LastInTier = true
		}
	}

	return p
}

// wavesFor returns the wave sequence a lane is allowed to run, cheapest
// first. An operator hint narrows the sequence to a single wave but is
// ignored when it names a wave outside the lane's set.
func (b *Builder) wavesFor(laneValue models.Lane, hint models.Wave) []models.Wave {
	var waves []models.Wave
	switch laneValue {
	case models.LaneNoLLM:
		waves = []models.Wave{models.WaveExact}
		if b.config.NoLLMSubstring {
			waves = append(waves, models.WaveSubstring)
		}
	case models.LaneGPT:
		waves = []models.Wave{models.WaveExact, models.WaveSubstring, models.WaveSimilarity}
	default:
		return nil
	}

	if hint != "" {
		for _, w := range waves {
			if w == hint {
				return []models.Wave{hint}
			}
		}
	}
	return waves
}

func (b *Builder) resolve(terms []models.Term) map[string]*resolvedTable {
	tables := make(map[string]*resolvedTable)

	for _, term := range terms {
		if !term.Type.Known() {
			continue
		}
		canonical := expand.Canonicalize(term.Value)
		if canonical == "" {
			continue
		}

		for _, binding := range b.registry.BindingsFor(term.Type) {
			rt := tables[binding.TableName]
			if rt == nil {
				rt = &resolvedTable{
					binding:  binding,
					bindings: make(map[models.EntityType]bias.TableBinding),
					values:   make(map[models.EntityType][]string),
				}
				tables[binding.TableName] = rt
			}
			if binding.BiasWeight > rt.binding.BiasWeight {
				rt.binding = binding
			}
			rt.bindings[term.Type] = binding
			rt.values[term.Type] = append(rt.values[term.Type], term.Value)
			if term.Confidence > rt.confidence {
				rt.confidence = term.Confidence
			}
		}
	}

	return tables
}

// tierMembers selects the tables belonging to a tier, strongest bias first.
// A table bound through several entity types sits in the tier of its
// strongest binding.
func (b *Builder) tierMembers(tables map[string]*resolvedTable, tier int) []*resolvedTable {
	var members []*resolvedTable
	for _, rt := range tables {
		inPrimary := rt.binding.BiasWeight >= b.config.Tier1MinBias
		if (tier == tierPrimary) == inPrimary {
			members = append(members, rt)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].binding.BiasWeight != members[j].binding.BiasWeight {
			return members[i].binding.BiasWeight > members[j].binding.BiasWeight
		}
		return members[i].binding.TableName < members[j].binding.TableName
	})
	return members
}

// buildClause lays out one table's predicates for one wave. Values of the
// same entity type merge into a single OR group; distinct types stay
// separate so they combine with AND. Similarity steps only admit tables
// whose every contributing binding supports trigram matching, keeping the
// conjunction intact.
func (b *Builder) buildClause(rt *resolvedTable, wave models.Wave) *TableClause {
	if wave == models.WaveSimilarity {
		for _, binding := range rt.bindings {
			if !binding.SupportsTrigram {
				return nil
			}
		}
	}

	types := make([]models.EntityType, 0, len(rt.values))
	for et := range rt.values {
		types = append(types, et)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	clause := &TableClause{Binding: rt.binding, Confidence: rt.confidence}
	for _, et := range types {
		var variants []string
		seen := make(map[string]bool)
		for _, value := range rt.values[et] {
			for _, v := range b.expander.Variants(wave, value) {
				if !seen[v] {
					seen[v] = true
					variants = append(variants, v)
				}
			}
		}
		if len(variants) == 0 {
			continue
		}
		clause.Predicates = append(clause.Predicates, TermPredicate{
			EntityType: et,
			Columns:    rt.bindings[et].MatchColumns,
			Variants:   variants,
		})
	}

	if len(clause.Predicates) == 0 {
		return nil
	}
	return clause
}
