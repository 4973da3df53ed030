// internal/search/executor/sqlbuilder.go
package executor

import (
	"strconv"
	"strings"

	"search-workers/internal/models"
	"search-workers/internal/search/plan"
)

// stepQuery is one fully parameterized statement plus its bound arguments.
// Every table and column identifier comes from a validated registry binding;
// every runtime value, including limits and the similarity threshold, is
// bound as a parameter.
type stepQuery struct {
	SQL  string
	Args []interface{}
}

// buildStepQuery composes the UNION ALL statement for a step: one SELECT
// branch per table clause, each tenant-scoped and capped, concatenated in
// clause order so higher-bias tables win when the overall cap truncates.
func buildStepQuery(tenantID string, step *plan.PlanStep, cfg Config) stepQuery {
	args := []interface{}{tenantID}
	next := 2
	bind := func(v interface{}) string {
		args = append(args, v)
		ph := "$" + strconv.Itoa(next)
		next++
		return ph
	}

	perTablePh := bind(cfg.PerTableLimit)
	thresholdPh := ""
	if step.Wave == models.WaveSimilarity {
		thresholdPh = bind(cfg.SimilarityThreshold)
	}

	branches := make([]string, 0, len(step.Clauses))
	for ord, clause := range step.Clauses {
		branches = append(branches, buildBranch(&clause, ord, step.Wave, perTablePh, thresholdPh, bind))
	}

	overallPh := bind(cfg.OverallLimit)

	var sb strings.Builder
	sb.WriteString("SELECT source_table, row_id, display FROM (\n")
	sb.WriteString(strings.Join(branches, "\nUNION ALL\n"))
	sb.WriteString("\n) AS wave_rows ORDER BY branch_ord ASC, row_id ASC LIMIT ")
	sb.WriteString(overallPh)

	return stepQuery{SQL: sb.String(), Args: args}
}

func buildBranch(clause *plan.TableClause, ord int, wave models.Wave, perTablePh, thresholdPh string, bind func(interface{}) string) string {
	binding := clause.Binding

	var sb strings.Builder
	sb.WriteString("(SELECT '")
	sb.WriteString(binding.TableName)
	sb.WriteString("' AS source_table, ")
	sb.WriteString(binding.RowIDColumn)
	sb.WriteString("::text AS row_id, ")
	sb.WriteString(displayExpr(binding.DisplayColumns))
	sb.WriteString(" AS display, ")
	sb.WriteString(strconv.Itoa(ord))
	sb.WriteString(" AS branch_ord FROM ")
	sb.WriteString(binding.TableName)
	sb.WriteString(" WHERE ")
	sb.WriteString(binding.TenantColumn)
	sb.WriteString(" = $1")

	var simExprs []string
	for _, pred := range clause.Predicates {
		group, exprs := predicateGroup(&pred, wave, thresholdPh, bind)
		sb.WriteString(" AND ")
		sb.WriteString(group)
		simExprs = append(simExprs, exprs...)
	}

	if wave == models.WaveSimilarity {
		sb.WriteString(" ORDER BY GREATEST(")
		sb.WriteString(strings.Join(simExprs, ", "))
		sb.WriteString(") DESC, ")
		sb.WriteString(binding.RowIDColumn)
		sb.WriteString(" ASC")
	} else {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(binding.RowIDColumn)
		sb.WriteString(" ASC")
	}

	sb.WriteString(" LIMIT ")
	sb.WriteString(perTablePh)
	sb.WriteString(")")
	return sb.String()
}

// predicateGroup renders one OR group: every match column against every
// bound variant. For similarity it also returns the raw similarity
// expressions so the branch can rank by the strongest one.
func predicateGroup(pred *plan.TermPredicate, wave models.Wave, thresholdPh string, bind func(interface{}) string) (string, []string) {
	var comps []string
	var simExprs []string

	for _, variant := range pred.Variants {
		variantPh := bind(variant)
		for _, col := range pred.Columns {
			switch wave {
			case models.WaveSubstring:
				comps = append(comps, col+" ILIKE "+variantPh)
			case models.WaveSimilarity:
				expr := "similarity(lower(" + col + "), " + variantPh + ")"
				comps = append(comps, expr+" >= "+thresholdPh)
				simExprs = append(simExprs, expr)
			default:
				comps = append(comps, "lower("+col+") = "+variantPh)
			}
		}
	}

	return "(" + strings.Join(comps, " OR ") + ")", simExprs
}

func displayExpr(columns []string) string {
	var sb strings.Builder
	sb.WriteString("jsonb_build_object(")
	for i, col := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("'")
		sb.WriteString(col)
		sb.WriteString("', COALESCE(")
		sb.WriteString(col)
		sb.WriteString("::text, '')")
	}
	sb.WriteString(")")
	return sb.String()
}
