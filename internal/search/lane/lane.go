// internal/search/lane/lane.go

// Package lane assigns every query a processing lane before any planning
// happens. Classification is deliberately conservative: hostile or ambiguous
// input must never reach the SQL layer, so any rule failure collapses to
// the blocked lane rather than falling through to a searchable one.
package lane

import (
	"regexp"
	"strings"

	"search-workers/internal/models"
)

// Result carries the lane decision plus what the downstream pipeline needs:
// the rule that fired (for audit logs) and, for code-like queries that
// arrived without usable terms, a synthesized term built from the query
// shape itself.
type Result struct {
	Lane      models.Lane
	Rule      string
	ShapeTerm *models.Term
}

type signature struct {
	name    string
	pattern *regexp.Regexp
}

// blockedSignatures are evaluated against the query text and every term
// value. First match wins; matching any of them is terminal.
var blockedSignatures = []signature{
	{
		name:    "instruction_override",
		pattern: regexp.MustCompile(`(?i)\b(ignore|disregard|forget|bypass|override)\b[^.!?]{0,60}\b(instructions?|prompts?|rules?|polic(?:y|ies)|guidelines?|previous|prior|above)\b`),
	},
	{
		name:    "role_hijack",
		pattern: regexp.MustCompile(`(?i)\b(you are now|act as|pretend (?:to be|you)|roleplay as|jailbreak|developer mode)\b`),
	},
	{
		name:    "prompt_disclosure",
		pattern: regexp.MustCompile(`(?i)\b(system prompt|hidden prompt|initial prompt|reveal (?:your|the) (?:prompt|instructions))\b`),
	},
	{
		name:    "sql_statement_injection",
		pattern: regexp.MustCompile(`(?i)(?:;|--|/\*)\s*(?:drop|delete|truncate|alter|insert|update|grant|revoke|create)\b`),
	},
	{
		name:    "sql_union_probe",
		pattern: regexp.MustCompile(`(?i)\bunion\s+(?:all\s+)?select\b`),
	},
	{
		name:    "sql_tautology",
		pattern: regexp.MustCompile(`(?i)'\s*(?:or|and)\b.{0,12}=`),
	},
	{
		name:    "command_substitution",
		pattern: regexp.MustCompile("\\$\\(|`"),
	},
}

type codeShape struct {
	name         string
	entityType   models.EntityType
	pattern      *regexp.Regexp
	requireDigit bool
}

// codeShapes recognize queries that are themselves an identifier. Order
// matters: a PO number would also satisfy the fault code shape, so the
// more specific shapes come first.
var codeShapes = []codeShape{
	{
		name:       "po_number",
		entityType: models.EntityPONumber,
		pattern:    regexp.MustCompile(`(?i)^po[-#\s]?\d{3,10}$`),
	},
	{
		name:       "fault_code",
		entityType: models.EntityFaultCode,
		pattern:    regexp.MustCompile(`(?i)^[a-z]{1,4}[-\s]?\d{2,6}$`),
	},
	{
		name:         "part_number_delimited",
		entityType:   models.EntityPartNumber,
		pattern:      regexp.MustCompile(`(?i)^[a-z0-9]+(?:[-./][a-z0-9]+)+$`),
		requireDigit: true,
	},
	{
		name:       "part_number_serial",
		entityType: models.EntityPartNumber,
		pattern:    regexp.MustCompile(`(?i)^[a-z]{0,4}\d{6,}[a-z0-9]*$`),
	},
}

// Classifier is stateless; all rules are compiled at package init.
type Classifier struct{}

func New() *Classifier {
	return &Classifier{}
}

// Classify decides the lane for a query. It never returns an error: any
// internal failure is treated as hostile input and blocks the query.
func (c *Classifier) Classify(queryText string, terms []models.Term) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{Lane: models.LaneBlocked, Rule: "classifier_failure"}
		}
	}()

	if sig := matchBlocked(queryText, terms); sig != "" {
		return Result{Lane: models.LaneBlocked, Rule: sig}
	}

	recognized := countRecognizedTerms(terms)

	if shape := matchCodeShape(queryText); shape != nil {
		res := Result{Lane: models.LaneNoLLM, Rule: "code_shape:" + shape.name}
		if recognized == 0 {
			res.ShapeTerm = &models.Term{
				Type:       shape.entityType,
				Value:      strings.TrimSpace(queryText),
				Confidence: 0,
			}
		}
		return res
	}

	if recognized == 0 {
		return Result{Lane: models.LaneUnknown, Rule: "no_resolvable_terms"}
	}

	return Result{Lane: models.LaneGPT, Rule: "llm_eligible"}
}

func matchBlocked(queryText string, terms []models.Term) string {
	for _, sig := range blockedSignatures {
		if sig.pattern.MatchString(queryText) {
			return sig.name
		}
		for _, term := range terms {
			if sig.pattern.MatchString(term.Value) {
				return sig.name
			}
		}
	}
	return ""
}

func matchCodeShape(queryText string) *codeShape {
	trimmed := strings.TrimSpace(queryText)
	if trimmed == "" {
		return nil
	}
	for i := range codeShapes {
		shape := &codeShapes[i]
		if !shape.pattern.MatchString(trimmed) {
			continue
		}
		if shape.requireDigit && !strings.ContainsAny(trimmed, "0123456789") {
			continue
		}
		return shape
	}
	return nil
}

func countRecognizedTerms(terms []models.Term) int {
	count := 0
	for _, term := range terms {
		if term.Type.Known() && strings.TrimSpace(term.Value) != "" {
			count++
		}
	}
	return count
}
