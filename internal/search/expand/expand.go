// internal/search/expand/expand.go

// Package expand turns extracted term values into the per-wave variant lists
// the SQL builder binds as query parameters. Expansion is pure string work;
// no variant is ever interpolated into SQL text.
package expand

import (
	"strings"

	"search-workers/internal/models"
)

// Expander produces match variants for each search wave.
type Expander struct{}

func New() *Expander {
	return &Expander{}
}

// Canonicalize lowercases a value, trims it and collapses internal runs of
// whitespace to single spaces. All waves match against canonical forms.
func Canonicalize(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

// Variants returns the bound-parameter values for one term under one wave.
// An empty canonical value yields no variants and the term drops out.
func (e *Expander) Variants(wave models.Wave, value string) []string {
	switch wave {
	case models.WaveExact:
		return e.Exact(value)
	case models.WaveSubstring:
		return e.Substring(value)
	case models.WaveSimilarity:
		return e.Similarity(value)
	default:
		return nil
	}
}

// Exact returns the single canonical form, compared with lower(column) = $n.
func (e *Expander) Exact(value string) []string {
	canonical := Canonicalize(value)
	if canonical == "" {
		return nil
	}
	return []string{canonical}
}

// Substring returns at most three ILIKE patterns: the value itself, the
// value with a leading wildcard and the value with a trailing wildcard.
// LIKE metacharacters inside the value are escaped so they match literally.
func (e *Expander) Substring(value string) []string {
	canonical := Canonicalize(value)
	if canonical == "" {
		return nil
	}
	escaped := escapeLikePattern(canonical)
	return []string{escaped, "%" + escaped, escaped + "%"}
}

// Similarity returns the single lowercase form for trigram comparison.
func (e *Expander) Similarity(value string) []string {
	canonical := Canonicalize(value)
	if canonical == "" {
		return nil
	}
	return []string{canonical}
}

// escapeLikePattern neutralizes %, _ and the escape character itself so a
// user-supplied value cannot widen an ILIKE pattern.
func escapeLikePattern(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
