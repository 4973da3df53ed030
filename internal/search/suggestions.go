// internal/search/suggestions.go
package search

import (
	"fmt"

	"search-workers/internal/models"
)

// suggestionExamples gives each entity type a concrete example an operator
// can copy. Types without an entry fall back to a generic line.
var suggestionExamples = map[models.EntityType]string{
	models.EntityFaultCode:     `a fault code such as "E047"`,
	models.EntityEquipmentName: `an equipment name such as "MTU Series 4000"`,
	models.EntityPartNumber:    `a part number such as "0001-180-2609"`,
	models.EntityPartName:      `a part name such as "fuel filter"`,
	models.EntityManufacturer:  `a manufacturer such as "MTU"`,
	models.EntitySupplierName:  `a supplier name`,
	models.EntitySymptom:       `a symptom such as "black smoke"`,
	models.EntityPONumber:      `a purchase order number such as "PO-12345"`,
}

// suggestions lists what the registry can actually search, so an
// unresolvable query gets actionable guidance instead of a bare empty list.
func (s *Searcher) suggestions() []string {
	types := s.registry.EntityTypes()
	out := make([]string, 0, len(types))
	for _, et := range types {
		if example, ok := suggestionExamples[et]; ok {
			out = append(out, "Try "+example+".")
		} else {
			out = append(out, fmt.Sprintf("Try searching by %s.", et))
		}
	}
	return out
}
