// internal/models/search_types.go
package models

// Lane is the coarse routing decision for a query. It is decided once per
// request, before any planning, and never changes afterward.
type Lane string

const (
	LaneBlocked Lane = "BLOCKED"
	LaneUnknown Lane = "UNKNOWN"
	LaneNoLLM   Lane = "NO_LLM"
	LaneGPT     Lane = "GPT"
)

// Searchable reports whether the lane permits any SQL execution at all.
// BLOCKED and UNKNOWN always short-circuit with zero rows.
func (l Lane) Searchable() bool {
	return l == LaneNoLLM || l == LaneGPT
}

// Wave is one match-strategy pass, ordered from strictest to most permissive.
type Wave string

const (
	WaveExact      Wave = "EXACT"
	WaveSubstring  Wave = "SUBSTRING"
	WaveSimilarity Wave = "SIMILARITY"
)

// Order returns the execution rank of the wave within a tier (EXACT before
// SUBSTRING before SIMILARITY). Unrecognized waves sort last.
func (w Wave) Order() int {
	switch w {
	case WaveExact:
		return 0
	case WaveSubstring:
		return 1
	case WaveSimilarity:
		return 2
	default:
		return 3
	}
}

// Valid reports whether w is one of the three recognized waves.
func (w Wave) Valid() bool {
	return w == WaveExact || w == WaveSubstring || w == WaveSimilarity
}

// EntityType tags an extracted term and drives which tables are candidates.
type EntityType string

const (
	EntityFaultCode     EntityType = "FAULT_CODE"
	EntityEquipmentName EntityType = "EQUIPMENT_NAME"
	EntityPartNumber    EntityType = "PART_NUMBER"
	EntityPartName      EntityType = "PART_NAME"
	EntityManufacturer  EntityType = "MANUFACTURER"
	EntitySupplierName  EntityType = "SUPPLIER_NAME"
	EntitySymptom       EntityType = "SYMPTOM"
	EntityPONumber      EntityType = "PO_NUMBER"
)

// KnownEntityTypes returns all recognized entity types in stable order.
// The bias registry must bind every one of these at startup.
func KnownEntityTypes() []EntityType {
	return []EntityType{
		EntityFaultCode,
		EntityEquipmentName,
		EntityPartNumber,
		EntityPartName,
		EntityManufacturer,
		EntitySupplierName,
		EntitySymptom,
		EntityPONumber,
	}
}

// Known reports whether e is a recognized entity type.
func (e EntityType) Known() bool {
	for _, known := range KnownEntityTypes() {
		if e == known {
			return true
		}
	}
	return false
}
