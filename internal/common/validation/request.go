package validation

import (
	"fmt"
	"strings"

	"search-workers/internal/models"

	"github.com/google/uuid"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateSearchRequest checks the shape of an incoming search request:
// tenant id must be a UUID, the query text must be present and bounded, term
// confidences must sit in [0,1]. Semantic correctness of terms is the
// extraction pipeline's problem, not ours — an unrecognized entity type is
// not a shape error, it simply resolves to no tables later.
func ValidateSearchRequest(req *models.SearchRequest, maxQueryLength int) *ValidationResult {
	errors := []ValidationError{}

	if req.TenantID == "" {
		errors = append(errors, ValidationError{
			Field:   "tenantId",
			Message: "required field missing",
			Code:    "REQUIRED_FIELD_MISSING",
		})
	} else if _, err := uuid.Parse(req.TenantID); err != nil {
		errors = append(errors, ValidationError{
			Field:   "tenantId",
			Message: "value must be a valid UUID",
			Code:    "INVALID_UUID",
		})
	}

	query := strings.TrimSpace(req.QueryText)
	if query == "" {
		errors = append(errors, ValidationError{
			Field:   "queryText",
			Message: "required field missing",
			Code:    "REQUIRED_FIELD_MISSING",
		})
	} else if maxQueryLength > 0 && len(query) > maxQueryLength {
		errors = append(errors, ValidationError{
			Field:   "queryText",
			Message: fmt.Sprintf("value must be at most %d characters", maxQueryLength),
			Code:    "MAX_LENGTH_VIOLATION",
		})
	}

	for i, term := range req.Terms {
		if strings.TrimSpace(term.Value) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("terms[%d].value", i),
				Message: "term value must not be empty",
				Code:    "EMPTY_TERM_VALUE",
			})
		}
		if term.Type == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("terms[%d].type", i),
				Message: "term type must not be empty",
				Code:    "EMPTY_TERM_TYPE",
			})
		}
		if term.Confidence < 0 || term.Confidence > 1 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("terms[%d].confidence", i),
				Message: "confidence must be within [0, 1]",
				Code:    "CONFIDENCE_OUT_OF_RANGE",
			})
		}
	}

	if req.OperatorHint != "" && !req.OperatorHint.Valid() {
		errors = append(errors, ValidationError{
			Field:   "operatorHint",
			Message: "value must be one of [EXACT SUBSTRING SIMILARITY]",
			Code:    "INVALID_ENUM_VALUE",
		})
	}

	return &ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

// ValidateTenantID reports whether the tenant id parses as a UUID.
func ValidateTenantID(tenantID string) bool {
	_, err := uuid.Parse(tenantID)
	return err == nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a specific field
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") || strings.HasPrefix(err.Field, field+"[") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}
