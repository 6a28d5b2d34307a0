// Package validate checks normalized records against the canonical
// rfp_record_v1 schema. Validation reports issues; it never raises.
package validate

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

//go:embed rfp_record_v1.json
var recordSchemaText string

// Schema validates records against the embedded rfp_record_v1 schema.
type Schema struct {
	schema *jsonschema.Schema
}

// New compiles the embedded schema. It panics only on a broken build.
func New() *Schema {
	return &Schema{schema: jsonschema.MustCompileString("rfp_record_v1.json", recordSchemaText)}
}

// Validate checks a single record.
func (s *Schema) Validate(record rfp.NormalizedRecord) rfp.ValidationResult {
	return s.ValidateBatch([]rfp.NormalizedRecord{record})
}

// ValidateBatch checks every record and reports per-record issues by index.
func (s *Schema) ValidateBatch(records []rfp.NormalizedRecord) rfp.ValidationResult {
	result := rfp.ValidationResult{Valid: true}
	for i, record := range records {
		if errs := s.check(record); len(errs) > 0 {
			result.Valid = false
			result.Issues = append(result.Issues, rfp.ValidationIssue{Index: i, Errors: errs})
		}
	}
	return result
}

func (s *Schema) check(record rfp.NormalizedRecord) []string {
	encoded, err := json.Marshal(record)
	if err != nil {
		return []string{fmt.Sprintf("encode record: %v", err)}
	}
	var instance any
	if err := json.Unmarshal(encoded, &instance); err != nil {
		return []string{fmt.Sprintf("decode record: %v", err)}
	}

	err = s.schema.Validate(instance)
	if err == nil {
		return nil
	}
	var validationErr *jsonschema.ValidationError
	if errors.As(err, &validationErr) {
		return leafMessages(validationErr)
	}
	return []string{err.Error()}
}

// leafMessages flattens the cause tree into one message per leaf failure.
func leafMessages(err *jsonschema.ValidationError) []string {
	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{fmt.Sprintf("%s: %s", loc, err.Message)}
	}
	var out []string
	for _, cause := range err.Causes {
		out = append(out, leafMessages(cause)...)
	}
	return out
}
