// Package validator checks target payloads against their schema
// definitions. Every violation for a record is collected in one pass
// so a single run yields a complete diagnostic; validation never
// stops at the first problem.
package validator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/seqrelay/seqrelay/internal/models"
	"github.com/seqrelay/seqrelay/internal/schema"
)

// Validate checks one payload against a schema definition. Checks run
// in order per field: required presence, then type conformance, then
// enumerated-value membership (exact match unless the field folds
// case). The "None" sentinel satisfies presence and is exempt from
// type and enum checks. Dates are normalized during transformation,
// so any date reaching this point that is not ISO-8601 is reported as
// a format violation.
func Validate(payload *models.TargetPayload, def *schema.Definition) *models.ValidationResult {
	result := &models.ValidationResult{
		Target:   def.Target,
		SampleID: payload.SampleID,
	}

	for i := range def.Fields {
		f := &def.Fields[i]
		name := f.OutputName()
		value, present := payload.Fields[name]

		if !present || value == "" {
			if f.Required {
				result.Add(name, models.ViolationMissing, "required field has no value")
			}
			continue
		}
		if value == models.SentinelNone {
			continue
		}
		if !checkType(result, name, f.Type, value) {
			continue
		}
		checkEnum(result, name, f, value)
	}
	return result
}

// Describe renders a result's violations as one line, "field: kind"
// pairs joined by semicolons. Used for outcome details and reports.
func Describe(vr *models.ValidationResult) string {
	parts := make([]string, len(vr.Violations))
	for i, v := range vr.Violations {
		parts[i] = fmt.Sprintf("%s: %s", v.Field, v.Kind)
	}
	return strings.Join(parts, "; ")
}

func checkType(result *models.ValidationResult, name string, t schema.FieldType, value string) bool {
	switch t {
	case schema.TypeInteger:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			result.Add(name, models.ViolationType, fmt.Sprintf("%q is not an integer", value))
			return false
		}
	case schema.TypeNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			result.Add(name, models.ViolationType, fmt.Sprintf("%q is not a number", value))
			return false
		}
	case schema.TypeDate:
		if _, err := time.Parse("2006-01-02", value); err != nil {
			result.Add(name, models.ViolationFormat, fmt.Sprintf("%q is not an ISO-8601 date", value))
			return false
		}
	}
	return true
}

func checkEnum(result *models.ValidationResult, name string, f *schema.Field, value string) {
	if len(f.Enum) == 0 {
		return
	}
	for _, allowed := range f.Enum {
		if value == allowed {
			return
		}
		if f.FoldCase && strings.EqualFold(value, allowed) {
			return
		}
	}
	result.Add(name, models.ViolationEnum,
		fmt.Sprintf("%q is not one of the allowed values", value))
}
