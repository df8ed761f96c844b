package validator

import (
	"testing"

	"github.com/seqrelay/seqrelay/internal/models"
	"github.com/seqrelay/seqrelay/internal/schema"
)

func testDefinition() *schema.Definition {
	return &schema.Definition{
		Target:  "test",
		Version: "1",
		Fields: []schema.Field{
			{Name: "sample_id", Type: schema.TypeString, Required: true},
			{Name: "collection_date", Type: schema.TypeDate, Required: true},
			{Name: "host_age", Type: schema.TypeInteger},
			{Name: "ct_value", Type: schema.TypeNumber},
			{Name: "platform", Type: schema.TypeString, Required: true,
				Enum: []string{"ILLUMINA", "OXFORD_NANOPORE"}, FoldCase: true},
			{Name: "layout", Type: schema.TypeString,
				Enum: []string{"PAIRED", "SINGLE"}},
		},
	}
}

func payloadWith(fields map[string]string) *models.TargetPayload {
	return &models.TargetPayload{
		Target:   "test",
		SampleID: "S1",
		Fields:   fields,
	}
}

func TestValidateReady(t *testing.T) {
	result := Validate(payloadWith(map[string]string{
		"sample_id":       "S1",
		"collection_date": "2024-03-05",
		"host_age":        "42",
		"ct_value":        "24.5",
		"platform":        "ILLUMINA",
		"layout":          "PAIRED",
	}), testDefinition())

	if !result.Ready() {
		t.Errorf("expected ready, got violations: %+v", result.Violations)
	}
	if result.Target != "test" || result.SampleID != "S1" {
		t.Errorf("result identity = %q/%q", result.Target, result.SampleID)
	}
}

func TestValidateMissingRequired(t *testing.T) {
	result := Validate(payloadWith(map[string]string{
		"sample_id": "S1",
		"platform":  "ILLUMINA",
	}), testDefinition())

	if result.Ready() {
		t.Fatal("expected rejection")
	}
	if len(result.Violations) != 1 {
		t.Fatalf("violations = %+v, want exactly one", result.Violations)
	}
	v := result.Violations[0]
	if v.Field != "collection_date" || v.Kind != models.ViolationMissing {
		t.Errorf("violation = %+v", v)
	}
}

func TestValidateEmptyValueCountsAsMissing(t *testing.T) {
	result := Validate(payloadWith(map[string]string{
		"sample_id":       "",
		"collection_date": "2024-03-05",
		"platform":        "ILLUMINA",
	}), testDefinition())

	if len(result.Violations) != 1 || result.Violations[0].Kind != models.ViolationMissing {
		t.Errorf("violations = %+v, want one missing_required", result.Violations)
	}
}

func TestValidateOptionalAbsentIsFine(t *testing.T) {
	result := Validate(payloadWith(map[string]string{
		"sample_id":       "S1",
		"collection_date": "2024-03-05",
		"platform":        "ILLUMINA",
	}), testDefinition())

	if !result.Ready() {
		t.Errorf("absent optional fields must not violate, got %+v", result.Violations)
	}
}

func TestValidateNoneSentinel(t *testing.T) {
	// "None" satisfies a required field and bypasses type and enum.
	result := Validate(payloadWith(map[string]string{
		"sample_id":       "S1",
		"collection_date": models.SentinelNone,
		"host_age":        models.SentinelNone,
		"platform":        models.SentinelNone,
	}), testDefinition())

	if !result.Ready() {
		t.Errorf("sentinel values must pass, got %+v", result.Violations)
	}
}

func TestValidateTypeChecks(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value string
		kind  models.ViolationKind
	}{
		{"integer with decimal", "host_age", "4.2", models.ViolationType},
		{"integer with text", "host_age", "forty", models.ViolationType},
		{"number with text", "ct_value", "high", models.ViolationType},
		{"date not normalized", "collection_date", "03/05/2024", models.ViolationFormat},
		{"date out of range", "collection_date", "2024-13-45", models.ViolationFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := map[string]string{
				"sample_id":       "S1",
				"collection_date": "2024-03-05",
				"platform":        "ILLUMINA",
			}
			fields[tt.field] = tt.value
			result := Validate(payloadWith(fields), testDefinition())

			if len(result.Violations) != 1 {
				t.Fatalf("violations = %+v, want exactly one", result.Violations)
			}
			v := result.Violations[0]
			if v.Field != tt.field || v.Kind != tt.kind {
				t.Errorf("violation = %+v, want field %q kind %q", v, tt.field, tt.kind)
			}
		})
	}
}

func TestValidateEnum(t *testing.T) {
	// layout is case-sensitive, platform folds case.
	fields := map[string]string{
		"sample_id":       "S1",
		"collection_date": "2024-03-05",
		"platform":        "illumina",
		"layout":          "paired",
	}
	result := Validate(payloadWith(fields), testDefinition())

	if len(result.Violations) != 1 {
		t.Fatalf("violations = %+v, want exactly one", result.Violations)
	}
	v := result.Violations[0]
	if v.Field != "layout" || v.Kind != models.ViolationEnum {
		t.Errorf("violation = %+v, want enum violation on layout", v)
	}
}

func TestValidateEnumRejectsUnknownValue(t *testing.T) {
	fields := map[string]string{
		"sample_id":       "S1",
		"collection_date": "2024-03-05",
		"platform":        "SOLID",
	}
	result := Validate(payloadWith(fields), testDefinition())

	if len(result.Violations) != 1 || result.Violations[0].Kind != models.ViolationEnum {
		t.Errorf("violations = %+v, want one enum violation", result.Violations)
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	result := Validate(payloadWith(map[string]string{
		"collection_date": "someday",
		"host_age":        "old",
		"platform":        "SOLID",
	}), testDefinition())

	if len(result.Violations) != 4 {
		t.Fatalf("violations = %+v, want 4", result.Violations)
	}
	kinds := map[models.ViolationKind]int{}
	for _, v := range result.Violations {
		kinds[v.Kind]++
	}
	if kinds[models.ViolationMissing] != 1 { // sample_id
		t.Errorf("missing_required count = %d, want 1", kinds[models.ViolationMissing])
	}
	if kinds[models.ViolationFormat] != 1 { // collection_date
		t.Errorf("format count = %d, want 1", kinds[models.ViolationFormat])
	}
	if kinds[models.ViolationType] != 1 { // host_age
		t.Errorf("type_mismatch count = %d, want 1", kinds[models.ViolationType])
	}
	if kinds[models.ViolationEnum] != 1 { // platform
		t.Errorf("enum_mismatch count = %d, want 1", kinds[models.ViolationEnum])
	}
}

func TestValidateTypeFailureSkipsEnum(t *testing.T) {
	def := &schema.Definition{
		Target:  "test",
		Version: "1",
		Fields: []schema.Field{
			{Name: "grade", Type: schema.TypeInteger, Enum: []string{"1", "2", "3"}},
		},
	}
	result := Validate(payloadWith(map[string]string{"grade": "abc"}), def)

	if len(result.Violations) != 1 {
		t.Fatalf("violations = %+v, want one (type only)", result.Violations)
	}
	if result.Violations[0].Kind != models.ViolationType {
		t.Errorf("kind = %q, want type_mismatch", result.Violations[0].Kind)
	}
}

func TestValidateAgainstEmbeddedSchema(t *testing.T) {
	def, err := schema.LoadTarget("relecov")
	if err != nil {
		t.Fatalf("LoadTarget error = %v", err)
	}

	payload := payloadWith(map[string]string{
		"sequencing_sample_id":           "SEQ-0001",
		"collecting_lab_sample_id":       "LAB-77",
		"collecting_institution":         "Hospital Universitario La Paz",
		"sample_collection_date":         "2024-03-05",
		"organism":                       "Severe acute respiratory syndrome coronavirus 2",
		"host_scientific_name":           "Homo sapiens",
		"host_disease":                   "COVID-19",
		"geo_loc_country":                "Spain",
		"geo_loc_state":                  "Comunidad de Madrid",
		"sequencing_instrument_platform": "ILLUMINA",
		"sequencing_instrument_model":    "NextSeq 550",
		"sequence_file_R1_fastq":         "SEQ-0001_R1.fastq.gz",
	})
	result := Validate(payload, def)
	if !result.Ready() {
		t.Errorf("expected ready, got %+v", result.Violations)
	}
}
