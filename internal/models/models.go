package models

import (
	"time"
)

// SentinelNone is the value laboratories enter when a field is
// explicitly not applicable, as opposed to simply left blank.
const SentinelNone = "None"

// CanonicalRecord holds one sample's metadata keyed by canonical field name
type CanonicalRecord struct {
	SampleID string            `json:"sample_id"`
	Row      int               `json:"row"` // source sheet row, counting the header as row 1
	Fields   map[string]string `json:"fields"`
	Extra    map[string]string `json:"extra,omitempty"` // input headers with no canonical mapping
}

// Get returns the value of a canonical field and whether it is present.
func (r *CanonicalRecord) Get(name string) (string, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Set assigns a canonical field value, allocating the map on first use.
func (r *CanonicalRecord) Set(name, value string) {
	if r.Fields == nil {
		r.Fields = make(map[string]string)
	}
	r.Fields[name] = value
}

// Has reports whether a canonical field carries a non-empty value.
func (r *CanonicalRecord) Has(name string) bool {
	v, ok := r.Fields[name]
	return ok && v != ""
}

// MappingConflict reports two or more raw headers claiming the same
// canonical field. The field is unusable for the affected sheet.
type MappingConflict struct {
	Canonical string   `json:"canonical"`
	Headers   []string `json:"headers"`
}

// FieldMapping records how raw spreadsheet headers resolve to canonical names
type FieldMapping struct {
	ByHeader  map[string]string `json:"by_header"`
	Unmapped  []string          `json:"unmapped,omitempty"`
	Conflicts []MappingConflict `json:"conflicts,omitempty"`
}

// TargetPayload is one sample rendered for a single target schema.
// Fields are keyed by the schema's output (renamed) field names.
type TargetPayload struct {
	Target    string            `json:"target"`
	SampleID  string            `json:"sample_id"`
	Fields    map[string]string `json:"fields"`
	Omissions []string          `json:"omissions,omitempty"` // schema fields with no resolvable source
}

// ViolationKind classifies a schema violation
type ViolationKind string

const (
	ViolationMissing ViolationKind = "missing_required"
	ViolationType    ViolationKind = "type_mismatch"
	ViolationEnum    ViolationKind = "enum_mismatch"
	ViolationFormat  ViolationKind = "format"
)

// Violation is a single schema violation for one field
type Violation struct {
	Field  string        `json:"field"`
	Kind   ViolationKind `json:"kind"`
	Detail string        `json:"detail,omitempty"`
}

// ValidationResult collects every violation found for one sample
// against one target schema. An empty violation list means the sample
// is submission-ready for that target.
type ValidationResult struct {
	Target     string      `json:"target"`
	SampleID   string      `json:"sample_id"`
	Violations []Violation `json:"violations,omitempty"`
}

// Ready reports whether the sample passed validation for this target.
func (r *ValidationResult) Ready() bool {
	return len(r.Violations) == 0
}

// Add appends a violation.
func (r *ValidationResult) Add(field string, kind ViolationKind, detail string) {
	r.Violations = append(r.Violations, Violation{Field: field, Kind: kind, Detail: detail})
}

// ManifestEntry is one line of a checksum manifest
type ManifestEntry struct {
	Filename string `json:"filename"`
	Digest   string `json:"digest"`
}

// VerifyStatus is the outcome of checking one manifest entry
type VerifyStatus string

const (
	VerifyMatch    VerifyStatus = "match"
	VerifyMismatch VerifyStatus = "mismatch"
	VerifyMissing  VerifyStatus = "missing"
	VerifyRejected VerifyStatus = "rejected" // extension not allowed, never hashed
)

// VerifyResult reports the verification outcome for one file
type VerifyResult struct {
	Filename string       `json:"filename"`
	Status   VerifyStatus `json:"status"`
	Expected string       `json:"expected,omitempty"`
	Actual   string       `json:"actual,omitempty"`
	Detail   string       `json:"detail,omitempty"`
}

// VariantRow is one variant call from an analysis output table.
// Identity is {sample, chrom, pos, ref} with the caller kept distinct;
// Values carries the full column set keyed by heading name.
type VariantRow struct {
	Sample string            `json:"sample"`
	Chrom  string            `json:"chrom"`
	Pos    int               `json:"pos"`
	Ref    string            `json:"ref"`
	Caller string            `json:"caller"`
	Values map[string]string `json:"values"`
}

// OutcomeStatus is the per-sample disposition of a pipeline run
type OutcomeStatus string

const (
	StatusReady    OutcomeStatus = "ready"
	StatusRejected OutcomeStatus = "rejected"
)

// SampleOutcome is one sample's disposition for one target
type SampleOutcome struct {
	SampleID string        `json:"sample_id" db:"sample_id"`
	Target   string        `json:"target" db:"target"`
	Status   OutcomeStatus `json:"status" db:"status"`
	Detail   string        `json:"detail,omitempty" db:"detail"`
}

// RunSummary aggregates the disposition of a whole pipeline run
type RunSummary struct {
	ID         int64           `json:"id,omitempty" db:"run_id"`
	Command    string          `json:"command" db:"command"`
	StartedAt  time.Time       `json:"started_at" db:"started_at"`
	FinishedAt time.Time       `json:"finished_at" db:"finished_at"`
	Total      int             `json:"total_samples" db:"samples_total"`
	Ready      int             `json:"ready" db:"samples_ready"`
	Rejected   int             `json:"rejected" db:"samples_rejected"`
	Fatal      int             `json:"fatal" db:"samples_fatal"`
	Warnings   int             `json:"warnings" db:"warnings"`
	Outcomes   []SampleOutcome `json:"outcomes,omitempty"`
}
