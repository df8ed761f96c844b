package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/seqrelay/seqrelay/internal/models"
	"github.com/seqrelay/seqrelay/internal/schema"
	"github.com/seqrelay/seqrelay/internal/validator"
	"github.com/spf13/cobra"
)

// Validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a payload set against a target schema",
	Long: `Validate an existing payload set against one target schema. Every
violation for every sample is collected in a single pass, so one run
yields the complete diagnostic.

Samples that fail validation are extracted to invalid_samples_<date>.json
together with their violations, ready to send back to the originating
laboratory for correction.`,
	Example: `  # Re-check processed metadata against the relecov schema
  seqrelay validate -j processed_metadata_20240301.json -t relecov

  # Check the same samples against ENA's requirements
  seqrelay validate -j processed_metadata_20240301.json -t ena -o results/`,
	RunE: runValidate,
}

// Validate flags
var (
	validateFile   string
	validateTarget string
	validateOut    string
)

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "json", "j", "", "Payload set to validate (required)")
	validateCmd.Flags().StringVarP(&validateTarget, "target", "t", "", "Target schema: relecov, ena, or gisaid (required)")
	validateCmd.Flags().StringVarP(&validateOut, "out-dir", "o", ".", "Directory for output artifacts")
	validateCmd.MarkFlagRequired("json")
	validateCmd.MarkFlagRequired("target")
}

// invalidSample pairs a rejected payload with its violations for lab
// follow-up.
type invalidSample struct {
	*models.TargetPayload
	Violations []models.Violation `json:"violations"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	payloads, err := loadPayloads(validateFile)
	if err != nil {
		return err
	}

	def, err := loadTargetSchema(cfg, validateTarget)
	if err != nil {
		printError("Cannot load schema for target %q: %v", validateTarget, err)
		fmt.Fprintf(os.Stderr, "Available targets: %s\n", strings.Join(schema.Targets(), ", "))
		return fmt.Errorf("schema load failed")
	}

	if !quiet {
		printInfo("Validating payload set")
		fmt.Printf("Input:   %s\n", validateFile)
		fmt.Printf("Samples: %d\n", len(payloads))
		fmt.Printf("Target:  %s\n", def.Target)
		fmt.Println()
	}

	summary := models.RunSummary{
		Command:   "validate",
		StartedAt: time.Now().UTC(),
		Total:     len(payloads),
	}

	results := make([]*models.ValidationResult, len(payloads))
	var invalid []invalidSample
	for i, p := range payloads {
		vr := validator.Validate(p, def)
		results[i] = vr

		outcome := models.SampleOutcome{
			SampleID: p.SampleID,
			Target:   def.Target,
			Status:   models.StatusReady,
		}
		if vr.Ready() {
			summary.Ready++
		} else {
			summary.Rejected++
			outcome.Status = models.StatusRejected
			outcome.Detail = validator.Describe(vr)
			invalid = append(invalid, invalidSample{TargetPayload: p, Violations: vr.Violations})
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}
	summary.FinishedAt = time.Now().UTC()

	stamp := dateStamp()
	reportPath := filepath.Join(validateOut, fmt.Sprintf("validation_report_%s.json", stamp))
	report := struct {
		Target  string                     `json:"target"`
		Results []*models.ValidationResult `json:"results"`
		Summary models.RunSummary          `json:"summary"`
	}{def.Target, results, summary}
	if err := writeJSON(reportPath, report); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if len(invalid) > 0 {
		invalidPath := filepath.Join(validateOut, fmt.Sprintf("invalid_samples_%s.json", stamp))
		if err := writeJSON(invalidPath, invalid); err != nil {
			return fmt.Errorf("writing invalid-sample extract: %w", err)
		}
		printWarning("%d of %d samples failed validation; extract written to %s",
			len(invalid), len(payloads), invalidPath)
	}

	recordRun(cfg, &summary)

	printSuccess("Validated %d samples against %s", len(payloads), def.Target)
	printRunSummary(&summary)
	if !quiet {
		fmt.Println()
		fmt.Printf("Report: %s\n", reportPath)
	}
	return nil
}
