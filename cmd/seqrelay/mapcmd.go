package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/seqrelay/seqrelay/internal/converter"
	"github.com/seqrelay/seqrelay/internal/models"
	"github.com/seqrelay/seqrelay/internal/schema"
	"github.com/seqrelay/seqrelay/internal/validator"
	"github.com/spf13/cobra"
)

// Map command
var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Render validated metadata for a destination schema",
	Long: `Transform a canonical payload set into the shape a destination expects:
fields are renamed, composed, and defaulted per the destination schema,
then validated against it.

Destinations are case-sensitive: ENA or GISAID. A custom schema file
given with --schema-file overrides the destination choice.`,
	Example: `  # Render for ENA
  seqrelay map -j processed_metadata_20240301.json -d ENA

  # Render for GISAID into a results directory
  seqrelay map -j processed_metadata_20240301.json -d GISAID -o results/

  # Use an in-house schema
  seqrelay map -j processed_metadata_20240301.json -f lab_schema.json`,
	RunE: runMap,
}

// Map flags
var (
	mapFile        string
	mapDestination string
	mapSchemaFile  string
	mapOut         string
)

func init() {
	mapCmd.Flags().StringVarP(&mapFile, "json", "j", "", "Canonical payload set (required)")
	mapCmd.Flags().StringVarP(&mapDestination, "destination", "d", "", "Destination schema: ENA or GISAID")
	mapCmd.Flags().StringVarP(&mapSchemaFile, "schema-file", "f", "", "Custom schema definition file")
	mapCmd.Flags().StringVarP(&mapOut, "out-dir", "o", ".", "Directory for output artifacts")
	mapCmd.MarkFlagRequired("json")
}

func runMap(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var def *schema.Definition
	switch {
	case mapSchemaFile != "":
		if _, err := os.Stat(mapSchemaFile); os.IsNotExist(err) {
			printError("Schema file not found: %s", mapSchemaFile)
			return fmt.Errorf("schema file not found")
		}
		def, err = schema.Load(mapSchemaFile)
		if err != nil {
			return err
		}
		if err := checkSchema(cfg, def); err != nil {
			printError("Schema %s is not usable: %v", mapSchemaFile, err)
			return fmt.Errorf("schema check failed")
		}
	case mapDestination == "ENA":
		def, err = loadTargetSchema(cfg, "ena")
		if err != nil {
			return err
		}
	case mapDestination == "GISAID":
		def, err = loadTargetSchema(cfg, "gisaid")
		if err != nil {
			return err
		}
	case mapDestination == "":
		return fmt.Errorf("either --destination or --schema-file is required")
	default:
		return fmt.Errorf("unknown destination %q: must be ENA or GISAID (case-sensitive)", mapDestination)
	}

	payloads, err := loadPayloads(mapFile)
	if err != nil {
		return err
	}
	records := payloadRecords(payloads, cfg.SampleIDField)

	regs, err := loadRegistries()
	if err != nil {
		return err
	}
	tr := converter.New(def, regs, cfg)

	if !quiet {
		printInfo("Rendering payloads")
		fmt.Printf("Input:       %s\n", mapFile)
		fmt.Printf("Samples:     %d\n", len(records))
		fmt.Printf("Destination: %s\n", def.Target)
		fmt.Println()
	}

	summary := models.RunSummary{
		Command:   "map",
		StartedAt: time.Now().UTC(),
		Total:     len(records),
	}

	rendered := make([]*models.TargetPayload, len(records))
	results := make([]*models.ValidationResult, len(records))
	for i := range records {
		payload := tr.Transform(&records[i])
		rendered[i] = payload
		vr := validator.Validate(payload, def)
		results[i] = vr

		outcome := models.SampleOutcome{
			SampleID: payload.SampleID,
			Target:   def.Target,
			Status:   models.StatusReady,
		}
		if vr.Ready() {
			summary.Ready++
		} else {
			summary.Rejected++
			outcome.Status = models.StatusRejected
			outcome.Detail = validator.Describe(vr)
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}
	summary.FinishedAt = time.Now().UTC()

	stamp := dateStamp()
	payloadPath := filepath.Join(mapOut, fmt.Sprintf("%s_payloads_%s.json", def.Target, stamp))
	reportPath := filepath.Join(mapOut, fmt.Sprintf("%s_report_%s.json", def.Target, stamp))

	if err := writeJSON(payloadPath, rendered); err != nil {
		return fmt.Errorf("writing payloads: %w", err)
	}
	report := struct {
		Target  string                     `json:"target"`
		Results []*models.ValidationResult `json:"results"`
		Summary models.RunSummary          `json:"summary"`
	}{def.Target, results, summary}
	if err := writeJSON(reportPath, report); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	recordRun(cfg, &summary)

	printSuccess("Rendered %d samples for %s", len(rendered), def.Target)
	printRunSummary(&summary)
	if !quiet {
		fmt.Println()
		fmt.Printf("Payloads: %s\n", payloadPath)
		fmt.Printf("Report:   %s\n", reportPath)
	}
	return nil
}
