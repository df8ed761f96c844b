package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/seqrelay/seqrelay/internal/mapper"
	"github.com/seqrelay/seqrelay/internal/models"
	"github.com/seqrelay/seqrelay/internal/pipeline"
	"github.com/seqrelay/seqrelay/internal/schema"
	"github.com/seqrelay/seqrelay/internal/tabular"
	"github.com/spf13/cobra"
)

// Read-metadata command
var readMetadataCmd = &cobra.Command{
	Use:   "read-metadata",
	Short: "Process a lab metadata sheet into submission-ready JSON",
	Long: `Read a laboratory metadata sheet, map its headers onto the canonical
vocabulary, fill gaps from registries and configured defaults, and
validate every sample against the relecov schema.

Two artifacts are written to the output directory:
  • processed_metadata_<date>.json  the full payload set, one entry per
    sample, ready for validate, map, and bioinfo-metadata
  • mapping_report_<date>.json      header mapping, per-sample verdicts,
    and the run summary

Rows without a sample identifier are dropped and reported; they never
abort the rest of the sheet.`,
	Example: `  # Process a CSV sheet into the current directory
  seqrelay read-metadata -m lab_metadata.csv

  # Tab-separated sheets are detected by extension (.tsv, .tab, .txt)
  seqrelay read-metadata -m lab_metadata.tsv -o results/`,
	RunE: runReadMetadata,
}

// Read-metadata flags
var (
	readMetadataFile string
	readMetadataOut  string
)

func init() {
	readMetadataCmd.Flags().StringVarP(&readMetadataFile, "metadata", "m", "", "Lab metadata sheet (CSV, required)")
	readMetadataCmd.Flags().StringVarP(&readMetadataOut, "out-dir", "o", ".", "Directory for output artifacts")
	readMetadataCmd.MarkFlagRequired("metadata")
}

func runReadMetadata(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if _, err := os.Stat(readMetadataFile); os.IsNotExist(err) {
		printError("Metadata sheet not found: %s", readMetadataFile)
		return fmt.Errorf("metadata sheet not found")
	}

	sheet, err := tabular.ReadFile(readMetadataFile)
	if err != nil {
		return fmt.Errorf("reading metadata sheet: %w", err)
	}

	dict, err := mapper.LoadDictionary("")
	if err != nil {
		return err
	}
	table, err := mapper.NewTable(dict)
	if err != nil {
		return err
	}
	regs, err := loadRegistries()
	if err != nil {
		return err
	}
	geoVer, labVer := regs.Versions()
	printDebug("vocabulary v%s (%d fields), registries geo v%s lab v%s",
		table.Version(), len(table.Vocabulary()), geoVer, labVer)
	def, err := loadTargetSchema(cfg, "relecov")
	if err != nil {
		return err
	}

	engine := pipeline.New(cfg, table, regs, []*schema.Definition{def})

	// Show run info
	if !quiet {
		printInfo("Processing lab metadata")
		fmt.Printf("Input:   %s\n", readMetadataFile)
		fmt.Printf("Rows:    %d\n", len(sheet.Rows))
		fmt.Printf("Target:  %s\n", strings.Join(engine.Targets(), ", "))
		fmt.Println()
	}

	report, err := engine.ProcessSheet(cmd.Context(), sheet, "read-metadata")
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	for _, w := range sheet.Warnings {
		printWarning("row %d: %s", w.Row, w.Message)
	}
	for _, c := range report.Mapping.Conflicts {
		printWarning("headers %s all map to %s; field left unmapped",
			strings.Join(c.Headers, ", "), c.Canonical)
	}
	if len(report.Mapping.Unmapped) > 0 {
		printDebug("unmapped headers kept as extra data: %s",
			strings.Join(report.Mapping.Unmapped, ", "))
	}
	for _, rowErr := range report.RowErrors {
		printWarning("row dropped: %v", rowErr)
	}

	payloads := make([]*models.TargetPayload, len(report.Results))
	for i := range report.Results {
		payloads[i] = report.Results[i].Payloads["relecov"]
	}

	stamp := dateStamp()
	payloadPath := filepath.Join(readMetadataOut, fmt.Sprintf("processed_metadata_%s.json", stamp))
	reportPath := filepath.Join(readMetadataOut, fmt.Sprintf("mapping_report_%s.json", stamp))

	if err := writeJSON(payloadPath, payloads); err != nil {
		return fmt.Errorf("writing payloads: %w", err)
	}
	if err := writeJSON(reportPath, report); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	recordRun(cfg, &report.Summary)

	printSuccess("Processed %d samples", report.Summary.Total)
	printRunSummary(&report.Summary)
	if !quiet {
		fmt.Println()
		fmt.Printf("Payloads: %s\n", payloadPath)
		fmt.Printf("Report:   %s\n", reportPath)
	}
	return nil
}
