package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/seqrelay/seqrelay/internal/bioinfo"
	"github.com/spf13/cobra"
)

// Bioinfo-metadata command
var bioinfoCmd = &cobra.Command{
	Use:   "bioinfo-metadata",
	Short: "Assemble the bioinformatics metadata bundle",
	Long: `Join validated sample metadata with pipeline analysis outputs: software
defaults for every pipeline stage, measured quality metrics, and
per-sample variant calls.

The analysis directory is scanned for variant long tables
(*long_table*.csv) and metrics sheets (*stats*.csv). A sample without
metrics or variants stays in the bundle with the gap recorded as an
omission; assembly never aborts on missing analysis output.`,
	Example: `  # Assemble from a pipeline results directory
  seqrelay bioinfo-metadata -m processed_metadata_20240301.json -i analysis/ -o results/`,
	RunE: runBioinfo,
}

// Bioinfo-metadata flags
var (
	bioinfoMetadata string
	bioinfoInput    string
	bioinfoOut      string
)

func init() {
	bioinfoCmd.Flags().StringVarP(&bioinfoMetadata, "metadata", "m", "", "Validated payload set from read-metadata (required)")
	bioinfoCmd.Flags().StringVarP(&bioinfoInput, "input", "i", "", "Analysis output directory (required)")
	bioinfoCmd.Flags().StringVarP(&bioinfoOut, "out-dir", "o", ".", "Directory for output artifacts")
	bioinfoCmd.MarkFlagRequired("metadata")
	bioinfoCmd.MarkFlagRequired("input")
}

func runBioinfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if _, err := os.Stat(bioinfoMetadata); os.IsNotExist(err) {
		printError("Metadata file not found: %s", bioinfoMetadata)
		return fmt.Errorf("metadata file not found")
	}
	info, err := os.Stat(bioinfoInput)
	if os.IsNotExist(err) || (err == nil && !info.IsDir()) {
		printError("Analysis directory not found: %s", bioinfoInput)
		return fmt.Errorf("analysis directory not found")
	}

	payloads, err := loadPayloads(bioinfoMetadata)
	if err != nil {
		return err
	}
	records := payloadRecords(payloads, cfg.SampleIDField)

	asm, err := bioinfo.New(cfg)
	if err != nil {
		return err
	}

	loaded, scanErrs := asm.ScanDir(bioinfoInput)
	if len(loaded) == 0 {
		for _, e := range scanErrs {
			printError("%v", e)
		}
		return fmt.Errorf("no analysis outputs")
	}
	for _, e := range scanErrs {
		printWarning("%v", e)
	}
	for _, path := range loaded {
		printDebug("loaded %s", path)
	}

	if !quiet {
		printInfo("Assembling bioinformatics metadata")
		fmt.Printf("Metadata: %s\n", bioinfoMetadata)
		fmt.Printf("Analysis: %s (%d files)\n", bioinfoInput, len(loaded))
		fmt.Printf("Samples:  %d\n", len(records))
		fmt.Println()
	}

	bundle, stats := asm.Assemble(records)

	stamp := dateStamp()
	bundlePath := filepath.Join(bioinfoOut, fmt.Sprintf("bioinfo_metadata_%s.json", stamp))
	if err := bundle.WriteFile(bundlePath); err != nil {
		return fmt.Errorf("writing bundle: %w", err)
	}

	var tablePath string
	if asm.Variants().Len() > 0 {
		tablePath = filepath.Join(bioinfoOut, fmt.Sprintf("variants_long_table_%s.csv", stamp))
		if err := asm.Variants().WriteCSVFile(tablePath); err != nil {
			return fmt.Errorf("writing merged variant table: %w", err)
		}
	}

	printSuccess("Assembled bundle for %d samples", stats.Samples)
	if !quiet {
		fmt.Printf("With metrics:  %d\n", stats.WithMetrics)
		fmt.Printf("With variants: %d\n", stats.WithVariants)
		if stats.Omissions > 0 {
			fmt.Printf("Omissions:     %d\n", stats.Omissions)
		}
		fmt.Println()
		fmt.Printf("Bundle: %s\n", bundlePath)
		if tablePath != "" {
			fmt.Printf("Table:  %s\n", tablePath)
		}
	}
	return nil
}
