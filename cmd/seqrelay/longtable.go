package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/seqrelay/seqrelay/internal/errors"
	"github.com/seqrelay/seqrelay/internal/longtable"
	"github.com/spf13/cobra"
)

// Long-table command
var longTableCmd = &cobra.Command{
	Use:   "long-table",
	Short: "Aggregate per-sample variant tables",
	Long: `Merge one or more variant long tables into a single table ordered by
sample (in order of first appearance) and position.

Rows missing a structural value (sample, chromosome, position,
reference allele, or caller) are dropped and reported; duplicate calls
are kept as-is so caller disagreement stays visible.`,
	Example: `  # Merge one analysis output
  seqrelay long-table -l results/variants_long_table.csv -o merged/

  # Merge several batches
  seqrelay long-table -l batch1/long_table.csv -l batch2/long_table.csv -o merged/`,
	RunE: runLongTable,
}

// Long-table flags
var (
	longTableFiles []string
	longTableOut   string
)

func init() {
	longTableCmd.Flags().StringArrayVarP(&longTableFiles, "long-table", "l", nil, "Variant long table CSV (repeatable, required)")
	longTableCmd.Flags().StringVarP(&longTableOut, "out-dir", "o", ".", "Directory for output artifacts")
	longTableCmd.MarkFlagRequired("long-table")
}

func runLongTable(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	for _, path := range longTableFiles {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			printError("Long table not found: %s", path)
			return fmt.Errorf("long table not found")
		}
	}

	agg, err := longtable.NewAggregator(cfg.LongTable.Heading)
	if err != nil {
		return err
	}

	dropped := errors.NewSkipCounter("variant rows")
	for _, path := range longTableFiles {
		for _, rowErr := range agg.AddFile(path) {
			printWarning("%v", rowErr)
			dropped.Skip(rowErr, path)
		}
	}
	if agg.Len() == 0 {
		printError("No variant rows aggregated")
		return fmt.Errorf("no variant rows")
	}

	stamp := dateStamp()
	csvPath := filepath.Join(longTableOut, fmt.Sprintf("variants_long_table_%s.csv", stamp))
	jsonPath := filepath.Join(longTableOut, fmt.Sprintf("long_table_%s.json", stamp))

	if err := agg.WriteCSVFile(csvPath); err != nil {
		return fmt.Errorf("writing merged table: %w", err)
	}
	if err := agg.WriteJSONFile(jsonPath); err != nil {
		return fmt.Errorf("writing JSON table: %w", err)
	}

	if dropped.Count > 0 {
		printWarning("%d rows dropped across %d files", dropped.Count, len(longTableFiles))
	}
	printSuccess("Aggregated %d variant rows from %d samples", agg.Len(), len(agg.Samples()))
	if !quiet {
		fmt.Println()
		fmt.Printf("Table: %s\n", csvPath)
		fmt.Printf("JSON:  %s\n", jsonPath)
	}
	return nil
}
