package main

import (
	"fmt"
	"os"

	"github.com/seqrelay/seqrelay/internal/config"
	"github.com/seqrelay/seqrelay/internal/logger"
	"github.com/spf13/cobra"
)

// Version info
var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

// Global flags
var (
	noColor bool
	quiet   bool
	verbose bool
	debug   bool
	logFile string
)

// Root command
var rootCmd = &cobra.Command{
	Use:   "seqrelay",
	Short: "Pathogen sequencing metadata processor",
	Long: `seqrelay normalizes laboratory metadata for pathogen sequencing runs and
renders it for multiple submission targets.

It maps heterogeneous spreadsheet headers onto a canonical vocabulary,
fills gaps from curated registries and configured defaults, validates
every sample against each target schema in one pass, and verifies
sequencing files against their checksum manifests before submission.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Example: `  # Process a lab metadata sheet
  seqrelay read-metadata -m lab_metadata.csv -o results/

  # Re-validate a payload set against the ENA schema
  seqrelay validate -j results/processed_metadata_20240301.json -t ena

  # Render validated samples for GISAID
  seqrelay map -j results/processed_metadata_20240301.json -d GISAID

  # Verify sequencing files against their manifest
  seqrelay verify -d fastq/ -m md5sums.txt

  # Inspect past runs
  seqrelay runs list`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		vb := verbose || debug
		qt := quiet
		// Flags win; otherwise the config file's log_level applies. A
		// broken config file is reported by the command itself, not here.
		if !vb && !qt {
			if cfg, err := config.Load(config.GetConfigPath()); err == nil {
				switch cfg.LogLevel {
				case "debug":
					vb = true
				case "error":
					qt = true
				}
			}
		}
		return logger.Setup(vb, qt, false, noColor, logFile)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append logs to a file instead of stderr")

	// Add commands to root
	rootCmd.AddCommand(readMetadataCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(mapCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(longTableCmd)
	rootCmd.AddCommand(bioinfoCmd)
	rootCmd.AddCommand(updateDBCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
