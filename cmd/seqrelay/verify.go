package main

import (
	"fmt"
	"os"

	"github.com/seqrelay/seqrelay/internal/integrity"
	"github.com/seqrelay/seqrelay/internal/models"
	"github.com/seqrelay/seqrelay/internal/ui"
	"github.com/spf13/cobra"
)

// Verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify sequencing files against a checksum manifest",
	Long: `Check every file named in an MD5 manifest against the files in a
directory. Files are hashed concurrently; results keep manifest order.

Under the strict policy a mismatched or missing file blocks submission.
The lenient policy downgrades both to warnings. A file whose extension
is not on the allow-list is rejected under either policy and is never
hashed.`,
	Example: `  # Strict verification of a download folder
  seqrelay verify -d fastq/ -m fastq/md5sums.txt

  # Tolerate missing files, e.g. a partially synced folder
  seqrelay verify -d fastq/ -m fastq/md5sums.txt --lenient

  # Keep the per-file results
  seqrelay verify -d fastq/ -m md5sums.txt --report verify_results.json`,
	RunE: runVerify,
}

// Verify flags
var (
	verifyDir      string
	verifyManifest string
	verifyLenient  bool
	verifyReport   string
)

func init() {
	verifyCmd.Flags().StringVarP(&verifyDir, "dir", "d", "", "Directory holding the sequencing files (required)")
	verifyCmd.Flags().StringVarP(&verifyManifest, "manifest", "m", "", "MD5 manifest file (required)")
	verifyCmd.Flags().BoolVar(&verifyLenient, "lenient", false, "Downgrade mismatch and missing to warnings")
	verifyCmd.Flags().StringVar(&verifyReport, "report", "", "Write per-file results to a JSON file")
	verifyCmd.MarkFlagRequired("dir")
	verifyCmd.MarkFlagRequired("manifest")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	info, err := os.Stat(verifyDir)
	if os.IsNotExist(err) || (err == nil && !info.IsDir()) {
		printError("Directory not found: %s", verifyDir)
		return fmt.Errorf("directory not found")
	}
	if _, err := os.Stat(verifyManifest); os.IsNotExist(err) {
		printError("Manifest not found: %s", verifyManifest)
		return fmt.Errorf("manifest not found")
	}

	entries, err := integrity.ParseManifest(verifyManifest)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}

	policy := integrity.Policy(cfg.Checksum.Policy)
	if verifyLenient {
		policy = integrity.PolicyLenient
	}

	if !quiet {
		printInfo("Verifying sequencing files")
		fmt.Printf("Directory: %s\n", verifyDir)
		fmt.Printf("Manifest:  %s\n", verifyManifest)
		fmt.Printf("Files:     %d\n", len(entries))
		fmt.Printf("Policy:    %s\n", policy)
		fmt.Println()
	}

	verifier := integrity.NewVerifier(verifyDir, cfg.Checksum)

	var spinner *ui.Spinner
	if !quiet {
		spinner = ui.NewSpinner(fmt.Sprintf("Hashing %d files", len(entries)))
		spinner.Start()
	}
	results, err := verifier.VerifyAll(cmd.Context(), entries)
	if spinner != nil {
		spinner.Stop("")
	}
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	blocked := 0
	for _, r := range results {
		switch r.Status {
		case models.VerifyMatch:
			printDebug("%s: ok", r.Filename)
		case models.VerifyMismatch:
			printWarning("%s: checksum mismatch (expected %s, got %s)", r.Filename, r.Expected, r.Actual)
		case models.VerifyMissing:
			if r.Detail != "" {
				printWarning("%s: %s", r.Filename, r.Detail)
			} else {
				printWarning("%s: file not found", r.Filename)
			}
		case models.VerifyRejected:
			printWarning("%s: %s", r.Filename, r.Detail)
		}
		if policy.Blocks(r.Status) {
			blocked++
		}
	}

	counts := integrity.Summary(results)
	if !quiet {
		fmt.Printf("Match:    %s\n", colorize(colorGreen, fmt.Sprintf("%d", counts[models.VerifyMatch])))
		fmt.Printf("Mismatch: %d\n", counts[models.VerifyMismatch])
		fmt.Printf("Missing:  %d\n", counts[models.VerifyMissing])
		fmt.Printf("Rejected: %d\n", counts[models.VerifyRejected])
		fmt.Println()
	}

	if verifyReport != "" {
		if err := writeJSON(verifyReport, results); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		printInfo("Results written to %s", verifyReport)
	}

	if blocked > 0 {
		printError("%d of %d files block submission under the %s policy", blocked, len(entries), policy)
		return fmt.Errorf("verification failed")
	}
	if counts[models.VerifyMatch] == len(results) {
		printSuccess("All %d files verified", len(results))
	} else {
		printSuccess("Verification passed with %d warnings under the %s policy",
			len(results)-counts[models.VerifyMatch], policy)
	}
	return nil
}
