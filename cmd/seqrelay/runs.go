package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/seqrelay/seqrelay/internal/database"
	"github.com/seqrelay/seqrelay/internal/models"
	"github.com/spf13/cobra"
)

// Runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Query the submission log",
	Long:  `Inspect recorded pipeline runs and per-sample outcomes.`,
	Example: `  seqrelay runs list
  seqrelay runs show 3
  seqrelay runs sample SEQ-0001`,
}

// Runs list subcommand
var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	RunE:  runRunsList,
}

// Runs show subcommand
var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run with its per-sample outcomes",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

// Runs sample subcommand
var runsSampleCmd = &cobra.Command{
	Use:   "sample <sample-id>",
	Short: "Show every recorded outcome for one sample",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsSample,
}

var runsListLimit int

func init() {
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsSampleCmd)

	runsListCmd.Flags().IntVar(&runsListLimit, "limit", 20, "Maximum runs to list (0 for all)")
}

// openLog opens the submission log read path shared by the runs
// subcommands.
func openLog() (*database.Log, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	dbPath := cfg.DatabasePath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		printError("No submission log found at %s", dbPath)
		fmt.Fprintf(os.Stderr, "\nProcess a metadata sheet first:\n")
		fmt.Fprintf(os.Stderr, "  seqrelay read-metadata -m lab_metadata.csv\n")
		return nil, fmt.Errorf("submission log not found")
	}
	log, err := database.Initialize(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening submission log: %w", err)
	}
	return log, nil
}

// statusColor pads before coloring so escape codes never skew columns.
func statusColor(status models.OutcomeStatus) string {
	padded := fmt.Sprintf("%-9s", status)
	switch status {
	case models.StatusReady:
		return colorize(colorGreen, padded)
	case models.StatusRejected:
		return colorize(colorYellow, padded)
	default:
		return colorize(colorRed, padded)
	}
}

func runRunsList(cmd *cobra.Command, args []string) error {
	log, err := openLog()
	if err != nil {
		return err
	}
	defer log.Close()

	runs, err := log.ListRuns(runsListLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		printInfo("No runs recorded yet")
		return nil
	}

	fmt.Printf("%s\n", colorize(colorBold,
		fmt.Sprintf("%-5s %-15s %-20s %7s %6s %9s %6s %5s",
			"ID", "COMMAND", "FINISHED", "SAMPLES", "READY", "REJECTED", "FATAL", "WARN")))
	fmt.Println(colorize(colorGray, strings.Repeat("─", 80)))
	for _, r := range runs {
		fmt.Printf("%-5d %-15s %-20s %7d %6d %9d %6d %5d\n",
			r.ID, r.Command, r.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			r.Total, r.Ready, r.Rejected, r.Fatal, r.Warnings)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q", args[0])
	}

	log, err := openLog()
	if err != nil {
		return err
	}
	defer log.Close()

	run, err := log.GetRun(id)
	if err != nil {
		return err
	}

	printInfo("Run %d: %s", run.ID, run.Command)
	fmt.Printf("Started:  %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Finished: %s\n", run.FinishedAt.Local().Format("2006-01-02 15:04:05"))
	printRunSummary(run)

	if len(run.Outcomes) > 0 {
		fmt.Println()
		fmt.Printf("%s\n", colorize(colorBold,
			fmt.Sprintf("%-20s %-10s %-9s %s", "SAMPLE", "TARGET", "STATUS", "DETAIL")))
		fmt.Println(colorize(colorGray, strings.Repeat("─", 70)))
		for _, o := range run.Outcomes {
			fmt.Printf("%-20s %-10s %s %s\n", o.SampleID, o.Target, statusColor(o.Status), o.Detail)
		}
	}
	return nil
}

func runRunsSample(cmd *cobra.Command, args []string) error {
	log, err := openLog()
	if err != nil {
		return err
	}
	defer log.Close()

	events, err := log.SampleHistory(args[0])
	if err != nil {
		return err
	}
	if len(events) == 0 {
		printInfo("No outcomes recorded for %s", args[0])
		return nil
	}

	printInfo("History for %s", args[0])
	fmt.Printf("%s\n", colorize(colorBold,
		fmt.Sprintf("%-5s %-15s %-20s %-10s %-9s %s", "RUN", "COMMAND", "FINISHED", "TARGET", "STATUS", "DETAIL")))
	fmt.Println(colorize(colorGray, strings.Repeat("─", 90)))
	for _, e := range events {
		fmt.Printf("%-5d %-15s %-20s %-10s %s %s\n",
			e.RunID, e.Command, e.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			e.Outcome.Target, statusColor(e.Outcome.Status), e.Outcome.Detail)
	}
	return nil
}
