package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/seqrelay/seqrelay/internal/config"
	"github.com/seqrelay/seqrelay/internal/database"
	"github.com/seqrelay/seqrelay/internal/mapper"
	"github.com/seqrelay/seqrelay/internal/models"
	"github.com/seqrelay/seqrelay/internal/paths"
	"github.com/seqrelay/seqrelay/internal/registry"
	"github.com/seqrelay/seqrelay/internal/schema"
)

// Color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Check if output is to terminal
func isTerminal() bool {
	fileInfo, _ := os.Stdout.Stat()
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// Apply color if terminal output and color enabled
func colorize(color, text string) string {
	if !noColor && isTerminal() && os.Getenv("NO_COLOR") == "" {
		return color + text + colorReset
	}
	return text
}

// Print error message in user-friendly format
func printError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "%s %s\n", colorize(colorRed, "✗"), msg)
}

// Print success message
func printSuccess(format string, args ...interface{}) {
	if !quiet {
		msg := fmt.Sprintf(format, args...)
		fmt.Printf("%s %s\n", colorize(colorGreen, "✓"), msg)
	}
}

// Print info message
func printInfo(format string, args ...interface{}) {
	if !quiet {
		msg := fmt.Sprintf(format, args...)
		fmt.Printf("%s\n", colorize(colorCyan, msg))
	}
}

// Print warning message
func printWarning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "%s %s\n", colorize(colorYellow, "⚠"), msg)
}

// Print debug message
func printDebug(format string, args ...interface{}) {
	if debug {
		msg := fmt.Sprintf(format, args...)
		fmt.Fprintf(os.Stderr, "%s %s\n", colorize(colorGray, "[DEBUG]"), msg)
	}
}

// loadConfig reads the configuration file, falling back to the
// embedded defaults when none exists.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.GetConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// loadTargetSchema prefers a schema override of the same name in the
// schema directory over the embedded definition. Every loaded schema
// must pass the source check before any command uses it.
func loadTargetSchema(cfg *config.Config, target string) (*schema.Definition, error) {
	path := filepath.Join(paths.GetSchemaDir(), target+".json")
	var (
		def *schema.Definition
		err error
	)
	if _, statErr := os.Stat(path); statErr == nil {
		printDebug("using schema override %s", path)
		def, err = schema.Load(path)
	} else {
		def, err = schema.LoadTarget(target)
	}
	if err != nil {
		return nil, err
	}
	if err := checkSchema(cfg, def); err != nil {
		return nil, err
	}
	return def, nil
}

// checkSchema verifies against the canonical vocabulary that every
// schema field has a viable source. A schema that fails here would
// produce unfillable fields on every run, so loading stops instead.
func checkSchema(cfg *config.Config, def *schema.Definition) error {
	dict, err := mapper.LoadDictionary("")
	if err != nil {
		return err
	}
	table, err := mapper.NewTable(dict)
	if err != nil {
		return err
	}
	return def.Check(table, cfg)
}

// loadRegistries loads the lookup registries, honoring override files
// in the registry directory.
func loadRegistries() (*registry.Set, error) {
	return registry.Load(
		registryOverride("geographic_locations"),
		registryOverride("laboratory_addresses"),
	)
}

func registryOverride(name string) string {
	path := filepath.Join(paths.GetRegistryDir(), name+".json")
	if _, err := os.Stat(path); err == nil {
		printDebug("using registry override %s", path)
		return path
	}
	return ""
}

// loadPayloads reads a payload set produced by read-metadata or map.
func loadPayloads(path string) ([]*models.TargetPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var payloads []*models.TargetPayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(payloads) == 0 {
		return nil, fmt.Errorf("%s contains no samples", path)
	}
	return payloads, nil
}

// payloadRecords rebuilds canonical records from a payload set so
// validated metadata can feed later stages. Payloads written by
// read-metadata keep canonical field names.
func payloadRecords(payloads []*models.TargetPayload, idField string) []models.CanonicalRecord {
	records := make([]models.CanonicalRecord, len(payloads))
	for i, p := range payloads {
		id := p.SampleID
		if id == "" {
			id = p.Fields[idField]
		}
		records[i] = models.CanonicalRecord{SampleID: id, Fields: p.Fields}
	}
	return records
}

// writeJSON writes v as indented JSON, creating parent directories.
func writeJSON(path string, v interface{}) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// dateStamp names output artifacts the way labs expect them.
func dateStamp() string {
	return time.Now().Format("20060102")
}

// printRunSummary shows the disposition counts of a finished run.
func printRunSummary(s *models.RunSummary) {
	if quiet {
		return
	}
	fmt.Println()
	fmt.Printf("Samples:  %d\n", s.Total)
	fmt.Printf("Ready:    %s\n", colorize(colorGreen, fmt.Sprintf("%d", s.Ready)))
	fmt.Printf("Rejected: %s\n", colorize(colorYellow, fmt.Sprintf("%d", s.Rejected)))
	if s.Fatal > 0 {
		fmt.Printf("Fatal:    %s\n", colorize(colorRed, fmt.Sprintf("%d", s.Fatal)))
	}
	if s.Warnings > 0 {
		fmt.Printf("Warnings: %d\n", s.Warnings)
	}
}

// recordRun appends a run to the submission log. Failure to record is
// reported but never fails the command that produced the run.
func recordRun(cfg *config.Config, summary *models.RunSummary) {
	if err := cfg.EnsureDirectories(); err != nil {
		printWarning("submission log not updated: %v", err)
		return
	}
	log, err := database.Initialize(cfg.DatabasePath())
	if err != nil {
		printWarning("submission log not updated: %v", err)
		return
	}
	defer log.Close()

	id, err := log.RecordRun(summary)
	if err != nil {
		printWarning("submission log not updated: %v", err)
		return
	}
	printDebug("run %d recorded in %s", id, log.Path())
}
