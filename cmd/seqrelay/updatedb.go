package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/seqrelay/seqrelay/internal/bioinfo"
	"github.com/seqrelay/seqrelay/internal/models"
	"github.com/seqrelay/seqrelay/internal/platform"
	"github.com/spf13/cobra"
)

// Update-db command
var updateDBCmd = &cobra.Command{
	Use:   "update-db",
	Short: "Feed a payload set to a platform",
	Long: `Store sample or analysis data on a configured platform. The platform's
expected-field list is fetched first and every payload is checked
against it; one unknown field anywhere rejects the whole batch before
anything is stored.

Data types:
  sample    a payload set from read-metadata or map
  analysis  a bioinformatics bundle from bioinfo-metadata (stage
            software and metrics fields; variant rows are not sent)`,
	Example: `  # Store processed sample metadata on the relecov platform
  seqrelay update-db -j processed_metadata_20240301.json -t sample -d relecov -u admin -p secret

  # Store analysis metadata
  seqrelay update-db -j bioinfo_metadata_20240301.json -t analysis -d relecov`,
	RunE: runUpdateDB,
}

// Update-db flags
var (
	updateDBFile     string
	updateDBType     string
	updateDBPlatform string
	updateDBUser     string
	updateDBPass     string
)

func init() {
	updateDBCmd.Flags().StringVarP(&updateDBFile, "json", "j", "", "Payload set or bundle to store (required)")
	updateDBCmd.Flags().StringVarP(&updateDBType, "type", "t", "sample", "Data type: sample or analysis")
	updateDBCmd.Flags().StringVarP(&updateDBPlatform, "database", "d", "", "Configured platform name (required)")
	updateDBCmd.Flags().StringVarP(&updateDBUser, "user", "u", "", "Platform username (overrides configuration)")
	updateDBCmd.Flags().StringVarP(&updateDBPass, "password", "p", "", "Platform password (overrides configuration)")
	updateDBCmd.MarkFlagRequired("json")
	updateDBCmd.MarkFlagRequired("database")
}

func runUpdateDB(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if updateDBType != "sample" && updateDBType != "analysis" {
		return fmt.Errorf("unknown data type %q: must be sample or analysis", updateDBType)
	}

	pcfg, ok := cfg.Platforms[updateDBPlatform]
	if !ok {
		names := make([]string, 0, len(cfg.Platforms))
		for name := range cfg.Platforms {
			names = append(names, name)
		}
		sort.Strings(names)
		printError("Unknown platform %q", updateDBPlatform)
		fmt.Fprintf(os.Stderr, "Configured platforms: %s\n", strings.Join(names, ", "))
		return fmt.Errorf("unknown platform")
	}
	if updateDBUser != "" {
		pcfg.Username = updateDBUser
	}
	if updateDBPass != "" {
		pcfg.Password = updateDBPass
	}

	var payloads []*models.TargetPayload
	switch updateDBType {
	case "sample":
		payloads, err = loadPayloads(updateDBFile)
		if err != nil {
			return err
		}
	case "analysis":
		payloads, err = loadBundlePayloads(updateDBFile, updateDBPlatform, cfg.SampleIDField)
		if err != nil {
			return err
		}
	}

	client := platform.NewClient(updateDBPlatform, pcfg)

	if !quiet {
		printInfo("Storing %s data", updateDBType)
		fmt.Printf("Platform: %s\n", updateDBPlatform)
		fmt.Printf("URL:      %s\n", pcfg.URL)
		fmt.Printf("Samples:  %d\n", len(payloads))
		fmt.Println()
	}

	started := time.Now().UTC()
	result, err := client.StoreSamples(cmd.Context(), payloads)
	if err != nil {
		return fmt.Errorf("store failed: %w", err)
	}

	summary := models.RunSummary{
		Command:    "update-db",
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Total:      len(payloads),
		Ready:      result.Stored,
	}
	for _, p := range payloads {
		summary.Outcomes = append(summary.Outcomes, models.SampleOutcome{
			SampleID: p.SampleID,
			Target:   updateDBPlatform,
			Status:   models.StatusReady,
			Detail:   "stored " + updateDBType + " data",
		})
	}
	recordRun(cfg, &summary)

	printSuccess("Stored %d samples on %s", result.Stored, updateDBPlatform)
	return nil
}

// loadBundlePayloads flattens a bioinformatics bundle into per-sample
// payloads for the store endpoint.
func loadBundlePayloads(path, target, idField string) ([]*models.TargetPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bundle bioinfo.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(bundle.Samples) == 0 {
		return nil, fmt.Errorf("%s contains no samples", path)
	}

	payloads := make([]*models.TargetPayload, len(bundle.Samples))
	for i, s := range bundle.Samples {
		fields := make(map[string]string, len(s.Fields)+1)
		for k, v := range s.Fields {
			fields[k] = v
		}
		fields[idField] = s.SampleID
		payloads[i] = &models.TargetPayload{
			Target:   target,
			SampleID: s.SampleID,
			Fields:   fields,
		}
	}
	return payloads, nil
}
