// Package bioinfo assembles the bioinformatics metadata bundle: the
// configured per-stage software defaults, per-sample analysis metrics,
// and the aggregated variant long table, merged per sample.
package bioinfo

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/seqrelay/seqrelay/internal/config"
	"github.com/seqrelay/seqrelay/internal/errors"
	"github.com/seqrelay/seqrelay/internal/longtable"
	"github.com/seqrelay/seqrelay/internal/models"
	"github.com/seqrelay/seqrelay/internal/tabular"
)

// Assembler merges analysis outputs with configured software defaults.
// Feed it long tables and metrics sheets, then call Assemble once with
// the run's canonical records.
type Assembler struct {
	cfg      *config.Config
	variants *longtable.Aggregator
	metrics  map[string]map[string]string
}

// Stats summarizes one assembly pass.
type Stats struct {
	Samples      int
	WithMetrics  int
	WithVariants int
	Omissions    int
}

// SampleBundle is one sample's assembled bioinformatics metadata.
// Fields holds the stage software defaults and any measured metrics;
// Omissions names the inputs this sample had no data for.
type SampleBundle struct {
	SampleID  string              `json:"sample_id"`
	Fields    map[string]string   `json:"fields"`
	Variants  []models.VariantRow `json:"variants,omitempty"`
	Omissions []string            `json:"omissions,omitempty"`
}

// Bundle is the full bioinformatics metadata artifact for one run.
type Bundle struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Samples     []SampleBundle `json:"samples"`
}

// New creates an assembler for the configured long-table heading.
func New(cfg *config.Config) (*Assembler, error) {
	agg, err := longtable.NewAggregator(cfg.LongTable.Heading)
	if err != nil {
		return nil, err
	}
	return &Assembler{
		cfg:      cfg,
		variants: agg,
		metrics:  make(map[string]map[string]string),
	}, nil
}

// AddLongTable feeds one variant long table into the bundle.
func (a *Assembler) AddLongTable(path string) []error {
	return a.variants.AddFile(path)
}

// LoadMetrics reads a per-sample analysis metrics sheet. The sheet
// must carry a "sample" column (any case); every other column becomes
// a metric keyed by its heading. Empty cells are not recorded.
func (a *Assembler) LoadMetrics(path string) []error {
	const op = errors.Op("bioinfo.LoadMetrics")

	sheet, err := tabular.ReadFile(path)
	if err != nil {
		return []error{err}
	}

	sampleCol := ""
	for _, h := range sheet.Headers {
		if strings.EqualFold(h, "sample") {
			sampleCol = h
			break
		}
	}
	if sampleCol == "" {
		return []error{errors.E(op, errors.KindStructural,
			fmt.Sprintf("%s: no sample column", sheet.Path))}
	}

	var errs []error
	for i, row := range sheet.Rows {
		id := row[sampleCol]
		if id == "" {
			errs = append(errs, errors.E(op, errors.KindStructural,
				fmt.Sprintf("row %d: empty sample id", sheet.RowNums[i])))
			continue
		}
		if _, dup := a.metrics[id]; dup {
			errs = append(errs, errors.E(op, errors.KindStructural,
				fmt.Sprintf("row %d: duplicate metrics for sample %s", sheet.RowNums[i], id)))
			continue
		}
		m := make(map[string]string, len(row))
		for h, v := range row {
			if h == sampleCol || v == "" {
				continue
			}
			m[h] = v
		}
		a.metrics[id] = m
	}
	return errs
}

// ScanDir loads every analysis output found under dir: variant long
// tables matching *long_table*.csv and metrics sheets matching
// *stats*.csv. It returns the files it consumed. A directory with no
// recognizable outputs is a configuration error.
func (a *Assembler) ScanDir(dir string) ([]string, []error) {
	const op = errors.Op("bioinfo.ScanDir")

	tables, err := filepath.Glob(filepath.Join(dir, "*long_table*.csv"))
	if err != nil {
		return nil, []error{errors.E(op, errors.KindIO, err)}
	}
	sheets, err := filepath.Glob(filepath.Join(dir, "*stats*.csv"))
	if err != nil {
		return nil, []error{errors.E(op, errors.KindIO, err)}
	}
	if len(tables) == 0 && len(sheets) == 0 {
		return nil, []error{errors.E(op, errors.KindConfig,
			fmt.Sprintf("no analysis outputs found under %s", dir))}
	}
	sort.Strings(tables)
	sort.Strings(sheets)

	var loaded []string
	var errs []error
	for _, p := range tables {
		errs = append(errs, a.AddLongTable(p)...)
		loaded = append(loaded, p)
	}
	for _, p := range sheets {
		errs = append(errs, a.LoadMetrics(p)...)
		loaded = append(loaded, p)
	}
	return loaded, errs
}

// Assemble builds one SampleBundle per record, in record order. Every
// sample gets the full stage software defaults; measured metrics
// override a default on key collision. A sample absent from the
// metrics sheets or the long table gets an omission entry instead.
func (a *Assembler) Assemble(records []models.CanonicalRecord) (*Bundle, *Stats) {
	bySample := a.variants.BySample()
	bundle := &Bundle{GeneratedAt: time.Now().UTC()}
	st := &Stats{}

	for _, rec := range records {
		sb := SampleBundle{
			SampleID: rec.SampleID,
			Fields:   make(map[string]string),
		}
		for _, stage := range config.BioinfoStages {
			sc := a.cfg.Bioinfo[stage]
			setOrOmit(&sb, stage+"_software_name", sc.SoftwareName)
			setOrOmit(&sb, stage+"_software_version", sc.SoftwareVersion)
			setOrOmit(&sb, stage+"_software_params", sc.SoftwareParams)
		}

		if m, ok := a.metrics[rec.SampleID]; ok {
			for k, v := range m {
				sb.Fields[k] = v
			}
			st.WithMetrics++
		} else {
			sb.Omissions = append(sb.Omissions, "analysis_metrics")
		}

		if rows := bySample[rec.SampleID]; len(rows) > 0 {
			sb.Variants = rows
			st.WithVariants++
		} else {
			sb.Omissions = append(sb.Omissions, "variant_long_table")
		}

		st.Omissions += len(sb.Omissions)
		bundle.Samples = append(bundle.Samples, sb)
	}
	st.Samples = len(bundle.Samples)
	return bundle, st
}

// Variants exposes the aggregated long table for the merged CSV export.
func (a *Assembler) Variants() *longtable.Aggregator {
	return a.variants
}

func setOrOmit(sb *SampleBundle, key, value string) {
	if value == "" {
		sb.Omissions = append(sb.Omissions, key)
		return
	}
	sb.Fields[key] = value
}

// Write writes the bundle as indented JSON.
func (b *Bundle) Write(w io.Writer) error {
	const op = errors.Op("bioinfo.Write")

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return errors.E(op, errors.KindIO, err)
	}
	return nil
}

// WriteFile writes the bundle to path, creating parent directories.
func (b *Bundle) WriteFile(path string) error {
	const op = errors.Op("bioinfo.WriteFile")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.E(op, errors.KindIO, err, "creating output directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.E(op, errors.KindIO, err, "creating bundle file")
	}
	defer f.Close()
	return b.Write(f)
}
