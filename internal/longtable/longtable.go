// Package longtable aggregates variant-call tables into the fixed
// long-table artifact. Output ordering is a contract: samples appear
// in first-seen order, positions ascend within a sample, and equal
// keys keep their input order, so repeated runs over the same inputs
// diff clean. Rows are never deduplicated.
package longtable

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/seqrelay/seqrelay/internal/errors"
	"github.com/seqrelay/seqrelay/internal/models"
	"github.com/seqrelay/seqrelay/internal/tabular"
)

// structuralHeadings are the columns a row cannot be used without:
// the row identity plus the caller that produced it.
var structuralHeadings = []string{"SAMPLE", "CHROM", "POS", "REF", "CALLER"}

// Aggregator merges variant rows from one or more source tables. Add
// every source first; the ordering pass runs when rows are read out,
// after all contributing tables have been seen.
type Aggregator struct {
	heading []string
	rows    []models.VariantRow
	order   map[string]int // sample -> first-seen rank
}

// NewAggregator builds an aggregator for the configured heading list.
func NewAggregator(heading []string) (*Aggregator, error) {
	const op = errors.Op("longtable.NewAggregator")
	have := make(map[string]bool, len(heading))
	for _, h := range heading {
		have[h] = true
	}
	for _, h := range structuralHeadings {
		if !have[h] {
			return nil, errors.E(op, errors.KindConfig,
				fmt.Sprintf("long-table heading is missing %s", h))
		}
	}
	return &Aggregator{
		heading: heading,
		order:   make(map[string]int),
	}, nil
}

// AddFile reads one source table and merges its rows.
func (a *Aggregator) AddFile(path string) []error {
	sheet, err := tabular.ReadFile(path)
	if err != nil {
		return []error{err}
	}
	return a.AddSheet(sheet)
}

// AddSheet merges the rows of one parsed table. A sheet whose header
// lacks configured headings contributes nothing; a row with an empty
// structural column or an unparseable position is dropped. Both are
// reported as structural errors while aggregation continues.
func (a *Aggregator) AddSheet(sheet *tabular.Sheet) []error {
	const op = errors.Op("longtable.AddSheet")

	present := make(map[string]bool, len(sheet.Headers))
	for _, h := range sheet.Headers {
		present[h] = true
	}
	var missing []string
	for _, h := range a.heading {
		if !present[h] {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return []error{errors.E(op, errors.KindStructural,
			fmt.Sprintf("%s: missing headings %s", sheet.Path, strings.Join(missing, ", ")))}
	}

	var errs []error
	for rowIdx, row := range sheet.Rows {
		srcRow := sheet.RowNums[rowIdx]
		values := make(map[string]string, len(a.heading))
		for _, h := range a.heading {
			values[h] = row[h]
		}

		if bad := firstEmptyStructural(values); bad != "" {
			errs = append(errs, errors.E(op, errors.KindStructural,
				fmt.Sprintf("row %d: empty %s column", srcRow, bad)))
			continue
		}
		pos, err := strconv.Atoi(values["POS"])
		if err != nil || pos <= 0 {
			errs = append(errs, errors.E(op, errors.KindStructural,
				fmt.Sprintf("row %d: position %q is not a valid coordinate", srcRow, values["POS"])))
			continue
		}

		sample := values["SAMPLE"]
		if _, seen := a.order[sample]; !seen {
			a.order[sample] = len(a.order)
		}
		a.rows = append(a.rows, models.VariantRow{
			Sample: sample,
			Chrom:  values["CHROM"],
			Pos:    pos,
			Ref:    values["REF"],
			Caller: values["CALLER"],
			Values: values,
		})
	}
	return errs
}

func firstEmptyStructural(values map[string]string) string {
	for _, h := range structuralHeadings {
		if values[h] == "" {
			return h
		}
	}
	return ""
}

// Len returns the number of rows that survived aggregation.
func (a *Aggregator) Len() int {
	return len(a.rows)
}

// Samples returns the sample names in first-seen order.
func (a *Aggregator) Samples() []string {
	samples := make([]string, len(a.order))
	for sample, rank := range a.order {
		samples[rank] = sample
	}
	return samples
}

// Rows returns the merged rows in output order: grouped by sample in
// first-seen order, positions ascending within a sample, input order
// preserved on ties.
func (a *Aggregator) Rows() []models.VariantRow {
	out := make([]models.VariantRow, len(a.rows))
	copy(out, a.rows)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := a.order[out[i].Sample], a.order[out[j].Sample]
		if ri != rj {
			return ri < rj
		}
		return out[i].Pos < out[j].Pos
	})
	return out
}

// BySample groups the ordered rows by sample name.
func (a *Aggregator) BySample() map[string][]models.VariantRow {
	grouped := make(map[string][]models.VariantRow, len(a.order))
	for _, row := range a.Rows() {
		grouped[row.Sample] = append(grouped[row.Sample], row)
	}
	return grouped
}

// WriteCSV writes the header and every row at full width.
func (a *Aggregator) WriteCSV(w io.Writer) error {
	const op = errors.Op("longtable.WriteCSV")

	cw := csv.NewWriter(w)
	if err := cw.Write(a.heading); err != nil {
		return errors.E(op, errors.KindIO, err)
	}
	record := make([]string, len(a.heading))
	for _, row := range a.Rows() {
		for i, h := range a.heading {
			record[i] = row.Values[h]
		}
		if err := cw.Write(record); err != nil {
			return errors.E(op, errors.KindIO, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.E(op, errors.KindIO, err)
	}
	return nil
}

// WriteCSVFile writes the long table to path, creating parent
// directories as needed.
func (a *Aggregator) WriteCSVFile(path string) error {
	const op = errors.Op("longtable.WriteCSVFile")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.E(op, errors.KindIO, err, "creating output directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.E(op, errors.KindIO, err, "creating long table")
	}
	defer f.Close()
	return a.WriteCSV(f)
}

// WriteJSON writes the per-sample bundle consumed by the
// bioinformatics metadata assembly.
func (a *Aggregator) WriteJSON(w io.Writer) error {
	const op = errors.Op("longtable.WriteJSON")

	bundle := make(map[string][]map[string]string, len(a.order))
	for _, row := range a.Rows() {
		bundle[row.Sample] = append(bundle[row.Sample], row.Values)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bundle); err != nil {
		return errors.E(op, errors.KindIO, err)
	}
	return nil
}

// WriteJSONFile writes the per-sample bundle to path.
func (a *Aggregator) WriteJSONFile(path string) error {
	const op = errors.Op("longtable.WriteJSONFile")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.E(op, errors.KindIO, err, "creating output directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.E(op, errors.KindIO, err, "creating bundle")
	}
	defer f.Close()
	return a.WriteJSON(f)
}
