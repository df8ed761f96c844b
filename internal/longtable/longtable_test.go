package longtable

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/seqrelay/seqrelay/internal/config"
	"github.com/seqrelay/seqrelay/internal/errors"
	"github.com/seqrelay/seqrelay/internal/tabular"
)

var testHeading = []string{"SAMPLE", "CHROM", "POS", "REF", "ALT", "CALLER"}

func mustAggregator(t *testing.T, heading []string) *Aggregator {
	t.Helper()
	a, err := NewAggregator(heading)
	if err != nil {
		t.Fatalf("NewAggregator error = %v", err)
	}
	return a
}

func sheetFromCSV(t *testing.T, csvText string) *tabular.Sheet {
	t.Helper()
	sheet, err := tabular.Parse([]byte(csvText), ',')
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}
	return sheet
}

func TestNewAggregatorRequiresStructuralHeadings(t *testing.T) {
	_, err := NewAggregator([]string{"SAMPLE", "CHROM", "POS", "REF"})
	if err == nil {
		t.Fatal("expected error for heading without CALLER")
	}
	if !errors.IsKind(err, errors.KindConfig) {
		t.Errorf("kind = %v, want config", errors.GetKind(err))
	}
}

func TestNewAggregatorAcceptsConfiguredHeading(t *testing.T) {
	cfg := config.DefaultConfig()
	if _, err := NewAggregator(cfg.LongTable.Heading); err != nil {
		t.Errorf("NewAggregator(default heading) error = %v", err)
	}
}

func TestAggregateOrdering(t *testing.T) {
	a := mustAggregator(t, testHeading)
	errs := a.AddSheet(sheetFromCSV(t, `SAMPLE,CHROM,POS,REF,ALT,CALLER
S2,NC_045512.2,300,G,T,ivar
S1,NC_045512.2,100,A,C,ivar
S2,NC_045512.2,150,C,A,ivar
S1,NC_045512.2,50,T,G,ivar
`))
	if len(errs) != 0 {
		t.Fatalf("AddSheet errors = %v", errs)
	}

	rows := a.Rows()
	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = r.Sample + ":" + r.Values["POS"]
	}
	// S2 first (first seen), positions ascending within each sample.
	want := []string{"S2:150", "S2:300", "S1:50", "S1:100"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rows[%d] = %q, want %q (full order %v)", i, got[i], want[i], got)
		}
	}

	samples := a.Samples()
	if len(samples) != 2 || samples[0] != "S2" || samples[1] != "S1" {
		t.Errorf("Samples() = %v, want [S2 S1]", samples)
	}
}

func TestAggregateNoDeduplication(t *testing.T) {
	a := mustAggregator(t, testHeading)
	errs := a.AddSheet(sheetFromCSV(t, `SAMPLE,CHROM,POS,REF,ALT,CALLER
S1,NC_045512.2,100,A,C,ivar
S1,NC_045512.2,100,A,C,ivar
S1,NC_045512.2,100,A,C,bcftools
`))
	if len(errs) != 0 {
		t.Fatalf("AddSheet errors = %v", errs)
	}
	if a.Len() != 3 {
		t.Errorf("Len() = %d, want 3: identical rows must both survive", a.Len())
	}
}

func TestAggregateRowCountProperty(t *testing.T) {
	// Output rows = input rows minus structural failures.
	a := mustAggregator(t, testHeading)
	errs := a.AddSheet(sheetFromCSV(t, `SAMPLE,CHROM,POS,REF,ALT,CALLER
S1,NC_045512.2,100,A,C,ivar
,NC_045512.2,200,A,C,ivar
S1,NC_045512.2,abc,A,C,ivar
S1,NC_045512.2,300,A,C,ivar
`))
	if len(errs) != 2 {
		t.Fatalf("errors = %v, want 2 structural", errs)
	}
	if a.Len() != 2 {
		t.Errorf("Len() = %d, want 4 inputs - 2 failures = 2", a.Len())
	}
	for _, err := range errs {
		if !errors.IsKind(err, errors.KindStructural) {
			t.Errorf("kind = %v, want structural", errors.GetKind(err))
		}
	}
}

func TestAggregateStructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want string
	}{
		{"empty sample", ",NC_045512.2,100,A,C,ivar", "empty SAMPLE"},
		{"empty chrom", "S1,,100,A,C,ivar", "empty CHROM"},
		{"empty pos", "S1,NC_045512.2,,A,C,ivar", "empty POS"},
		{"empty ref", "S1,NC_045512.2,100,,C,ivar", "empty REF"},
		{"empty caller", "S1,NC_045512.2,100,A,C,", "empty CALLER"},
		{"non-numeric pos", "S1,NC_045512.2,12.5,A,C,ivar", "not a valid coordinate"},
		{"negative pos", "S1,NC_045512.2,-4,A,C,ivar", "not a valid coordinate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mustAggregator(t, testHeading)
			errs := a.AddSheet(sheetFromCSV(t, "SAMPLE,CHROM,POS,REF,ALT,CALLER\n"+tt.row+"\n"))
			if len(errs) != 1 {
				t.Fatalf("errors = %v, want 1", errs)
			}
			if !strings.Contains(errs[0].Error(), tt.want) {
				t.Errorf("error %q does not mention %q", errs[0].Error(), tt.want)
			}
			if !strings.Contains(errs[0].Error(), "row 2") {
				t.Errorf("error %q does not name the source row", errs[0].Error())
			}
			if a.Len() != 0 {
				t.Errorf("Len() = %d, want 0", a.Len())
			}
		})
	}
}

func TestAggregateEmptyOptionalColumnSurvives(t *testing.T) {
	a := mustAggregator(t, testHeading)
	errs := a.AddSheet(sheetFromCSV(t, `SAMPLE,CHROM,POS,REF,ALT,CALLER
S1,NC_045512.2,100,A,,ivar
`))
	if len(errs) != 0 {
		t.Fatalf("errors = %v, want none: ALT is not structural", errs)
	}
	if a.Len() != 1 {
		t.Errorf("Len() = %d, want 1", a.Len())
	}
}

func TestAggregateMissingHeading(t *testing.T) {
	a := mustAggregator(t, testHeading)
	sheet := sheetFromCSV(t, "SAMPLE,CHROM,POS,REF\nS1,NC_045512.2,100,A\n")
	sheet.Path = "broken.csv"

	errs := a.AddSheet(sheet)
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want 1", errs)
	}
	if !errors.IsKind(errs[0], errors.KindStructural) {
		t.Errorf("kind = %v, want structural", errors.GetKind(errs[0]))
	}
	msg := errs[0].Error()
	if !strings.Contains(msg, "ALT") || !strings.Contains(msg, "CALLER") {
		t.Errorf("error %q does not name the missing headings", msg)
	}
	if a.Len() != 0 {
		t.Errorf("Len() = %d, want 0 rows from a broken sheet", a.Len())
	}
}

func TestAggregateAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	file1 := filepath.Join(dir, "run1.csv")
	file2 := filepath.Join(dir, "run2.csv")
	os.WriteFile(file1, []byte(`SAMPLE,CHROM,POS,REF,ALT,CALLER
S9,NC_045512.2,500,A,C,ivar
`), 0644)
	os.WriteFile(file2, []byte(`SAMPLE,CHROM,POS,REF,ALT,CALLER
S1,NC_045512.2,100,A,C,ivar
S9,NC_045512.2,200,G,T,ivar
`), 0644)

	a := mustAggregator(t, testHeading)
	if errs := a.AddFile(file1); len(errs) != 0 {
		t.Fatalf("AddFile(run1) errors = %v", errs)
	}
	if errs := a.AddFile(file2); len(errs) != 0 {
		t.Fatalf("AddFile(run2) errors = %v", errs)
	}

	rows := a.Rows()
	// S9 seen first (file order), its positions merged ascending
	// across files before S1 appears.
	want := []string{"S9:200", "S9:500", "S1:100"}
	for i, w := range want {
		got := rows[i].Sample + ":" + rows[i].Values["POS"]
		if got != w {
			t.Errorf("rows[%d] = %q, want %q", i, got, w)
		}
	}
}

func TestAddFileMissing(t *testing.T) {
	a := mustAggregator(t, testHeading)
	errs := a.AddFile(filepath.Join(t.TempDir(), "absent.csv"))
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want 1", errs)
	}
}

func TestWriteCSV(t *testing.T) {
	a := mustAggregator(t, testHeading)
	a.AddSheet(sheetFromCSV(t, `SAMPLE,CHROM,POS,REF,ALT,CALLER
S1,NC_045512.2,100,A,,ivar
`))

	var buf bytes.Buffer
	if err := a.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV error = %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want header + 1 row", len(lines))
	}
	if lines[0] != "SAMPLE,CHROM,POS,REF,ALT,CALLER" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "S1,NC_045512.2,100,A,,ivar" {
		t.Errorf("row = %q, want full width with empty ALT", lines[1])
	}
}

func TestWriteCSVFile(t *testing.T) {
	a := mustAggregator(t, testHeading)
	a.AddSheet(sheetFromCSV(t, `SAMPLE,CHROM,POS,REF,ALT,CALLER
S1,NC_045512.2,100,A,C,ivar
`))

	path := filepath.Join(t.TempDir(), "out", "variants_long_table.csv")
	if err := a.WriteCSVFile(path); err != nil {
		t.Fatalf("WriteCSVFile error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "SAMPLE,") {
		t.Errorf("file starts %q", string(data)[:min(20, len(data))])
	}
}

func TestWriteJSON(t *testing.T) {
	a := mustAggregator(t, testHeading)
	a.AddSheet(sheetFromCSV(t, `SAMPLE,CHROM,POS,REF,ALT,CALLER
S1,NC_045512.2,100,A,C,ivar
S1,NC_045512.2,200,G,T,ivar
S2,NC_045512.2,50,C,A,ivar
`))

	var buf bytes.Buffer
	if err := a.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON error = %v", err)
	}

	var bundle map[string][]map[string]string
	if err := json.Unmarshal(buf.Bytes(), &bundle); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(bundle["S1"]) != 2 || len(bundle["S2"]) != 1 {
		t.Errorf("bundle sizes = S1:%d S2:%d", len(bundle["S1"]), len(bundle["S2"]))
	}
	if bundle["S1"][0]["POS"] != "100" {
		t.Errorf("S1 first row POS = %q, want 100", bundle["S1"][0]["POS"])
	}
	if bundle["S1"][0]["CALLER"] != "ivar" {
		t.Errorf("CALLER = %q", bundle["S1"][0]["CALLER"])
	}
}

func TestBySample(t *testing.T) {
	a := mustAggregator(t, testHeading)
	a.AddSheet(sheetFromCSV(t, `SAMPLE,CHROM,POS,REF,ALT,CALLER
S1,NC_045512.2,200,G,T,ivar
S1,NC_045512.2,100,A,C,ivar
`))

	grouped := a.BySample()
	rows := grouped["S1"]
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Pos != 100 || rows[1].Pos != 200 {
		t.Errorf("positions = %d, %d, want ascending", rows[0].Pos, rows[1].Pos)
	}
}
