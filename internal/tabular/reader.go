// Package tabular reads laboratory metadata spreadsheets (CSV/TSV) into
// header-keyed rows. It tolerates the files labs actually send: mixed
// encodings, ragged rows, stray blank lines.
package tabular

import (
	"bytes"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/seqrelay/seqrelay/internal/errors"
)

// RowWarning represents a non-fatal issue encountered while parsing.
// Row numbers count the header as row 1.
type RowWarning struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Sheet is a parsed spreadsheet: ordered headers plus one map per data row.
type Sheet struct {
	Path     string              `json:"path,omitempty"`
	Headers  []string            `json:"headers"`
	Rows     []map[string]string `json:"rows"`
	RowNums  []int               `json:"row_nums"` // source row per entry in Rows
	Warnings []RowWarning        `json:"warnings,omitempty"`
}

// ReadFile reads a spreadsheet choosing the delimiter by extension:
// .tsv/.tab/.txt are tab-separated, everything else comma-separated.
func ReadFile(path string) (*Sheet, error) {
	const op = errors.Op("tabular.ReadFile")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.E(op, errors.KindIO, err, "reading spreadsheet")
	}

	delim := ','
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".tab", ".txt":
		delim = '\t'
	}

	sheet, err := Parse(data, delim)
	if err != nil {
		return nil, errors.WrapMsg(op, path, err)
	}
	sheet.Path = path
	return sheet, nil
}

// Parse decodes and parses raw spreadsheet bytes.
func Parse(data []byte, delim rune) (*Sheet, error) {
	const op = errors.Op("tabular.Parse")

	// Detect encoding and convert to UTF-8
	decoded, _, err := DetectAndDecode(data)
	if err != nil {
		return nil, errors.E(op, errors.KindParse, err, "encoding detection failed")
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = delim
	// Allow variable field counts per record; padding/truncation is
	// handled below with warnings.
	reader.FieldsPerRecord = -1
	// Lazy quotes for less strict parsing of real-world files.
	reader.LazyQuotes = true

	// Read header row
	headers, err := reader.Read()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, errors.E(op, errors.KindParse, "empty file: no header row found")
		}
		return nil, errors.E(op, errors.KindParse, err, "failed to read header row")
	}

	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	headerCount := len(headers)
	sheet := &Sheet{Headers: headers}
	rowNum := 1 // header row

	for {
		row, err := reader.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		rowNum++

		if err != nil {
			sheet.Warnings = append(sheet.Warnings, RowWarning{
				Row:     rowNum,
				Message: fmt.Sprintf("parse error: %v", err),
			})
			continue
		}

		// Handle mismatched column counts
		if len(row) != headerCount {
			if len(row) < headerCount {
				sheet.Warnings = append(sheet.Warnings, RowWarning{
					Row:     rowNum,
					Message: fmt.Sprintf("row has %d columns, expected %d; padding with empty values", len(row), headerCount),
				})
				padded := make([]string, headerCount)
				copy(padded, row)
				row = padded
			} else {
				sheet.Warnings = append(sheet.Warnings, RowWarning{
					Row:     rowNum,
					Message: fmt.Sprintf("row has %d columns, expected %d; truncating extra columns", len(row), headerCount),
				})
				row = row[:headerCount]
			}
		}

		// Skip rows that are entirely blank (trailing lines from Excel).
		if allBlank(row) {
			continue
		}

		record := make(map[string]string, headerCount)
		for i, h := range headers {
			record[h] = strings.TrimSpace(row[i])
		}
		sheet.Rows = append(sheet.Rows, record)
		sheet.RowNums = append(sheet.RowNums, rowNum)
	}

	if len(sheet.Rows) == 0 {
		return nil, errors.E(op, errors.KindParse, "file contains no data rows")
	}

	return sheet, nil
}

func allBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
