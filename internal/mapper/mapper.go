// Package mapper resolves raw spreadsheet headers to canonical field
// names. Matching is tolerant of the usual spreadsheet noise (case,
// padding, doubled spaces) but never guesses: a header either resolves
// through the dictionary or is reported unmapped, and two headers
// claiming the same canonical field are a conflict, not an overwrite.
package mapper

import (
	"fmt"
	"sort"
	"strings"

	"github.com/seqrelay/seqrelay/internal/errors"
	"github.com/seqrelay/seqrelay/internal/models"
	"github.com/seqrelay/seqrelay/internal/tabular"
)

// Normalize produces the comparison form of a header: trimmed,
// case-folded, internal whitespace runs collapsed to single spaces.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Table is a compiled dictionary: normalized spelling -> canonical name.
type Table struct {
	version string
	byNorm  map[string]string
	vocab   map[string]bool
}

// NewTable compiles a dictionary into a lookup table. Canonical names
// map to themselves so that already-normalized files round-trip. Two
// spellings normalizing to the same form under different canonical
// fields make the dictionary unusable and fail the load.
func NewTable(dict *Dictionary) (*Table, error) {
	const op = errors.Op("mapper.NewTable")

	t := &Table{
		version: dict.Version,
		byNorm:  make(map[string]string),
		vocab:   make(map[string]bool, len(dict.Fields)),
	}

	add := func(spelling, canonical string) error {
		norm := Normalize(spelling)
		if norm == "" {
			return errors.E(op, errors.KindConfig,
				fmt.Sprintf("field %q has a blank spelling", canonical))
		}
		if existing, ok := t.byNorm[norm]; ok && existing != canonical {
			return errors.E(op, errors.KindConfig,
				fmt.Sprintf("dictionary collision: %q maps to both %q and %q", spelling, existing, canonical))
		}
		t.byNorm[norm] = canonical
		return nil
	}

	// Deterministic build order so collision errors are stable.
	names := make([]string, 0, len(dict.Fields))
	for name := range dict.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entry := dict.Fields[name]
		t.vocab[name] = true
		if err := add(name, name); err != nil {
			return nil, err
		}
		if err := add(entry.Label, name); err != nil {
			return nil, err
		}
		for _, alias := range entry.Aliases {
			if err := add(alias, name); err != nil {
				return nil, err
			}
		}
	}

	return t, nil
}

// Version returns the dictionary version the table was built from.
func (t *Table) Version() string {
	return t.version
}

// IsCanonical reports whether name belongs to the canonical vocabulary.
func (t *Table) IsCanonical(name string) bool {
	return t.vocab[name]
}

// Vocabulary returns the sorted canonical field names.
func (t *Table) Vocabulary() []string {
	names := make([]string, 0, len(t.vocab))
	for name := range t.vocab {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps a single raw header to its canonical field.
func (t *Table) Resolve(header string) (string, bool) {
	canonical, ok := t.byNorm[Normalize(header)]
	return canonical, ok
}

// Map resolves a sheet's header row. Headers that resolve nowhere are
// listed unmapped; canonical fields claimed by more than one header are
// reported as conflicts and excluded from ByHeader, so a conflicted
// column can never silently overwrite another.
func (t *Table) Map(headers []string) *models.FieldMapping {
	fm := &models.FieldMapping{ByHeader: make(map[string]string, len(headers))}

	claims := make(map[string][]string)
	for _, h := range headers {
		canonical, ok := t.Resolve(h)
		if !ok {
			fm.Unmapped = append(fm.Unmapped, h)
			continue
		}
		claims[canonical] = append(claims[canonical], h)
	}

	canonicals := make([]string, 0, len(claims))
	for canonical := range claims {
		canonicals = append(canonicals, canonical)
	}
	sort.Strings(canonicals)

	for _, canonical := range canonicals {
		headers := claims[canonical]
		if len(headers) > 1 {
			fm.Conflicts = append(fm.Conflicts, models.MappingConflict{
				Canonical: canonical,
				Headers:   headers,
			})
			continue
		}
		fm.ByHeader[headers[0]] = canonical
	}

	return fm
}

// BuildRecords applies a field mapping to a parsed sheet. Unmapped and
// conflicted columns are retained under Extra. A row without the sample
// identity field, or repeating an already-seen identity, is a
// structural error: the row is dropped and reported, the rest continue.
func BuildRecords(sheet *tabular.Sheet, fm *models.FieldMapping, sampleIDField string) ([]models.CanonicalRecord, []error) {
	const op = errors.Op("mapper.BuildRecords")

	var errs []error
	records := make([]models.CanonicalRecord, 0, len(sheet.Rows))
	seen := make(map[string]int, len(sheet.Rows))

	for i, row := range sheet.Rows {
		rowNum := i + 1
		if i < len(sheet.RowNums) {
			rowNum = sheet.RowNums[i]
		}

		rec := models.CanonicalRecord{Row: rowNum, Fields: make(map[string]string)}
		for _, h := range sheet.Headers {
			value := row[h]
			if value == "" {
				continue
			}
			if canonical, ok := fm.ByHeader[h]; ok {
				rec.Fields[canonical] = value
				continue
			}
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[h] = value
		}

		id, _ := rec.Get(sampleIDField)
		if id == "" {
			errs = append(errs, errors.E(op, errors.KindStructural,
				fmt.Sprintf("row %d: missing sample identifier %q", rowNum, sampleIDField)))
			continue
		}
		if prev, dup := seen[id]; dup {
			errs = append(errs, errors.E(op, errors.KindStructural,
				fmt.Sprintf("row %d: duplicate sample id %q (first seen at row %d)", rowNum, id, prev)))
			continue
		}
		seen[id] = rowNum

		rec.SampleID = id
		records = append(records, rec)
	}

	return records, errs
}
