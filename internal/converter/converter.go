// Package converter renders canonical records into per-target
// payloads. Each schema field is resolved through the source cascade:
// the record's canonical value first, then a registry cross-reference,
// then a configured default. A field no source covers is recorded as
// an omission, never invented.
package converter

import (
	"strconv"
	"strings"

	"github.com/araddon/dateparse"

	"github.com/seqrelay/seqrelay/internal/config"
	"github.com/seqrelay/seqrelay/internal/models"
	"github.com/seqrelay/seqrelay/internal/registry"
	"github.com/seqrelay/seqrelay/internal/schema"
)

// Transformer renders canonical records for one target schema. It is
// pure over its inputs; the schema, registries, and configuration are
// read-only and safe to share across workers.
type Transformer struct {
	def  *schema.Definition
	regs *registry.Set
	cfg  *config.Config
}

// New builds a transformer for one target schema.
func New(def *schema.Definition, regs *registry.Set, cfg *config.Config) *Transformer {
	return &Transformer{def: def, regs: regs, cfg: cfg}
}

// Transform renders one record into a target payload. Date values are
// normalized to ISO-8601 when the input is parseable; an unparseable
// value is carried through raw for validation to flag, so a resolved
// field is always present in the payload. The "None" sentinel passes
// through untouched.
func (t *Transformer) Transform(rec *models.CanonicalRecord) *models.TargetPayload {
	payload := &models.TargetPayload{
		Target:   t.def.Target,
		SampleID: rec.SampleID,
		Fields:   make(map[string]string, len(t.def.Fields)),
	}

	for i := range t.def.Fields {
		f := &t.def.Fields[i]
		value, found := t.resolve(rec, f)
		if !found {
			payload.Omissions = append(payload.Omissions, f.OutputName())
			continue
		}
		if value != models.SentinelNone {
			switch f.Type {
			case schema.TypeDate:
				value = normalizeDate(value)
			case schema.TypeNumber:
				value = normalizeNumber(value)
			}
		}
		payload.Fields[f.OutputName()] = value
	}
	return payload
}

func (t *Transformer) resolve(rec *models.CanonicalRecord, f *schema.Field) (string, bool) {
	if v, ok := rec.Get(f.Name); ok && v != "" {
		return v, true
	}
	if reg, attr, ok := f.RegistrySource(); ok {
		keyField, _ := registry.KeyField(reg)
		if key, ok := rec.Get(keyField); ok && key != "" {
			if v, ok := t.regs.Attr(reg, attr, key); ok {
				return v, true
			}
		}
	}
	if f.Default != "" {
		if v, ok := t.cfg.LookupDefault(f.Default); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// normalizeDate converts any parseable date spelling to YYYY-MM-DD.
// Unparseable input is returned unchanged.
func normalizeDate(value string) string {
	ts, err := dateparse.ParseAny(value)
	if err != nil {
		return value
	}
	return ts.Format("2006-01-02")
}

// normalizeNumber rewrites a decimal comma to a decimal point when
// that makes the value parseable.
func normalizeNumber(value string) string {
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return value
	}
	if strings.Count(value, ",") == 1 && !strings.Contains(value, ".") {
		swapped := strings.Replace(value, ",", ".", 1)
		if _, err := strconv.ParseFloat(swapped, 64); err == nil {
			return swapped
		}
	}
	return value
}
