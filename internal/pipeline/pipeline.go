// Package pipeline orchestrates a metadata run: header mapping, record
// building, per-target transformation, and schema validation, with
// record-level parallelism.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/seqrelay/seqrelay/internal/config"
	"github.com/seqrelay/seqrelay/internal/converter"
	"github.com/seqrelay/seqrelay/internal/errors"
	"github.com/seqrelay/seqrelay/internal/logger"
	"github.com/seqrelay/seqrelay/internal/mapper"
	"github.com/seqrelay/seqrelay/internal/models"
	"github.com/seqrelay/seqrelay/internal/registry"
	"github.com/seqrelay/seqrelay/internal/schema"
	"github.com/seqrelay/seqrelay/internal/tabular"
	"github.com/seqrelay/seqrelay/internal/validator"
)

// Engine runs records through every requested target schema. Records
// are independent, so transformation and validation fan out across a
// bounded worker pool; results keep input order.
type Engine struct {
	cfg          *config.Config
	table        *mapper.Table
	defs         []*schema.Definition
	transformers map[string]*converter.Transformer
}

// RecordResult carries everything one sample produced: one payload and
// one validation result per target.
type RecordResult struct {
	SampleID string                              `json:"sample_id"`
	Row      int                                 `json:"row"`
	Payloads map[string]*models.TargetPayload    `json:"payloads"`
	Results  map[string]*models.ValidationResult `json:"results"`
}

// Ready reports whether the sample is submission-ready for every target.
func (r *RecordResult) Ready() bool {
	for _, vr := range r.Results {
		if !vr.Ready() {
			return false
		}
	}
	return true
}

// Report is the outcome of one whole sheet run. Records holds the
// canonical form of every surviving row so callers can hand it to
// later stages without re-mapping the sheet.
type Report struct {
	Mapping   *models.FieldMapping     `json:"mapping"`
	Records   []models.CanonicalRecord `json:"-"`
	Results   []RecordResult           `json:"results"`
	RowErrors []error                  `json:"-"`
	Summary   models.RunSummary        `json:"summary"`
}

// New creates an engine for the given targets. Registries and
// configuration are read-only and shared by every worker.
func New(cfg *config.Config, table *mapper.Table, regs *registry.Set, defs []*schema.Definition) *Engine {
	transformers := make(map[string]*converter.Transformer, len(defs))
	for _, def := range defs {
		transformers[def.Target] = converter.New(def, regs, cfg)
	}
	return &Engine{
		cfg:          cfg,
		table:        table,
		defs:         defs,
		transformers: transformers,
	}
}

// Targets returns the target names this engine renders, in schema order.
func (e *Engine) Targets() []string {
	targets := make([]string, len(e.defs))
	for i, def := range e.defs {
		targets[i] = def.Target
	}
	return targets
}

// Run transforms and validates every record against every target.
// Results are indexed by input position regardless of which worker
// finishes first.
func (e *Engine) Run(ctx context.Context, records []models.CanonicalRecord) ([]RecordResult, error) {
	const op = errors.Op("pipeline.Run")

	if err := ctx.Err(); err != nil {
		return nil, errors.E(op, errors.KindIO, err, "run cancelled")
	}

	log := logger.FromContext(ctx)
	log.Debug("processing records", "count", len(records), "targets", len(e.defs), "workers", e.cfg.EffectiveWorkers())

	results := make([]RecordResult, len(records))
	sem := make(chan struct{}, e.cfg.EffectiveWorkers())
	var wg sync.WaitGroup

	for i := range records {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, errors.E(op, errors.KindIO, ctx.Err(), "run cancelled")
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = e.processRecord(&records[i])
		}(i)
	}

	wg.Wait()
	return results, nil
}

func (e *Engine) processRecord(rec *models.CanonicalRecord) RecordResult {
	rr := RecordResult{
		SampleID: rec.SampleID,
		Row:      rec.Row,
		Payloads: make(map[string]*models.TargetPayload, len(e.defs)),
		Results:  make(map[string]*models.ValidationResult, len(e.defs)),
	}
	// Rejection for one target never blocks the others: every target
	// gets its payload and verdict.
	for _, def := range e.defs {
		payload := e.transformers[def.Target].Transform(rec)
		rr.Payloads[def.Target] = payload
		rr.Results[def.Target] = validator.Validate(payload, def)
	}
	return rr
}

// ProcessSheet maps a parsed sheet's headers, builds canonical records,
// and runs them. Rows dropped during record building are reported in
// RowErrors and counted as fatal; the rest of the batch continues.
func (e *Engine) ProcessSheet(ctx context.Context, sheet *tabular.Sheet, command string) (*Report, error) {
	started := time.Now().UTC()
	log := logger.FromContext(ctx)

	fm := e.table.Map(sheet.Headers)
	log.Debug("headers mapped", "mapped", len(fm.ByHeader), "unmapped", len(fm.Unmapped), "conflicts", len(fm.Conflicts))

	records, rowErrs := mapper.BuildRecords(sheet, fm, e.cfg.SampleIDField)
	for _, rowErr := range rowErrs {
		log.Warn("row dropped", "error", rowErr)
	}

	results, err := e.Run(ctx, records)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Mapping:   fm,
		Records:   records,
		Results:   results,
		RowErrors: rowErrs,
	}
	report.Summary = e.summarize(command, started, sheet, fm, results, rowErrs)
	return report, nil
}

// summarize folds per-target verdicts into the run summary. A sample
// counts as ready only when every target accepted it; dropped rows
// count as fatal and appear in RowErrors, not in Outcomes.
func (e *Engine) summarize(command string, started time.Time, sheet *tabular.Sheet,
	fm *models.FieldMapping, results []RecordResult, rowErrs []error) models.RunSummary {

	summary := models.RunSummary{
		Command:    command,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Total:      len(results) + len(rowErrs),
		Fatal:      len(rowErrs),
		Warnings:   len(fm.Conflicts) + len(sheet.Warnings),
	}

	for _, rr := range results {
		allReady := true
		for _, def := range e.defs {
			vr := rr.Results[def.Target]
			outcome := models.SampleOutcome{
				SampleID: rr.SampleID,
				Target:   def.Target,
				Status:   models.StatusReady,
			}
			if !vr.Ready() {
				allReady = false
				outcome.Status = models.StatusRejected
				outcome.Detail = validator.Describe(vr)
			}
			summary.Outcomes = append(summary.Outcomes, outcome)
		}
		if allReady {
			summary.Ready++
		} else {
			summary.Rejected++
		}
	}
	return summary
}
