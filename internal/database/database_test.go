package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/seqrelay/seqrelay/internal/models"
)

func testLog(t *testing.T) *Log {
	t.Helper()
	log, err := Initialize(filepath.Join(t.TempDir(), "submissions.db"))
	if err != nil {
		t.Fatalf("Initialize error = %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

func sampleSummary(command string) *models.RunSummary {
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.RunSummary{
		Command:    command,
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
		Total:      3,
		Ready:      1,
		Rejected:   1,
		Fatal:      1,
		Warnings:   2,
		Outcomes: []models.SampleOutcome{
			{SampleID: "SEQ-0001", Target: "relecov", Status: models.StatusReady},
			{SampleID: "SEQ-0001", Target: "ena", Status: models.StatusReady},
			{SampleID: "SEQ-0002", Target: "relecov", Status: models.StatusRejected,
				Detail: "sample_collection_date: format"},
		},
	}
}

func TestRecordRunRoundTrip(t *testing.T) {
	log := testLog(t)

	summary := sampleSummary("validate")
	id, err := log.RecordRun(summary)
	if err != nil {
		t.Fatalf("RecordRun error = %v", err)
	}
	if id == 0 {
		t.Fatal("expected a non-zero run id")
	}
	if summary.ID != id {
		t.Errorf("summary.ID = %d, want %d written back", summary.ID, id)
	}

	got, err := log.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun error = %v", err)
	}
	if got.Command != "validate" {
		t.Errorf("command = %q", got.Command)
	}
	if got.Total != 3 || got.Ready != 1 || got.Rejected != 1 || got.Fatal != 1 || got.Warnings != 2 {
		t.Errorf("counts = %+v", got)
	}
	if !got.StartedAt.Equal(summary.StartedAt) || !got.FinishedAt.Equal(summary.FinishedAt) {
		t.Errorf("times = %v .. %v", got.StartedAt, got.FinishedAt)
	}

	if len(got.Outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(got.Outcomes))
	}
	first := got.Outcomes[0]
	if first.SampleID != "SEQ-0001" || first.Target != "relecov" || first.Status != models.StatusReady {
		t.Errorf("first outcome = %+v", first)
	}
	last := got.Outcomes[2]
	if last.Status != models.StatusRejected || last.Detail != "sample_collection_date: format" {
		t.Errorf("last outcome = %+v", last)
	}
}

func TestGetRunMissing(t *testing.T) {
	log := testLog(t)
	if _, err := log.GetRun(999); err == nil {
		t.Fatal("expected error for unknown run id")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	log := testLog(t)
	for _, cmd := range []string{"validate", "verify", "bioinfo-metadata"} {
		if _, err := log.RecordRun(sampleSummary(cmd)); err != nil {
			t.Fatalf("RecordRun(%s) error = %v", cmd, err)
		}
	}

	runs, err := log.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want limit applied", len(runs))
	}
	if runs[0].Command != "bioinfo-metadata" || runs[1].Command != "verify" {
		t.Errorf("order = %s, %s, want newest first", runs[0].Command, runs[1].Command)
	}
	if len(runs[0].Outcomes) != 0 {
		t.Error("ListRuns must not load outcomes")
	}

	all, err := log.ListRuns(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("runs = %d, want all with limit 0", len(all))
	}
}

func TestSampleHistory(t *testing.T) {
	log := testLog(t)
	if _, err := log.RecordRun(sampleSummary("validate")); err != nil {
		t.Fatal(err)
	}
	if _, err := log.RecordRun(sampleSummary("validate")); err != nil {
		t.Fatal(err)
	}

	history, err := log.SampleHistory("SEQ-0002")
	if err != nil {
		t.Fatalf("SampleHistory error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want one per run", len(history))
	}
	if history[0].RunID <= history[1].RunID {
		t.Errorf("run order = %d then %d, want newest first", history[0].RunID, history[1].RunID)
	}
	for _, e := range history {
		if e.Command != "validate" {
			t.Errorf("Command = %q, want validate", e.Command)
		}
		if e.FinishedAt.IsZero() {
			t.Error("FinishedAt not populated")
		}
		if e.Outcome.SampleID != "SEQ-0002" || e.Outcome.Status != models.StatusRejected {
			t.Errorf("outcome = %+v", e.Outcome)
		}
	}

	none, err := log.SampleHistory("SEQ-UNSEEN")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("history = %v, want empty", none)
	}
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "submissions.db")

	log, err := Initialize(path)
	if err != nil {
		t.Fatal(err)
	}
	id, err := log.RecordRun(sampleSummary("validate"))
	if err != nil {
		t.Fatal(err)
	}
	if err := log.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Initialize(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun after reopen error = %v", err)
	}
	if got.Command != "validate" || len(got.Outcomes) != 3 {
		t.Errorf("reopened run = %+v", got)
	}
}
