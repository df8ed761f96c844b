// Package database persists the submission log: one row per pipeline
// run plus the per-sample, per-target outcomes it produced.
package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/seqrelay/seqrelay/internal/errors"
	"github.com/seqrelay/seqrelay/internal/models"
)

// Log wraps the SQLite connection holding the submission log.
type Log struct {
	*sql.DB
	path string
}

// Initialize opens (creating if needed) the submission log at path.
func Initialize(path string) (*Log, error) {
	const op = errors.Op("database.Initialize")

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000&_sync=NORMAL")
	if err != nil {
		return nil, errors.E(op, errors.KindDatabase, err, "failed to open submission log")
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.E(op, errors.KindDatabase, err,
				fmt.Sprintf("failed to set pragma %s", pragma))
		}
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, errors.E(op, errors.KindDatabase, err, "failed to create tables")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Log{DB: db, path: path}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id INTEGER PRIMARY KEY AUTOINCREMENT,
		command TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		samples_total INTEGER NOT NULL DEFAULT 0,
		samples_ready INTEGER NOT NULL DEFAULT 0,
		samples_rejected INTEGER NOT NULL DEFAULT 0,
		samples_fatal INTEGER NOT NULL DEFAULT 0,
		warnings INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS sample_outcomes (
		outcome_id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(run_id),
		sample_id TEXT NOT NULL,
		target TEXT NOT NULL,
		status TEXT NOT NULL,
		detail TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_outcome_run ON sample_outcomes(run_id);
	CREATE INDEX IF NOT EXISTS idx_outcome_sample ON sample_outcomes(sample_id);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordRun stores a run summary and its outcomes in one transaction.
// The assigned run id is written back into summary.ID.
func (l *Log) RecordRun(summary *models.RunSummary) (int64, error) {
	const op = errors.Op("database.RecordRun")

	tx, err := l.Begin()
	if err != nil {
		return 0, errors.E(op, errors.KindDatabase, err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO runs (command, started_at, finished_at,
			samples_total, samples_ready, samples_rejected, samples_fatal, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.Command, summary.StartedAt, summary.FinishedAt,
		summary.Total, summary.Ready, summary.Rejected, summary.Fatal, summary.Warnings)
	if err != nil {
		return 0, errors.E(op, errors.KindDatabase, err, "failed to insert run")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.E(op, errors.KindDatabase, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO sample_outcomes (run_id, sample_id, target, status, detail)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, errors.E(op, errors.KindDatabase, err)
	}
	defer stmt.Close()

	for _, o := range summary.Outcomes {
		if _, err := stmt.Exec(id, o.SampleID, o.Target, string(o.Status), o.Detail); err != nil {
			return 0, errors.E(op, errors.KindDatabase, err,
				fmt.Sprintf("failed to insert outcome for %s/%s", o.SampleID, o.Target))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.E(op, errors.KindDatabase, err)
	}
	summary.ID = id
	return id, nil
}

// GetRun loads one run with its outcomes in insertion order.
func (l *Log) GetRun(id int64) (*models.RunSummary, error) {
	const op = errors.Op("database.GetRun")

	summary := &models.RunSummary{}
	err := l.QueryRow(`
		SELECT run_id, command, started_at, finished_at,
			samples_total, samples_ready, samples_rejected, samples_fatal, warnings
		FROM runs WHERE run_id = ?`, id).Scan(
		&summary.ID, &summary.Command, &summary.StartedAt, &summary.FinishedAt,
		&summary.Total, &summary.Ready, &summary.Rejected, &summary.Fatal, &summary.Warnings)
	if err == sql.ErrNoRows {
		return nil, errors.E(op, errors.KindDatabase, fmt.Sprintf("run %d not found", id))
	}
	if err != nil {
		return nil, errors.E(op, errors.KindDatabase, err)
	}

	rows, err := l.Query(`
		SELECT sample_id, target, status, detail
		FROM sample_outcomes WHERE run_id = ? ORDER BY outcome_id`, id)
	if err != nil {
		return nil, errors.E(op, errors.KindDatabase, err)
	}
	defer rows.Close()

	for rows.Next() {
		var o models.SampleOutcome
		var status string
		if err := rows.Scan(&o.SampleID, &o.Target, &status, &o.Detail); err != nil {
			return nil, errors.E(op, errors.KindDatabase, err)
		}
		o.Status = models.OutcomeStatus(status)
		summary.Outcomes = append(summary.Outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.E(op, errors.KindDatabase, err)
	}
	return summary, nil
}

// ListRuns returns the most recent runs, newest first, without their
// outcomes. limit <= 0 means all runs.
func (l *Log) ListRuns(limit int) ([]models.RunSummary, error) {
	const op = errors.Op("database.ListRuns")

	query := `
		SELECT run_id, command, started_at, finished_at,
			samples_total, samples_ready, samples_rejected, samples_fatal, warnings
		FROM runs ORDER BY run_id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.Query(query, args...)
	if err != nil {
		return nil, errors.E(op, errors.KindDatabase, err)
	}
	defer rows.Close()

	var runs []models.RunSummary
	for rows.Next() {
		var s models.RunSummary
		if err := rows.Scan(&s.ID, &s.Command, &s.StartedAt, &s.FinishedAt,
			&s.Total, &s.Ready, &s.Rejected, &s.Fatal, &s.Warnings); err != nil {
			return nil, errors.E(op, errors.KindDatabase, err)
		}
		runs = append(runs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.E(op, errors.KindDatabase, err)
	}
	return runs, nil
}

// SampleEvent is one sample's outcome in one recorded run, with
// enough run context to read the history on its own.
type SampleEvent struct {
	RunID      int64                `json:"run_id"`
	Command    string               `json:"command"`
	FinishedAt time.Time            `json:"finished_at"`
	Outcome    models.SampleOutcome `json:"outcome"`
}

// SampleHistory returns every recorded outcome for one sample across
// all runs, newest run first.
func (l *Log) SampleHistory(sampleID string) ([]SampleEvent, error) {
	const op = errors.Op("database.SampleHistory")

	rows, err := l.Query(`
		SELECT o.sample_id, o.target, o.status, o.detail,
		       r.run_id, r.command, r.finished_at
		FROM sample_outcomes o
		JOIN runs r ON r.run_id = o.run_id
		WHERE o.sample_id = ?
		ORDER BY r.run_id DESC, o.outcome_id`, sampleID)
	if err != nil {
		return nil, errors.E(op, errors.KindDatabase, err)
	}
	defer rows.Close()

	var events []SampleEvent
	for rows.Next() {
		var e SampleEvent
		var status string
		if err := rows.Scan(&e.Outcome.SampleID, &e.Outcome.Target, &status, &e.Outcome.Detail,
			&e.RunID, &e.Command, &e.FinishedAt); err != nil {
			return nil, errors.E(op, errors.KindDatabase, err)
		}
		e.Outcome.Status = models.OutcomeStatus(status)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.E(op, errors.KindDatabase, err)
	}
	return events, nil
}

// Path returns the log's file location.
func (l *Log) Path() string {
	return l.path
}
