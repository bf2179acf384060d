// Package store persists phase outputs durably in SQLite. The orchestrator
// writes through Persist after each completed phase; a phase's rows are
// replaced wholesale in one transaction, never partially.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/valpere/scenetran/internal/run"
)

type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and applies the
// schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		status TEXT DEFAULT 'running',
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- phase_outputs holds the durable per-identifier results of each
	-- completed phase. One run/phase pair is always written atomically.
	CREATE TABLE IF NOT EXISTS phase_outputs (
		run_id TEXT NOT NULL,
		phase TEXT NOT NULL,
		unit_id TEXT NOT NULL,
		text TEXT NOT NULL,
		notes TEXT,
		model TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (run_id, phase, unit_id),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// BeginRun records a new run.
func (s *Store) BeginRun(ctx context.Context, runID, sourceLang, targetLang string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source_lang, target_lang) VALUES (?, ?, ?)`,
		runID, sourceLang, targetLang)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// FinishRun marks a run's terminal status; errMsg is empty on success.
func (s *Store) FinishRun(ctx context.Context, runID, status, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, errMsg, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// Persist durably replaces the stored output of one phase. Delete-then-
// insert inside a single transaction keeps the replacement wholesale: a
// failed write leaves the previous phase output as the durable record.
func (s *Store) Persist(ctx context.Context, runID string, phase run.Phase, out run.PhaseOutput) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM phase_outputs WHERE run_id = ? AND phase = ?`, runID, string(phase)); err != nil {
		return fmt.Errorf("failed to clear phase output: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO phase_outputs (run_id, phase, unit_id, text, notes, model) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range out.IDs() {
		r := out[id]
		if _, err := stmt.ExecContext(ctx, runID, string(phase), id, r.Text, r.Notes, r.Model); err != nil {
			return fmt.Errorf("failed to insert %s/%s: %w", phase, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit phase output: %w", err)
	}
	return nil
}

// LoadPhase reads a stored phase output back, e.g. for resume or
// inspection. Returns an empty map when nothing is stored.
func (s *Store) LoadPhase(ctx context.Context, runID string, phase run.Phase) (run.PhaseOutput, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT unit_id, text, notes, model FROM phase_outputs WHERE run_id = ? AND phase = ?`,
		runID, string(phase))
	if err != nil {
		return nil, fmt.Errorf("failed to query phase output: %w", err)
	}
	defer rows.Close()

	out := make(run.PhaseOutput)
	for rows.Next() {
		var id, text string
		var notes, model sql.NullString
		if err := rows.Scan(&id, &text, &notes, &model); err != nil {
			return nil, fmt.Errorf("failed to scan phase output: %w", err)
		}
		out[id] = run.Result{Text: text, Notes: notes.String, Model: model.String}
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
