package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/jardins/ghlsync/internal/errors"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	RunRunning = "running"
	RunSuccess = "success"
	RunFailure = "failure"
)

// RunRecord is one pipeline run, used by the status endpoint and for
// after-the-fact diagnostics of scheduled runs.
type RunRecord struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
}

// StageRecord is one stage outcome within a run.
type StageRecord struct {
	RunID      string    `json:"run_id"`
	Stage      string    `json:"stage"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RunStore keeps run history in SQLite with WAL mode enabled.
type RunStore struct {
	db *sql.DB
}

// NewRunStore opens (or creates) the run-history database.
func NewRunStore(dbPath string) (*RunStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	store := &RunStore{db: db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *RunStore) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			finished_at DATETIME,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS run_stages (
			run_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			recorded_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_stages_run_id ON run_stages(run_id)`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return &errors.ErrDatabaseQuery{Operation: "create_tables", Err: err}
		}
	}
	return nil
}

// BeginRun records the start of a pipeline run.
func (s *RunStore) BeginRun(id string, startedAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, started_at, status) VALUES (?, ?, ?)`,
		id, startedAt.UTC(), RunRunning,
	)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "begin_run", Err: err}
	}
	return nil
}

// FinishRun marks a run finished with the given status and optional error.
func (s *RunStore) FinishRun(id, status, errMsg string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE id = ?`,
		time.Now().UTC(), status, errMsg, id,
	)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "finish_run", Err: err}
	}
	return nil
}

// RecordStage records one stage outcome for a run.
func (s *RunStore) RecordStage(runID, stage, status, detail string) error {
	_, err := s.db.Exec(
		`INSERT INTO run_stages (run_id, stage, status, detail, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		runID, stage, status, detail, time.Now().UTC(),
	)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "record_stage", Err: err}
	}
	return nil
}

// LastRun returns the most recently started run and its stages, or nil when
// no run has been recorded yet.
func (s *RunStore) LastRun() (*RunRecord, []StageRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, started_at, finished_at, status, error FROM runs ORDER BY started_at DESC, id DESC LIMIT 1`,
	)

	var run RunRecord
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.StartedAt, &finished, &run.Status, &run.Error)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, &errors.ErrDatabaseQuery{Operation: "last_run", Err: err}
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}

	rows, err := s.db.Query(
		`SELECT run_id, stage, status, detail, recorded_at FROM run_stages WHERE run_id = ? ORDER BY recorded_at, rowid`,
		run.ID,
	)
	if err != nil {
		return nil, nil, &errors.ErrDatabaseQuery{Operation: "last_run_stages", Err: err}
	}
	defer rows.Close()

	var stages []StageRecord
	for rows.Next() {
		var st StageRecord
		if err := rows.Scan(&st.RunID, &st.Stage, &st.Status, &st.Detail, &st.RecordedAt); err != nil {
			return nil, nil, &errors.ErrDatabaseQuery{Operation: "last_run_stages", Err: err}
		}
		stages = append(stages, st)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, &errors.ErrDatabaseQuery{Operation: "last_run_stages", Err: err}
	}

	return &run, stages, nil
}

// Cleanup deletes runs older than retentionDays. Zero disables cleanup.
func (s *RunStore) Cleanup(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	if _, err := s.db.Exec(
		`DELETE FROM run_stages WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`,
		cutoff,
	); err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "cleanup_stages", Err: err}
	}

	res, err := s.db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "cleanup_runs", Err: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close closes the underlying database.
func (s *RunStore) Close() error {
	return s.db.Close()
}
