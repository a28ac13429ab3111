package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"autoszczech/models"
)

// SQLiteStore holds operational data: the per-file job ledger, cycle history,
// and the operator command queue. Domain data lives in Postgres.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS import_jobs (
		filename TEXT PRIMARY KEY,
		checksum TEXT NOT NULL DEFAULT '',
		total INTEGER NOT NULL DEFAULT 0,
		added INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		errors JSON,
		processed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS import_runs (
		id INTEGER PRIMARY KEY,
		started_at DATETIME,
		finished_at DATETIME,
		files_seen INTEGER DEFAULT 0,
		files_done INTEGER DEFAULT 0,
		added INTEGER DEFAULT 0,
		updated INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Job ledger
// =============================================================================

func (s *SQLiteStore) GetJob(filename string) (*models.ImportJob, error) {
	row := s.db.QueryRow(`
		SELECT filename, checksum, total, added, updated, skipped, errors, processed_at
		FROM import_jobs WHERE filename = ?`, filename)

	var job models.ImportJob
	var errorsJSON sql.NullString
	err := row.Scan(&job.Filename, &job.Checksum, &job.Total, &job.Added,
		&job.Updated, &job.Skipped, &errorsJSON, &job.ProcessedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if errorsJSON.Valid && errorsJSON.String != "" {
		if err := json.Unmarshal([]byte(errorsJSON.String), &job.Errors); err != nil {
			return nil, err
		}
	}
	return &job, nil
}

// UpsertJob writes one ledger entry. An empty incoming checksum (error path)
// preserves the stored one, so a file that failed mid-processing is retried
// on the next cycle.
func (s *SQLiteStore) UpsertJob(job *models.ImportJob) error {
	var errorsJSON any
	if len(job.Errors) > 0 {
		data, err := json.Marshal(job.Errors)
		if err != nil {
			return err
		}
		errorsJSON = string(data)
	}

	_, err := s.db.Exec(`
		INSERT INTO import_jobs (filename, checksum, total, added, updated, skipped, errors, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (filename) DO UPDATE SET
			checksum = CASE WHEN excluded.checksum = '' THEN import_jobs.checksum ELSE excluded.checksum END,
			total = excluded.total,
			added = excluded.added,
			updated = excluded.updated,
			skipped = excluded.skipped,
			errors = excluded.errors,
			processed_at = excluded.processed_at`,
		job.Filename, job.Checksum, job.Total, job.Added, job.Updated, job.Skipped,
		errorsJSON, job.ProcessedAt)
	return err
}

// =============================================================================
// Run history
// =============================================================================

func (s *SQLiteStore) StartRun(run *models.ImportRun) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO import_runs (started_at) VALUES (?)`, run.StartedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) FinishRun(run *models.ImportRun) error {
	_, err := s.db.Exec(`
		UPDATE import_runs SET
			finished_at = ?, files_seen = ?, files_done = ?,
			added = ?, updated = ?, skipped = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.FilesSeen, run.FilesDone,
		run.Added, run.Updated, run.Skipped, run.ErrorsCount, run.ID)
	return err
}

func (s *SQLiteStore) GetLastRun() (*models.ImportRun, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, finished_at, files_seen, files_done, added, updated, skipped, errors_count
		FROM import_runs ORDER BY started_at DESC LIMIT 1`)

	var run models.ImportRun
	err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.FilesSeen,
		&run.FilesDone, &run.Added, &run.Updated, &run.Skipped, &run.ErrorsCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// =============================================================================
// Commands
// =============================================================================

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, COALESCE(params, '{}'), created_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params string
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt); err != nil {
			return nil, err
		}
		cmd.Params = json.RawMessage(params)
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}
