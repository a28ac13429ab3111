package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdImportNow CommandType = "import_now"
	CmdPause     CommandType = "pause"
	CmdResume    CommandType = "resume"
)

// Command is an operator instruction queued in SQLite by an external control
// surface and polled by the scheduler.
type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

// ImportRun is one row of cycle history kept in SQLite for audit.
type ImportRun struct {
	ID          int64      `json:"id" db:"id"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	FinishedAt  *time.Time `json:"finished_at" db:"finished_at"`
	FilesSeen   int        `json:"files_seen" db:"files_seen"`
	FilesDone   int        `json:"files_done" db:"files_done"`
	Added       int        `json:"added" db:"added"`
	Updated     int        `json:"updated" db:"updated"`
	Skipped     int        `json:"skipped" db:"skipped"`
	ErrorsCount int        `json:"errors_count" db:"errors_count"`
}
