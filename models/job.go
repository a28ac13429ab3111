package models

import "time"

// ImportJob is the per-source-file ledger entry used for change detection and
// audit. Keyed by filename; upserted after every processing attempt, never
// deleted.
type ImportJob struct {
	Filename    string    `json:"filename" db:"filename"`
	Checksum    string    `json:"checksum" db:"checksum"`
	Total       int       `json:"total" db:"total"`
	Added       int       `json:"added" db:"added"`
	Updated     int       `json:"updated" db:"updated"`
	Skipped     int       `json:"skipped" db:"skipped"`
	Errors      []string  `json:"errors,omitempty" db:"errors"`
	ProcessedAt time.Time `json:"processed_at" db:"processed_at"`
}
