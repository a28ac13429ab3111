package models

import (
	"time"

	"github.com/google/uuid"
)

// Report aggregates one full import cycle.
type Report struct {
	ID         uuid.UUID  `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`

	FilesSeen      int `json:"files_seen"`
	FilesProcessed int `json:"files_processed"`
	Added          int `json:"added"`
	Updated        int `json:"updated"`
	Skipped        int `json:"skipped"`

	// SkippedRecords lists the records intentionally excluded this cycle,
	// with their machine-readable reasons.
	SkippedRecords []SkippedRecord `json:"skipped_records,omitempty"`

	Errors []FileError `json:"errors,omitempty"`
}

// FileError records one per-file failure inside a cycle.
type FileError struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

func (r *Report) AddError(file, message string) {
	r.Errors = append(r.Errors, FileError{File: file, Message: message})
}
