package models

import (
	"fmt"
	"time"
)

// Import run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunPartial   = "partial"
	RunFailed    = "failed"
)

// ImportRun records one pass of the import pipeline for a listening history uid.
type ImportRun struct {
	id          string
	sequence    int
	uid         string
	pageID      string
	databaseID  string
	databaseURL string
	status      string
	stage       string
	attempted   int
	succeeded   int
	errMessage  string
	startedAt   *time.Time
	completedAt *time.Time
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
	failures    []ImportFailure
}

// ImportFailure is one record that could not be created in Notion.
type ImportFailure struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
}

// NewImportRun creates a running [ImportRun] for uid.
func NewImportRun(sequence int, uid, pageID string) *ImportRun {
	now := time.Now()
	return &ImportRun{
		sequence:  sequence,
		uid:       uid,
		pageID:    pageID,
		status:    RunRunning,
		startedAt: &now,
		createdAt: now,
		updatedAt: now,
	}
}

func (r *ImportRun) ID() string                         { return r.id }
func (r *ImportRun) Sequence() int                      { return r.sequence }
func (r *ImportRun) UID() string                        { return r.uid }
func (r *ImportRun) PageID() string                     { return r.pageID }
func (r *ImportRun) DatabaseID() string                 { return r.databaseID }
func (r *ImportRun) DatabaseURL() string                { return r.databaseURL }
func (r *ImportRun) Status() string                     { return r.status }
func (r *ImportRun) Stage() string                      { return r.stage }
func (r *ImportRun) Attempted() int                     { return r.attempted }
func (r *ImportRun) Succeeded() int                     { return r.succeeded }
func (r *ImportRun) Failed() int                        { return r.attempted - r.succeeded }
func (r *ImportRun) ErrorMessage() string               { return r.errMessage }
func (r *ImportRun) StartedAt() *time.Time              { return r.startedAt }
func (r *ImportRun) CompletedAt() *time.Time            { return r.completedAt }
func (r *ImportRun) CreatedAt() time.Time               { return r.createdAt }
func (r *ImportRun) UpdatedAt() time.Time               { return r.updatedAt }
func (r *ImportRun) DeletedAt() *time.Time              { return r.deletedAt }
func (r *ImportRun) Failures() []ImportFailure          { return r.failures }
func (r *ImportRun) SetID(id string)                    { r.id = id }
func (r *ImportRun) SetSequence(seq int)                { r.sequence = seq }
func (r *ImportRun) SetPageID(id string)                { r.pageID = id }
func (r *ImportRun) SetStage(stage string)              { r.stage = stage }
func (r *ImportRun) SetErrorMessage(msg string)         { r.errMessage = msg }
func (r *ImportRun) SetStartedAt(t *time.Time)          { r.startedAt = t }
func (r *ImportRun) SetCompletedAt(t *time.Time)        { r.completedAt = t }
func (r *ImportRun) SetCreatedAt(t time.Time)           { r.createdAt = t }
func (r *ImportRun) SetUpdatedAt(t time.Time)           { r.updatedAt = t }
func (r *ImportRun) SetDeletedAt(t *time.Time)          { r.deletedAt = t }
func (r *ImportRun) SetFailures(f []ImportFailure)      { r.failures = f }
func (r *ImportRun) SetStatus(status string)            { r.status = status }
func (r *ImportRun) SetCounts(attempted, succeeded int) { r.attempted, r.succeeded = attempted, succeeded }

// SetDatabase records the Notion database created for this run.
func (r *ImportRun) SetDatabase(id, url string) {
	r.databaseID = id
	r.databaseURL = url
}

// Complete moves the run to a terminal status and stamps the completion time.
func (r *ImportRun) Complete(status string) {
	now := time.Now()
	r.status = status
	r.completedAt = &now
	r.updatedAt = now
}

// Validate checks required fields and counter consistency.
func (r *ImportRun) Validate() error {
	if r.uid == "" {
		return fmt.Errorf("uid is required")
	}

	switch r.status {
	case RunRunning, RunSucceeded, RunPartial, RunFailed:
	default:
		return fmt.Errorf("invalid status: %q", r.status)
	}

	if r.attempted < 0 || r.succeeded < 0 || r.succeeded > r.attempted {
		return fmt.Errorf("invalid counts: %d succeeded of %d attempted", r.succeeded, r.attempted)
	}
	return nil
}
