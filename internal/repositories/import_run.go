package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cloudnote/internal/models"
	"github.com/desertthunder/cloudnote/internal/shared"
)

// ErrRunNotFound is returned when no live import run has the requested id.
var ErrRunNotFound = errors.New("import run not found")

const importRunColumns = `
	id, sequence, uid, page_id, database_id, database_url, status, stage,
	records_attempted, records_succeeded, error_message, started_at,
	completed_at, created_at, updated_at, deleted_at
`

// ImportRunRepository is the [models.Store] of import history.
//
// Per-record failures live in import_failures and are written with the run on Update.
type ImportRunRepository struct {
	db *sql.DB
}

var _ models.Store[*models.ImportRun] = (*ImportRunRepository)(nil)

// NewImportRunRepository creates a new ImportRunRepository with the given database connection
func NewImportRunRepository(db *sql.DB) *ImportRunRepository {
	return &ImportRunRepository{db: db}
}

// Create inserts a new import run with generated ID and sequence
func (r *ImportRunRepository) Create(run *models.ImportRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "import_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	run.SetID(shared.GenerateID())
	run.SetSequence(sequence)

	query := `
		INSERT INTO import_runs (
			id, sequence, uid, page_id, database_id, database_url, status, stage,
			records_attempted, records_succeeded, error_message, started_at,
			completed_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		run.ID(),
		run.Sequence(),
		run.UID(),
		nullable(run.PageID()),
		nullable(run.DatabaseID()),
		nullable(run.DatabaseURL()),
		run.Status(),
		nullable(run.Stage()),
		run.Attempted(),
		run.Succeeded(),
		nullable(run.ErrorMessage()),
		run.StartedAt(),
		run.CompletedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert import run: %w", err)
	}
	return nil
}

// Get retrieves an import run and its failures by ID, excluding soft-deleted runs
func (r *ImportRunRepository) Get(id string) (*models.ImportRun, error) {
	query := "SELECT " + importRunColumns + " FROM import_runs WHERE id = ? AND deleted_at IS NULL"

	run, err := scanImportRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	failures, err := r.Failures(id)
	if err != nil {
		return nil, err
	}
	run.SetFailures(failures)
	return run, nil
}

// Update writes the run's progress and replaces its recorded failures in one transaction
func (r *ImportRunRepository) Update(run *models.ImportRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE import_runs
		SET page_id = ?, database_id = ?, database_url = ?, status = ?, stage = ?,
			records_attempted = ?, records_succeeded = ?, error_message = ?,
			started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := tx.Exec(query,
		nullable(run.PageID()),
		nullable(run.DatabaseID()),
		nullable(run.DatabaseURL()),
		run.Status(),
		nullable(run.Stage()),
		run.Attempted(),
		run.Succeeded(),
		nullable(run.ErrorMessage()),
		run.StartedAt(),
		run.CompletedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update import run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID())
	}

	if _, err := tx.Exec("DELETE FROM import_failures WHERE run_id = ?", run.ID()); err != nil {
		return fmt.Errorf("failed to clear failures: %w", err)
	}

	for _, f := range run.Failures() {
		_, err := tx.Exec(
			"INSERT INTO import_failures (run_id, record_index, song_name, status, message, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			run.ID(), f.Index, f.Name, f.Status, f.Message, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import run: %w", err)
	}
	return nil
}

// Delete soft-deletes an import run by ID
func (r *ImportRunRepository) Delete(id string) error {
	result, err := r.db.Exec("UPDATE import_runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete import run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// List retrieves runs newest first. Supported criteria: "uid" and "status" (string), "limit" (int).
//
// Failures are not loaded; use [ImportRunRepository.Get] or [ImportRunRepository.Failures].
func (r *ImportRunRepository) List(criteria map[string]any) ([]*models.ImportRun, error) {
	query := "SELECT " + importRunColumns + " FROM import_runs WHERE deleted_at IS NULL"
	args := []any{}

	if uid, ok := criteria["uid"].(string); ok && uid != "" {
		query += " AND uid = ?"
		args = append(args, uid)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query import runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.ImportRun{}
	for rows.Next() {
		run, err := scanImportRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// Failures lists the recorded record failures of a run in record order
func (r *ImportRunRepository) Failures(runID string) ([]models.ImportFailure, error) {
	rows, err := r.db.Query(
		"SELECT record_index, song_name, status, message FROM import_failures WHERE run_id = ? ORDER BY record_index ASC",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	failures := []models.ImportFailure{}
	for rows.Next() {
		var f models.ImportFailure
		if err := rows.Scan(&f.Index, &f.Name, &f.Status, &f.Message); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		failures = append(failures, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return failures, nil
}

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

func scanImportRun(s scanner) (*models.ImportRun, error) {
	var (
		id           string
		sequence     int
		uid          string
		pageID       sql.NullString
		databaseID   sql.NullString
		databaseURL  sql.NullString
		status       string
		stage        sql.NullString
		attempted    int
		succeeded    int
		errorMessage sql.NullString
		startedAt    sql.NullTime
		completedAt  sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := s.Scan(
		&id, &sequence, &uid, &pageID, &databaseID, &databaseURL, &status, &stage,
		&attempted, &succeeded, &errorMessage, &startedAt,
		&completedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan import run: %w", err)
	}

	run := models.NewImportRun(sequence, uid, pageID.String)
	run.SetID(id)
	run.SetDatabase(databaseID.String, databaseURL.String)
	run.SetStatus(status)
	run.SetStage(stage.String)
	run.SetCounts(attempted, succeeded)
	run.SetErrorMessage(errorMessage.String)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	run.SetStartedAt(nil)
	if startedAt.Valid {
		run.SetStartedAt(&startedAt.Time)
	}
	if completedAt.Valid {
		run.SetCompletedAt(&completedAt.Time)
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}
	return run, nil
}

// nullable stores empty strings as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
