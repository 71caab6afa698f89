// package tasks implements the listening history import pipeline.
//
// The core abstraction is ImportEngine, which fetches a NetEase history, normalizes it, provisions a Notion database
// and uploads one page per record in batches. Progress is reported over a channel without blocking.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cloudnote/internal/models"
	"github.com/desertthunder/cloudnote/internal/services"
	"github.com/desertthunder/cloudnote/internal/shared"
)

// Outcome is the terminal state of a run.
type Outcome string

const (
	OutcomeSucceeded Outcome = models.RunSucceeded // every attempted record was created
	OutcomePartial   Outcome = models.RunPartial   // upload was reached but some records failed
	OutcomeFailed    Outcome = models.RunFailed    // a stage failed before any record was attempted
)

// ImportRequest identifies the history to import and where to put it.
type ImportRequest struct {
	UID    string `json:"uid" validate:"required"`
	Token  string `json:"token" validate:"required"`
	PageID string `json:"page_id,omitempty"` // parent page; the most recently edited shared page when empty
	Title  string `json:"title,omitempty"`   // database title; [DefaultTitle] when empty
}

// Validate trims the request and checks the required fields.
func (r *ImportRequest) Validate() error {
	r.UID = strings.TrimSpace(r.UID)
	r.Token = strings.TrimSpace(r.Token)
	r.PageID = strings.TrimSpace(r.PageID)

	if r.UID == "" {
		return fmt.Errorf("%w: uid is required", shared.ErrInvalidInput)
	}
	if r.Token == "" {
		return fmt.Errorf("%w: notion token is required", shared.ErrInvalidInput)
	}
	return nil
}

// ImportResult summarizes a run. Counts are always set once upload was reached.
type ImportResult struct {
	RunID       string                 `json:"run_id,omitempty"`
	UID         string                 `json:"uid"`
	Outcome     Outcome                `json:"outcome"`
	Stage       Phase                  `json:"stage"` // last stage reached; the failing one when Outcome is failed
	Error       string                 `json:"error,omitempty"`
	Total       int                    `json:"total"`
	Attempted   int                    `json:"attempted"`
	Succeeded   int                    `json:"succeeded"`
	Failed      int                    `json:"failed"`
	PageID      string                 `json:"page_id,omitempty"`
	DatabaseID  string                 `json:"database_id,omitempty"`
	DatabaseURL string                 `json:"database_url,omitempty"`
	Failures    []models.ImportFailure `json:"failures,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt time.Time              `json:"completed_at"`
}

// Message renders the human readable status line for the result.
func (r *ImportResult) Message() string {
	switch r.Outcome {
	case OutcomeSucceeded:
		return fmt.Sprintf("Imported %d of %d records into %s", r.Succeeded, r.Attempted, r.DatabaseURL)
	case OutcomePartial:
		msg := fmt.Sprintf("Imported %d of %d records (%d failed) into %s", r.Succeeded, r.Attempted, r.Failed, r.DatabaseURL)
		if r.Error != "" {
			msg += ": " + r.Error
		}
		return msg
	default:
		return fmt.Sprintf("Import failed at %s: %s", r.Stage, r.Error)
	}
}

// StageError is a stage-fatal failure. The run stops at Stage.
type StageError struct {
	Stage Phase
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Source fetches listening history.
type Source = services.RecordSource

// Destination is the subset of the Notion API the import needs.
type Destination interface {
	PageCreator
	SearchPages(ctx context.Context, token string) ([]services.NotionPage, error)
	CreateDatabase(ctx context.Context, token string, req services.CreateDatabaseRequest) (*services.NotionDatabase, error)
}

// RunRecorder persists run history. Implemented by repositories.ImportHistoryAdapter.
//
// Recorder failures are logged and never fail a run.
type RunRecorder interface {
	StartRun(uid, pageID string) (*models.ImportRun, error)
	FinishRun(run *models.ImportRun) error
}

// Observer receives pipeline measurements. Implementations must be safe for concurrent use: RecordSettled is
// called from upload goroutines.
type Observer interface {
	StageCompleted(stage string, d time.Duration, err error)
	RecordSettled(ok bool)
	RunCompleted(outcome string)
}

// ImportEngine runs imports. It holds no per-run state and may be shared between goroutines.
type ImportEngine struct {
	source   Source
	dest     Destination
	uploader *BatchUploader
	recorder RunRecorder
	observer Observer
	logger   *log.Logger
}

// NewImportEngine creates an engine with the default [BatchUploader].
func NewImportEngine(source Source, dest Destination, logger *log.Logger) *ImportEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ImportEngine{
		source:   source,
		dest:     dest,
		uploader: NewBatchUploader(),
		logger:   logger,
	}
}

// WithRecorder enables run history.
func (e *ImportEngine) WithRecorder(r RunRecorder) *ImportEngine {
	e.recorder = r
	return e
}

// WithObserver enables metrics.
func (e *ImportEngine) WithObserver(o Observer) *ImportEngine {
	e.observer = o
	return e
}

// WithUploader replaces the batch uploader.
func (e *ImportEngine) WithUploader(u *BatchUploader) *ImportEngine {
	e.uploader = u
	return e
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run imports the history for req.UID into a new Notion database.
//
// A stage failure returns the failed result together with a [*StageError]. A partial upload is not an error. The
// last update sent on progress has [Complete] as its phase and the result as its Data.
func (e *ImportEngine) Run(ctx context.Context, req ImportRequest, progress chan<- ProgressUpdate) (*ImportResult, error) {
	result := &ImportResult{UID: strings.TrimSpace(req.UID), StartedAt: time.Now(), Stage: ValidateInput}

	if e.source == nil || e.dest == nil {
		return e.fail(progress, nil, result, ValidateInput, time.Now(),
			fmt.Errorf("%w: import engine is not configured", shared.ErrServiceUnavailable))
	}

	started := time.Now()
	if err := req.Validate(); err != nil {
		return e.fail(progress, nil, result, ValidateInput, started, err)
	}
	e.observe(ValidateInput, started, nil)
	sendProgress(progress, validateInputUpdate(req.UID))

	run := e.startRun(req)
	if run != nil {
		result.RunID = run.ID()
	}

	records, err := e.fetch(ctx, req.UID, progress, result)
	if err != nil {
		return e.fail(progress, run, result, result.Stage, time.Now(), err)
	}
	result.Total = len(records)

	started = time.Now()
	result.Stage = ResolveParent
	parentID, searched, err := e.resolveParent(ctx, req)
	if err != nil {
		return e.fail(progress, run, result, ResolveParent, started, err)
	}
	result.PageID = parentID
	e.observe(ResolveParent, started, nil)
	sendProgress(progress, resolveParentUpdate(parentID, searched))

	title := req.Title
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle(req.UID)
	}

	started = time.Now()
	result.Stage = ProvisionDatabase
	sendProgress(progress, provisionUpdate(title))
	db, err := e.dest.CreateDatabase(ctx, req.Token, DatabaseRequest(parentID, title))
	if err != nil {
		return e.fail(progress, run, result, ProvisionDatabase, started, err)
	}
	result.DatabaseID, result.DatabaseURL = db.ID, db.URL
	e.observe(ProvisionDatabase, started, nil)
	sendProgress(progress, provisionedUpdate(db.ID, db.URL))
	e.logger.Info("database provisioned", "uid", req.UID, "database_id", db.ID)

	started = time.Now()
	result.Stage = UploadRecords
	uploaded, err := e.upload(ctx, req.Token, db.ID, records, progress)
	result.Attempted = uploaded.Attempted
	result.Succeeded = uploaded.Succeeded
	result.Failed = uploaded.Attempted - uploaded.Succeeded
	result.Failures = uploaded.Failures()
	if err != nil && result.Attempted == 0 {
		return e.fail(progress, run, result, UploadRecords, started, err)
	}
	e.observe(UploadRecords, started, err)

	result.Outcome = OutcomeSucceeded
	if result.Succeeded < result.Attempted || result.Attempted < result.Total {
		result.Outcome = OutcomePartial
	}

	var stageErr error
	if err != nil {
		result.Error = err.Error()
		stageErr = &StageError{Stage: UploadRecords, Err: err}
	}

	e.finish(progress, run, result)
	return result, stageErr
}

// Preview fetches, validates and normalizes the history for uid without touching Notion.
func (e *ImportEngine) Preview(ctx context.Context, uid string) ([]models.NormalizedRecord, error) {
	if e.source == nil {
		return nil, fmt.Errorf("%w: record source is not configured", shared.ErrServiceUnavailable)
	}

	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, &StageError{Stage: ValidateInput, Err: fmt.Errorf("%w: uid is required", shared.ErrInvalidInput)}
	}
	return e.fetch(ctx, uid, nil, &ImportResult{UID: uid})
}

// fetch runs the fetch, validate and transform stages, advancing result.Stage as it goes.
func (e *ImportEngine) fetch(ctx context.Context, uid string, progress chan<- ProgressUpdate, result *ImportResult) ([]models.NormalizedRecord, error) {
	started := time.Now()
	result.Stage = FetchHistory
	sendProgress(progress, fetchHistoryUpdate(uid))

	resp, err := e.source.UserRecords(ctx, uid)
	if err != nil {
		e.observe(FetchHistory, started, err)
		return nil, &StageError{Stage: FetchHistory, Err: err}
	}
	e.observe(FetchHistory, started, nil)

	started = time.Now()
	result.Stage = ValidateHistory
	if err := validateHistory(resp); err != nil {
		e.observe(ValidateHistory, started, err)
		return nil, &StageError{Stage: ValidateHistory, Err: err}
	}
	e.observe(ValidateHistory, started, nil)
	sendProgress(progress, validatedHistoryUpdate(len(resp.AllData)))

	started = time.Now()
	result.Stage = TransformRecords
	records := Transform(resp.AllData)
	e.observe(TransformRecords, started, nil)
	sendProgress(progress, transformUpdate(len(records)))

	return records, nil
}

func validateHistory(resp *RecordResponse) error {
	if resp == nil {
		return &shared.UpstreamError{Message: "empty response"}
	}
	if resp.Code != 200 {
		return &shared.UpstreamError{Code: resp.Code, Message: "unexpected code"}
	}
	if len(resp.AllData) == 0 {
		return shared.ErrEmptyHistory
	}
	return nil
}

// RecordResponse is the payload returned by a [Source].
type RecordResponse = services.RecordResponse

// resolveParent returns the explicit page id, or the first page the search endpoint returns.
func (e *ImportEngine) resolveParent(ctx context.Context, req ImportRequest) (string, bool, error) {
	if req.PageID != "" {
		return req.PageID, false, nil
	}

	pages, err := e.dest.SearchPages(ctx, req.Token)
	if err != nil {
		return "", true, err
	}
	if len(pages) == 0 {
		return "", true, shared.ErrNoParentPage
	}
	return pages[0].ID, true, nil
}

func (e *ImportEngine) upload(ctx context.Context, token, databaseID string, records []models.NormalizedRecord, progress chan<- ProgressUpdate) (*UploadResult, error) {
	uploader := *e.uploader
	if e.observer != nil {
		settle := uploader.OnSettle
		uploader.OnSettle = func(o RecordOutcome) {
			e.observer.RecordSettled(o.Err == nil)
			if settle != nil {
				settle(o)
			}
		}
	}

	result, err := uploader.Upload(ctx, e.dest, token, databaseID, records, progress)
	for _, o := range result.Outcomes {
		if o.Err != nil {
			e.logger.Warn("record upload failed", "index", o.Index, "name", o.Name, "error", o.Err)
		}
	}
	return result, err
}

// fail records a stage-fatal failure and emits the completion event.
func (e *ImportEngine) fail(
	progress chan<- ProgressUpdate,
	run *models.ImportRun,
	result *ImportResult,
	stage Phase,
	started time.Time,
	err error,
) (*ImportResult, error) {
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		stageErr = &StageError{Stage: stage, Err: err}
		e.observe(stage, started, err)
	}

	result.Outcome = OutcomeFailed
	result.Stage = stageErr.Stage
	result.Error = stageErr.Err.Error()
	e.logger.Error("import failed", "uid", result.UID, "stage", stageErr.Stage.String(), "error", stageErr.Err)

	e.finish(progress, run, result)
	return result, stageErr
}

func (e *ImportEngine) finish(progress chan<- ProgressUpdate, run *models.ImportRun, result *ImportResult) {
	result.CompletedAt = time.Now()

	if run != nil {
		run.SetStage(result.Stage.String())
		run.SetPageID(result.PageID)
		run.SetDatabase(result.DatabaseID, result.DatabaseURL)
		run.SetCounts(result.Attempted, result.Succeeded)
		run.SetErrorMessage(result.Error)
		run.SetFailures(result.Failures)
		run.Complete(string(result.Outcome))

		if err := e.recorder.FinishRun(run); err != nil {
			e.logger.Warn("failed to record import run", "run_id", run.ID(), "error", err)
		}
	}

	if e.observer != nil {
		e.observer.RunCompleted(string(result.Outcome))
	}

	if result.Outcome != OutcomeFailed {
		e.logger.Info("import finished", "uid", result.UID, "outcome", result.Outcome, "attempted", result.Attempted, "succeeded", result.Succeeded)
	}
	sendProgress(progress, completeUpdate(result))
}

func (e *ImportEngine) startRun(req ImportRequest) *models.ImportRun {
	if e.recorder == nil {
		return nil
	}

	run, err := e.recorder.StartRun(req.UID, req.PageID)
	if err != nil {
		e.logger.Warn("failed to record import run", "uid", req.UID, "error", err)
		return nil
	}
	return run
}

func (e *ImportEngine) observe(stage Phase, started time.Time, err error) {
	if e.observer != nil {
		e.observer.StageCompleted(stage.String(), time.Since(started), err)
	}
}
