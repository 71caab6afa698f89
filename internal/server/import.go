package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/cloudnote/internal/services"
	"github.com/desertthunder/cloudnote/internal/shared"
	"github.com/desertthunder/cloudnote/internal/tasks"
)

// SSE event names sent by POST /api/import.
const (
	EventProgress = "progress"
	EventComplete = "complete"
	EventError    = "error"
)

// ProgressEvent is the payload of a progress event.
type ProgressEvent struct {
	Stage   tasks.Phase `json:"stage"`
	Step    int         `json:"step"`
	Total   int         `json:"total"`
	Message string      `json:"message"`
	Data    any         `json:"data,omitempty"`
}

// CompleteEvent is the payload of the final event.
type CompleteEvent struct {
	*tasks.ImportResult
	Message string `json:"message"`
}

// ErrorEvent is the payload of an error event. Result is set when the pipeline started.
type ErrorEvent struct {
	Error  string              `json:"error"`
	Stage  string              `json:"stage,omitempty"`
	Result *tasks.ImportResult `json:"result,omitempty"`
}

// SnapshotRequest is the body of POST /api/notion/upload.
type SnapshotRequest struct {
	Token     string            `json:"token" validate:"required"`
	PageID    string            `json:"page_id" validate:"required"`
	PageTitle string            `json:"page_title" validate:"required"`
	Data      []json.RawMessage `json:"data"`
}

// handleImport runs an import and streams its progress. The run stops when the client disconnects.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req tasks.ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}
	if err := s.validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Error("streaming not supported", "error", err)
		return
	}

	logger := s.logger.With("uid", req.UID)
	progress := make(chan tasks.ProgressUpdate, 64)

	var (
		result *tasks.ImportResult
		runErr error
	)
	go func() {
		defer close(progress)
		result, runErr = s.engine.Run(r.Context(), req, progress)
	}()

	connected := true
	for update := range progress {
		if !connected || update.Phase == tasks.Complete {
			continue
		}
		event := ProgressEvent{Stage: update.Phase, Step: update.Step, Total: update.Total, Message: update.Message}
		if up, ok := update.Data.(tasks.UploadProgress); ok {
			event.Data = up
		}
		if err := sendEvent(w, rc, EventProgress, event); err != nil {
			logger.Info("client disconnected during import", "error", err)
			connected = false
		}
	}

	if !connected {
		return
	}

	if result == nil {
		_ = sendEvent(w, rc, EventError, ErrorEvent{Error: fmt.Sprint(runErr)})
		return
	}

	var stageErr *tasks.StageError
	if runErr != nil && result.Outcome == tasks.OutcomeFailed {
		event := ErrorEvent{Error: result.Error, Result: result}
		if errors.As(runErr, &stageErr) {
			event.Stage = stageErr.Stage.String()
		}
		if event.Error == "" {
			event.Error = runErr.Error()
		}
		_ = sendEvent(w, rc, EventError, event)
		return
	}

	_ = sendEvent(w, rc, EventComplete, CompleteEvent{ImportResult: result, Message: result.Message()})
}

// handleSnapshot writes raw JSON items as paragraphs of a new page.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var req SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}
	if err := s.validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	page, err := s.notion.CreateSnapshotPage(r.Context(), req.Token, req.PageID, req.PageTitle, req.Data)
	if err != nil {
		var apiErr *services.NotionAPIError
		switch {
		case errors.As(err, &apiErr):
			writeJSON(w, apiErr.Status, map[string]any{
				"error":   "notion rejected the page",
				"status":  apiErr.Status,
				"details": upstreamDetails(apiErr.Body),
			})
		case errors.Is(err, shared.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("snapshot upload failed", "error", err)
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) validate(v any) error {
	return s.validator.Validate(v)
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verr *shared.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request", "fields": verr.Fields})
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// sendEvent writes one SSE frame and flushes it.
func sendEvent(w http.ResponseWriter, rc *http.ResponseController, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}
	_ = rc.SetWriteDeadline(time.Now().Add(60 * time.Second))
	return nil
}
