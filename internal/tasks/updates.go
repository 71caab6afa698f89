package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during an import.
//
// Used to send real-time updates to the CLI, TUI or SSE stream for display.
type ProgressUpdate struct {
	Phase   Phase  // Import stage
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data; *ImportResult on [Complete]
}

// Import stage enumeration
type Phase int

const (
	ValidateInput Phase = iota
	FetchHistory
	ValidateHistory
	TransformRecords
	ResolveParent
	ProvisionDatabase
	UploadRecords
	Complete
)

func (p Phase) String() string {
	switch p {
	case ValidateInput:
		return "validate_input"
	case FetchHistory:
		return "fetch"
	case ValidateHistory:
		return "validate"
	case TransformRecords:
		return "transform"
	case ResolveParent:
		return "resolve_parent"
	case ProvisionDatabase:
		return "provision"
	case UploadRecords:
		return "upload"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

// MarshalText encodes the phase by name so JSON progress payloads stay readable.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func validateInputUpdate(uid string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ValidateInput,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Starting import for user %s...", uid),
	}
}

func fetchHistoryUpdate(uid string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchHistory,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching listening history for %s...", uid),
	}
}

func validatedHistoryUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ValidateHistory,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d records", count),
	}
}

func transformUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   TransformRecords,
		Step:    count,
		Total:   count,
		Message: fmt.Sprintf("Normalized %d records", count),
	}
}

func resolveParentUpdate(pageID string, searched bool) ProgressUpdate {
	msg := fmt.Sprintf("Using parent page %s", pageID)
	if searched {
		msg = fmt.Sprintf("Using most recently edited page %s", pageID)
	}
	return ProgressUpdate{
		Phase:   ResolveParent,
		Step:    1,
		Total:   1,
		Message: msg,
	}
}

func provisionUpdate(title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ProvisionDatabase,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Creating database %q...", title),
	}
}

func provisionedUpdate(id, url string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ProvisionDatabase,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Database created: %s (ID: %s)", url, id),
	}
}

func uploadBatchUpdate(batch, batches, attempted, succeeded, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadRecords,
		Step:    batch,
		Total:   batches,
		Message: fmt.Sprintf("[%d/%d] Uploaded %d of %d records (%d succeeded)", batch, batches, attempted, total, succeeded),
		Data:    UploadProgress{Attempted: attempted, Succeeded: succeeded, Total: total},
	}
}

func completeUpdate(result *ImportResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    1,
		Total:   1,
		Message: result.Message(),
		Data:    result,
	}
}

// UploadProgress is the running tally attached to upload updates.
type UploadProgress struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Total     int `json:"total"`
}
