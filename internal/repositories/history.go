package repositories

import (
	"fmt"

	"github.com/desertthunder/cloudnote/internal/models"
)

// ImportHistoryAdapter implements tasks.RunRecorder using ImportRunRepository.
type ImportHistoryAdapter struct {
	repo *ImportRunRepository
}

// NewImportHistoryAdapter creates a new ImportHistoryAdapter with the given repository
func NewImportHistoryAdapter(repo *ImportRunRepository) *ImportHistoryAdapter {
	return &ImportHistoryAdapter{repo: repo}
}

// StartRun stores a running import for uid.
func (a *ImportHistoryAdapter) StartRun(uid, pageID string) (*models.ImportRun, error) {
	run := models.NewImportRun(0, uid, pageID)
	if err := a.repo.Create(run); err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return run, nil
}

// FinishRun stores the terminal state of run.
func (a *ImportHistoryAdapter) FinishRun(run *models.ImportRun) error {
	if err := a.repo.Update(run); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}
