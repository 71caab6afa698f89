package services

import (
	"context"

	"github.com/desertthunder/cloudnote/internal/models"
)

// RecordSource fetches the listening history for a user.
type RecordSource interface {
	UserRecords(ctx context.Context, uid string) (*RecordResponse, error)
}

// RecordResponse is a validated listening history payload. AllData is never nil.
type RecordResponse struct {
	Code    int                   `json:"code"`
	AllData []models.SourceRecord `json:"allData"`
}
