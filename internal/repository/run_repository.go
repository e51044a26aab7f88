package repository

import (
	"context"
	"errors"

	"github.com/andresuchdata/netplan/internal/domain"
)

// ErrRunNotFound is returned when no run carries the requested id.
var ErrRunNotFound = errors.New("run not found")

// RunRepository persists run documents.
type RunRepository interface {
	SaveRun(ctx context.Context, run *domain.RunRecord) error
	GetRun(ctx context.Context, runID string) (*domain.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)
}
