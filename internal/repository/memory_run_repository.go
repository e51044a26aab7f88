package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/netplan/internal/domain"
)

// memoryRunRepository keeps runs in process memory. It backs the server and
// CLI when no database is configured.
type memoryRunRepository struct {
	mu   sync.RWMutex
	runs map[string]domain.RunRecord
	now  func() time.Time
}

func NewMemoryRunRepository() RunRepository {
	return &memoryRunRepository{runs: make(map[string]domain.RunRecord), now: time.Now}
}

func (r *memoryRunRepository) SaveRun(_ context.Context, run *domain.RunRecord) error {
	rec := *run
	rec.Result = append([]byte(nil), run.Result...)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.runs[rec.RunID]; ok {
		rec.CreatedAt = prev.CreatedAt
	}
	r.runs[rec.RunID] = rec
	return nil
}

func (r *memoryRunRepository) GetRun(_ context.Context, runID string) (*domain.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	rec.Result = append([]byte(nil), rec.Result...)
	return &rec, nil
}

func (r *memoryRunRepository) ListRuns(_ context.Context, limit int) ([]domain.RunSummary, error) {
	r.mu.RLock()
	out := make([]domain.RunSummary, 0, len(r.runs))
	for _, rec := range r.runs {
		out = append(out, rec.Summary())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
