package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/netplan/internal/domain"
	"github.com/andresuchdata/netplan/internal/repository"
	"github.com/jmoiron/sqlx"
)

type runRepository struct {
	db *DB
}

func NewRunRepository(db *DB) repository.RunRepository {
	return &runRepository{db: db}
}

const upsertRunQuery = `
	INSERT INTO plan_runs (run_id, fingerprint, status, solver, objective_value, result, created_at, updated_at)
	VALUES (:run_id, :fingerprint, :status, :solver, :objective_value, :result, NOW(), NOW())
	ON CONFLICT (run_id)
	DO UPDATE SET
		fingerprint = EXCLUDED.fingerprint,
		status = EXCLUDED.status,
		solver = EXCLUDED.solver,
		objective_value = EXCLUDED.objective_value,
		result = EXCLUDED.result,
		updated_at = NOW()
`

func (r *runRepository) SaveRun(ctx context.Context, run *domain.RunRecord) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, upsertRunQuery, runRow(run)); err != nil {
			return fmt.Errorf("failed to save run %s: %w", run.RunID, err)
		}
		return nil
	})
}

func (r *runRepository) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	query := `
		SELECT run_id, fingerprint, status, solver, objective_value, result, created_at
		FROM plan_runs
		WHERE run_id = $1
	`
	var row runRecordRow
	if err := r.db.GetContext(ctx, &row, query, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return row.record(), nil
}

func (r *runRepository) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT run_id, status, solver, objective_value, created_at
		FROM plan_runs
		ORDER BY created_at DESC, run_id
		LIMIT $1
	`
	runs := make([]domain.RunSummary, 0)
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// runRecordRow scans result as bytes so both drivers hand JSONB back the same way.
type runRecordRow struct {
	RunID       string             `db:"run_id"`
	Fingerprint string             `db:"fingerprint"`
	Status      domain.SolveStatus `db:"status"`
	Solver      string             `db:"solver"`
	Objective   *float64           `db:"objective_value"`
	Result      []byte             `db:"result"`
	CreatedAt   time.Time          `db:"created_at"`
}

func (row runRecordRow) record() *domain.RunRecord {
	return &domain.RunRecord{
		RunID:       row.RunID,
		Fingerprint: row.Fingerprint,
		Status:      row.Status,
		Solver:      row.Solver,
		Objective:   row.Objective,
		Result:      row.Result,
		CreatedAt:   row.CreatedAt,
	}
}

func runRow(run *domain.RunRecord) map[string]any {
	result := string(run.Result)
	if result == "" {
		result = "{}"
	}
	return map[string]any{
		"run_id":          run.RunID,
		"fingerprint":     run.Fingerprint,
		"status":          string(run.Status),
		"solver":          run.Solver,
		"objective_value": run.Objective,
		"result":          result,
	}
}
