package domain

import (
	"encoding/json"
	"time"
)

// RunRecord is a persisted planning run. Result holds the run's JSON document.
type RunRecord struct {
	RunID       string          `json:"run_id" db:"run_id"`
	Fingerprint string          `json:"fingerprint" db:"fingerprint"`
	Status      SolveStatus     `json:"status" db:"status"`
	Solver      string          `json:"solver" db:"solver"`
	Objective   *float64        `json:"objective_value" db:"objective_value"`
	Result      json.RawMessage `json:"result" db:"result"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// RunSummary is the listing view of a run.
type RunSummary struct {
	RunID     string      `json:"run_id" db:"run_id"`
	Status    SolveStatus `json:"status" db:"status"`
	Solver    string      `json:"solver" db:"solver"`
	Objective *float64    `json:"objective_value" db:"objective_value"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// Summary returns the listing view of r.
func (r *RunRecord) Summary() RunSummary {
	return RunSummary{
		RunID:     r.RunID,
		Status:    r.Status,
		Solver:    r.Solver,
		Objective: r.Objective,
		CreatedAt: r.CreatedAt,
	}
}
