package engine

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/andresuchdata/netplan/internal/builder"
	"github.com/andresuchdata/netplan/internal/domain"
	"github.com/andresuchdata/netplan/internal/solver"
)

// Fingerprint hashes the input together with everything that changes the
// solve, so equal fingerprints yield interchangeable results. Record maps
// are serialised with sorted keys.
func Fingerprint(in *domain.Input, opts solver.Options, b builder.Options) (string, error) {
	opts = opts.WithDefaults()
	payload := struct {
		Input        *domain.Input `json:"input"`
		Solver       string        `json:"solver"`
		TimeLimitMS  int64         `json:"time_limit_ms"`
		MIPGap       float64       `json:"mip_gap"`
		MaxNodes     int           `json:"max_nodes"`
		UnmetPenalty float64       `json:"unmet_penalty"`
	}{
		Input:        in,
		Solver:       opts.SolverName,
		TimeLimitMS:  opts.TimeLimit.Milliseconds(),
		MIPGap:       opts.MIPGap,
		MaxNodes:     opts.MaxNodes,
		UnmetPenalty: b.UnmetPenalty,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	hash := sha1.Sum(raw)
	return hex.EncodeToString(hash[:]), nil
}

// Fingerprint hashes a request with the engine's defaults applied.
func (e *Engine) Fingerprint(req Request) (string, error) {
	return Fingerprint(req.Input, e.Options(req), e.cfg.Builder)
}
