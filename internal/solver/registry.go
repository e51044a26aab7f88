// Package solver dispatches a milp.Model to a named backend, translating the
// per-call options into backend parameters and the backend's raw result into
// an Outcome with a domain status.
package solver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/andresuchdata/netplan/internal/milp"
	"github.com/andresuchdata/netplan/internal/solver/bnb"
	"github.com/pkg/errors"
)

// Backend solves a model. Implementations must not retain the model.
type Backend interface {
	Name() string
	// Available reports whether the backend can run in this process.
	Available() error
	Solve(ctx context.Context, m *milp.Model, p milp.Params) (*milp.Result, error)
}

// Backend names the dispatcher recognises. Only bnb is always compiled in.
const (
	NameBnB    = bnb.Name
	NameGLPK   = "glpk"
	NameGurobi = "gurobi"
)

var (
	ErrUnknownSolver = errors.New("unknown solver")
	ErrNotCompiled   = errors.New("solver not compiled into this binary")
)

var knownNames = map[string]string{
	NameBnB:    "pure Go branch-and-bound",
	NameGLPK:   "GLPK via lukpank/go-glpk, build with -tags glpk",
	NameGurobi: "commercial solver, not shipped",
}

// optional collects backends registered by build-tagged files.
var optional []Backend

// Registry maps names to backends.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry returns a registry holding the given backends.
func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		r.Register(b)
	}
	return r
}

// DefaultRegistry holds bnb plus whatever the build tags compiled in.
func DefaultRegistry() *Registry {
	return NewRegistry(append([]Backend{bnb.New()}, optional...)...)
}

// Register adds or replaces a backend.
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.Name()] = b
}

// Lookup returns the backend registered under name.
func (r *Registry) Lookup(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.backends[name]; ok {
		return b, nil
	}
	if hint, ok := knownNames[name]; ok {
		return nil, fmt.Errorf("%s (%s): %w", name, hint, ErrNotCompiled)
	}
	return nil, fmt.Errorf("%q: %w", name, ErrUnknownSolver)
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.backends))
	for name := range r.backends {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
