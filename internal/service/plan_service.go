package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/andresuchdata/netplan/internal/adapter"
	"github.com/andresuchdata/netplan/internal/cache"
	"github.com/andresuchdata/netplan/internal/domain"
	"github.com/andresuchdata/netplan/internal/engine"
	"github.com/andresuchdata/netplan/internal/metrics"
	"github.com/andresuchdata/netplan/internal/repository"
	"github.com/andresuchdata/netplan/internal/solver"
	"github.com/andresuchdata/netplan/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Options configures a PlanService.
type Options struct {
	// ExportPrefix is the object key prefix for run artifacts.
	ExportPrefix string
	// BatchConcurrency bounds PlanBatch; values below one mean one.
	BatchConcurrency int
}

// PlanService serves planning runs: cached results first, then the engine,
// then persistence and artifact export.
type PlanService struct {
	engine  *engine.Engine
	cache   cache.ResultCache
	repo    repository.RunRepository
	store   storage.ObjectStorage
	metrics *metrics.Planner
	opts    Options
}

func NewPlanService(eng *engine.Engine, cacheImpl cache.ResultCache, repo repository.RunRepository, store storage.ObjectStorage, m *metrics.Planner, opts Options) *PlanService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopResultCache()
	}
	if repo == nil {
		repo = repository.NewMemoryRunRepository()
	}
	if store == nil {
		store = storage.Noop{}
	}
	if opts.BatchConcurrency < 1 {
		opts.BatchConcurrency = 1
	}
	return &PlanService{engine: eng, cache: cacheImpl, repo: repo, store: store, metrics: m, opts: opts}
}

// Plan runs one request. The error follows engine.Run: a nil Result means
// the request never reached a solve, a Result with an error is a terminal
// solve status. Persistence and export failures are logged and do not fail
// the run.
func (s *PlanService) Plan(ctx context.Context, req engine.Request) (*engine.Result, error) {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.Input == nil {
		return nil, domain.NewDataEmptyError(0, 0)
	}

	fingerprint, err := s.engine.Fingerprint(req)
	if err != nil {
		log.Warn().Err(err).Str("run_id", req.RunID).Msg("plan: fingerprint failed, cache bypassed")
	}

	if fingerprint != "" {
		cached, ok, err := s.cache.Get(ctx, fingerprint)
		if err != nil {
			log.Warn().Err(err).Msg("plan: cache get failed")
		}
		s.metrics.CacheLookup(ok)
		if ok {
			res := cached.WithRunID(req.RunID)
			log.Info().Str("run_id", req.RunID).Str("fingerprint", fingerprint).Msg("plan: served from cache")
			s.persist(ctx, fingerprint, res)
			return res, nil
		}
	}

	res, runErr := s.engine.Run(ctx, req)
	if res == nil {
		return nil, runErr
	}

	// Only proven optima are cached.
	if res.Status == domain.StatusOptimal && fingerprint != "" {
		if err := s.cache.Set(ctx, fingerprint, res); err != nil {
			log.Warn().Err(err).Msg("plan: cache set failed")
		}
	}

	s.persist(ctx, fingerprint, res)
	if res.Status.HasSolution() {
		if err := s.Export(ctx, res); err != nil {
			log.Error().Err(err).Str("run_id", res.RunID).Msg("plan: export failed")
		}
	}

	return res, runErr
}

// DefaultOptions returns the solver options requests run with when they
// carry none.
func (s *PlanService) DefaultOptions() solver.Options {
	return s.engine.Options(engine.Request{})
}

// BatchResult is one PlanBatch outcome.
type BatchResult struct {
	RunID  string
	Result *engine.Result
	Err    error
}

// PlanBatch runs requests concurrently through Plan and keeps their order.
func (s *PlanService) PlanBatch(ctx context.Context, reqs []engine.Request) []BatchResult {
	results := make([]BatchResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(s.opts.BatchConcurrency)
	for i, req := range reqs {
		if req.RunID == "" {
			req.RunID = uuid.NewString()
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = BatchResult{RunID: req.RunID, Err: err}
				return nil
			}
			res, err := s.Plan(ctx, req)
			results[i] = BatchResult{RunID: req.RunID, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Get loads a persisted run.
func (s *PlanService) Get(ctx context.Context, runID string) (*engine.Result, error) {
	rec, err := s.repo.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	var res engine.Result
	if err := json.Unmarshal(rec.Result, &res); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &res, nil
}

// List returns the most recent runs first.
func (s *PlanService) List(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	return s.repo.ListRuns(ctx, limit)
}

// Export uploads result.json, one CSV per plan table and plan.xlsx under the
// run's key prefix.
func (s *PlanService) Export(ctx context.Context, res *engine.Result) error {
	key := func(name string) string { return storage.RunKey(s.opts.ExportPrefix, res.RunID, name) }

	doc, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := s.store.UploadObject(ctx, key("result.json"), doc); err != nil {
		return err
	}

	tables := append([]adapter.Table{adapter.SummaryTable(res)}, adapter.PlanTables(res)...)
	for _, t := range tables {
		var buf bytes.Buffer
		if err := adapter.WriteCSV(&buf, t); err != nil {
			return err
		}
		if err := s.store.UploadObject(ctx, key(t.Name+".csv"), buf.Bytes()); err != nil {
			return err
		}
	}

	var book bytes.Buffer
	if err := adapter.WriteWorkbook(&book, res); err != nil {
		return err
	}
	return s.store.UploadObject(ctx, key("plan.xlsx"), book.Bytes())
}

func (s *PlanService) persist(ctx context.Context, fingerprint string, res *engine.Result) {
	doc, err := json.Marshal(res)
	if err != nil {
		log.Error().Err(err).Str("run_id", res.RunID).Msg("plan: encode run failed")
		return
	}
	rec := &domain.RunRecord{
		RunID:       res.RunID,
		Fingerprint: fingerprint,
		Status:      res.Status,
		Solver:      res.Solver,
		Objective:   res.ObjectiveValue,
		Result:      doc,
	}
	if err := s.repo.SaveRun(ctx, rec); err != nil {
		log.Error().Err(err).Str("run_id", res.RunID).Msg("plan: save run failed")
	}
}
