package engine

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ScenarioResult pairs a scenario's Result with its error.
type ScenarioResult struct {
	RunID  string
	Result *Result
	Err    error
}

// RunScenarios runs independent requests with at most
// Config.ScenarioConcurrency in flight. Results keep the request order and a
// failing scenario does not stop the others. Scenarios not yet started when
// ctx is done report ctx.Err().
func (e *Engine) RunScenarios(ctx context.Context, reqs []Request) []ScenarioResult {
	results := make([]ScenarioResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(e.cfg.ScenarioConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = ScenarioResult{RunID: req.RunID, Err: err}
				return nil
			}
			res, err := e.Run(ctx, req)
			results[i] = ScenarioResult{RunID: req.RunID, Result: res, Err: err}
			if res != nil {
				results[i].RunID = res.RunID
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
