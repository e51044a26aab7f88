package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/andresuchdata/netplan/internal/adapter"
	"github.com/andresuchdata/netplan/internal/app"
	"github.com/andresuchdata/netplan/internal/cache"
	"github.com/andresuchdata/netplan/internal/config"
	"github.com/andresuchdata/netplan/internal/domain"
	"github.com/andresuchdata/netplan/internal/engine"
	"github.com/andresuchdata/netplan/internal/metrics"
	"github.com/andresuchdata/netplan/internal/repository/postgres"
	"github.com/andresuchdata/netplan/internal/solver"
	"github.com/andresuchdata/netplan/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

const exitNoPlan = 2

func solverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "solver", Usage: "Solver backend, compiled in: " + strings.Join(solver.DefaultRegistry().Names(), ", ")},
		&cli.DurationFlag{Name: "time-limit", Usage: "Wall-clock solve budget"},
		&cli.Float64Flag{Name: "mip-gap", Usage: "Relative MIP gap, 0 for a proven optimum"},
		&cli.IntFlag{Name: "max-nodes", Usage: "Branch-and-bound node cap, 0 for none"},
	}
}

// solverOptions overlays the flags that were set on base. It returns nil when
// none were, so the engine defaults apply.
func solverOptions(c *cli.Context, base solver.Options) *solver.Options {
	if !c.IsSet("solver") && !c.IsSet("time-limit") && !c.IsSet("mip-gap") && !c.IsSet("max-nodes") {
		return nil
	}
	if c.IsSet("solver") {
		base.SolverName = c.String("solver")
	}
	if c.IsSet("time-limit") {
		base.TimeLimit = c.Duration("time-limit")
	}
	if c.IsSet("mip-gap") {
		base.MIPGap = c.Float64("mip-gap")
	}
	if c.IsSet("max-nodes") {
		base.MaxNodes = c.Int("max-nodes")
	}
	return &base
}

func newPlanner(ctx context.Context) (*app.App, error) {
	return app.New(ctx, config.Load(), metrics.New(prometheus.NewRegistry()))
}

func solveCommand() *cli.Command {
	return &cli.Command{
		Name:      "solve",
		Usage:     "Solve one planning input (CSV directory, .xlsx or .json)",
		ArgsUsage: "[INPUT]",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "run-id", Usage: "Run id, generated when empty"},
			&cli.StringFlag{Name: "remote", Usage: "Object storage prefix to fetch the input from instead of INPUT"},
			&cli.StringFlag{Name: "out", Usage: "Directory for result.json, plan CSVs and plan.xlsx"},
		}, solverFlags()...),
		Action: func(c *cli.Context) error {
			var (
				in  *domain.Input
				err error
			)
			switch {
			case c.IsSet("remote"):
				in, err = loadRemote(c.Context, c.String("remote"))
			case c.NArg() == 1:
				in, err = adapter.Load(c.Args().First())
			default:
				return cli.Exit("solve expects exactly one INPUT path or --remote", 1)
			}
			if err != nil {
				return err
			}

			planner, err := newPlanner(c.Context)
			if err != nil {
				return err
			}
			defer planner.Close()

			req := engine.Request{
				RunID:   c.String("run-id"),
				Input:   in,
				Options: solverOptions(c, planner.Plans.DefaultOptions()),
			}
			res, runErr := planner.Plans.Plan(c.Context, req)
			if res == nil {
				return runErr
			}

			if dir := c.String("out"); dir != "" {
				if err := writeArtifacts(dir, res); err != nil {
					return err
				}
			}
			printSummary(c.App.Writer, res)

			if runErr != nil {
				return noPlanExit(runErr)
			}
			return nil
		},
	}
}

// noPlanExit turns a terminal run error into the exit code for runs without
// a plan, hinting at the limits when a rerun could succeed.
func noPlanExit(err error) cli.ExitCoder {
	msg := err.Error()
	if domain.Retryable(err) {
		msg += " (raise --time-limit or --max-nodes to retry)"
	}
	return cli.Exit(msg, exitNoPlan)
}

func batchCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "Solve several independent scenarios concurrently",
		ArgsUsage: "INPUT...",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "out", Usage: "Directory receiving one sub-directory per run"},
		}, solverFlags()...),
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("batch expects at least one INPUT path", 1)
			}

			planner, err := newPlanner(c.Context)
			if err != nil {
				return err
			}
			defer planner.Close()

			opts := solverOptions(c, planner.Plans.DefaultOptions())
			reqs := make([]engine.Request, 0, c.NArg())
			started := time.Now()
			for i, path := range c.Args().Slice() {
				in, err := adapter.Load(path)
				if err != nil {
					return err
				}
				reqs = append(reqs, engine.Request{RunID: scenarioID(path, i, started), Input: in, Options: opts})
			}

			results := planner.Plans.PlanBatch(c.Context, reqs)
			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tSTATUS\tSOLVER\tOBJECTIVE\tERROR")
			failed := 0
			for _, r := range results {
				status, solverName, objective := "-", "-", "-"
				if r.Result != nil {
					status, solverName = string(r.Result.Status), r.Result.Solver
					if r.Result.ObjectiveValue != nil {
						objective = fmt.Sprintf("%.6g", *r.Result.ObjectiveValue)
					}
					if dir := c.String("out"); dir != "" {
						if err := writeArtifacts(filepath.Join(dir, r.RunID), r.Result); err != nil {
							return err
						}
					}
				}
				msg := ""
				if r.Err != nil {
					failed++
					msg = r.Err.Error()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.RunID, status, solverName, objective, msg)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if failed > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d scenarios produced no plan", failed, len(results)), exitNoPlan)
			}
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	run := func(fn func(context.Context, *postgres.DB) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			cfg := config.Load()
			db, err := postgres.NewDB(&cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			return fn(c.Context, db)
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the run store schema",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply pending migrations",
				Action: run(func(ctx context.Context, db *postgres.DB) error {
					return postgres.MigrateUp(ctx, db.DB.DB)
				}),
			},
			{
				Name:  "down",
				Usage: "Roll back the latest migration",
				Action: run(func(ctx context.Context, db *postgres.DB) error {
					return postgres.MigrateDown(ctx, db.DB.DB)
				}),
			},
			{
				Name:  "version",
				Usage: "Print the schema version",
				Action: func(c *cli.Context) error {
					return run(func(ctx context.Context, db *postgres.DB) error {
						v, err := postgres.MigrationVersion(ctx, db.DB.DB)
						if err != nil {
							return err
						}
						fmt.Fprintln(c.App.Writer, v)
						return nil
					})(c)
				},
			},
		},
	}
}

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the result cache",
		Subcommands: []*cli.Command{
			{
				Name:  "flush",
				Usage: "Drop every cached result",
				Action: func(c *cli.Context) error {
					cfg := config.Load()
					if !cfg.Cache.Enabled {
						fmt.Fprintln(c.App.Writer, "result cache disabled, nothing to flush")
						return nil
					}
					rc, err := cache.NewResultCache(c.Context, cfg.Cache)
					if err != nil {
						return err
					}
					n, err := rc.InvalidateAll(c.Context)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "flushed %d cached results\n", n)
					return nil
				},
			},
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print a stored run as JSON, or list recent runs",
		ArgsUsage: "[RUN_ID]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Usage: "Runs to list without RUN_ID", Value: 20},
		},
		Action: func(c *cli.Context) error {
			cfg := config.Load()
			if !cfg.Database.Enabled {
				return cli.Exit("show needs the postgres run store (DB_ENABLED=true)", 1)
			}
			planner, err := newPlanner(c.Context)
			if err != nil {
				return err
			}
			defer planner.Close()

			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			if c.NArg() == 0 {
				runs, err := planner.Plans.List(c.Context, c.Int("limit"))
				if err != nil {
					return err
				}
				return enc.Encode(runs)
			}
			res, err := planner.Plans.Get(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			return enc.Encode(res)
		},
	}
}

// loadRemote downloads the input objects under prefix. A lone workbook or
// JSON document is loaded as is; anything else is read as a CSV directory.
func loadRemote(ctx context.Context, prefix string) (*domain.Input, error) {
	cfg := config.Load()
	if !cfg.Storage.Enabled {
		return nil, cli.Exit("--remote needs object storage (STORAGE_ENABLED=true)", 1)
	}
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "netplan-input-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	paths, err := storage.FetchInputs(ctx, store, prefix, dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 1 && !strings.EqualFold(filepath.Ext(paths[0]), ".csv") {
		return adapter.Load(paths[0])
	}
	return adapter.Load(dir)
}

// scenarioID names a batch run after its input file and position.
func scenarioID(path string, i int, started time.Time) string {
	base := filepath.Base(filepath.Clean(path))
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = base[:len(base)-len(ext)]
	}
	return fmt.Sprintf("%s-%d-%s", base, i+1, started.UTC().Format("20060102T150405"))
}

// writeArtifacts writes the run document, one CSV per plan table and the
// workbook into dir.
func writeArtifacts(dir string, res *engine.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed creating %s: %w", dir, err)
	}

	doc, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "result.json"), doc, 0o644); err != nil {
		return err
	}

	tables := append([]adapter.Table{adapter.SummaryTable(res)}, adapter.PlanTables(res)...)
	for _, t := range tables {
		if err := writeFile(filepath.Join(dir, t.Name+".csv"), func(w io.Writer) error {
			return adapter.WriteCSV(w, t)
		}); err != nil {
			return err
		}
	}
	return writeFile(filepath.Join(dir, "plan.xlsx"), func(w io.Writer) error {
		return adapter.WriteWorkbook(w, res)
	})
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return write(f)
}

func printSummary(w io.Writer, res *engine.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, row := range adapter.SummaryTable(res).Rows {
		fmt.Fprintf(tw, "%s\t%s\n", row[0], row[1])
	}
	_ = tw.Flush()
}
