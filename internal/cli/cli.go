// Package cli holds the command flow shared by the ezab and ezmyreplay
// binaries: worker dispatch, orchestration and reporting.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ezbench/ezbench/internal/config"
	"github.com/ezbench/ezbench/internal/logger"
	"github.com/ezbench/ezbench/internal/metrics"
	"github.com/ezbench/ezbench/internal/output"
	"github.com/ezbench/ezbench/internal/runner"
	"github.com/ezbench/ezbench/internal/threshold"
	"github.com/ezbench/ezbench/internal/worker"
)

// Command describes one benchmark binary.
type Command struct {
	Mode    config.Mode
	Factory worker.Factory
	// Preflight checks that the client the run needs is available.
	Preflight func(config.Config) error
	// Prepare may rewrite the configuration before workers are spawned. The
	// returned cleanup runs once the run is over.
	Prepare func(cfg *config.Config) (cleanup func(), err error)
	// Report renders the text report.
	Report func(w io.Writer, cfg config.Config, r metrics.Report)
	// Spawner overrides the spawner chosen from the configuration.
	Spawner runner.Spawner

	Stdout io.Writer
	Stderr io.Writer
}

// Main runs the command and returns the process exit status. A first
// argument equal to runner.WorkerCommand runs the binary as a worker.
func (c Command) Main(args []string) int {
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if len(args) > 0 && args[0] == runner.WorkerCommand {
		err = c.worker(ctx, args[1:])
	} else {
		err = c.run(ctx, args)
	}
	if err != nil {
		fmt.Fprintf(c.Stderr, "Error: %v\n", err)
	}
	return runner.ExitCode(err)
}

func (c Command) worker(ctx context.Context, args []string) error {
	cfg, err := config.NewLoader(c.Mode).LoadWorker(args)
	if err != nil {
		return err
	}
	logger.SetupWriter(c.Stderr, logger.LevelForVerbosity(cfg.Verbosity), cfg.LogFormat)
	return worker.Serve(ctx, *cfg, c.Factory, c.Stdout)
}

func (c Command) run(ctx context.Context, args []string) error {
	cfg, err := config.NewLoader(c.Mode).Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.SetupWriter(c.Stderr, logger.LevelForVerbosity(cfg.Verbosity), cfg.LogFormat)
	log := logger.Get("cli")

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	target := cfg.Target
	if c.Prepare != nil {
		cleanup, err := c.Prepare(cfg)
		if err != nil {
			return err
		}
		if cleanup != nil {
			defer cleanup()
		}
	}

	spawner := c.Spawner
	if spawner == nil {
		if cfg.InProcess {
			spawner = &runner.InProcessSpawner{Factory: c.Factory}
		} else {
			spawner = runner.ExecSpawner{}
		}
	}

	opts := []runner.Option{}
	if c.Preflight != nil {
		opts = append(opts, runner.WithPreflight(c.Preflight))
	}
	if cfg.Verbosity >= 2 {
		opts = append(opts, runner.WithWorkerLog(c.Stderr))
	}
	if !cfg.JSONOutput {
		progress := output.NewProgress(c.Stdout)
		progress.Start(target)
		opts = append(opts, runner.WithProgress(progress.Update))
	}

	res, err := runner.New(*cfg, spawner, opts...).Run(ctx)
	if err != nil {
		return err
	}
	log.Info().Str("run_id", res.RunID).Int64("tries", res.Report.Tries).Msg("run complete")

	results := threshold.NewEvaluator(thresholds).Evaluate(res.Report)

	if cfg.JSONOutput {
		doc := output.NewJSONReport(*cfg, res.RunID, res.Report, res.Summaries, results, cfg.Verbosity >= 3)
		if err := output.PrintJSONReport(c.Stdout, doc); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(c.Stdout)
		if c.Report != nil {
			c.Report(c.Stdout, *cfg, res.Report)
		}
		output.PrintThresholds(c.Stdout, results)
	}

	if cfg.CSVFile != "" {
		if err := output.AppendCSV(cfg.CSVFile, output.NewCSVRow(*cfg, res.Report)); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}

	if failed := threshold.Failed(results); len(failed) > 0 {
		return fmt.Errorf("%d of %d thresholds failed", len(failed), len(results))
	}
	return nil
}
