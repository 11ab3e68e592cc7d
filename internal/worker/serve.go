package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ezbench/ezbench/internal/config"
	"github.com/ezbench/ezbench/internal/logger"
	"github.com/ezbench/ezbench/internal/protocol"
)

// Serve is the worker entry point: it builds the executor for cfg, runs the
// assigned passes and writes the summary to out as one protocol line.
func Serve(ctx context.Context, cfg config.Config, factory Factory, out io.Writer) (err error) {
	log := logger.Get("worker").With().Int("worker", cfg.Worker.Index).Logger()
	if factory == nil {
		return errors.New("worker: executor factory is required")
	}

	exec, err := factory(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("executor setup failed")
		return err
	}
	defer func() {
		if cerr := exec.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	log.Debug().Int("iterations", cfg.Worker.Iterations).Msg("executor ready")

	opt := Options{
		Iterations: cfg.Worker.Iterations,
		Rate:       cfg.Rate,
		Arrival:    cfg.Arrival,
		Seed:       int64(cfg.Worker.Index) + 1,
		Logger:     log,
	}
	if cfg.TracingEnabled() {
		path := TracePath(cfg.TraceDir, cfg.Worker.RunID, cfg.Worker.Index)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create trace file: %w", err)
		}
		defer f.Close()
		opt.Trace = f
	}

	summary, err := Run(ctx, exec, opt)
	if err != nil {
		log.Error().Err(err).Msg("worker aborted")
		return err
	}
	log.Info().Int64("tries", summary.Tries).Int64("failures", summary.Failures).Msg("worker finished")

	return protocol.Write(out, summary)
}
