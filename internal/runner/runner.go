package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/ezbench/ezbench/internal/config"
	"github.com/ezbench/ezbench/internal/logger"
	"github.com/ezbench/ezbench/internal/metrics"
	"github.com/ezbench/ezbench/internal/protocol"
	"github.com/ezbench/ezbench/internal/worker"
)

// Result is the outcome of a completed run.
type Result struct {
	RunID      string
	Iterations int // per worker
	Report     metrics.Report
	// Summaries are indexed by worker.
	Summaries []metrics.Summary
}

// Orchestrator spawns and supervises the workers of one run.
type Orchestrator struct {
	cfg       config.Config
	spawner   Spawner
	preflight func(config.Config) error
	progress  func(done, total int)
	workerLog io.Writer
	log       zerolog.Logger
}

func New(cfg config.Config, spawner Spawner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		spawner: spawner,
		log:     logger.Get("runner"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type slot struct {
	index   int
	proc    Process
	done    bool
	summary metrics.Summary
}

// Run executes the workload and merges the worker summaries. Any worker
// failure aborts the run without a report.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	cfg := o.cfg
	if err := cfg.Validate(); err != nil {
		return Result{}, &OrchestrationError{Kind: KindConfig, Worker: -1, Err: err}
	}
	if o.preflight != nil {
		if err := o.preflight(cfg); err != nil {
			return Result{}, &OrchestrationError{Kind: KindDependency, Worker: -1, Err: err}
		}
	}
	if cfg.Concurrency <= 0 {
		return Result{}, &OrchestrationError{Kind: KindSpawn, Worker: -1, Err: ErrNoWorkers}
	}
	for _, w := range cfg.Warnings() {
		o.log.Warn().Msg(w)
	}

	res := Result{
		RunID:      ulid.Make().String(),
		Iterations: Apportion(cfg.Requests, cfg.Concurrency),
	}
	log := o.log.With().Str("run_id", res.RunID).Logger()

	if cfg.TracingEnabled() && !cfg.KeepTraces {
		defer o.removeTraces(res.RunID, cfg.Concurrency)
	}

	slots := make([]*slot, 0, cfg.Concurrency)
	for i := 0; i < cfg.Concurrency; i++ {
		wcfg := cfg.ForWorker(i, res.Iterations, res.RunID)
		proc, err := o.spawner.Spawn(ctx, wcfg)
		if err != nil {
			killAll(slots)
			o.join()
			return Result{}, &OrchestrationError{Kind: KindSpawn, Worker: i, Err: err}
		}
		log.Debug().Int("worker", i).Int("iterations", res.Iterations).Msg("worker spawned")
		slots = append(slots, &slot{index: i, proc: proc})
	}

	if err := o.supervise(ctx, log, slots); err != nil {
		killAll(slots)
		o.join()
		return Result{}, err
	}
	o.join()

	res.Summaries = make([]metrics.Summary, len(slots))
	for _, s := range slots {
		res.Summaries[s.index] = s.summary
	}
	report, err := metrics.Merge(res.Summaries)
	if err != nil {
		return Result{}, err
	}
	res.Report = report
	return res, nil
}

// supervise polls every worker at the configured interval until all have
// exited. Output is only collected from workers that have terminated.
func (o *Orchestrator) supervise(ctx context.Context, log zerolog.Logger, slots []*slot) error {
	interval := o.cfg.PollInterval
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	finished := 0
	for {
		for _, s := range slots {
			if s.done || !s.proc.Exited() {
				continue
			}
			s.done = true
			finished++
			if err := o.collect(log, s); err != nil {
				log.Error().Err(err).Msg("aborting run")
				return err
			}
			if o.progress != nil {
				o.progress(finished, len(slots))
			}
		}
		if finished == len(slots) {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("run interrupted: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) collect(log zerolog.Logger, s *slot) error {
	out := s.proc.Output()
	log.Debug().Int("worker", s.index).Int("exit_code", out.ExitCode).Int("bytes", len(out.Stdout)).Msg("worker exited")
	if o.workerLog != nil && len(out.Stderr) > 0 {
		_, _ = o.workerLog.Write(out.Stderr)
	}

	fail := func(kind Kind, err error) error {
		return &OrchestrationError{
			Kind:     kind,
			Worker:   s.index,
			ExitCode: out.ExitCode,
			Stderr:   string(out.Stderr),
			Err:      err,
		}
	}

	switch {
	case out.Err != nil:
		return fail(KindWorker, out.Err)
	case out.ExitCode == ExitConnection:
		return fail(KindConnection, nil)
	case out.ExitCode != ExitOK:
		return fail(KindWorker, nil)
	}

	line := strings.TrimSpace(string(out.Stdout))
	if line == "" {
		return fail(KindWorker, errEmptyOutput)
	}
	summary, err := protocol.Decode(line)
	if err != nil {
		return fail(KindWorker, err)
	}
	s.summary = summary
	return nil
}

// join waits for in-process workers so no goroutine outlives the run.
func (o *Orchestrator) join() {
	if w, ok := o.spawner.(interface{ Wait() error }); ok {
		_ = w.Wait()
	}
}

func (o *Orchestrator) removeTraces(runID string, workers int) {
	for i := 0; i < workers; i++ {
		path := worker.TracePath(o.cfg.TraceDir, runID, i)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			o.log.Warn().Err(err).Str("path", path).Msg("remove trace file")
		}
	}
}

func killAll(slots []*slot) {
	for _, s := range slots {
		if !s.done {
			s.proc.Kill()
		}
	}
}
