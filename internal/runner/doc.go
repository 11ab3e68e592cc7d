// Package runner provides the orchestrator that drives a benchmark run.
//
// A run splits the requested iterations evenly across the configured number
// of workers, starts every worker through a [Spawner] and supervises them
// until all have exited. Each worker reports exactly one protocol line; the
// orchestrator decodes those lines and merges them into a metrics.Report.
//
// # Basic Usage
//
//	o := runner.New(cfg, runner.ExecSpawner{})
//	res, err := o.Run(ctx)
//	if err != nil {
//		os.Exit(runner.ExitCode(err))
//	}
//
// # Spawners
//
// [ExecSpawner] re-executes the current binary with the hidden worker
// subcommand and the argument vector built by config.WorkerArgs.
// [InProcessSpawner] runs workers as goroutines, each with its own executor.
// Both hand their output to the orchestrator through the same result
// protocol.
//
// # Failure Policy
//
// Any worker that exits non-zero or without output aborts the run. The
// remaining workers are killed and no partial report is produced. The
// returned [OrchestrationError] names the failing worker and, through
// [ExitCode], maps connection failures to exit status 2.
package runner
