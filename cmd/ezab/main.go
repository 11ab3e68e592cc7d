// Command ezab benchmarks an HTTP server in the manner of Apache Bench,
// spreading the requests over worker processes.
package main

import (
	"context"
	"os"

	"github.com/ezbench/ezbench/internal/cli"
	"github.com/ezbench/ezbench/internal/config"
	"github.com/ezbench/ezbench/internal/httpexec"
	"github.com/ezbench/ezbench/internal/output"
	"github.com/ezbench/ezbench/internal/worker"
)

func main() {
	os.Exit(command().Main(os.Args[1:]))
}

func command() cli.Command {
	return cli.Command{
		Mode:    config.ModeHTTP,
		Factory: newExecutor,
		Report:  output.PrintHTTPReport,
	}
}

func newExecutor(_ context.Context, cfg config.Config) (worker.Executor, error) {
	exec, err := httpexec.New(cfg)
	if err != nil {
		return nil, err
	}
	return exec, nil
}
