// Command ezmyreplay replays the statements of a slow query log against a
// database from parallel connections and compares the timings with the
// ones recorded in the log.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/oklog/ulid/v2"

	"github.com/ezbench/ezbench/internal/cli"
	"github.com/ezbench/ezbench/internal/config"
	"github.com/ezbench/ezbench/internal/logger"
	"github.com/ezbench/ezbench/internal/output"
	"github.com/ezbench/ezbench/internal/slowlog"
	"github.com/ezbench/ezbench/internal/sqlexec"
	"github.com/ezbench/ezbench/internal/worker"
)

const parseCommand = "parse"

func main() {
	args := os.Args[1:]
	if len(args) > 0 && args[0] == parseCommand {
		if err := parse(os.Stdout, args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	os.Exit(command().Main(args))
}

func command() cli.Command {
	return cli.Command{
		Mode:    config.ModeSQL,
		Factory: newExecutor,
		Preflight: func(cfg config.Config) error {
			return sqlexec.CheckClient(cfg.SQL.Client)
		},
		Prepare: prepare,
		Report:  output.PrintSQLReport,
	}
}

func newExecutor(ctx context.Context, cfg config.Config) (worker.Executor, error) {
	exec, err := sqlexec.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return exec, nil
}

// prepare parses the log once and hands workers a JSON statement list, so
// no worker repeats the parsing.
func prepare(cfg *config.Config) (func(), error) {
	statements, err := slowlog.Load(cfg.Target, cfg.SQL.Format)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", cfg.Target, err)
	}
	n := sqlexec.Executable(statements)
	if n == 0 {
		return nil, sqlexec.ErrNoStatements
	}
	log := logger.Get("ezmyreplay")
	log.Info().Int("statements", n).Str("log", cfg.Target).Msg("log parsed")

	path, err := slowlog.WriteTempJSON(os.TempDir(), ulid.Make().String(), statements)
	if err != nil {
		return nil, fmt.Errorf("write statement list: %w", err)
	}
	cfg.Target = path
	cfg.SQL.Format = config.FormatJSON

	return func() { _ = os.Remove(path) }, nil
}

// parse dumps a slow query log as a JSON statement list.
func parse(w io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: ezmyreplay %s <slow query log>", parseCommand)
	}
	statements, err := slowlog.Load(args[0], config.FormatSlowQueryLog)
	if err != nil {
		return err
	}
	return slowlog.WriteJSON(w, statements)
}
