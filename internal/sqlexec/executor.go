package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ezbench/ezbench/internal/config"
	"github.com/ezbench/ezbench/internal/logger"
	"github.com/ezbench/ezbench/internal/metrics"
	"github.com/ezbench/ezbench/internal/slowlog"
	"github.com/ezbench/ezbench/internal/worker"
)

var (
	queryTypePattern = regexp.MustCompile(`(?i)^\s*(SELECT|INSERT|UPDATE|DELETE|REPLACE|DROP)\s`)
	usePattern       = regexp.MustCompile(`(?i)^\s*USE\s`)
)

// ErrNoStatements is returned when the statement source holds nothing to replay.
var ErrNoStatements = errors.New("log does not contain any SQL statement")

// Classify returns the query type of a statement from its first keyword.
func Classify(stmt string) metrics.QueryType {
	if m := queryTypePattern.FindStringSubmatch(stmt); m != nil {
		return metrics.QueryType(strings.ToUpper(m[1]))
	}
	return metrics.QueryOther
}

// Executor replays the whole statement list on a fresh connection per pass.
type Executor struct {
	db         *sql.DB
	target     string
	statements []slowlog.Statement
	skipUse    bool
	timeout    time.Duration
	log        zerolog.Logger
}

// New loads the statement list and verifies that the database can be
// reached. Connection failures are reported as *worker.ConnectionError.
func New(ctx context.Context, cfg config.Config) (*Executor, error) {
	statements, err := slowlog.Load(cfg.Target, cfg.SQL.Format)
	if err != nil {
		return nil, fmt.Errorf("read statements: %w", err)
	}
	return NewWithStatements(ctx, cfg.SQL, cfg.Timeout, statements)
}

// NewWithStatements builds an executor for an already parsed statement list.
func NewWithStatements(ctx context.Context, s config.SQLConfig, timeout time.Duration, statements []slowlog.Statement) (*Executor, error) {
	if Executable(statements) == 0 {
		return nil, ErrNoStatements
	}
	if err := CheckClient(s.Client); err != nil {
		return nil, err
	}
	dsn, err := DSN(s)
	if err != nil {
		return nil, err
	}

	target := redact(s)
	db, err := sql.Open(s.Client, dsn)
	if err != nil {
		return nil, &worker.ConnectionError{Target: target, Err: err}
	}
	// Every pass gets its own physical connection.
	db.SetMaxIdleConns(0)
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &worker.ConnectionError{Target: target, Err: err}
	}

	return &Executor{
		db:         db,
		target:     target,
		statements: statements,
		skipUse:    s.Database != "",
		timeout:    timeout,
		log:        logger.Get("sqlexec"),
	}, nil
}

// Executable counts the statements that carry SQL to execute.
func Executable(statements []slowlog.Statement) int {
	n := 0
	for _, st := range statements {
		if strings.TrimSpace(st.SQL) != "" {
			n++
		}
	}
	return n
}

// Pass opens a connection and executes every statement in order, recording
// one trial per executed statement.
func (e *Executor) Pass(ctx context.Context, record func(metrics.Trial)) error {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return &worker.ConnectionError{Target: e.target, Err: err}
	}
	defer conn.Close()

	for _, st := range e.statements {
		if strings.TrimSpace(st.SQL) == "" {
			continue
		}
		if e.skipUse && usePattern.MatchString(st.SQL) {
			continue
		}
		record(e.execute(ctx, conn, st))
	}
	return nil
}

func (e *Executor) execute(ctx context.Context, conn *sql.Conn, st slowlog.Statement) metrics.Trial {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	var fetched int64
	rows, err := conn.QueryContext(ctx, st.SQL)
	if err == nil {
		for rows.Next() {
			fetched++
		}
		err = rows.Err()
		if cerr := rows.Close(); err == nil {
			err = cerr
		}
	}
	elapsed := time.Since(start)

	if err != nil {
		e.log.Debug().Err(err).Str("sql", st.SQL).Msg("statement failed")
	}
	return metrics.Trial{
		Start:     start,
		Elapsed:   elapsed,
		Err:       err,
		QueryType: Classify(st.SQL),
		Rows:      fetched,
		Size:      fetched,
		Baseline:  st.Baseline(),
	}
}

func (e *Executor) Close() error {
	return e.db.Close()
}
