// Package slowlog reads the statements replayed by ezmyreplay, either from a
// MySQL slow query log or from a JSON statement list written by a previous
// parse.
package slowlog

import (
	"fmt"
	"os"
	"time"

	"github.com/ezbench/ezbench/internal/config"
	"github.com/ezbench/ezbench/internal/metrics"
)

// Statement is one replayable SQL statement with the execution data the log
// recorded for it.
type Statement struct {
	SQL  string `json:"sql,omitempty"`
	Meta *Meta  `json:"meta,omitempty"`
}

// Meta holds the "# Query_time" header values of a slow log entry. Absent
// values are nil.
type Meta struct {
	QueryTime    *float64 `json:"query_time,omitempty"` // seconds
	LockTime     *float64 `json:"lock_time,omitempty"`  // seconds
	RowsSent     *int64   `json:"rows_sent,omitempty"`
	RowsExamined *int64   `json:"rows_examined,omitempty"`
}

// Baseline converts the recorded metadata into a comparison baseline.
func (s Statement) Baseline() *metrics.Baseline {
	if s.Meta == nil {
		return nil
	}
	var b metrics.Baseline
	if s.Meta.QueryTime != nil {
		b.QueryTime = time.Duration(*s.Meta.QueryTime * float64(time.Second))
		b.HasQueryTime = true
	}
	if s.Meta.RowsSent != nil {
		b.RowsSent = *s.Meta.RowsSent
		b.HasRowsSent = true
	}
	if !b.HasQueryTime && !b.HasRowsSent {
		return nil
	}
	return &b
}

// Load reads the statements in path using format.
func Load(path, format string) ([]Statement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch format {
	case config.FormatJSON:
		return ReadJSON(f)
	case config.FormatSlowQueryLog, "":
		return Parse(f)
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
}
