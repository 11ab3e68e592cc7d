package worker

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ezbench/ezbench/internal/metrics"
)

// TracePath returns the per-worker trace file location.
func TracePath(dir, runID string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%d.trace", runID, index))
}

// traceWriter writes one line per trial:
//
//	<start unix µs> <elapsed µs> <outcome> [detail]
type traceWriter struct {
	w   *bufio.Writer
	err error
}

func newTraceWriter(w io.Writer) *traceWriter {
	return &traceWriter{w: bufio.NewWriter(w)}
}

func (t *traceWriter) write(trial metrics.Trial) {
	if t.err != nil {
		return
	}
	line := fmt.Sprintf("%d %d %s", trial.Start.UnixMicro(), trial.Elapsed.Microseconds(), outcome(trial))
	if trial.QueryType != "" {
		line += fmt.Sprintf(" %s rows=%d", trial.QueryType, trial.Rows)
	} else if trial.Err == nil {
		line += fmt.Sprintf(" bytes=%d", trial.Bytes)
	}
	if trial.Err != nil {
		line += " " + strings.ReplaceAll(trial.Err.Error(), "\n", " ")
	}
	_, t.err = t.w.WriteString(line + "\n")
}

func (t *traceWriter) flush() error {
	if t.err != nil {
		return t.err
	}
	return t.w.Flush()
}

func outcome(trial metrics.Trial) string {
	switch {
	case trial.WriteError:
		return "write_error"
	case trial.Err != nil:
		return "fail"
	case trial.NonOK:
		return "non_2xx"
	default:
		return "ok"
	}
}
