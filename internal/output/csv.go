package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/gofrs/flock"

	"github.com/ezbench/ezbench/internal/config"
	"github.com/ezbench/ezbench/internal/metrics"
)

var csvHeader = []string{
	"label", "target", "concurrency", "keepalive", "tries", "failures",
	"rps", "t_avg_ms", "p50", "p90", "p99", "max",
}

// CSVRow is one run in the aggregate CSV file.
type CSVRow struct {
	Label       string
	Target      string
	Concurrency int
	KeepAlive   bool
	Report      metrics.Report
}

// NewCSVRow describes a finished run of cfg.
func NewCSVRow(cfg config.Config, r metrics.Report) CSVRow {
	return CSVRow{
		Label:       cfg.Label,
		Target:      displayTarget(cfg),
		Concurrency: cfg.Concurrency,
		KeepAlive:   cfg.Mode == config.ModeHTTP && cfg.HTTP.KeepAlive,
		Report:      r,
	}
}

func (r CSVRow) record() []string {
	return []string{
		r.Label,
		r.Target,
		strconv.Itoa(r.Concurrency),
		strconv.FormatBool(r.KeepAlive),
		strconv.FormatInt(r.Report.Tries, 10),
		strconv.FormatInt(r.Report.Failures, 10),
		strconv.FormatFloat(r.Report.RequestsPerSec, 'f', 2, 64),
		strconv.FormatFloat(r.Report.MeanMs, 'f', 3, 64),
		strconv.FormatInt(r.Report.Percentiles[50], 10),
		strconv.FormatInt(r.Report.Percentiles[90], 10),
		strconv.FormatInt(r.Report.Percentiles[99], 10),
		strconv.FormatFloat(r.Report.MaxMs, 'f', 3, 64),
	}
}

// AppendCSV appends row to the CSV file at path, writing the header when
// the file is new. Concurrent runs sharing the file are serialized through
// a lock file next to it.
func AppendCSV(path string, row CSVRow) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return err
		}
	}
	if err := w.Write(row.record()); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
