package output

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ezbench/ezbench/internal/config"
	"github.com/ezbench/ezbench/internal/metrics"
	"github.com/ezbench/ezbench/internal/protocol"
	"github.com/ezbench/ezbench/internal/threshold"
)

// PrintHTTPReport writes an Apache Bench style summary of an HTTP run.
func PrintHTTPReport(w io.Writer, cfg config.Config, r metrics.Report) {
	host, port, path := splitTarget(cfg.Target)

	docLength := int64(0)
	if keys := r.Sizes.Keys(); len(keys) > 0 {
		docLength = keys[0]
	}
	perConcurrent := 0.0
	if r.Tries > 0 {
		perConcurrent = r.WallTimeMs / float64(r.Tries)
	}

	fmt.Fprintf(w, "Server Hostname:        %s\n", host)
	fmt.Fprintf(w, "Server Port:            %s\n", port)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Document Path:          %s\n", path)
	fmt.Fprintf(w, "Document Length:        %d bytes\n", docLength)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Concurrency Level:      %d\n", cfg.Concurrency)
	fmt.Fprintf(w, "Time taken for tests:   %.3f seconds\n", r.WallTime.Seconds())
	fmt.Fprintf(w, "Complete requests:      %d\n", r.Tries)
	fmt.Fprintf(w, "Failed requests:        %d\n", r.Failures)
	fmt.Fprintf(w, "Write errors:           %d\n", r.WriteErrors)
	fmt.Fprintf(w, "Non-2xx responses:      %d\n", r.NonOK)
	fmt.Fprintf(w, "Total transferred:      %d bytes\n", r.TotalBytes)
	fmt.Fprintf(w, "HTML transferred:       %d bytes\n", r.BodyBytes)
	fmt.Fprintf(w, "Requests per second:    %.2f [#/sec] (mean)\n", r.RequestsPerSec)
	fmt.Fprintf(w, "Time per request:       %.3f [ms] (mean)\n", r.MeanMs)
	fmt.Fprintf(w, "Time per request:       %.3f [ms] (mean, across all concurrent requests)\n", perConcurrent)
	fmt.Fprintf(w, "Transfer rate:          %.2f [Kbytes/sec] received\n", r.TransferRateKB)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Connection Times (ms)")
	writeTimesTable(w, r)
	fmt.Fprintln(w)
	writePercentiles(w, "Percentage of the requests served within a certain time (ms)", r)
}

// PrintSQLReport writes a replay summary with the per-type breakdown and,
// unless skipped, the percentile table.
func PrintSQLReport(w io.Writer, cfg config.Config, r metrics.Report) {
	fmt.Fprintln(w, "Detailed Report")
	fmt.Fprintln(w, "----------------")
	for _, qt := range metrics.QueryTypes {
		label := fmt.Sprintf("%-9s", string(qt)+"s")
		if r.HasBaseline {
			cmp := r.Baseline[qt]
			fmt.Fprintf(w, "%s: %d queries (%d faster, %d slower)\n", label, r.Queries[qt], cmp.Faster, cmp.Slower)
		} else {
			fmt.Fprintf(w, "%s: %d queries\n", label, r.Queries[qt])
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Report")
	fmt.Fprintln(w, "------")
	fmt.Fprintf(w, "Executed %d queries\n", r.Tries)
	fmt.Fprintf(w, "Spent %s executing queries\n", clock(r.BusyTime))
	if r.HasBaseline {
		fmt.Fprintf(w, "%d queries were quicker than expected, %d were slower\n", r.Faster, r.Slower)
	}
	fmt.Fprintf(w, "A total of %d queries had errors.\n", r.Failures)
	if r.HasBaseline {
		fmt.Fprintf(w, "Expected %d rows, got %d (a difference of %d)\n", r.RowsExpected, r.TotalRows, r.RowsExpected-r.TotalRows)
		fmt.Fprintf(w, "Number of queries where number of rows differed: %d.\n", r.RowsDiffer)
	}

	perConn := 0.0
	if cfg.Concurrency > 0 {
		perConn = float64(r.Tries) / float64(cfg.Concurrency)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Average of %.2f queries per connection (%d connections).\n", perConn, cfg.Concurrency)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Query Times (ms)")
	writeTimesTable(w, r)

	if !cfg.SQL.SkipPercentiles {
		fmt.Fprintln(w)
		writePercentiles(w, "Percentage of the queries executed within a certain time (ms)", r)
	}
}

func writeTimesTable(w io.Writer, r metrics.Report) {
	fmt.Fprintln(w, "              min  mean[+/-sd] median   max")
	fmt.Fprintf(w, "Total:      %5d %5d  %5.1f  %5d %5d\n",
		int64(r.MinMs), int64(r.MeanMs), r.StdDevMs, r.MedianMs, int64(r.MaxMs))
}

func writePercentiles(w io.Writer, title string, r metrics.Report) {
	fmt.Fprintln(w, title)
	// The table is printed lowest first.
	for i := len(metrics.PercentileThresholds) - 1; i > 0; i-- {
		p := metrics.PercentileThresholds[i]
		fmt.Fprintf(w, "  %2d%% %6d\n", p, r.Percentiles[p])
	}
	fmt.Fprintf(w, " 100%% %6d (longest request)\n", int64(r.MaxMs))
}

// clock formats d as HH:MM:SS.ffffff.
func clock(d time.Duration) string {
	d = d.Truncate(time.Microsecond)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	return fmt.Sprintf("%02d:%02d:%02d.%06d", h, m, s, d/time.Microsecond)
}

func splitTarget(target string) (host, port, path string) {
	u, err := url.Parse(target)
	if err != nil {
		return target, "", "/"
	}
	host, port = u.Hostname(), u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	path = u.RequestURI()
	if path == "" {
		path = "/"
	}
	return host, port, path
}

// JSONReport is the machine-readable form of a run.
type JSONReport struct {
	RunID      string             `json:"run_id"`
	Mode       config.Mode        `json:"mode"`
	Target     string             `json:"target"`
	Label      string             `json:"label,omitempty"`
	Report     metrics.Report     `json:"report"`
	Workers    []string           `json:"workers,omitempty"`
	Thresholds []threshold.Result `json:"thresholds,omitempty"`
}

// NewJSONReport assembles the JSON document for a run. Raw worker result
// lines are included when withWorkers is set.
func NewJSONReport(cfg config.Config, runID string, r metrics.Report, summaries []metrics.Summary, results []threshold.Result, withWorkers bool) JSONReport {
	out := JSONReport{
		RunID:      runID,
		Mode:       cfg.Mode,
		Target:     displayTarget(cfg),
		Label:      cfg.Label,
		Report:     r,
		Thresholds: results,
	}
	if withWorkers {
		for _, s := range summaries {
			out.Workers = append(out.Workers, protocol.Encode(s))
		}
	}
	return out
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, report JSONReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// PrintThresholds writes one line per evaluated threshold.
func PrintThresholds(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Thresholds:")
	for _, r := range results {
		fmt.Fprintf(w, "  %s\n", r.Message)
	}
}

// displayTarget names the database server for SQL runs, whose Target is the
// statement source.
func displayTarget(cfg config.Config) string {
	if cfg.Mode != config.ModeSQL {
		return cfg.Target
	}
	host := cfg.SQL.Host
	if host == "" {
		host = "localhost"
	}
	if cfg.SQL.Port != 0 {
		host = net.JoinHostPort(host, strconv.Itoa(cfg.SQL.Port))
	}
	return strings.TrimSuffix(fmt.Sprintf("%s://%s/%s", cfg.SQL.Client, host, cfg.SQL.Database), "/")
}
