package metrics

import (
	"fmt"
	"math"
	"time"
)

// PercentileThresholds lists the percentiles of the report table, highest first.
var PercentileThresholds = []int{100, 99, 98, 95, 90, 80, 75, 66, 50}

// ConsistencyError signals that merged histograms disagree with the merged
// trial counters. It indicates an engine bug, not a runtime condition.
type ConsistencyError struct {
	HistogramTotal int64
	Successful     int64
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("internal consistency error: duration histogram holds %d samples, expected %d successful trials", e.HistogramTotal, e.Successful)
}

// Report is the merged statistical result of a run.
type Report struct {
	Workers     int   `json:"workers"`
	Tries       int64 `json:"tries"`
	Failures    int64 `json:"failures"`
	Successful  int64 `json:"successful"`
	NonOK       int64 `json:"non_2xx"`
	WriteErrors int64 `json:"write_errors"`

	TotalBytes int64 `json:"total_bytes"`
	BodyBytes  int64 `json:"html_bytes"`

	BusyTime time.Duration `json:"-"`
	MinTime  time.Duration `json:"-"`
	MaxTime  time.Duration `json:"-"`
	WallTime time.Duration `json:"-"`
	Begin    time.Time     `json:"begin"`
	End      time.Time     `json:"end"`

	RequestsPerSec float64       `json:"requests_per_sec"`
	TransferRateKB float64       `json:"transfer_rate_kb"`
	MeanMs         float64       `json:"mean_ms"`
	StdDevMs       float64       `json:"stddev_ms"`
	MedianMs       int64         `json:"median_ms"`
	Percentiles    map[int]int64 `json:"percentiles_ms"`

	// JSON-friendly millisecond fields.
	MinMs      float64 `json:"min_ms"`
	MaxMs      float64 `json:"max_ms"`
	WallTimeMs float64 `json:"wall_time_ms"`

	Durations Histogram `json:"durations"`
	Sizes     Histogram `json:"sizes"`

	TotalRows    int64                    `json:"total_rows"`
	HasBaseline  bool                     `json:"has_baseline"`
	RowsExpected int64                    `json:"rows_expected"`
	RowsDiffer   int64                    `json:"rows_differ_queries"`
	Queries      map[QueryType]int64      `json:"queries,omitempty"`
	Baseline     map[QueryType]Comparison `json:"baseline,omitempty"`
	Faster       int64                    `json:"faster"`
	Slower       int64                    `json:"slower"`
}

// Merge folds worker summaries into a run report. The order of summaries is
// irrelevant.
func Merge(summaries []Summary) (Report, error) {
	r := Report{
		Workers:     len(summaries),
		Durations:   Histogram{},
		Sizes:       Histogram{},
		Percentiles: make(map[int]int64, len(PercentileThresholds)),
		Queries:     map[QueryType]int64{},
		Baseline:    map[QueryType]Comparison{},
	}

	first := true
	for _, s := range summaries {
		r.Tries += s.Tries
		r.Failures += s.Failures
		r.NonOK += s.NonOK
		r.WriteErrors += s.WriteErrors
		r.TotalBytes += s.TotalBytes
		r.BodyBytes += s.BodyBytes
		r.BusyTime += s.BusyTime
		r.TotalRows += s.TotalRows

		if s.Tries > 0 {
			if first || s.Begin.Before(r.Begin) {
				r.Begin = s.Begin
			}
			if first || s.End.After(r.End) {
				r.End = s.End
			}
			if first || s.MinTime < r.MinTime {
				r.MinTime = s.MinTime
			}
			if s.MaxTime > r.MaxTime {
				r.MaxTime = s.MaxTime
			}
			first = false
		}

		r.Durations.Merge(s.Durations)
		r.Sizes.Merge(s.Sizes)
		for qt, n := range s.Queries {
			r.Queries[qt] += n
		}
		if s.HasBaseline {
			r.HasBaseline = true
			r.RowsExpected += s.RowsExpected
			r.RowsDiffer += s.RowsDiffer
		}
		for qt, cmp := range s.Baseline {
			merged := r.Baseline[qt]
			merged.Faster += cmp.Faster
			merged.Slower += cmp.Slower
			r.Baseline[qt] = merged
			r.Faster += cmp.Faster
			r.Slower += cmp.Slower
		}
	}

	r.Successful = r.Tries - r.Failures
	if total := r.Durations.Total(); total != r.Successful {
		return Report{}, &ConsistencyError{HistogramTotal: total, Successful: r.Successful}
	}

	r.WallTime = r.End.Sub(r.Begin)
	if r.WallTime > 0 {
		secs := r.WallTime.Seconds()
		r.RequestsPerSec = float64(r.Tries) / secs
		r.TransferRateKB = float64(r.TotalBytes) / 1024 / secs
	}

	// Busy time includes failed trials while the divisor does not.
	if r.Successful > 0 {
		r.MeanMs = float64(r.BusyTime) / float64(time.Millisecond) / float64(r.Successful)
	}

	r.Percentiles = percentiles(r.Durations, r.Successful)
	r.MedianMs = r.Percentiles[50]
	r.StdDevMs = stdDev(r.Durations, r.MeanMs)

	r.MinMs = float64(r.MinTime) / float64(time.Millisecond)
	r.MaxMs = float64(r.MaxTime) / float64(time.Millisecond)
	r.WallTimeMs = float64(r.WallTime) / float64(time.Millisecond)

	return r, nil
}

// percentiles walks the histogram in ascending key order and records, for each
// threshold, the first bucket at which the cumulative count reaches
// ceil(successful * threshold / 100).
func percentiles(h Histogram, successful int64) map[int]int64 {
	out := make(map[int]int64, len(PercentileThresholds))
	for _, p := range PercentileThresholds {
		out[p] = 0
	}
	if successful <= 0 {
		return out
	}

	// Thresholds are consumed lowest first while walking upwards.
	pending := make([]int, len(PercentileThresholds))
	copy(pending, PercentileThresholds)

	var cumulative int64
	for _, key := range h.Keys() {
		cumulative += h[key]
		for len(pending) > 0 {
			p := pending[len(pending)-1]
			need := (successful*int64(p) + 99) / 100
			if cumulative < need {
				break
			}
			out[p] = key
			pending = pending[:len(pending)-1]
		}
		if len(pending) == 0 {
			break
		}
	}
	return out
}

// stdDev is the population standard deviation of the histogram around mean.
func stdDev(h Histogram, mean float64) float64 {
	var sum float64
	var n int64
	for key, count := range h {
		d := float64(key) - mean
		sum += float64(count) * d * d
		n += count
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

// Quantile returns the duration in milliseconds at quantile q (0-100) of the
// merged duration histogram.
func (r Report) Quantile(q float64) int64 {
	if r.Durations.Total() == 0 {
		return 0
	}
	v := r.Durations.toHDR().ValueAtQuantile(q) - 1
	if v < 0 {
		return 0
	}
	return v
}
