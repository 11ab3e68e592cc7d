// Package metrics provides per-worker result accumulation and the run-wide
// statistics engine for ezbench.
//
// # Worker Summary
//
// Every worker owns exactly one [Summary]. Trials are recorded into it
// sequentially, one at a time:
//
//	s := metrics.NewSummary()
//	s.Record(metrics.Trial{Start: start, Elapsed: elapsed, BodyBytes: n, Size: n})
//
// A Summary keeps counters, min/max/busy time, the begin/end wall-clock pair,
// and two histograms: durations bucketed by truncated milliseconds and
// sizes (bytes or rows) bucketed by exact value. The SQL replay executor
// additionally fills the per-query-type tables and the baseline comparison.
//
// # Aggregation
//
// [Merge] folds any number of summaries, in any order, into a [Report]:
//
//	report, err := metrics.Merge(summaries)
//
// Counters are summed, histograms are merged bucket-wise, the wall-clock total
// is max(end) - min(begin), and percentiles are derived by walking the merged
// duration histogram in ascending bucket order. A mismatch between the merged
// histogram total and the number of successful trials is reported as a
// [ConsistencyError].
//
// # Quantiles
//
// [Report.Quantile] answers arbitrary quantiles from the merged histogram via
// an HDR histogram, for thresholds that ask for a percentile outside
// [PercentileThresholds].
package metrics
