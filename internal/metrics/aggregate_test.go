package metrics_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezbench/ezbench/internal/metrics"
)

var epoch = time.UnixMicro(1_700_000_000_000_000)

func summaryOf(start time.Time, durations ...time.Duration) metrics.Summary {
	s := metrics.NewSummary()
	at := start
	for _, d := range durations {
		s.Record(metrics.Trial{Start: at, Elapsed: d})
		at = at.Add(d)
	}
	return s
}

func TestMergeTwoWorkers(t *testing.T) {
	a := summaryOf(epoch, 10*time.Millisecond, 20*time.Millisecond)
	b := summaryOf(epoch, 30*time.Millisecond, 40*time.Millisecond)

	report, err := metrics.Merge([]metrics.Summary{a, b})
	require.NoError(t, err)

	assert.Equal(t, int64(4), report.Tries)
	assert.Equal(t, int64(4), report.Successful)
	assert.Equal(t, metrics.Histogram{10: 1, 20: 1, 30: 1, 40: 1}, report.Durations)
	assert.InDelta(t, 25.0, report.MeanMs, 1e-9)
	assert.Equal(t, int64(20), report.MedianMs)
	assert.Equal(t, int64(20), report.Percentiles[50])
	assert.Equal(t, int64(30), report.Percentiles[66])
	assert.Equal(t, int64(30), report.Percentiles[75])
	assert.Equal(t, int64(40), report.Percentiles[80])
	assert.Equal(t, int64(40), report.Percentiles[100])
	assert.InDelta(t, math.Sqrt(500.0/4.0), report.StdDevMs, 1e-9)
	assert.Equal(t, 10*time.Millisecond, report.MinTime)
	assert.Equal(t, 40*time.Millisecond, report.MaxTime)
}

func TestMergeOrderIndependent(t *testing.T) {
	a := summaryOf(epoch, 5*time.Millisecond, 7*time.Millisecond, 7*time.Millisecond)
	b := summaryOf(epoch.Add(time.Second), 1*time.Millisecond)
	c := summaryOf(epoch.Add(2*time.Second), 100*time.Millisecond, 3*time.Millisecond)

	forward, err := metrics.Merge([]metrics.Summary{a, b, c})
	require.NoError(t, err)
	backward, err := metrics.Merge([]metrics.Summary{c, b, a})
	require.NoError(t, err)

	assert.Equal(t, forward.Percentiles, backward.Percentiles)
	assert.Equal(t, forward.Durations, backward.Durations)
	assert.Equal(t, forward.WallTime, backward.WallTime)
	assert.InDelta(t, forward.StdDevMs, backward.StdDevMs, 1e-9)
}

func TestWallClockIsSpanNotBusySum(t *testing.T) {
	a := metrics.NewSummary()
	a.Tries = 1
	a.Durations.Add(1, 1)
	a.Begin = epoch
	a.End = epoch.Add(5 * time.Second)
	a.BusyTime = 5 * time.Second

	b := metrics.NewSummary()
	b.Tries = 1
	b.Durations.Add(1, 1)
	b.Begin = epoch.Add(1 * time.Second)
	b.End = epoch.Add(3 * time.Second)
	b.BusyTime = 2 * time.Second

	report, err := metrics.Merge([]metrics.Summary{a, b})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, report.WallTime)
	assert.Equal(t, 7*time.Second, report.BusyTime)
	assert.InDelta(t, 2.0/5.0, report.RequestsPerSec, 1e-9)
}

func TestMeanIncludesFailedBusyTime(t *testing.T) {
	s := metrics.NewSummary()
	s.Record(metrics.Trial{Start: epoch, Elapsed: 10 * time.Millisecond})
	s.Record(metrics.Trial{Start: epoch, Elapsed: 30 * time.Millisecond, Err: errors.New("boom")})

	report, err := metrics.Merge([]metrics.Summary{s})
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Failures)
	assert.Equal(t, int64(1), report.Successful)
	assert.InDelta(t, 40.0, report.MeanMs, 1e-9)
}

func TestMergeDetectsInconsistentHistogram(t *testing.T) {
	s := summaryOf(epoch, 10*time.Millisecond, 20*time.Millisecond)
	s.Durations.Add(99, 1)

	_, err := metrics.Merge([]metrics.Summary{s})
	var consistency *metrics.ConsistencyError
	require.ErrorAs(t, err, &consistency)
	assert.Equal(t, int64(3), consistency.HistogramTotal)
	assert.Equal(t, int64(2), consistency.Successful)
}

func TestMergeHistogramTotalsMatchSuccesses(t *testing.T) {
	var summaries []metrics.Summary
	for w := 0; w < 5; w++ {
		s := metrics.NewSummary()
		for i := 0; i < 20; i++ {
			var err error
			if (i+w)%7 == 0 {
				err = errors.New("failed")
			}
			s.Record(metrics.Trial{Start: epoch, Elapsed: time.Duration(i*w) * time.Millisecond, Err: err})
		}
		summaries = append(summaries, s)
	}

	report, err := metrics.Merge(summaries)
	require.NoError(t, err)
	assert.Equal(t, report.Tries-report.Failures, report.Durations.Total())
}

func TestMergeEmpty(t *testing.T) {
	report, err := metrics.Merge(nil)
	require.NoError(t, err)
	assert.Zero(t, report.Tries)
	assert.Zero(t, report.RequestsPerSec)
	assert.Zero(t, report.StdDevMs)
	for _, p := range metrics.PercentileThresholds {
		assert.Zero(t, report.Percentiles[p])
	}
}

func TestPercentilesOverHundredSamples(t *testing.T) {
	var durations []time.Duration
	for i := 1; i <= 100; i++ {
		durations = append(durations, time.Duration(i)*time.Millisecond)
	}
	report, err := metrics.Merge([]metrics.Summary{summaryOf(epoch, durations...)})
	require.NoError(t, err)

	for _, p := range metrics.PercentileThresholds {
		assert.Equal(t, int64(p), report.Percentiles[p], "p%d", p)
	}
	assert.Equal(t, int64(50), report.MedianMs)
}

func TestQuantileMatchesExactBuckets(t *testing.T) {
	var durations []time.Duration
	for i := 0; i < 200; i++ {
		durations = append(durations, time.Duration(i%10)*time.Millisecond)
	}
	report, err := metrics.Merge([]metrics.Summary{summaryOf(epoch, durations...)})
	require.NoError(t, err)

	assert.Equal(t, int64(0), report.Quantile(1))
	assert.Equal(t, int64(9), report.Quantile(100))
	assert.Equal(t, report.Percentiles[50], report.Quantile(50))
}

func TestQuantileClampsOutOfRangeKeys(t *testing.T) {
	report := metrics.Report{Durations: metrics.Histogram{-5: 3, 2: 1}}

	assert.Equal(t, int64(0), report.Quantile(50))
	assert.Equal(t, int64(2), report.Quantile(100))
}

func TestMergeBaselineTables(t *testing.T) {
	a := metrics.NewSummary()
	a.Record(metrics.Trial{
		Start: epoch, Elapsed: 5 * time.Millisecond, QueryType: metrics.QuerySelect, Rows: 3, Size: 3,
		Baseline: &metrics.Baseline{QueryTime: 10 * time.Millisecond, HasQueryTime: true, RowsSent: 3, HasRowsSent: true},
	})
	b := metrics.NewSummary()
	b.Record(metrics.Trial{
		Start: epoch, Elapsed: 50 * time.Millisecond, QueryType: metrics.QuerySelect, Rows: 1, Size: 1,
		Baseline: &metrics.Baseline{QueryTime: 10 * time.Millisecond, HasQueryTime: true, RowsSent: 4, HasRowsSent: true},
	})
	b.Record(metrics.Trial{Start: epoch, Elapsed: time.Millisecond, QueryType: metrics.QueryInsert})

	report, err := metrics.Merge([]metrics.Summary{a, b})
	require.NoError(t, err)
	assert.True(t, report.HasBaseline)
	assert.Equal(t, int64(7), report.RowsExpected)
	assert.Equal(t, int64(4), report.TotalRows)
	assert.Equal(t, int64(1), report.RowsDiffer)
	assert.Equal(t, metrics.Comparison{Faster: 1, Slower: 1}, report.Baseline[metrics.QuerySelect])
	assert.Equal(t, int64(2), report.Queries[metrics.QuerySelect])
	assert.Equal(t, int64(1), report.Queries[metrics.QueryInsert])
	assert.Equal(t, int64(1), report.Faster)
	assert.Equal(t, int64(1), report.Slower)
	assert.Equal(t, metrics.Histogram{3: 1, 1: 1}, report.Sizes)
}
