package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ezbench/ezbench/internal/metrics"
)

func TestRecordTracksBeginEndAndExtremes(t *testing.T) {
	s := metrics.NewSummary()
	s.Record(metrics.Trial{Start: epoch, Elapsed: 15 * time.Millisecond, Size: 100, BodyBytes: 100, Bytes: 180})
	s.Record(metrics.Trial{Start: epoch.Add(20 * time.Millisecond), Elapsed: 4*time.Millisecond + 900*time.Microsecond, Size: 100, BodyBytes: 100, Bytes: 180})
	s.Record(metrics.Trial{Start: epoch.Add(30 * time.Millisecond), Elapsed: 40 * time.Millisecond, Err: errors.New("timeout")})

	assert.Equal(t, int64(3), s.Tries)
	assert.Equal(t, int64(1), s.Failures)
	assert.Equal(t, epoch, s.Begin)
	assert.Equal(t, epoch.Add(70*time.Millisecond), s.End)
	assert.Equal(t, 4*time.Millisecond+900*time.Microsecond, s.MinTime)
	assert.Equal(t, 40*time.Millisecond, s.MaxTime)
	assert.Equal(t, metrics.Histogram{15: 1, 4: 1}, s.Durations)
	assert.Equal(t, metrics.Histogram{100: 2}, s.Sizes)
	assert.Equal(t, int64(360), s.TotalBytes)
	assert.Equal(t, int64(200), s.BodyBytes)
}

func TestRecordHTTPClassification(t *testing.T) {
	s := metrics.NewSummary()
	s.Record(metrics.Trial{Start: epoch, Elapsed: time.Millisecond, NonOK: true})
	s.Record(metrics.Trial{Start: epoch, Elapsed: time.Millisecond, WriteError: true, Err: errors.New("broken pipe")})

	assert.Equal(t, int64(1), s.NonOK)
	assert.Equal(t, int64(1), s.WriteErrors)
	assert.Equal(t, int64(1), s.Failures)
	assert.Empty(t, s.Queries)
}

func TestRecordSkipsZeroRowBuckets(t *testing.T) {
	s := metrics.NewSummary()
	s.Record(metrics.Trial{Start: epoch, Elapsed: time.Millisecond, QueryType: metrics.QueryUpdate})
	s.Record(metrics.Trial{Start: epoch, Elapsed: time.Millisecond, QueryType: metrics.QuerySelect, Rows: 2, Size: 2})

	assert.Equal(t, metrics.Histogram{2: 1}, s.Sizes)
	assert.Equal(t, int64(2), s.Durations.Total())
	assert.False(t, s.HasBaseline)
}

func TestRecordBaselineWithoutRowsKeepsExpectationUnset(t *testing.T) {
	s := metrics.NewSummary()
	s.Record(metrics.Trial{
		Start: epoch, Elapsed: 2 * time.Millisecond, QueryType: metrics.QueryDelete,
		Baseline: &metrics.Baseline{QueryTime: 2 * time.Millisecond, HasQueryTime: true},
	})

	assert.False(t, s.HasBaseline)
	assert.Zero(t, s.RowsDiffer)
	assert.Equal(t, metrics.Comparison{}, s.Baseline[metrics.QueryDelete])
}

func TestRecordBaselineWithoutRowsExpectsNoRows(t *testing.T) {
	s := metrics.NewSummary()
	s.Record(metrics.Trial{
		Start: epoch, Elapsed: time.Millisecond, QueryType: metrics.QuerySelect, Rows: 2, Size: 2,
		Baseline: &metrics.Baseline{QueryTime: 5 * time.Millisecond, HasQueryTime: true},
	})
	s.Record(metrics.Trial{
		Start: epoch, Elapsed: time.Millisecond, QueryType: metrics.QuerySelect, Rows: 2, Size: 2,
		Baseline: &metrics.Baseline{RowsSent: 2, HasRowsSent: true},
	})

	assert.True(t, s.HasBaseline)
	assert.Equal(t, int64(2), s.RowsExpected)
	assert.Equal(t, int64(1), s.RowsDiffer)
	assert.Equal(t, metrics.Comparison{Faster: 1}, s.Baseline[metrics.QuerySelect])
}
