package protocol_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezbench/ezbench/internal/metrics"
	"github.com/ezbench/ezbench/internal/protocol"
)

var epoch = time.UnixMicro(1_700_000_000_000_000)

func httpSummary() metrics.Summary {
	s := metrics.NewSummary()
	s.Record(metrics.Trial{Start: epoch, Elapsed: 10*time.Millisecond + 250*time.Microsecond, Bytes: 600, BodyBytes: 512, Size: 512})
	s.Record(metrics.Trial{Start: epoch.Add(20 * time.Millisecond), Elapsed: 20 * time.Millisecond, Bytes: 600, BodyBytes: 512, Size: 512, NonOK: true})
	s.Record(metrics.Trial{Start: epoch.Add(50 * time.Millisecond), Elapsed: 5 * time.Millisecond, Err: errors.New("reset"), WriteError: true})
	return s
}

func sqlSummary() metrics.Summary {
	s := metrics.NewSummary()
	s.Record(metrics.Trial{
		Start: epoch, Elapsed: 3 * time.Millisecond,
		QueryType: metrics.QuerySelect, Rows: 4, Size: 4,
		Baseline: &metrics.Baseline{QueryTime: 10 * time.Millisecond, HasQueryTime: true, RowsSent: 3, HasRowsSent: true},
	})
	s.Record(metrics.Trial{
		Start: epoch.Add(5 * time.Millisecond), Elapsed: 30 * time.Millisecond,
		QueryType: metrics.QueryInsert,
		Baseline:  &metrics.Baseline{QueryTime: time.Millisecond, HasQueryTime: true},
	})
	return s
}

func TestRoundTripHTTPSummary(t *testing.T) {
	s := httpSummary()

	got, err := protocol.Decode(protocol.Encode(s))
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestRoundTripSQLSummary(t *testing.T) {
	s := sqlSummary()

	got, err := protocol.Decode(protocol.Encode(s))
	require.NoError(t, err)
	assert.Equal(t, s, got)
	assert.True(t, got.HasBaseline)
	assert.Equal(t, int64(3), got.RowsExpected)
	assert.Equal(t, int64(1), got.RowsDiffer)
}

func TestRoundTripEmptySummary(t *testing.T) {
	s := metrics.NewSummary()

	got, err := protocol.Decode(protocol.Encode(s))
	require.NoError(t, err)
	assert.Equal(t, s, got)
	assert.True(t, got.Begin.IsZero())
}

func TestEncodeIsSingleLine(t *testing.T) {
	line := protocol.Encode(sqlSummary())

	assert.NotContains(t, line, "\n")
	assert.Contains(t, line, "queries:INSERT-1/SELECT-1")
	assert.Contains(t, line, "meta:INSERT-0-1/SELECT-1-0")
	assert.Contains(t, line, "times:3-1/30-1")
}

func TestEncodeBaselineAbsent(t *testing.T) {
	line := protocol.Encode(httpSummary())

	assert.Contains(t, line, "rows_expected:;")
	got, err := protocol.Decode(line)
	require.NoError(t, err)
	assert.False(t, got.HasBaseline)
}

func TestWriteTerminatesLine(t *testing.T) {
	var b strings.Builder
	require.NoError(t, protocol.Write(&b, httpSummary()))

	assert.True(t, strings.HasSuffix(b.String(), "\n"))
	assert.Equal(t, 1, strings.Count(b.String(), "\n"))
}

func TestDecodeIgnoresUnknownKeys(t *testing.T) {
	line := protocol.Encode(httpSummary()) + ";future_field:42"

	got, err := protocol.Decode(line)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Tries)
}

func TestDecodeAcceptsTrailingNewline(t *testing.T) {
	got, err := protocol.Decode(protocol.Encode(httpSummary()) + "\n")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Failures)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		field string
	}{
		{name: "empty", line: "", field: "line"},
		{name: "missing separator", line: "tries", field: "tries"},
		{name: "missing required", line: "tries:1;failures:0;tot_time:5;begin:1;end:2", field: "times"},
		{name: "non numeric", line: "tries:x;failures:0;tot_time:5;begin:1;end:2;times:", field: "tries"},
		{name: "negative", line: "tries:1;failures:-1;tot_time:5;begin:1;end:2;times:", field: "failures"},
		{name: "bad histogram pair", line: "tries:1;failures:0;tot_time:5;begin:1;end:2;times:5", field: "times"},
		{name: "bad meta triple", line: "tries:1;failures:0;tot_time:5;begin:1;end:2;times:5-1;meta:SELECT-1", field: "meta"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := protocol.Decode(tt.line)
			require.Error(t, err)

			var decodeErr *protocol.DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, tt.field, decodeErr.Field)
		})
	}
}
