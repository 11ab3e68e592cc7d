package metrics

import (
	"time"
)

// QueryType classifies a replayed SQL statement by its first keyword.
type QueryType string

const (
	QuerySelect  QueryType = "SELECT"
	QueryInsert  QueryType = "INSERT"
	QueryUpdate  QueryType = "UPDATE"
	QueryDelete  QueryType = "DELETE"
	QueryReplace QueryType = "REPLACE"
	QueryDrop    QueryType = "DROP"
	QueryOther   QueryType = "OTHER"
)

// QueryTypes lists every query type in report order.
var QueryTypes = []QueryType{QuerySelect, QueryInsert, QueryUpdate, QueryDelete, QueryReplace, QueryDrop, QueryOther}

// Baseline carries the execution data recorded for a statement in the
// source log, used to compare a replayed trial against its original run.
type Baseline struct {
	QueryTime    time.Duration
	HasQueryTime bool
	RowsSent     int64
	HasRowsSent  bool
}

// Trial is the outcome of one execution of the configured operation.
type Trial struct {
	Start   time.Time
	Elapsed time.Duration
	// Err is nil when the trial succeeded at the transport/driver level.
	Err error

	// HTTP classification.
	NonOK      bool
	WriteError bool
	Bytes      int64
	BodyBytes  int64

	// Size is the magnitude bucketed in the size histogram: body bytes for
	// HTTP, rows returned for SQL.
	Size int64

	// SQL classification. QueryType is empty for HTTP trials.
	QueryType QueryType
	Rows      int64
	Baseline  *Baseline
}

// Comparison counts replayed trials that ran faster or slower than baseline.
type Comparison struct {
	Faster int64 `json:"faster"`
	Slower int64 `json:"slower"`
}

// Summary is the result of one worker, emitted exactly once.
type Summary struct {
	Tries       int64
	Failures    int64
	NonOK       int64
	WriteErrors int64

	BusyTime time.Duration
	MinTime  time.Duration
	MaxTime  time.Duration
	Begin    time.Time
	End      time.Time

	TotalBytes int64
	BodyBytes  int64

	Durations Histogram
	Sizes     Histogram

	TotalRows    int64
	HasBaseline  bool
	RowsExpected int64
	RowsDiffer   int64
	Queries      map[QueryType]int64
	Baseline     map[QueryType]Comparison
}

// NewSummary returns an empty summary ready for recording.
func NewSummary() Summary {
	return Summary{
		Durations: Histogram{},
		Sizes:     Histogram{},
		Queries:   map[QueryType]int64{},
		Baseline:  map[QueryType]Comparison{},
	}
}

// Successful returns the number of trials that did not fail.
func (s Summary) Successful() int64 {
	return s.Tries - s.Failures
}

// Record folds one trial into the summary. Timestamps and durations are
// truncated to microseconds so the summary survives the wire encoding
// without loss.
func (s *Summary) Record(t Trial) {
	elapsed := t.Elapsed.Truncate(time.Microsecond)
	start := time.UnixMicro(t.Start.UnixMicro())
	stop := start.Add(elapsed)

	if s.Durations == nil {
		s.Durations = Histogram{}
	}
	if s.Sizes == nil {
		s.Sizes = Histogram{}
	}

	if s.Tries == 0 {
		s.Begin = start
		s.MinTime = elapsed
	}
	s.Tries++
	s.End = stop
	s.BusyTime += elapsed
	if elapsed < s.MinTime {
		s.MinTime = elapsed
	}
	if elapsed > s.MaxTime {
		s.MaxTime = elapsed
	}

	if t.WriteError {
		s.WriteErrors++
	}

	if t.Err != nil {
		s.Failures++
	} else {
		s.Durations.Add(elapsed.Milliseconds(), 1)
		s.TotalBytes += t.Bytes
		s.BodyBytes += t.BodyBytes
		if t.NonOK {
			s.NonOK++
		}
		// Replayed statements returning no rows are not bucketed.
		if t.QueryType == "" || t.Size > 0 {
			s.Sizes.Add(t.Size, 1)
		}
		s.TotalRows += t.Rows
	}

	if t.QueryType != "" {
		s.recordQuery(t, elapsed)
	}
}

func (s *Summary) recordQuery(t Trial, elapsed time.Duration) {
	if s.Queries == nil {
		s.Queries = map[QueryType]int64{}
	}
	if s.Baseline == nil {
		s.Baseline = map[QueryType]Comparison{}
	}
	s.Queries[t.QueryType]++

	b := t.Baseline
	if b == nil {
		return
	}
	// A baseline without rows_sent expects zero rows for the comparison but
	// adds nothing to the expected total.
	if b.HasRowsSent {
		s.HasBaseline = true
		s.RowsExpected += b.RowsSent
	}
	if b.RowsSent != t.Rows {
		s.RowsDiffer++
	}
	if b.HasQueryTime {
		cmp := s.Baseline[t.QueryType]
		switch {
		case b.QueryTime > elapsed:
			cmp.Faster++
		case b.QueryTime < elapsed:
			cmp.Slower++
		}
		s.Baseline[t.QueryType] = cmp
	}
}
