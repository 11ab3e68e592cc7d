// Package protocol implements the worker result protocol: a single line of
// semicolon-separated key:value fields carrying one metrics.Summary from a
// worker to the orchestrator.
//
// List-valued fields are encoded as key-value pairs joined by '/', e.g.
//
//	tries:4;failures:0;...;times:10-1/20-1;sizes:512-4;queries:SELECT-4/INSERT-0
//
// All numeric values are non-negative integers. Durations are microseconds,
// timestamps are Unix microseconds, so the encoding round-trips exactly.
package protocol

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ezbench/ezbench/internal/metrics"
)

const (
	fieldSep = ";"
	kvSep    = ":"
	itemSep  = "/"
	pairSep  = "-"
)

const (
	keyTries        = "tries"
	keyFailures     = "failures"
	keyNonOK        = "non_2xx"
	keyWriteErrors  = "write_errors"
	keyBusyTime     = "tot_time"
	keyMinTime      = "t_min"
	keyMaxTime      = "t_max"
	keyBegin        = "begin"
	keyEnd          = "end"
	keyTotalBytes   = "tot_bytes"
	keyBodyBytes    = "html_bytes"
	keyTotalRows    = "tot_rows"
	keyRowsExpected = "rows_expected"
	keyRowsDiffer   = "rows_differ_queries"
	keyTimes        = "times"
	keySizes        = "sizes"
	keyQueries      = "queries"
	keyMeta         = "meta"
)

var requiredKeys = []string{keyTries, keyFailures, keyBusyTime, keyBegin, keyEnd, keyTimes}

// DecodeError reports a malformed field in a worker result line.
type DecodeError struct {
	Field string
	Value string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("decode result field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("decode result field %q (%q): %v", e.Field, e.Value, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode renders a summary as one protocol line, without a trailing newline.
func Encode(s metrics.Summary) string {
	fields := []string{
		field(keyTries, itoa(s.Tries)),
		field(keyFailures, itoa(s.Failures)),
		field(keyNonOK, itoa(s.NonOK)),
		field(keyWriteErrors, itoa(s.WriteErrors)),
		field(keyBusyTime, itoa(s.BusyTime.Microseconds())),
		field(keyMinTime, itoa(s.MinTime.Microseconds())),
		field(keyMaxTime, itoa(s.MaxTime.Microseconds())),
		field(keyBegin, itoa(timestamp(s.Begin))),
		field(keyEnd, itoa(timestamp(s.End))),
		field(keyTotalBytes, itoa(s.TotalBytes)),
		field(keyBodyBytes, itoa(s.BodyBytes)),
		field(keyTotalRows, itoa(s.TotalRows)),
	}
	// An absent expectation is distinct from an expectation of zero rows.
	if s.HasBaseline {
		fields = append(fields, field(keyRowsExpected, itoa(s.RowsExpected)))
	} else {
		fields = append(fields, field(keyRowsExpected, ""))
	}
	fields = append(fields,
		field(keyRowsDiffer, itoa(s.RowsDiffer)),
		field(keyTimes, encodeHistogram(s.Durations)),
		field(keySizes, encodeHistogram(s.Sizes)),
		field(keyQueries, encodeQueries(s.Queries)),
		field(keyMeta, encodeComparisons(s.Baseline)),
	)
	return strings.Join(fields, fieldSep)
}

// Write encodes s followed by a newline.
func Write(w io.Writer, s metrics.Summary) error {
	_, err := io.WriteString(w, Encode(s)+"\n")
	return err
}

// Decode parses one protocol line. Unknown keys are ignored.
func Decode(line string) (metrics.Summary, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return metrics.Summary{}, &DecodeError{Field: "line", Err: fmt.Errorf("empty result")}
	}

	values := make(map[string]string)
	for _, item := range strings.Split(line, fieldSep) {
		key, value, ok := strings.Cut(item, kvSep)
		if !ok {
			return metrics.Summary{}, &DecodeError{Field: item, Err: fmt.Errorf("missing %q separator", kvSep)}
		}
		values[key] = value
	}
	for _, key := range requiredKeys {
		if _, ok := values[key]; !ok {
			return metrics.Summary{}, &DecodeError{Field: key, Err: fmt.Errorf("missing field")}
		}
	}

	d := decoder{values: values}
	s := metrics.NewSummary()
	s.Tries = d.int(keyTries)
	s.Failures = d.int(keyFailures)
	s.NonOK = d.int(keyNonOK)
	s.WriteErrors = d.int(keyWriteErrors)
	s.BusyTime = d.micros(keyBusyTime)
	s.MinTime = d.micros(keyMinTime)
	s.MaxTime = d.micros(keyMaxTime)
	s.Begin = d.time(keyBegin)
	s.End = d.time(keyEnd)
	s.TotalBytes = d.int(keyTotalBytes)
	s.BodyBytes = d.int(keyBodyBytes)
	s.TotalRows = d.int(keyTotalRows)
	if values[keyRowsExpected] != "" {
		s.HasBaseline = true
		s.RowsExpected = d.int(keyRowsExpected)
	}
	s.RowsDiffer = d.int(keyRowsDiffer)
	s.Durations = d.histogram(keyTimes)
	s.Sizes = d.histogram(keySizes)
	s.Queries = d.queries(keyQueries)
	s.Baseline = d.comparisons(keyMeta)

	if d.err != nil {
		return metrics.Summary{}, d.err
	}
	return s, nil
}

func field(key, value string) string {
	return key + kvSep + value
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func timestamp(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func encodeHistogram(h metrics.Histogram) string {
	keys := h.Keys()
	items := make([]string, 0, len(keys))
	for _, k := range keys {
		items = append(items, itoa(k)+pairSep+itoa(h[k]))
	}
	return strings.Join(items, itemSep)
}

func sortedTypes[V any](m map[metrics.QueryType]V) []metrics.QueryType {
	types := make([]metrics.QueryType, 0, len(m))
	for qt := range m {
		types = append(types, qt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func encodeQueries(m map[metrics.QueryType]int64) string {
	items := make([]string, 0, len(m))
	for _, qt := range sortedTypes(m) {
		items = append(items, string(qt)+pairSep+itoa(m[qt]))
	}
	return strings.Join(items, itemSep)
}

func encodeComparisons(m map[metrics.QueryType]metrics.Comparison) string {
	items := make([]string, 0, len(m))
	for _, qt := range sortedTypes(m) {
		cmp := m[qt]
		items = append(items, string(qt)+pairSep+itoa(cmp.Faster)+pairSep+itoa(cmp.Slower))
	}
	return strings.Join(items, itemSep)
}

// decoder keeps the first error and turns later reads into no-ops.
type decoder struct {
	values map[string]string
	err    error
}

func (d *decoder) fail(key, value string, err error) {
	if d.err == nil {
		d.err = &DecodeError{Field: key, Value: value, Err: err}
	}
}

func (d *decoder) parse(key, raw string) int64 {
	if d.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		d.fail(key, raw, err)
		return 0
	}
	if v < 0 {
		d.fail(key, raw, fmt.Errorf("negative value"))
		return 0
	}
	return v
}

func (d *decoder) int(key string) int64 {
	raw, ok := d.values[key]
	if !ok || raw == "" {
		return 0
	}
	return d.parse(key, raw)
}

func (d *decoder) micros(key string) time.Duration {
	return time.Duration(d.int(key)) * time.Microsecond
}

func (d *decoder) time(key string) time.Time {
	v := d.int(key)
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v)
}

func (d *decoder) items(key string, parts int) [][]string {
	raw := d.values[key]
	if raw == "" || d.err != nil {
		return nil
	}
	var out [][]string
	for _, item := range strings.Split(raw, itemSep) {
		pair := strings.SplitN(item, pairSep, parts)
		if len(pair) != parts {
			d.fail(key, item, fmt.Errorf("expected %d %q-separated parts", parts, pairSep))
			return nil
		}
		out = append(out, pair)
	}
	return out
}

func (d *decoder) histogram(key string) metrics.Histogram {
	h := metrics.Histogram{}
	for _, pair := range d.items(key, 2) {
		h.Add(d.parse(key, pair[0]), d.parse(key, pair[1]))
	}
	return h
}

func (d *decoder) queries(key string) map[metrics.QueryType]int64 {
	m := map[metrics.QueryType]int64{}
	for _, pair := range d.items(key, 2) {
		m[metrics.QueryType(pair[0])] += d.parse(key, pair[1])
	}
	return m
}

func (d *decoder) comparisons(key string) map[metrics.QueryType]metrics.Comparison {
	m := map[metrics.QueryType]metrics.Comparison{}
	for _, parts := range d.items(key, 3) {
		cmp := m[metrics.QueryType(parts[0])]
		cmp.Faster += d.parse(key, parts[1])
		cmp.Slower += d.parse(key, parts[2])
		m[metrics.QueryType(parts[0])] = cmp
	}
	return m
}
