package slowlog

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var queryTimeHeader = regexp.MustCompile(`^# Query_time: +([0-9.]+) +Lock_time: +([0-9.]+) +Rows_sent: +([0-9]+) +Rows_examined: +([0-9]+)`)

const maxLineSize = 16 << 20

// Parse reads a MySQL slow query log. A statement ends at a line whose last
// character is ';'. Comment lines discard any unfinished statement, and the
// "SET timestamp=" lines MySQL adds before each entry are skipped.
func Parse(r io.Reader) ([]Statement, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var (
		statements []Statement
		pending    []string
		meta       *Meta
		lineNo     int
	)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.HasPrefix(line, "#") {
			pending = pending[:0]
			if m := queryTimeHeader.FindStringSubmatch(line); m != nil {
				parsed, err := parseMeta(m[1:])
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				meta = parsed
			}
			continue
		}

		if !strings.HasSuffix(line, ";") {
			pending = append(pending, line)
			continue
		}

		if strings.HasPrefix(line, "SET timestamp=") {
			pending = pending[:0]
			continue
		}

		pending = append(pending, line)
		statements = append(statements, Statement{
			SQL:  strings.Join(pending, "\n"),
			Meta: meta,
		})
		pending = pending[:0]
		meta = nil
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return statements, nil
}

func parseMeta(fields []string) (*Meta, error) {
	queryTime, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil, fmt.Errorf("query time %q: %w", fields[0], err)
	}
	lockTime, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil, fmt.Errorf("lock time %q: %w", fields[1], err)
	}
	rowsSent, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("rows sent %q: %w", fields[2], err)
	}
	rowsExamined, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("rows examined %q: %w", fields[3], err)
	}
	return &Meta{
		QueryTime:    &queryTime,
		LockTime:     &lockTime,
		RowsSent:     &rowsSent,
		RowsExamined: &rowsExamined,
	}, nil
}
