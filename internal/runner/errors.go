package runner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ezbench/ezbench/internal/worker"
)

// ErrNoWorkers is returned when the workload assigns no worker.
var ErrNoWorkers = errors.New("no workers to spawn")

// errEmptyOutput marks a worker that exited cleanly without a result line.
var errEmptyOutput = errors.New("worker produced no output")

// Kind classifies an OrchestrationError.
type Kind string

const (
	KindConfig     Kind = "configuration error"
	KindDependency Kind = "dependency error"
	KindSpawn      Kind = "spawn error"
	KindWorker     Kind = "worker error"
	KindConnection Kind = "connection error"
)

// OrchestrationError reports a run aborted before a report could be built.
// Worker is -1 when the failure is not tied to a single worker.
type OrchestrationError struct {
	Kind     Kind
	Worker   int
	ExitCode int
	Stderr   string
	Err      error
}

func (e *OrchestrationError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Worker >= 0 {
		fmt.Fprintf(&b, ": worker %d", e.Worker)
		if e.ExitCode != 0 {
			fmt.Fprintf(&b, " exited with status %d", e.ExitCode)
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if line := lastLine(e.Stderr); line != "" {
		b.WriteString(": ")
		b.WriteString(line)
	}
	return b.String()
}

func (e *OrchestrationError) Unwrap() error { return e.Err }

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// Exit statuses shared by orchestrator and worker processes.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitConnection = 2
)

// ExitCode maps an error returned by a run or by a worker to the process
// exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var connErr *worker.ConnectionError
	if errors.As(err, &connErr) {
		return ExitConnection
	}
	var orchErr *OrchestrationError
	if errors.As(err, &orchErr) && orchErr.Kind == KindConnection {
		return ExitConnection
	}
	return ExitFailure
}
