package output

import (
	"fmt"
	"io"
	"sync"
)

// Progress prints a dot for every finished worker and "done" once all of
// them have reported.
type Progress struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewProgress creates a progress printer writing to writer.
func NewProgress(writer io.Writer) *Progress {
	if writer == nil {
		writer = io.Discard
	}
	return &Progress{writer: writer}
}

// Start announces the run.
func (p *Progress) Start(target string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.writer, "Benchmarking %s (please be patient)...", target)
}

// Update is suitable for runner.WithProgress.
func (p *Progress) Update(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.writer, ".")
	if done == total {
		fmt.Fprintln(p.writer, "done")
	}
}
