package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ezbench/ezbench/internal/config"
	"github.com/ezbench/ezbench/internal/worker"
)

// WorkerCommand is the hidden subcommand that runs a binary as a worker.
const WorkerCommand = "worker"

// Output is the drained result of an exited worker.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	// Err is set when the worker could not be waited on or died from a
	// signal.
	Err error
}

// Process is a running worker.
type Process interface {
	// Exited reports whether the worker has terminated. It never blocks.
	Exited() bool
	// Output returns the worker's streams and exit status. It must only be
	// called once Exited has returned true.
	Output() Output
	// Kill stops the worker. Killing an exited worker is a no-op.
	Kill()
}

// Spawner starts one worker for a per-worker configuration.
type Spawner interface {
	Spawn(ctx context.Context, cfg config.Config) (Process, error)
}

// ExecSpawner starts workers as child processes of the current binary.
type ExecSpawner struct {
	// Path of the binary to execute. Defaults to os.Executable.
	Path string
	// Env, when set, replaces the inherited environment.
	Env []string
}

func (s ExecSpawner) Spawn(ctx context.Context, cfg config.Config) (Process, error) {
	path := s.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
		path = exe
	}

	args := append([]string{WorkerCommand}, config.WorkerArgs(cfg)...)
	cmd := exec.CommandContext(ctx, path, args...)
	if s.Env != nil {
		cmd.Env = s.Env
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	// Streams are copied into memory as the worker writes them, so a worker
	// never blocks on a full pipe while the orchestrator is polling.
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

type execProcess struct {
	cmd     *exec.Cmd
	stdout  bytes.Buffer
	stderr  bytes.Buffer
	done    chan struct{}
	waitErr error
}

func (p *execProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *execProcess) Output() Output {
	<-p.done
	out := Output{
		Stdout:   p.stdout.Bytes(),
		Stderr:   p.stderr.Bytes(),
		ExitCode: p.cmd.ProcessState.ExitCode(),
	}
	var exitErr *exec.ExitError
	if p.waitErr != nil && !errors.As(p.waitErr, &exitErr) {
		out.Err = p.waitErr
	}
	if out.ExitCode < 0 {
		out.Err = errors.New(p.cmd.ProcessState.String())
	}
	return out
}

func (p *execProcess) Kill() {
	if p.Exited() {
		return
	}
	_ = p.cmd.Process.Kill()
}

// InProcessSpawner runs workers as goroutines. Every worker builds its own
// executor through Factory and shares no mutable state with the others.
type InProcessSpawner struct {
	Factory worker.Factory

	once  sync.Once
	group *errgroup.Group
}

func (s *InProcessSpawner) Spawn(ctx context.Context, cfg config.Config) (Process, error) {
	if s.Factory == nil {
		return nil, errors.New("in-process spawner requires an executor factory")
	}
	s.once.Do(func() { s.group = new(errgroup.Group) })

	ctx, cancel := context.WithCancel(ctx)
	p := &goroutineProcess{cancel: cancel, done: make(chan struct{})}
	s.group.Go(func() error {
		defer close(p.done)
		err := worker.Serve(ctx, cfg, s.Factory, &p.stdout)
		if err != nil {
			p.stderr.WriteString(err.Error())
			p.stderr.WriteByte('\n')
		}
		p.exitCode = ExitCode(err)
		return err
	})
	return p, nil
}

// Wait blocks until every spawned worker has returned and reports the first
// worker error.
func (s *InProcessSpawner) Wait() error {
	if s.group == nil {
		return nil
	}
	return s.group.Wait()
}

type goroutineProcess struct {
	cancel   context.CancelFunc
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	exitCode int
	done     chan struct{}
}

func (p *goroutineProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *goroutineProcess) Output() Output {
	<-p.done
	p.cancel()
	return Output{
		Stdout:   p.stdout.Bytes(),
		Stderr:   p.stderr.Bytes(),
		ExitCode: p.exitCode,
	}
}

func (p *goroutineProcess) Kill() {
	p.cancel()
}
