package engine

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/behrlich/katapipe/internal/logger"
)

const sendQueueSize = 256

// proc is the shared subprocess transport behind the local and relay
// adapters: a spawned process with piped stdin/stdout/stderr, a writer
// goroutine draining the command queue and a reader goroutine parsing
// analysis lines. Alive iff the process has not exited.
type proc struct {
	id   string
	argv []string

	cmd      *exec.Cmd
	stdin    io.WriteCloser
	queue    chan string
	done     chan struct{}
	exited   atomic.Bool
	started  atomic.Bool
	stopOnce sync.Once

	cell analysisCell
}

func newProc(id string, argv []string) *proc {
	return &proc{
		id:    id,
		argv:  argv,
		queue: make(chan string, sendQueueSize),
		done:  make(chan struct{}),
	}
}

func (p *proc) ID() string { return p.id }

func (p *proc) Start() error {
	logger.Info("starting engine", "engine", p.id, "argv", p.argv)
	cmd := exec.Command(p.argv[0], p.argv[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start engine %s: %w", p.id, err)
	}
	p.cmd = cmd
	p.stdin = stdin
	p.started.Store(true)

	go readLines(p.id, stdout, &p.cell)
	go drainStderr(p.id, stderr)
	go writeLines(p.id, stdin, p.queue, p.done)
	go func() {
		err := cmd.Wait()
		p.exited.Store(true)
		if err != nil {
			logger.Error("engine exited", "engine", p.id, "error", err)
		} else {
			logger.Debug("engine exited", "engine", p.id)
		}
	}()
	return nil
}

func (p *proc) Send(cmd string) {
	select {
	case p.queue <- cmd:
	default:
		logger.Warn("command queue full, dropping", "engine", p.id, "command", cmd)
	}
}

func (p *proc) Alive() bool {
	return p.started.Load() && !p.exited.Load()
}

// Stop asks the engine to quit, then terminates the process if it
// lingers. Idempotent.
func (p *proc) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		if !p.started.Load() {
			return
		}
		fmt.Fprintln(p.stdin, "quit")
		p.stdin.Close()
		go func() {
			deadline := time.After(2 * time.Second)
			tick := time.NewTicker(50 * time.Millisecond)
			defer tick.Stop()
			for {
				select {
				case <-tick.C:
					if p.exited.Load() {
						return
					}
				case <-deadline:
					p.cmd.Process.Kill()
					return
				}
			}
		}()
		logger.Debug("stop engine", "engine", p.id)
	})
}

func (p *proc) Analysis() *Snapshot { return p.cell.load() }
func (p *proc) ClearAnalysis()      { p.cell.clear() }
