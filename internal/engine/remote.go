package engine

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/behrlich/katapipe/internal/config"
	"github.com/behrlich/katapipe/internal/logger"
)

// remoteCommand is what the hosted engine runs inside the shell session.
const remoteCommand = "run-katago --transmit-move-num 6 -- gtp -override-config numSearchThreads=32"

const dialTimeout = 5 * time.Second

// Remote reaches a hosted engine over an interactive ssh session,
// authenticated with the username/password from the engine's config
// descriptor. Alive iff the underlying connection is still open.
type Remote struct {
	id   string
	desc config.Remote

	client   *ssh.Client
	session  *ssh.Session
	queue    chan string
	done     chan struct{}
	dead     atomic.Bool
	started  atomic.Bool
	stopOnce sync.Once

	cell analysisCell
}

func NewRemote(id string, desc config.Remote) *Remote {
	return &Remote{
		id:    id,
		desc:  desc,
		queue: make(chan string, sendQueueSize),
		done:  make(chan struct{}),
	}
}

func (r *Remote) ID() string { return r.id }

func (r *Remote) Start() error {
	addr := net.JoinHostPort(r.desc.Host, strconv.Itoa(r.desc.Port))
	logger.Info("connecting to engine", "engine", r.id, "addr", addr)

	client, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            r.desc.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(r.desc.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	})
	if err != nil {
		return fmt.Errorf("dial engine %s at %s: %w", r.id, addr, err)
	}

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return fmt.Errorf("open session for engine %s: %w", r.id, err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		client.Close()
		return fmt.Errorf("stdin pipe for engine %s: %w", r.id, err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		client.Close()
		return fmt.Errorf("stdout pipe for engine %s: %w", r.id, err)
	}
	if err := session.Start(remoteCommand); err != nil {
		client.Close()
		return fmt.Errorf("start %q on engine %s: %w", remoteCommand, r.id, err)
	}
	r.client = client
	r.session = session
	r.started.Store(true)
	logger.Debug("engine session started", "engine", r.id, "command", remoteCommand)

	go readLines(r.id, stdout, &r.cell)
	go writeLines(r.id, stdin, r.queue, r.done)
	go func() {
		client.Conn.Wait()
		r.dead.Store(true)
		logger.Debug("engine connection closed", "engine", r.id)
	}()
	return nil
}

func (r *Remote) Send(cmd string) {
	select {
	case r.queue <- cmd:
	default:
		logger.Warn("command queue full, dropping", "engine", r.id, "command", cmd)
	}
}

func (r *Remote) Alive() bool {
	return r.started.Load() && !r.dead.Load()
}

func (r *Remote) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		if r.session != nil {
			r.session.Close()
		}
		if r.client != nil {
			r.client.Close()
		}
		logger.Debug("stop engine", "engine", r.id)
	})
}

func (r *Remote) Analysis() *Snapshot { return r.cell.load() }
func (r *Remote) ClearAnalysis()      { r.cell.clear() }
