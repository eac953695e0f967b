// Package pipe implements the multi-engine GTP coordinator: engine
// lifecycle, command interpretation and pass-through, the genmove
// fan-out/aggregation loop and the resignation heuristic.
package pipe

import (
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/behrlich/katapipe/internal/config"
	"github.com/behrlich/katapipe/internal/engine"
	"github.com/behrlich/katapipe/internal/gtp"
	"github.com/behrlich/katapipe/internal/logger"
)

const (
	commandQueueSize = 64
	monitorInterval  = 5 * time.Second

	// Wall budget for a turn until time_settings arrives.
	defaultMaxTime = 13.0
	defaultKomi    = 7.5
)

// Factory resolves an engine id to an adapter that has not been started
// yet; appendEngine starts it. Replaceable for tests.
type Factory func(id string) (engine.Engine, error)

type gameState struct {
	winrates  []float64
	scoreLead []float64

	moveCounts int
	komi       float64

	myTurn            bool
	myTurnTimes       []time.Duration
	opponentTurnTimes []time.Duration
	opponentTurnStart time.Time
}

type policyState struct {
	lagBuffer         float64 // seconds
	maxTime           float64 // per-turn wall budget after lag, seconds
	responseTimeLimit float64 // seconds
	maxVisits         float64 // current visit target
	topVisits         int     // visit ceiling
	resignThreshold   float64
	resignConsecTurn  int
}

// Pipe presents a single GTP engine upstream while fanning analysis out
// to a pool of backends. Commands are processed one at a time on the
// command loop goroutine; genmove aggregation runs inline on it.
type Pipe struct {
	cfg *config.Config
	out *gtp.Responder

	newEngine Factory
	reg       registry

	commands chan string
	fatal    chan error

	game   gameState
	policy policyState

	turnStarted atomic.Bool // first genmove observed; parks the monitor
	stopped     chan struct{}
}

func New(cfg *config.Config, out io.Writer) *Pipe {
	p := &Pipe{
		cfg:      cfg,
		out:      gtp.NewResponder(out),
		commands: make(chan string, commandQueueSize),
		fatal:    make(chan error, 1),
		stopped:  make(chan struct{}),
	}
	p.newEngine = p.defaultFactory
	p.initGame()
	return p
}

// initGame resets everything clear_board is expected to reset: move
// history, policy knobs from configuration, turn bookkeeping and the
// replay history.
func (p *Pipe) initGame() {
	p.game = gameState{komi: defaultKomi}
	p.policy = policyState{
		lagBuffer:         p.cfg.Pipe.LagBuffer,
		maxTime:           defaultMaxTime,
		responseTimeLimit: p.cfg.Pipe.ResponseTimeLimit,
		maxVisits:         10000,
		topVisits:         p.cfg.Pipe.TopVisits,
		resignThreshold:   p.cfg.Pipe.ResignThreshold,
		resignConsecTurn:  p.cfg.Pipe.ResignConsecTurn,
	}
	p.reg.clearHistory()
}

// Start brings up the configured engines and launches the command loop
// and the engine monitor.
func (p *Pipe) Start(engineIDs []string) {
	for _, id := range engineIDs {
		p.appendEngine(id)
	}
	go p.commandLoop()
	go p.monitor()
}

// Submit queues one upstream GTP command line.
func (p *Pipe) Submit(line string) {
	p.commands <- line
}

// Fatal reports unrecoverable failures (upstream write errors). The
// process should terminate once this fires.
func (p *Pipe) Fatal() <-chan error {
	return p.fatal
}

// Shutdown stops the monitor and all engines. Engines receive no further
// commands afterward.
func (p *Pipe) Shutdown() {
	select {
	case <-p.stopped:
	default:
		close(p.stopped)
	}
	for _, e := range p.reg.all() {
		e.Stop()
	}
}

func (p *Pipe) commandLoop() {
	for {
		select {
		case command := <-p.commands:
			logger.Debug("message loop received", "command", command)
			if err := p.dispatch(command); err != nil {
				logger.Error("cannot write upstream response", "error", err)
				p.fatal <- err
				return
			}
		case <-p.stopped:
			return
		}
	}
}

// dispatch classifies one upstream command by substring match, in fixed
// order. The returned error is fatal (upstream write failure);
// per-command problems are logged and swallowed.
func (p *Pipe) dispatch(command string) error {
	id, _ := gtp.SplitID(command)

	switch {
	case strings.Contains(command, "genmove"):
		return p.genmove(command)

	case strings.Contains(command, "set_top_visits"):
		if err := p.out.Ack(id); err != nil {
			return err
		}
		if v, err := lastInt(command); err != nil {
			logger.Error("bad set_top_visits", "command", command, "error", err)
		} else {
			p.policy.topVisits = v
			logger.Debug("set top visits", "top_visits", v)
		}
		return nil

	case strings.Contains(command, "set_resign_threshold"):
		if err := p.out.Ack(id); err != nil {
			return err
		}
		if v, err := lastFloat(command); err != nil {
			logger.Error("bad set_resign_threshold", "command", command, "error", err)
		} else {
			p.setResignThreshold(v)
		}
		return nil

	case strings.Contains(command, "add_lag_buffer"):
		if err := p.out.Ack(id); err != nil {
			return err
		}
		if v, err := lastFloat(command); err != nil {
			logger.Error("bad add_lag_buffer", "command", command, "error", err)
		} else {
			p.policy.lagBuffer += v
			p.policy.maxTime -= v
			logger.Debug("set lag buffer", "lag_buffer", p.policy.lagBuffer)
		}
		return nil

	case strings.Contains(command, "append_engine"):
		if err := p.out.Ack(id); err != nil {
			return err
		}
		fields := strings.Fields(command)
		if len(fields) < 2 {
			logger.Error("bad append_engine", "command", command)
			return nil
		}
		p.appendEngine(fields[len(fields)-1])
		return nil

	case strings.Contains(command, "stop_engine"):
		if err := p.out.Ack(id); err != nil {
			return err
		}
		fields := strings.Fields(command)
		if len(fields) < 2 {
			logger.Error("bad stop_engine", "command", command)
			return nil
		}
		p.removeEngine(fields[len(fields)-1])
		return nil

	case strings.Contains(command, "time_left"):
		return p.out.Ack(id)

	case strings.Contains(command, "time_settings"):
		fields := strings.Fields(command)
		if len(fields) < 4 {
			logger.Error("bad time_settings", "command", command)
			return p.out.Ack(id)
		}
		byoyomi, err := strconv.ParseFloat(fields[len(fields)-2], 64)
		if err != nil {
			logger.Error("bad time_settings byo-yomi", "command", command, "error", err)
			return p.out.Ack(id)
		}
		p.policy.maxTime = byoyomi - p.policy.lagBuffer
		logger.Debug("set max time", "max_time", p.policy.maxTime)
		return p.out.Ack(id)
	}

	if strings.Contains(command, "komi") {
		if v, err := lastFloat(command); err != nil {
			logger.Error("bad komi", "command", command, "error", err)
		} else {
			p.setKomi(v)
		}
	}

	if strings.Contains(command, "clear_board") {
		p.initGame()
	}

	if err := p.out.Ack(id); err != nil {
		return err
	}
	p.broadcast(command)
	return nil
}

// broadcast delivers command to every live engine, recording it in the
// replay history unless it is an analysis request. A play command, the
// upstream's or our own synthesized one, bumps the move count.
func (p *Pipe) broadcast(command string) {
	if strings.Contains(command, "play") {
		p.game.moveCounts++
	}
	keep := !strings.Contains(command, "analyze")
	for _, e := range p.reg.commit(command, keep) {
		e.Send(command)
		logger.Debug("sending command", "command", command, "engine", e.ID())
	}
}

func (p *Pipe) appendEngine(id string) {
	e, err := p.newEngine(id)
	if err != nil {
		logger.Error("cannot resolve engine", "engine", id, "error", err)
		return
	}
	if err := e.Start(); err != nil {
		logger.Error("starting engine failed", "engine", id, "error", err)
		return
	}
	if !p.reg.insert(e) {
		logger.Warn("engine already present", "engine", id)
		e.Stop()
		return
	}
	logger.Info("engine appended", "engine", id)
}

func (p *Pipe) removeEngine(id string) {
	if e := p.reg.remove(id); e != nil {
		e.Stop()
		logger.Info("engine stopped", "engine", id)
	}
}

func (p *Pipe) defaultFactory(id string) (engine.Engine, error) {
	switch id {
	case engine.LocalID:
		return engine.NewLocal(p.cfg.Local), nil
	case engine.RelayID:
		return engine.NewRelay(p.cfg.Ikatago), nil
	default:
		desc, err := p.cfg.Engine.Remote(id)
		if err != nil {
			return nil, err
		}
		return engine.NewRemote(id, desc), nil
	}
}

// monitor sweeps dead engines every few seconds until play begins; after
// the first genmove, pruning happens lazily during broadcasts.
func (p *Pipe) monitor() {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if p.turnStarted.Load() {
				return
			}
			p.reg.sweepDead()
		case <-p.stopped:
			return
		}
	}
}

func (p *Pipe) setKomi(v float64) {
	p.game.komi = v
	logger.Debug("set komi", "komi", v)
	if v == 0.0 {
		p.setResignThreshold(0.05)
	}
}

func (p *Pipe) setResignThreshold(v float64) {
	p.policy.resignThreshold = v
	logger.Debug("set resign threshold", "resign_threshold", v)
}

func lastFloat(command string) (float64, error) {
	fields := strings.Fields(command)
	return strconv.ParseFloat(fields[len(fields)-1], 64)
}

func lastInt(command string) (int, error) {
	fields := strings.Fields(command)
	return strconv.Atoi(fields[len(fields)-1])
}
