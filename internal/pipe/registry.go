package pipe

import (
	"sync"

	"github.com/behrlich/katapipe/internal/engine"
	"github.com/behrlich/katapipe/internal/logger"
)

// registry is the mutable ordered collection of live adapters plus the
// replayable command history. One mutex guards both: a joining engine
// must observe the full prior history exactly once, so history append,
// replay and insertion share a critical section.
type registry struct {
	mu      sync.Mutex
	engines []engine.Engine
	history []string
}

// insert replays the command history onto e and adds it to the list, the
// local engine at the front, everything else at the back. Returns false
// when an engine with the same id is already present.
func (r *registry) insert(e engine.Engine) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.engines {
		if cur.ID() == e.ID() {
			return false
		}
	}
	for _, cmd := range r.history {
		e.Send(cmd)
	}
	if e.ID() == engine.LocalID {
		r.engines = append([]engine.Engine{e}, r.engines...)
	} else {
		r.engines = append(r.engines, e)
	}
	return true
}

// remove drops the engine with the given id, returning it for shutdown.
// Nil when absent.
func (r *registry) remove(id string) engine.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.engines {
		if e.ID() == id {
			r.engines = append(r.engines[:i], r.engines[i+1:]...)
			return e
		}
	}
	return nil
}

// commit appends cmd to the history (unless it is an analysis request)
// and returns the live engines to deliver it to. One critical section,
// so a concurrent insert either replays cmd or receives the broadcast,
// never both.
func (r *registry) commit(cmd string, keep bool) []engine.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if keep {
		r.history = append(r.history, cmd)
	}
	return r.aliveLocked()
}

// alive sweeps dead adapters then returns a stable copy of the rest.
func (r *registry) alive() []engine.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aliveLocked()
}

func (r *registry) aliveLocked() []engine.Engine {
	kept := r.engines[:0]
	for _, e := range r.engines {
		if e.Alive() {
			kept = append(kept, e)
		}
	}
	r.engines = kept
	out := make([]engine.Engine, len(kept))
	copy(out, kept)
	return out
}

// sweepDead removes dead adapters with a warning. Used by the engine
// monitor before play begins.
func (r *registry) sweepDead() {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.engines[:0]
	for _, e := range r.engines {
		if e.Alive() {
			kept = append(kept, e)
		} else {
			logger.Warn("engine stopped", "engine", e.ID())
		}
	}
	r.engines = kept
}

// all returns a copy of the current list without sweeping.
func (r *registry) all() []engine.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]engine.Engine, len(r.engines))
	copy(out, r.engines)
	return out
}

func (r *registry) clearHistory() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = nil
}
