package pipe

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/behrlich/katapipe/internal/engine"
	"github.com/behrlich/katapipe/internal/gtp"
	"github.com/behrlich/katapipe/internal/logger"
)

const (
	// Streaming update period handed to kata-analyze, in centiseconds.
	analyzeInterval = 50
	pollInterval    = 100 * time.Millisecond
)

// snapshotSet holds the latest snapshot per engine, remembering the order
// engines first responded in. That order fixes row order after
// concatenation, which is what breaks aggregation ties.
type snapshotSet struct {
	ids  []string
	byID map[string]*engine.Snapshot
}

func newSnapshotSet() *snapshotSet {
	return &snapshotSet{byID: make(map[string]*engine.Snapshot)}
}

func (s *snapshotSet) put(id string, snap *engine.Snapshot) {
	if _, ok := s.byID[id]; !ok {
		s.ids = append(s.ids, id)
	}
	s.byID[id] = snap
}

func (s *snapshotSet) rows() []engine.Row {
	var rows []engine.Row
	for _, id := range s.ids {
		rows = append(rows, s.byID[id].Rows...)
	}
	return rows
}

// genmove runs the proxy's own turn: fan the analysis request out, poll
// the snapshot cells until the visit budget or a deadline is met, pick a
// move, answer upstream and replay the move to the pool as a play
// command. Runs inline on the command loop, so no other command executes
// concurrently.
func (p *Pipe) genmove(command string) error {
	p.turnStarted.Store(true)
	p.game.myTurn = true
	defer func() { p.game.myTurn = false }()

	start := time.Now()
	deadline := start.Add(secs(p.policy.maxTime))
	responseDeadline := start.Add(secs(p.policy.responseTimeLimit))

	p.adjustMaxVisits()

	fields := strings.Fields(command)
	if len(fields) < 2 {
		logger.Error("bad genmove", "command", command)
		id, _ := gtp.SplitID(command)
		return p.out.Fail(id, "syntax error")
	}
	color := fields[len(fields)-1]
	// The id may precede or follow the genmove keyword; either way it is
	// the first numeric token before the color.
	var id string
	for _, f := range fields[:len(fields)-1] {
		if gtp.IsNumeric(f) {
			id = f
			break
		}
	}

	for _, e := range p.reg.alive() {
		e.ClearAnalysis()
	}
	p.requestAnalysis(color)

	set := newSnapshotSet()
	var rows []engine.Row
	var totalVisits float64

	for {
		for _, e := range p.reg.alive() {
			if snap := e.Analysis(); snap != nil {
				set.put(e.ID(), snap)
			}
		}

		if len(set.ids) > 0 {
			rows = set.rows()
			totalVisits = sumVisits(rows)
			if totalVisits >= p.policy.maxVisits {
				break
			}
		}

		if len(rows) == 0 && time.Now().After(responseDeadline) {
			p.requestAnalysis(color)
			responseDeadline = responseDeadline.Add(secs(p.policy.responseTimeLimit))
			logger.Warn("response deadline reached", "color", color)
		}

		if !time.Now().Before(deadline) {
			if len(rows) > 0 {
				break
			}
			deadline = deadline.Add(secs(p.policy.maxTime))
			logger.Warn("deadline reached", "color", color)
		}

		time.Sleep(pollInterval)
	}

	move := p.moveFromRows(rows)
	elapsed := time.Since(start)

	if err := p.out.Respond(id, move); err != nil {
		return err
	}
	p.broadcast(fmt.Sprintf("play %s %s", color, move))

	now := time.Now()
	if !p.game.opponentTurnStart.IsZero() {
		p.game.opponentTurnTimes = append(p.game.opponentTurnTimes, now.Sub(p.game.opponentTurnStart))
	}
	p.game.opponentTurnStart = now
	p.game.myTurnTimes = append(p.game.myTurnTimes, now.Sub(start))

	logger.Info("turn finished", "move", move, "visits", totalVisits,
		"elapsed", elapsed, "engines", set.ids)
	logger.Info("winrates", "tail", tail(p.game.winrates, 3))
	logger.Info("scoreLead", "tail", tail(p.game.scoreLead, 3))
	return nil
}

// moveFromRows aggregates the concatenated candidate rows: group by move,
// weight winrate, score lead and order by visits, pick the smallest
// average order. Ties
// fall to whichever move appeared first. The chosen move's averaged
// winrate and score lead extend the game history before the resign
// predicate runs.
func (p *Pipe) moveFromRows(rows []engine.Row) string {
	type agg struct {
		visits       float64
		totalScore   float64
		totalWinrate float64
		totalOrder   float64
	}
	var order []string
	byMove := make(map[string]*agg)
	for _, r := range rows {
		a, ok := byMove[r.Move]
		if !ok {
			a = &agg{}
			byMove[r.Move] = a
			order = append(order, r.Move)
		}
		v := r.Visits()
		a.visits += v
		a.totalScore += v * r.ScoreLead()
		a.totalWinrate += v * r.Winrate()
		a.totalOrder += v * r.Order()
	}

	best := ""
	bestOrder := math.Inf(1)
	for _, move := range order {
		a := byMove[move]
		if avg := a.totalOrder / a.visits; avg < bestOrder {
			best = move
			bestOrder = avg
		}
	}

	a := byMove[best]
	p.game.winrates = append(p.game.winrates, round2(a.totalWinrate/a.visits))
	p.game.scoreLead = append(p.game.scoreLead, round2(a.totalScore/a.visits))

	if p.resignp() {
		return "resign"
	}
	return best
}

// adjustMaxVisits lowers the visit target for the opening, where deep
// search buys little.
func (p *Pipe) adjustMaxVisits() {
	if p.game.moveCounts < 10 {
		p.policy.maxVisits = float64(p.policy.topVisits) / 10
	} else {
		p.policy.maxVisits = float64(p.policy.topVisits)
	}
}

func (p *Pipe) requestAnalysis(color string) {
	p.broadcast(fmt.Sprintf("kata-analyze %s %d", color, analyzeInterval))
}

func sumVisits(rows []engine.Row) float64 {
	var total float64
	for _, r := range rows {
		total += r.Visits()
	}
	return total
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func tail(vals []float64, n int) []float64 {
	if len(vals) <= n {
		return vals
	}
	return vals[len(vals)-n:]
}
