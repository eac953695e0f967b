package pipe

import (
	"bytes"
	"testing"
)

func resignPipe(t *testing.T, winrates []float64) *Pipe {
	t.Helper()
	var buf bytes.Buffer
	p, _ := newTestPipe(t, &buf)
	p.game.winrates = winrates
	return p
}

func flatWinrates(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestResignpFlatGame(t *testing.T) {
	p := resignPipe(t, flatWinrates(20, 0.8))
	if p.resignp() {
		t.Error("resignp true for a flat 0.8 game")
	}
}

func TestResignpCollapsedGame(t *testing.T) {
	w := flatWinrates(17, 0.8)
	w[0] = 0.8
	w = append(w, 0.05, 0.04, 0.03)
	p := resignPipe(t, w)
	if !p.resignp() {
		t.Error("resignp false for a collapsed game with monotone tail")
	}
}

func TestResignpShortGame(t *testing.T) {
	w := append(flatWinrates(16, 0.8), 0.05, 0.04, 0.03)
	p := resignPipe(t, w) // length 19
	if p.resignp() {
		t.Error("resignp true before 20 moves")
	}
}

func TestResignpRatioHolds(t *testing.T) {
	// Last winrate is low but not a quarter of the opening one.
	w := append(flatWinrates(17, 0.3), 0.09, 0.08, 0.08)
	p := resignPipe(t, w)
	if p.resignp() {
		t.Error("resignp true although last/first >= 0.25")
	}
}

func TestResignpTailNotMonotone(t *testing.T) {
	// The latest value is not the tail minimum: still hope.
	w := append(flatWinrates(17, 0.8), 0.03, 0.05, 0.04)
	p := resignPipe(t, w)
	if p.resignp() {
		t.Error("resignp true although the latest winrate is not the tail minimum")
	}
}

func TestResignpTailAboveThreshold(t *testing.T) {
	w := append(flatWinrates(17, 0.8), 0.15, 0.12, 0.11)
	p := resignPipe(t, w)
	if p.resignp() {
		t.Error("resignp true although the tail is above the resign threshold")
	}
}

func TestResignpRespectsConsecTurnSetting(t *testing.T) {
	w := append(flatWinrates(15, 0.8), 0.09, 0.08, 0.07, 0.06, 0.05)
	p := resignPipe(t, w)
	p.policy.resignConsecTurn = 5
	if !p.resignp() {
		t.Error("resignp false with a 5-turn monotone tail below threshold")
	}
}
