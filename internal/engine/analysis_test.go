package engine

import (
	"strings"
	"testing"
)

const twoMoveLine = "info move Q16 visits 100 winrate 0.6 scoreLead 1.0 order 0 " +
	"info move D4 visits 50 winrate 0.5 scoreLead 0.0 order 1"

func TestParseAnalysisTwoMoves(t *testing.T) {
	snap := ParseAnalysis(twoMoveLine)
	if snap == nil {
		t.Fatal("expected snapshot")
	}
	if len(snap.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(snap.Rows))
	}
	q16 := snap.Rows[0]
	if q16.Move != "Q16" {
		t.Errorf("move = %q, want Q16", q16.Move)
	}
	if q16.Visits() != 100 {
		t.Errorf("visits = %v, want 100", q16.Visits())
	}
	if q16.Winrate() != 0.6 {
		t.Errorf("winrate = %v, want 0.6", q16.Winrate())
	}
	if q16.ScoreLead() != 1.0 {
		t.Errorf("scoreLead = %v, want 1.0", q16.ScoreLead())
	}
	if q16.Order() != 0 {
		t.Errorf("order = %v, want 0", q16.Order())
	}
	if snap.Rows[1].Move != "D4" {
		t.Errorf("second move = %q, want D4", snap.Rows[1].Move)
	}
	if snap.TotalVisits() != 150 {
		t.Errorf("total visits = %v, want 150", snap.TotalVisits())
	}
}

// A real engine line carries twelve key/value pairs and then a pv move
// sequence. Truncation at 24 tokens must cut exactly before the pv key,
// keeping the record numeric.
func TestParseAnalysisTruncatesBeforePV(t *testing.T) {
	line := "info move Q16 visits 842 utility 0.21 winrate 0.58 scoreMean 2.3 " +
		"scoreStdev 30.1 scoreLead 2.3 scoreSelfplay 2.5 prior 0.14 lcb 0.55 " +
		"utilityLcb 0.19 order 0 pv Q16 D4 Q4 D16"
	snap := ParseAnalysis(line)
	if snap == nil {
		t.Fatal("expected snapshot")
	}
	row := snap.Rows[0]
	if _, ok := row.Stats["pv"]; ok {
		t.Error("pv leaked into the stats table")
	}
	if row.Visits() != 842 {
		t.Errorf("visits = %v, want 842", row.Visits())
	}
	if row.Stats["lcb"] != 0.55 {
		t.Errorf("lcb = %v, want 0.55", row.Stats["lcb"])
	}
}

func TestParseAnalysisDropsMalformedRecord(t *testing.T) {
	line := "info move Q16 visits garbage winrate 0.6 " +
		"info move D4 visits 50 winrate 0.5 scoreLead 0.0 order 1"
	snap := ParseAnalysis(line)
	if snap == nil {
		t.Fatal("expected snapshot from the surviving record")
	}
	if len(snap.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(snap.Rows))
	}
	if snap.Rows[0].Move != "D4" {
		t.Errorf("move = %q, want D4", snap.Rows[0].Move)
	}
}

func TestParseAnalysisNoRecords(t *testing.T) {
	for _, line := range []string{"", "= ok", "info ", "info garbage only"} {
		if snap := ParseAnalysis(line); snap != nil {
			t.Errorf("ParseAnalysis(%q) = %+v, want nil", line, snap)
		}
	}
}

func TestParseAnalysisPassMove(t *testing.T) {
	snap := ParseAnalysis("info move pass visits 10 winrate 0.4 scoreLead -0.5 order 3")
	if snap == nil {
		t.Fatal("expected snapshot")
	}
	if snap.Rows[0].Move != "pass" {
		t.Errorf("move = %q, want pass", snap.Rows[0].Move)
	}
	if snap.Rows[0].ScoreLead() != -0.5 {
		t.Errorf("scoreLead = %v, want -0.5", snap.Rows[0].ScoreLead())
	}
}

func TestParseAnalysisManyRecords(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("info move Q16 visits 1 winrate 0.5 scoreLead 0.0 order 0 ")
	}
	snap := ParseAnalysis(b.String())
	if snap == nil {
		t.Fatal("expected snapshot")
	}
	if len(snap.Rows) != 20 {
		t.Errorf("rows = %d, want 20", len(snap.Rows))
	}
}
