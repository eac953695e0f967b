package engine

import (
	"testing"
	"time"
)

// stubEngine answers every command with a canned analysis line, which is
// all the transport needs to exercise its reader and writer.
const stubEngine = `while read line; do
  echo "info move Q16 visits 100 winrate 0.6 scoreLead 1.0 order 0"
done`

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestProcLifecycle(t *testing.T) {
	p := newProc("0", []string{"/bin/sh", "-c", stubEngine})
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !p.Alive() {
		t.Fatal("expected engine alive after start")
	}

	p.Send("kata-analyze B 50")
	if !waitFor(t, 3*time.Second, func() bool { return p.Analysis() != nil }) {
		t.Fatal("no analysis snapshot arrived")
	}
	snap := p.Analysis()
	if snap.Rows[0].Move != "Q16" {
		t.Errorf("move = %q, want Q16", snap.Rows[0].Move)
	}

	p.ClearAnalysis()
	if p.Analysis() != nil {
		t.Error("expected cleared snapshot slot")
	}

	p.Stop()
	p.Stop() // idempotent
	if !waitFor(t, 3*time.Second, func() bool { return !p.Alive() }) {
		t.Error("engine still alive after Stop")
	}
}

func TestProcStartFailure(t *testing.T) {
	p := newProc("0", []string{"/nonexistent/katago", "gtp"})
	if err := p.Start(); err == nil {
		t.Fatal("expected start error for missing executable")
	}
	if p.Alive() {
		t.Error("engine should not be alive after failed start")
	}
	p.Stop()
}

func TestProcSnapshotOverwrite(t *testing.T) {
	script := `read line
echo "info move D4 visits 10 winrate 0.5 scoreLead 0.0 order 1"
read line
echo "info move Q16 visits 20 winrate 0.6 scoreLead 1.0 order 0"
while read line; do :; done`
	p := newProc("0", []string{"/bin/sh", "-c", script})
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	p.Send("kata-analyze B 50")
	if !waitFor(t, 3*time.Second, func() bool { return p.Analysis() != nil }) {
		t.Fatal("no first snapshot")
	}

	p.Send("kata-analyze B 50")
	if !waitFor(t, 3*time.Second, func() bool {
		s := p.Analysis()
		return s != nil && s.Rows[0].Move == "Q16"
	}) {
		t.Error("latest snapshot did not overwrite the previous one")
	}
}
