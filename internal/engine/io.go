package engine

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/behrlich/katapipe/internal/logger"
)

// readLines consumes an engine's output stream until EOF. Analysis lines
// overwrite the adapter's snapshot cell; everything else is dropped (the
// pipe fabricates upstream responses itself).
func readLines(id string, r io.Reader, cell *analysisCell) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if strings.Contains(line, "Uncaught exception") {
			logger.Error("engine failed", "engine", id, "line", line)
		}
		if strings.Contains(line, "info move") {
			if snap := ParseAnalysis(line); snap != nil {
				cell.store(snap)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("cannot read engine output", "engine", id, "error", err)
	}
}

// writeLines drains the adapter's command queue, delivering one line per
// command in submission order.
func writeLines(id string, w io.Writer, queue <-chan string, done <-chan struct{}) {
	for {
		select {
		case cmd := <-queue:
			if _, err := fmt.Fprintf(w, "%s\n", strings.TrimSpace(cmd)); err != nil {
				logger.Error("sending command failed", "engine", id, "command", cmd, "error", err)
				return
			}
		case <-done:
			return
		}
	}
}

// drainStderr logs an engine's stderr at debug level so startup noise
// lands in the log file instead of blocking the process.
func drainStderr(id string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		logger.Debug("engine stderr", "engine", id, "line", scanner.Text())
	}
}
