package engine

import (
	"strconv"
	"strings"

	"github.com/behrlich/katapipe/internal/logger"
)

// maxRecordTokens truncates each info record before the pv tail, which is
// a variable-length move sequence rather than key/value pairs.
const maxRecordTokens = 24

// Row is one candidate move from an engine's analysis line. Stats carries
// the numeric columns the engine reported (visits, winrate, scoreLead,
// order, and whatever else survived truncation).
type Row struct {
	Move  string
	Stats map[string]float64
}

func (r Row) Stat(key string) float64 { return r.Stats[key] }

func (r Row) Visits() float64    { return r.Stats["visits"] }
func (r Row) Winrate() float64   { return r.Stats["winrate"] }
func (r Row) ScoreLead() float64 { return r.Stats["scoreLead"] }
func (r Row) Order() float64     { return r.Stats["order"] }

// Snapshot is the tabular form of one "info move ..." line: one row per
// candidate move, in the order the engine listed them.
type Snapshot struct {
	Rows []Row
}

// TotalVisits sums the visits column across all rows.
func (s *Snapshot) TotalVisits() float64 {
	var total float64
	for _, r := range s.Rows {
		total += r.Stats["visits"]
	}
	return total
}

// ParseAnalysis turns one streaming analysis line into a Snapshot. The
// line holds repeated records separated by the token "info"; each record
// is alternating key/value pairs, truncated to maxRecordTokens so the pv
// tail never reaches the table. Records that fail to parse are dropped.
// Returns nil when no record survives.
func ParseAnalysis(line string) *Snapshot {
	var snap Snapshot
	for _, record := range strings.Split(line, "info ") {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		tokens := strings.Fields(record)
		if len(tokens) > maxRecordTokens {
			tokens = tokens[:maxRecordTokens]
		}
		row, ok := parseRecord(tokens)
		if !ok {
			logger.Debug("dropping malformed analysis record", "record", record)
			continue
		}
		snap.Rows = append(snap.Rows, row)
	}
	if len(snap.Rows) == 0 {
		return nil
	}
	return &snap
}

func parseRecord(tokens []string) (Row, bool) {
	row := Row{Stats: make(map[string]float64)}
	for i := 0; i+1 < len(tokens); i += 2 {
		key, value := tokens[i], tokens[i+1]
		if key == "move" {
			row.Move = value
			continue
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Row{}, false
		}
		row.Stats[key] = f
	}
	if row.Move == "" {
		return Row{}, false
	}
	return row, true
}
