package events

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/meridianbio/batchsight-backend/internal/domain"
)

//go:embed events.log
var eventLog string

// Parse decodes the embedded process event log. Format is one event per
// line, pipe-delimited:
//
//	run_id|timestamp|event_type|subtype|amount|amount_unit|actor|entry_mode|notes
//
// Blank lines and '#' comments are skipped. A dosing event with an empty
// amount field is not an error here: the amount stays nil and the ingestion
// pipeline records the gap as a quality flag. Events come back time-sorted.
func Parse() ([]domain.ProcessEvent, error) {
	return parse(eventLog)
}

// ParseForRun returns the time-sorted events belonging to one run.
func ParseForRun(runID string) ([]domain.ProcessEvent, error) {
	all, err := Parse()
	if err != nil {
		return nil, err
	}
	var out []domain.ProcessEvent
	for _, e := range all {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

func parse(raw string) ([]domain.ProcessEvent, error) {
	var out []domain.ProcessEvent
	for lineNo, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) != 9 {
			return nil, fmt.Errorf("event log line %d: got %d fields, want 9", lineNo+1, len(fields))
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		ts, err := time.Parse(time.RFC3339, fields[1])
		if err != nil {
			return nil, fmt.Errorf("event log line %d: bad timestamp %q: %w", lineNo+1, fields[1], err)
		}
		ev := domain.ProcessEvent{
			RunID:      fields[0],
			Timestamp:  ts.UTC(),
			Type:       domain.EventType(fields[2]),
			Subtype:    fields[3],
			AmountUnit: fields[5],
			Actor:      fields[6],
			EntryMode:  domain.EntryMode(fields[7]),
			Notes:      fields[8],
		}
		if fields[4] != "" {
			amt, err := strconv.ParseFloat(fields[4], 64)
			if err != nil {
				return nil, fmt.Errorf("event log line %d: bad amount %q: %w", lineNo+1, fields[4], err)
			}
			ev.Amount = &amt
		}
		if ev.EntryMode == "" {
			ev.EntryMode = domain.EntryModeAuto
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}
