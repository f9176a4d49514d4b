package poller

import (
	"testing"
	"time"

	"github.com/meridianbio/batchsight-backend/internal/platform/logger"
)

// lateConfig forces every summary export to stall past the timeout, so the
// alert path is exercised deterministically. The stall delay lands in
// [Timeout+Window/2, Timeout+3*Window/2), i.e. [55s, 75s) here.
func lateConfig() Config {
	return Config{
		InterfaceID:     "HPLC-02",
		TickInterval:    30 * time.Second,
		CompanionWindow: 20 * time.Second,
		Timeout:         45 * time.Second,
		LateProbability: 1.0,
		Seed:            7,
	}
}

type stepClock struct {
	now time.Time
}

func (c *stepClock) at() time.Time { return c.now }

func newTestConnector(t *testing.T, cfg Config) (*Connector, *stepClock) {
	t.Helper()
	conn := New(logger.NewNop(), cfg)
	clock := &stepClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	conn.SetClock(clock.at)
	return conn, clock
}

func TestFirstTickProducesReport(t *testing.T) {
	t.Parallel()
	conn, _ := newTestConnector(t, lateConfig())

	conn.Tick()
	records := conn.Records()
	if len(records) != 1 {
		t.Fatalf("record count: got=%d want=1", len(records))
	}
	r := records[0]
	if r.Labels["file_type"] != "pdf" || r.Labels["sequence"] != "SEQ-0001" {
		t.Fatalf("unexpected report labels: %v", r.Labels)
	}
	if len(conn.Alerts()) != 0 {
		t.Fatal("alert raised before timeout")
	}
}

func TestOverdueReportAlertsExactlyOnce(t *testing.T) {
	t.Parallel()
	conn, clock := newTestConnector(t, lateConfig())
	start := clock.now

	conn.Tick() // report 1

	clock.now = start.Add(30 * time.Second)
	conn.Tick() // report 2; report 1 still inside timeout
	if got := len(conn.Alerts()); got != 0 {
		t.Fatalf("alerts before timeout: got=%d want=0", got)
	}

	clock.now = start.Add(50 * time.Second)
	conn.Tick() // report 1 now 50s old, past the 45s timeout
	alerts := conn.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("alerts after timeout: got=%d want=1", len(alerts))
	}
	if alerts[0].Resolved {
		t.Fatal("fresh alert already resolved")
	}

	// Ticking again before anything changes must not duplicate the alert.
	clock.now = start.Add(52 * time.Second)
	conn.Tick()
	if got := len(conn.Alerts()); got != 1 {
		t.Fatalf("alerts after repeat tick: got=%d want=1", got)
	}
}

func TestLateSummaryResolvesWithoutReopening(t *testing.T) {
	t.Parallel()
	conn, clock := newTestConnector(t, lateConfig())
	start := clock.now

	conn.Tick()
	clock.now = start.Add(50 * time.Second)
	conn.Tick()
	if len(conn.Alerts()) != 1 {
		t.Fatalf("setup: alert not raised")
	}

	// The stalled summary is due no later than start+75s.
	clock.now = start.Add(80 * time.Second)
	conn.Tick()

	var sawSummary bool
	for _, r := range conn.Records() {
		if r.Labels["file_type"] == "csv" && r.Labels["sequence"] == "SEQ-0001" {
			sawSummary = true
		}
	}
	if !sawSummary {
		t.Fatal("late summary never arrived")
	}

	alerts := conn.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("alert history length: got=%d want=1", len(alerts))
	}
	if !alerts[0].Resolved {
		t.Fatal("alert not resolved by late summary")
	}

	// Subsequent ticks keep the resolved alert resolved and add nothing
	// new for that sequence.
	clock.now = start.Add(200 * time.Second)
	conn.Tick()
	for _, a := range conn.Alerts() {
		if a.AffectedRecordIDs[0] == alerts[0].AffectedRecordIDs[0] && !a.Resolved {
			t.Fatal("resolved alert re-opened")
		}
	}
}

func TestStopCancelsPendingDeliveries(t *testing.T) {
	t.Parallel()
	conn, clock := newTestConnector(t, lateConfig())
	start := clock.now

	conn.Tick()
	conn.Stop()

	clock.now = start.Add(10 * time.Minute)
	conn.Tick()

	// No new records after stop; the pending summary died with the loop.
	if got := len(conn.Records()); got != 1 {
		t.Fatalf("records after stop: got=%d want=1", got)
	}
	if got := len(conn.Alerts()); got != 0 {
		t.Fatalf("alerts after stop: got=%d want=0", got)
	}
}

func TestReportsDeduplicateOnRawRef(t *testing.T) {
	t.Parallel()
	conn, clock := newTestConnector(t, lateConfig())
	start := clock.now

	conn.Tick()
	clock.now = start.Add(30 * time.Second)
	conn.Tick()

	seen := map[string]bool{}
	for _, r := range conn.Records() {
		if seen[r.RawRef] {
			t.Fatalf("duplicate raw_ref in connector ledger: %s", r.RawRef)
		}
		seen[r.RawRef] = true
	}
	if len(seen) != 2 {
		t.Fatalf("record count: got=%d want=2", len(seen))
	}
}
