package poller

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meridianbio/batchsight-backend/internal/domain"
	"github.com/meridianbio/batchsight-backend/internal/ledger"
	"github.com/meridianbio/batchsight-backend/internal/platform/logger"
)

// Config tunes the simulated chromatography connector.
type Config struct {
	InterfaceID string
	// TickInterval drives both the polling loop and the "one report per
	// interval" production rule.
	TickInterval time.Duration
	// CompanionWindow is how long a summary normally takes to follow its
	// report.
	CompanionWindow time.Duration
	// Timeout is the overdue threshold after which a report with no summary
	// raises an alert.
	Timeout time.Duration
	// LateProbability is the chance a summary export stalls past Timeout.
	LateProbability float64
	Seed            int64
}

func DefaultConfig() Config {
	return Config{
		InterfaceID:     "HPLC-02",
		TickInterval:    30 * time.Second,
		CompanionWindow: 20 * time.Second,
		Timeout:         45 * time.Second,
		LateProbability: 0.2,
		Seed:            1,
	}
}

type pendingSummary struct {
	seq   string
	dueAt time.Time
}

// Connector simulates an external instrument poller. It appends paired
// report/summary artifacts to its own small ledger and keeps an alert
// history for summaries that miss the timeout. Companion arrival is
// cooperative, time-based simulation driven by the tick loop, so stopping
// the loop cancels every scheduled arrival with it.
type Connector struct {
	log *logger.Logger
	cfg Config

	mu      sync.Mutex
	store   *ledger.Store
	rng     *rand.Rand
	now     func() time.Time
	cancel  context.CancelFunc
	stopped bool

	seq            int
	lastArtifactAt time.Time
	pending        []pendingSummary
	alerts         []domain.Alert
	// alertIdx maps a sequence to its alert position; once a sequence is
	// here it never alerts again, resolved or not.
	alertIdx map[string]int
}

func New(log *logger.Logger, cfg Config) *Connector {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 30 * time.Second
	}
	return &Connector{
		log:      log,
		cfg:      cfg,
		store:    ledger.NewStore(log),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		now:      time.Now,
		alertIdx: map[string]int{},
	}
}

// SetClock overrides the wall clock; tests drive Tick with a fake clock.
func (c *Connector) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Start runs the tick loop until the context ends or Stop is called.
func (c *Connector) Start(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil || c.stopped {
		c.mu.Unlock()
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(c.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Tick()
			}
		}
	}()
	if c.log != nil {
		c.log.Info("connector started", "interface", c.cfg.InterfaceID, "tick", c.cfg.TickInterval)
	}
}

// Stop halts the loop. No scheduled companion arrival fires afterwards.
func (c *Connector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.pending = nil
}

// Tick performs one poll cycle: deliver due summaries, produce a report if
// the last interval saw no artifact, then run the companion check.
func (c *Connector) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	now := c.now().UTC()

	c.deliverDue(now)

	if c.lastArtifactAt.IsZero() || now.Sub(c.lastArtifactAt) >= c.cfg.TickInterval {
		c.produceReport(now)
	}

	c.companionCheck(now)
}

// Records returns detached copies of the connector's local ledger content,
// safe to serialize while the tick loop keeps running.
func (c *Connector) Records() []*domain.DataRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	all := c.store.GetAll()
	out := make([]*domain.DataRecord, len(all))
	for i, r := range all {
		out[i] = r.Clone()
	}
	return out
}

// Alerts returns the full alert history, resolved entries included.
func (c *Connector) Alerts() []domain.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Alert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

func (c *Connector) produceReport(now time.Time) {
	c.seq++
	seq := fmt.Sprintf("SEQ-%04d", c.seq)
	c.append(seq, "pdf", "report", now)
	c.lastArtifactAt = now

	// Summary follows within the window most of the time; the rest stall
	// past the timeout, which is what the companion check is for.
	var delay time.Duration
	if c.rng.Float64() < c.cfg.LateProbability {
		delay = c.cfg.Timeout + c.cfg.CompanionWindow/2 + time.Duration(c.rng.Int63n(int64(c.cfg.CompanionWindow)))
	} else {
		delay = time.Duration(c.rng.Int63n(int64(c.cfg.CompanionWindow))) + time.Second
	}
	c.pending = append(c.pending, pendingSummary{seq: seq, dueAt: now.Add(delay)})
	if c.log != nil {
		c.log.Debug("report produced", "sequence", seq, "summary_due", now.Add(delay))
	}
}

func (c *Connector) deliverDue(now time.Time) {
	var remaining []pendingSummary
	for _, p := range c.pending {
		if p.dueAt.After(now) {
			remaining = append(remaining, p)
			continue
		}
		c.append(p.seq, "csv", "summary", now)
		c.lastArtifactAt = now
		c.resolve(p.seq, now)
	}
	c.pending = remaining
}

func (c *Connector) companionCheck(now time.Time) {
	summaries := map[string]bool{}
	var reports []*domain.DataRecord
	for _, r := range c.store.GetAll() {
		switch r.Labels["file_type"] {
		case "csv":
			summaries[r.Labels["sequence"]] = true
		case "pdf":
			reports = append(reports, r)
		}
	}
	for _, rep := range reports {
		seq := rep.Labels["sequence"]
		if summaries[seq] {
			continue
		}
		if now.Sub(rep.MeasuredAt) <= c.cfg.Timeout {
			continue
		}
		if _, already := c.alertIdx[seq]; already {
			continue
		}
		c.alerts = append(c.alerts, domain.Alert{
			ID:                uuid.NewString(),
			Severity:          domain.SeverityWarning,
			Type:              domain.AlertMissingCompanion,
			Message:           fmt.Sprintf("summary for %s overdue past %s", seq, c.cfg.Timeout),
			InterfaceID:       c.cfg.InterfaceID,
			CreatedAt:         now,
			AffectedRecordIDs: []string{rep.RecordID},
		})
		c.alertIdx[seq] = len(c.alerts) - 1
		if c.log != nil {
			c.log.Warn("companion timeout", "sequence", seq)
		}
	}
}

// resolve marks the open alert for a sequence as resolved. The alert stays
// in the history and is never re-opened.
func (c *Connector) resolve(seq string, now time.Time) {
	idx, ok := c.alertIdx[seq]
	if !ok || c.alerts[idx].Resolved {
		return
	}
	c.alerts[idx].Resolved = true
	if c.log != nil {
		c.log.Info("companion arrived late, alert resolved", "sequence", seq, "at", now)
	}
}

func (c *Connector) append(seq, fileType, kind string, now time.Time) {
	rawRef := fmt.Sprintf("conn|%s|%s|%s", c.cfg.InterfaceID, seq, fileType)
	c.store.Ingest([]*domain.DataRecord{{
		MeasuredAt:     now,
		IngestedAt:     now,
		InterfaceID:    c.cfg.InterfaceID,
		DataType:       domain.DataTypeFile,
		Summary:        fmt.Sprintf("HPLC %s %s (%s)", kind, seq, fileType),
		RawRef:         rawRef,
		AttributableTo: c.cfg.InterfaceID,
		EntryMode:      domain.EntryModeAuto,
		Labels: map[string]string{
			"file_type": fileType,
			"sequence":  seq,
		},
		CompletenessScore: 100,
	}})
}
