package services

import (
	"fmt"
	"sort"
	"sync"

	"github.com/meridianbio/batchsight-backend/internal/alerts"
	"github.com/meridianbio/batchsight-backend/internal/catalog"
	"github.com/meridianbio/batchsight-backend/internal/domain"
	"github.com/meridianbio/batchsight-backend/internal/ingestion/pipeline"
	"github.com/meridianbio/batchsight-backend/internal/insights"
	"github.com/meridianbio/batchsight-backend/internal/labels"
	"github.com/meridianbio/batchsight-backend/internal/ledger"
	"github.com/meridianbio/batchsight-backend/internal/pkg/errors"
	"github.com/meridianbio/batchsight-backend/internal/platform/logger"
	"github.com/meridianbio/batchsight-backend/internal/poller"
)

// RecordFilter narrows a record listing. Zero value means everything.
type RecordFilter struct {
	InterfaceID string
	RunID       string
	DataType    string
	FlaggedOnly bool
}

// CompletenessSummary aggregates metadata quality per interface.
type CompletenessSummary struct {
	InterfaceID  string `json:"interface_id"`
	RecordCount  int    `json:"record_count"`
	AverageScore int    `json:"average_score"`
	FullyLabeled int    `json:"fully_labeled"`
}

// QualityService fronts the ledger and both engines for the HTTP layer. The
// underlying store and engines are single-threaded; the service serializes
// all access behind one RWMutex and keeps alert/insight results cached until
// a revision bump invalidates them. Record reads hand out detached copies so
// handlers can serialize them after the lock is released.
type QualityService struct {
	log      *logger.Logger
	cat      *catalog.Catalog
	labelEng *labels.Engine
	store    *ledger.Store
	pipe     *pipeline.Pipeline
	alertEng *alerts.Engine
	insEng   *insights.Engine
	conn     *poller.Connector

	mu sync.RWMutex

	cachedAlerts []domain.Alert
	alertsRev    uint64
	alertsOK     bool

	cachedInsights  []domain.Insight
	insightsRev     uint64
	insightsRecipes uint64
	insightsOK      bool
}

func NewQualityService(
	log *logger.Logger,
	cat *catalog.Catalog,
	labelEng *labels.Engine,
	store *ledger.Store,
	pipe *pipeline.Pipeline,
	alertEng *alerts.Engine,
	insEng *insights.Engine,
	conn *poller.Connector,
) *QualityService {
	return &QualityService{
		log:      log,
		cat:      cat,
		labelEng: labelEng,
		store:    store,
		pipe:     pipe,
		alertEng: alertEng,
		insEng:   insEng,
		conn:     conn,
	}
}

// Refresh re-runs the full ingestion pass. Safe to call repeatedly; the
// ledger's RawRef dedup makes it idempotent.
func (s *QualityService) Refresh() (domain.IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipe.Refresh()
}

func (s *QualityService) Records(f RecordFilter) []*domain.DataRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.DataRecord
	for _, r := range s.store.GetAll() {
		if f.InterfaceID != "" && r.InterfaceID != f.InterfaceID {
			continue
		}
		if f.RunID != "" && r.LinkedRunID != f.RunID {
			continue
		}
		if f.DataType != "" && string(r.DataType) != f.DataType {
			continue
		}
		if f.FlaggedOnly && !r.QualityFlags.Has(domain.FlagOutOfRange) && !r.QualityFlags.Has(domain.FlagMissingField) {
			continue
		}
		out = append(out, r.Clone())
	}
	return out
}

func (s *QualityService) RecordByID(id string) (*domain.DataRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.store.GetByID(id)
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, errors.ErrNotFound)
	}
	return r.Clone(), nil
}

func (s *QualityService) RecordCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Len()
}

func (s *QualityService) CountsByInterface() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.CountsByInterface()
}

func (s *QualityService) CountsByType() map[domain.DataType]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.CountsByType()
}

// ApplyLabels amends a record's labels in place and recomputes its score.
func (s *QualityService) ApplyLabels(recordID string, newLabels map[string]string) (*domain.DataRecord, error) {
	if len(newLabels) == 0 {
		return nil, fmt.Errorf("empty label set: %w", errors.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.store.GetByID(recordID)
	if !ok {
		return nil, fmt.Errorf("record %s: %w", recordID, errors.ErrNotFound)
	}
	s.labelEng.ApplyLabels(r, newLabels)
	s.store.MarkLabelsChanged()
	return r.Clone(), nil
}

// BulkApplyLabels amends every record on an interface. Returns how many
// records the amendment was attempted on.
func (s *QualityService) BulkApplyLabels(interfaceID string, newLabels map[string]string) (int, error) {
	if len(newLabels) == 0 {
		return 0, fmt.Errorf("empty label set: %w", errors.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := s.store.FilterByInterface(interfaceID)
	n := s.labelEng.BulkApplyLabels(matched, newLabels)
	if n > 0 {
		s.store.MarkLabelsChanged()
	}
	return n, nil
}

func (s *QualityService) CreateCorrection(originalID, newSummary, actor string) (*domain.DataRecord, error) {
	if newSummary == "" || actor == "" {
		return nil, fmt.Errorf("correction needs a summary and an actor: %w", errors.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	corr := s.store.CreateCorrection(originalID, newSummary, actor)
	if corr == nil {
		return nil, fmt.Errorf("record %s: %w", originalID, errors.ErrNotFound)
	}
	return corr.Clone(), nil
}

func (s *QualityService) CorrectionsFor(recordID string) ([]*domain.DataRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.store.GetByID(recordID); !ok {
		return nil, fmt.Errorf("record %s: %w", recordID, errors.ErrNotFound)
	}
	corrs := s.store.GetCorrectionsFor(recordID)
	out := make([]*domain.DataRecord, len(corrs))
	for i, r := range corrs {
		out[i] = r.Clone()
	}
	return out, nil
}

// Alerts evaluates all rules over the current ledger. The result is cached
// against the ledger revision, so repeated reads between mutations are free.
func (s *QualityService) Alerts() []domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alertsLocked()
}

func (s *QualityService) alertsLocked() []domain.Alert {
	rev := s.store.Revision()
	if !s.alertsOK || rev != s.alertsRev {
		s.cachedAlerts = s.alertEng.Evaluate(s.store.GetAll())
		s.alertsRev = rev
		s.alertsOK = true
	}
	return s.cachedAlerts
}

// AlertCounts returns alert totals keyed by severity.
func (s *QualityService) AlertCounts() map[domain.Severity]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[domain.Severity]int{}
	for _, a := range s.alertsLocked() {
		counts[a.Severity]++
	}
	return counts
}

// Insights runs every enabled recipe. Cached until either the ledger or the
// recipe toggle state changes.
func (s *QualityService) Insights() []domain.Insight {
	s.mu.Lock()
	defer s.mu.Unlock()
	ledgerRev := s.store.Revision()
	recipeRev := s.insEng.Revision()
	if !s.insightsOK || ledgerRev != s.insightsRev || recipeRev != s.insightsRecipes {
		s.cachedInsights = s.insEng.Generate(s.store.GetAll(), s.alertsLocked())
		s.insightsRev = ledgerRev
		s.insightsRecipes = recipeRev
		s.insightsOK = true
	}
	return s.cachedInsights
}

func (s *QualityService) Recipes() []domain.Recipe {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.insEng.Recipes()
}

func (s *QualityService) ToggleRecipe(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, known := s.insEng.ToggleRecipe(id); !known {
		return fmt.Errorf("recipe %s: %w", id, errors.ErrNotFound)
	}
	return nil
}

// Completeness reports per-interface metadata quality, sorted by interface.
func (s *QualityService) Completeness() []CompletenessSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type agg struct {
		count, total, full int
	}
	byIface := map[string]*agg{}
	for _, r := range s.store.GetAll() {
		a := byIface[r.InterfaceID]
		if a == nil {
			a = &agg{}
			byIface[r.InterfaceID] = a
		}
		a.count++
		a.total += r.CompletenessScore
		if r.CompletenessScore == 100 {
			a.full++
		}
	}
	out := make([]CompletenessSummary, 0, len(byIface))
	for id, a := range byIface {
		out = append(out, CompletenessSummary{
			InterfaceID:  id,
			RecordCount:  a.count,
			AverageScore: a.total / a.count,
			FullyLabeled: a.full,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InterfaceID < out[j].InterfaceID })
	return out
}

func (s *QualityService) Interfaces() []domain.Interface {
	return s.cat.Interfaces()
}

func (s *QualityService) Runs() []domain.Run {
	return s.cat.Runs()
}

// ConnectorRecords exposes the poller's local ledger.
func (s *QualityService) ConnectorRecords() []*domain.DataRecord {
	if s.conn == nil {
		return nil
	}
	return s.conn.Records()
}

// ConnectorAlerts exposes the poller's alert history, resolved included.
func (s *QualityService) ConnectorAlerts() []domain.Alert {
	if s.conn == nil {
		return nil
	}
	return s.conn.Alerts()
}
