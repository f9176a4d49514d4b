package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/meridianbio/batchsight-backend/internal/domain"
	"github.com/meridianbio/batchsight-backend/internal/platform/logger"
)

// Store is the append-only data record ledger. Records are deduplicated on
// RawRef at merge time: re-ingesting a source that produces the same RawRef
// is a silent no-op, which is what makes the full ingestion pass idempotent.
//
// Records are never removed. Corrections append linked records instead of
// mutating originals; the only permitted mutations on an existing record are
// its labels, completeness score and quality flags.
//
// The store itself is single-threaded by design; callers that serve it to
// concurrent readers (the HTTP facade) do their own guarding.
type Store struct {
	log *logger.Logger
	now func() time.Time

	// ScoreFn recomputes a record's completeness score. Wired to the label
	// engine at startup; nil means "no template system" and scores default
	// to 100.
	ScoreFn func(*domain.DataRecord) int

	records  []*domain.DataRecord
	byRawRef map[string]*domain.DataRecord
	byID     map[string]*domain.DataRecord
	revision uint64
}

func NewStore(log *logger.Logger) *Store {
	return &Store{
		log:      log,
		now:      time.Now,
		byRawRef: make(map[string]*domain.DataRecord),
		byID:     make(map[string]*domain.DataRecord),
	}
}

// SetClock overrides the wall clock used for correction authoring; tests use
// this to keep correction timestamps deterministic.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Revision increases on every mutation. Downstream caches (alerts, insights)
// key on it to decide when to recompute.
func (s *Store) Revision() uint64 {
	return s.revision
}

// MarkLabelsChanged bumps the revision after an in-place label amendment.
func (s *Store) MarkLabelsChanged() {
	s.revision++
}

// Ingest merges a batch using RawRef as the idempotency key. Records whose
// RawRef already exists in the ledger are dropped without error; the result
// reports how many were genuinely new.
func (s *Store) Ingest(batch []*domain.DataRecord) domain.IngestResult {
	added := 0
	for _, r := range batch {
		if r == nil || r.RawRef == "" {
			continue
		}
		if _, exists := s.byRawRef[r.RawRef]; exists {
			continue
		}
		if r.RecordID == "" {
			r.RecordID = domain.NewRecordID(r.RawRef)
		}
		if r.Hash == "" {
			r.Hash = domain.Fingerprint(r.RawRef)
		}
		if r.Labels == nil {
			r.Labels = map[string]string{}
		}
		s.records = append(s.records, r)
		s.byRawRef[r.RawRef] = r
		s.byID[r.RecordID] = r
		added++
	}
	if added > 0 {
		s.sortRecords()
		s.revision++
	}
	if s.log != nil {
		s.log.Debug("ledger ingest", "batch", len(batch), "newly_added", added, "total", len(s.records))
	}
	return domain.IngestResult{Total: len(s.records), NewlyAdded: added}
}

// GetAll returns the full record set sorted ascending by measurement time.
func (s *Store) GetAll() []*domain.DataRecord {
	out := make([]*domain.DataRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) GetByID(id string) (*domain.DataRecord, bool) {
	r, ok := s.byID[id]
	return r, ok
}

func (s *Store) Len() int {
	return len(s.records)
}

// CreateCorrection appends a correction record linked to the original and
// flags the original as corrected. Returns nil when the original does not
// exist; callers must check. The original record is otherwise untouched.
func (s *Store) CreateCorrection(originalID, newSummary, actor string) *domain.DataRecord {
	orig, ok := s.byID[originalID]
	if !ok {
		if s.log != nil {
			s.log.Warn("correction against unknown record", "record_id", originalID)
		}
		return nil
	}
	seq := len(s.correctionsFor(originalID)) + 1
	rawRef := fmt.Sprintf("correction::%s::%d", originalID, seq)

	labels := make(map[string]string, len(orig.Labels)+1)
	for k, v := range orig.Labels {
		labels[k] = v
	}
	labels["correction_of"] = originalID

	now := s.now().UTC()
	corr := &domain.DataRecord{
		RecordID:         domain.NewRecordID(rawRef),
		MeasuredAt:       now,
		IngestedAt:       now,
		InterfaceID:      orig.InterfaceID,
		DataType:         domain.DataTypeCorrection,
		Summary:          newSummary,
		RawRef:           rawRef,
		Hash:             domain.Fingerprint(rawRef),
		AttributableTo:   actor,
		EntryMode:        domain.EntryModeManual,
		Labels:           labels,
		QualityFlags:     domain.FlagSet{domain.FlagManuallyEntered},
		LinkedRunID:      orig.LinkedRunID,
		CorrectsRecordID: originalID,
	}
	if s.ScoreFn != nil {
		corr.CompletenessScore = s.ScoreFn(corr)
	} else {
		corr.CompletenessScore = 100
	}

	s.records = append(s.records, corr)
	s.byRawRef[corr.RawRef] = corr
	s.byID[corr.RecordID] = corr
	s.sortRecords()

	// The one permitted flag-set mutation on an otherwise-immutable record.
	orig.QualityFlags.Add(domain.FlagCorrected)
	s.revision++

	if s.log != nil {
		s.log.Info("correction appended", "original_id", originalID, "correction_id", corr.RecordID, "actor", actor)
	}
	return corr
}

// GetCorrectionsFor returns every correction record linked to the given id.
func (s *Store) GetCorrectionsFor(id string) []*domain.DataRecord {
	return s.correctionsFor(id)
}

func (s *Store) correctionsFor(id string) []*domain.DataRecord {
	var out []*domain.DataRecord
	for _, r := range s.records {
		if r.CorrectsRecordID == id {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) sortRecords() {
	sort.SliceStable(s.records, func(i, j int) bool {
		a, b := s.records[i], s.records[j]
		if !a.MeasuredAt.Equal(b.MeasuredAt) {
			return a.MeasuredAt.Before(b.MeasuredAt)
		}
		return a.RecordID < b.RecordID
	})
}
