package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type DataType string

const (
	DataTypeTimeseries DataType = "timeseries"
	DataTypeEvent      DataType = "event"
	DataTypeFile       DataType = "file"
	DataTypeCorrection DataType = "correction"
)

type EntryMode string

const (
	EntryModeAuto    EntryMode = "auto"
	EntryModeManual  EntryMode = "manual"
	EntryModeDerived EntryMode = "derived"
)

type QualityFlag string

const (
	FlagInSpec           QualityFlag = "in_spec"
	FlagOutOfRange       QualityFlag = "out_of_range"
	FlagMissingField     QualityFlag = "missing_field"
	FlagLateIngestion    QualityFlag = "late_ingestion"
	FlagManuallyEntered  QualityFlag = "manually_entered"
	FlagCorrected        QualityFlag = "corrected"
	FlagFlaggedForReview QualityFlag = "flagged_for_review"
)

// FlagSet is an ordered set of quality flags. Multiple flags may coexist on
// one record; insertion order is preserved for stable JSON output.
type FlagSet []QualityFlag

func (s FlagSet) Has(f QualityFlag) bool {
	for _, v := range s {
		if v == f {
			return true
		}
	}
	return false
}

func (s *FlagSet) Add(f QualityFlag) {
	if !s.Has(f) {
		*s = append(*s, f)
	}
}

// DataRecord is the ledger's atomic unit. Apart from Labels,
// CompletenessScore and QualityFlags, a record never changes after it is
// appended; corrections are linked records, not edits.
type DataRecord struct {
	RecordID   string    `json:"record_id"`
	MeasuredAt time.Time `json:"measured_at"`
	IngestedAt time.Time `json:"ingested_at"`

	InterfaceID string   `json:"interface_id"`
	DataType    DataType `json:"data_type"`
	Summary     string   `json:"summary"`

	// RawRef is the deduplication key: globally unique across the ledger,
	// deterministic for a given source observation.
	RawRef string `json:"raw_ref"`
	Hash   string `json:"hash"`

	AttributableTo string    `json:"attributable_to"`
	EntryMode      EntryMode `json:"entry_mode"`

	Labels            map[string]string `json:"labels"`
	CompletenessScore int               `json:"completeness_score"`
	QualityFlags      FlagSet           `json:"quality_flags"`

	LinkedRunID      string `json:"linked_run_id,omitempty"`
	CorrectsRecordID string `json:"corrects_record_id,omitempty"`
}

// Clone returns a detached copy of the record. Labels and QualityFlags are
// the only fields that mutate after append, so they get fresh backing; the
// copy can be read or serialized without holding the owner's lock.
func (r *DataRecord) Clone() *DataRecord {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Labels != nil {
		cp.Labels = make(map[string]string, len(r.Labels))
		for k, v := range r.Labels {
			cp.Labels[k] = v
		}
	}
	cp.QualityFlags = append(FlagSet(nil), r.QualityFlags...)
	return &cp
}

// NewRecordID derives the record identifier from the raw reference, so the
// same source observation always maps to the same id.
func NewRecordID(rawRef string) string {
	return "rec-" + fingerprint(rawRef)[:16]
}

// Fingerprint is the display-only integrity hash shown next to a record. It
// is a deterministic function of identity, nothing more.
func Fingerprint(rawRef string) string {
	return fingerprint(rawRef)[:12]
}

func fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

type IngestResult struct {
	Total      int `json:"total"`
	NewlyAdded int `json:"newly_added"`
}
