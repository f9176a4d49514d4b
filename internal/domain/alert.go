package domain

import "time"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
)

// SeverityRank orders severities for sorting: critical first, success last.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	case SeveritySuccess:
		return 3
	default:
		return 4
	}
}

type AlertType string

const (
	AlertOutOfRangeCluster AlertType = "out_of_range_cluster"
	AlertMissingMetadata   AlertType = "missing_metadata"
	AlertTimestampGap      AlertType = "timestamp_gap"
	AlertDuplicateRawRef   AlertType = "duplicate_raw_ref"
	AlertMissingCompanion  AlertType = "missing_companion_file"
)

// Alert is a derived data-quality finding. Alerts are recomputed from ledger
// state on demand and never persisted; AffectedRecordIDs is a bounded sample,
// not the full cluster.
type Alert struct {
	ID          string    `json:"id"`
	Severity    Severity  `json:"severity"`
	Type        AlertType `json:"type"`
	Message     string    `json:"message"`
	InterfaceID string    `json:"interface_id"`
	LinkedRunID string    `json:"linked_run_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	AffectedRecordIDs []string `json:"affected_record_ids"`

	// Resolved is used only by connector alerts, which keep their history
	// instead of being recomputed.
	Resolved bool `json:"resolved,omitempty"`
}
