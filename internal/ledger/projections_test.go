package ledger

import (
	"testing"
	"time"

	"github.com/meridianbio/batchsight-backend/internal/domain"
	"github.com/meridianbio/batchsight-backend/internal/platform/logger"
)

func seededStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(logger.NewNop())
	base := time.Date(2025, 5, 5, 8, 0, 0, 0, time.UTC)

	a := makeRecord("ts|BR-001-p|R-123|ph|h000", base)
	a.QualityFlags.Add(domain.FlagOutOfRange)

	b := makeRecord("ts|BR-003-p|R-456|do|h000", base)
	b.InterfaceID = "BR-003-p"
	b.LinkedRunID = "R-456"

	c := makeRecord("evt|R-123|feed|glucose_bolus|1746453600", base.Add(time.Hour))
	c.InterfaceID = "PMP-SKID-01"
	c.DataType = domain.DataTypeEvent

	s.Ingest([]*domain.DataRecord{a, b, c})
	return s
}

func TestFilterByInterface(t *testing.T) {
	t.Parallel()
	s := seededStore(t)
	got := s.FilterByInterface("BR-003-p")
	if len(got) != 1 || got[0].LinkedRunID != "R-456" {
		t.Fatalf("unexpected filter result: %+v", got)
	}
}

func TestFilterByRun(t *testing.T) {
	t.Parallel()
	s := seededStore(t)
	if got := s.FilterByRun("R-123"); len(got) != 2 {
		t.Fatalf("run filter: got=%d want=2", len(got))
	}
}

func TestFilterOutOfRange(t *testing.T) {
	t.Parallel()
	s := seededStore(t)
	got := s.FilterOutOfRange()
	if len(got) != 1 || !got[0].QualityFlags.Has(domain.FlagOutOfRange) {
		t.Fatalf("unexpected out-of-range set: %+v", got)
	}
}

func TestCounts(t *testing.T) {
	t.Parallel()
	s := seededStore(t)

	byIface := s.CountsByInterface()
	if byIface["BR-001-p"] != 1 || byIface["BR-003-p"] != 1 || byIface["PMP-SKID-01"] != 1 {
		t.Fatalf("unexpected interface counts: %v", byIface)
	}

	byType := s.CountsByType()
	if byType[domain.DataTypeTimeseries] != 2 || byType[domain.DataTypeEvent] != 1 {
		t.Fatalf("unexpected type counts: %v", byType)
	}
}
