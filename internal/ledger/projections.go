package ledger

import "github.com/meridianbio/batchsight-backend/internal/domain"

// Read projections over the sorted record list, consumed by the dashboard
// collaborator. All of them are pure; none mutates ledger state.

func (s *Store) FilterByInterface(interfaceID string) []*domain.DataRecord {
	var out []*domain.DataRecord
	for _, r := range s.records {
		if r.InterfaceID == interfaceID {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) FilterByRun(runID string) []*domain.DataRecord {
	var out []*domain.DataRecord
	for _, r := range s.records {
		if r.LinkedRunID == runID {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) FilterOutOfRange() []*domain.DataRecord {
	var out []*domain.DataRecord
	for _, r := range s.records {
		if r.QualityFlags.Has(domain.FlagOutOfRange) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) CountsByInterface() map[string]int {
	out := make(map[string]int)
	for _, r := range s.records {
		out[r.InterfaceID]++
	}
	return out
}

func (s *Store) CountsByType() map[domain.DataType]int {
	out := make(map[domain.DataType]int)
	for _, r := range s.records {
		out[r.DataType]++
	}
	return out
}
