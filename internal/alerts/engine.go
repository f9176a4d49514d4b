package alerts

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/meridianbio/batchsight-backend/internal/catalog"
	"github.com/meridianbio/batchsight-backend/internal/domain"
	"github.com/meridianbio/batchsight-backend/internal/labels"
	"github.com/meridianbio/batchsight-backend/internal/platform/logger"
)

const (
	// criticalClusterSize is the out-of-range cluster size above which the
	// alert escalates from warning to critical.
	criticalClusterSize = 10
	// gapMultiplier scales the expected sampling interval into the gap
	// threshold.
	gapMultiplier = 3
	// sampleCap bounds the affected-record evidence list on large clusters.
	sampleCap = 20
)

// Engine evaluates the five data-quality rules over a full ledger snapshot.
// It is stateless and re-derivable: callers cache the result and invalidate
// on ledger mutation.
type Engine struct {
	log    *logger.Logger
	cat    *catalog.Catalog
	labels *labels.Engine
	now    func() time.Time

	// ExpectedInterval is the probe sampling granularity the gap rule
	// assumes; defaults to the generator's hourly resolution.
	ExpectedInterval time.Duration
}

func NewEngine(log *logger.Logger, cat *catalog.Catalog, labelEngine *labels.Engine) *Engine {
	return &Engine{
		log:              log,
		cat:              cat,
		labels:           labelEngine,
		now:              time.Now,
		ExpectedInterval: time.Hour,
	}
}

// SetClock fixes alert creation timestamps; tests use this.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Evaluate runs every rule over the snapshot and returns the concatenated
// alerts sorted by severity (critical, warning, info) then recency.
func (e *Engine) Evaluate(records []*domain.DataRecord) []domain.Alert {
	var out []domain.Alert
	out = append(out, e.outOfRangeClusters(records)...)
	out = append(out, e.missingMetadata(records)...)
	out = append(out, e.timestampGaps(records)...)
	out = append(out, e.duplicateRawRefs(records)...)
	out = append(out, e.missingCompanions(records)...)

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := domain.SeverityRank(out[i].Severity), domain.SeverityRank(out[j].Severity)
		if ri != rj {
			return ri < rj
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if e.log != nil {
		e.log.Debug("alert evaluation complete", "records", len(records), "alerts", len(out))
	}
	return out
}

// Rule 1: out-of-range clustering. One alert per (interface, run) group of
// flagged timeseries records; past criticalClusterSize the group escalates.
func (e *Engine) outOfRangeClusters(records []*domain.DataRecord) []domain.Alert {
	type key struct{ iface, run string }
	groups := map[key][]*domain.DataRecord{}
	for _, r := range records {
		if r.DataType == domain.DataTypeTimeseries && r.QualityFlags.Has(domain.FlagOutOfRange) {
			k := key{r.InterfaceID, r.LinkedRunID}
			groups[k] = append(groups[k], r)
		}
	}
	keys := make([]key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].iface != keys[j].iface {
			return keys[i].iface < keys[j].iface
		}
		return keys[i].run < keys[j].run
	})
	var alerts []domain.Alert
	for _, k := range keys {
		members := groups[k]
		severity := domain.SeverityWarning
		if len(members) > criticalClusterSize {
			severity = domain.SeverityCritical
		}
		alerts = append(alerts, domain.Alert{
			ID:                uuid.NewString(),
			Severity:          severity,
			Type:              domain.AlertOutOfRangeCluster,
			Message:           fmt.Sprintf("%d out-of-range readings on %s during run %s", len(members), k.iface, k.run),
			InterfaceID:       k.iface,
			LinkedRunID:       k.run,
			CreatedAt:         e.now().UTC(),
			AffectedRecordIDs: sampleIDs(members),
		})
	}
	return alerts
}

// Rule 2: missing metadata. Records scoring below 100 against a template
// that actually requires fields, grouped per interface.
func (e *Engine) missingMetadata(records []*domain.DataRecord) []domain.Alert {
	groups := map[string][]*domain.DataRecord{}
	for _, r := range records {
		if r.CompletenessScore >= 100 {
			continue
		}
		t := e.labels.Resolve(r)
		if t == nil || len(t.Required) == 0 {
			continue
		}
		groups[r.InterfaceID] = append(groups[r.InterfaceID], r)
	}
	ifaces := make([]string, 0, len(groups))
	for iface := range groups {
		ifaces = append(ifaces, iface)
	}
	sort.Strings(ifaces)
	var alerts []domain.Alert
	for _, iface := range ifaces {
		members := groups[iface]
		alerts = append(alerts, domain.Alert{
			ID:                uuid.NewString(),
			Severity:          domain.SeverityInfo,
			Type:              domain.AlertMissingMetadata,
			Message:           fmt.Sprintf("%d records on %s are missing required metadata", len(members), iface),
			InterfaceID:       iface,
			CreatedAt:         e.now().UTC(),
			AffectedRecordIDs: sampleIDs(members),
		})
	}
	return alerts
}

// Rule 3: timestamp gaps in critical-priority parameter traces. Each
// consecutive-pair delta beyond gapMultiplier times the expected interval is
// its own finding.
func (e *Engine) timestampGaps(records []*domain.DataRecord) []domain.Alert {
	critical := map[string]bool{}
	for _, p := range e.cat.Parameters() {
		if p.Critical {
			critical[p.Code] = true
		}
	}
	type key struct{ run, param string }
	groups := map[key][]*domain.DataRecord{}
	for _, r := range records {
		if r.DataType != domain.DataTypeTimeseries {
			continue
		}
		param := r.Labels["parameter"]
		if !critical[param] {
			continue
		}
		k := key{r.LinkedRunID, param}
		groups[k] = append(groups[k], r)
	}
	threshold := time.Duration(gapMultiplier) * e.ExpectedInterval
	keys := make([]key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].run != keys[j].run {
			return keys[i].run < keys[j].run
		}
		return keys[i].param < keys[j].param
	})
	var alerts []domain.Alert
	for _, k := range keys {
		members := groups[k]
		sort.Slice(members, func(i, j int) bool {
			return members[i].MeasuredAt.Before(members[j].MeasuredAt)
		})
		for i := 1; i < len(members); i++ {
			delta := members[i].MeasuredAt.Sub(members[i-1].MeasuredAt)
			if delta <= threshold {
				continue
			}
			alerts = append(alerts, domain.Alert{
				ID:          uuid.NewString(),
				Severity:    domain.SeverityWarning,
				Type:        domain.AlertTimestampGap,
				Message:     fmt.Sprintf("%.0fh gap in %s trace for run %s", delta.Hours(), k.param, k.run),
				InterfaceID: members[i].InterfaceID,
				LinkedRunID: k.run,
				CreatedAt:   e.now().UTC(),
				AffectedRecordIDs: []string{
					members[i-1].RecordID,
					members[i].RecordID,
				},
			})
		}
	}
	return alerts
}

// Rule 4: duplicate raw_ref. The ledger's merge contract makes this
// structurally impossible; the rule stays as defense in depth, reporting an
// invariant violation as a data-quality finding instead of a crash.
func (e *Engine) duplicateRawRefs(records []*domain.DataRecord) []domain.Alert {
	groups := map[string][]*domain.DataRecord{}
	for _, r := range records {
		groups[r.RawRef] = append(groups[r.RawRef], r)
	}
	refs := make([]string, 0)
	for ref, members := range groups {
		if len(members) > 1 {
			refs = append(refs, ref)
		}
	}
	sort.Strings(refs)
	var alerts []domain.Alert
	for _, ref := range refs {
		members := groups[ref]
		alerts = append(alerts, domain.Alert{
			ID:                uuid.NewString(),
			Severity:          domain.SeverityWarning,
			Type:              domain.AlertDuplicateRawRef,
			Message:           fmt.Sprintf("raw reference %q appears on %d records", ref, len(members)),
			InterfaceID:       members[0].InterfaceID,
			CreatedAt:         e.now().UTC(),
			AffectedRecordIDs: sampleIDs(members),
		})
	}
	return alerts
}

// Rule 5: missing companion files. On the chromatography interfaces every
// PDF report should have a same-sequence CSV summary.
func (e *Engine) missingCompanions(records []*domain.DataRecord) []domain.Alert {
	chromIfaces := map[string]bool{}
	for _, i := range e.cat.InterfacesByKind(domain.InterfaceChromatograph) {
		chromIfaces[i.ID] = true
	}
	csvSeqs := map[string]bool{}
	var pdfs []*domain.DataRecord
	for _, r := range records {
		if r.DataType != domain.DataTypeFile || !chromIfaces[r.InterfaceID] {
			continue
		}
		switch r.Labels["file_type"] {
		case "csv":
			csvSeqs[r.Labels["sequence"]] = true
		case "pdf":
			pdfs = append(pdfs, r)
		}
	}
	var alerts []domain.Alert
	for _, pdf := range pdfs {
		seq := pdf.Labels["sequence"]
		if seq == "" || csvSeqs[seq] {
			continue
		}
		alerts = append(alerts, domain.Alert{
			ID:                uuid.NewString(),
			Severity:          domain.SeverityWarning,
			Type:              domain.AlertMissingCompanion,
			Message:           fmt.Sprintf("report %s has no companion summary export", seq),
			InterfaceID:       pdf.InterfaceID,
			LinkedRunID:       pdf.LinkedRunID,
			CreatedAt:         e.now().UTC(),
			AffectedRecordIDs: []string{pdf.RecordID},
		})
	}
	return alerts
}

func sampleIDs(records []*domain.DataRecord) []string {
	n := len(records)
	if n > sampleCap {
		n = sampleCap
	}
	out := make([]string, 0, n)
	for _, r := range records[:n] {
		out = append(out, r.RecordID)
	}
	return out
}
