package pipeline

import (
	"fmt"
	"testing"

	"github.com/meridianbio/batchsight-backend/internal/catalog"
	"github.com/meridianbio/batchsight-backend/internal/domain"
	"github.com/meridianbio/batchsight-backend/internal/ingestion/generator"
	"github.com/meridianbio/batchsight-backend/internal/labels"
	"github.com/meridianbio/batchsight-backend/internal/ledger"
	"github.com/meridianbio/batchsight-backend/internal/platform/logger"
)

func testPipeline(t *testing.T) (*Pipeline, *ledger.Store, *catalog.Catalog) {
	t.Helper()
	log := logger.NewNop()
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	labelEng, err := labels.NewEngine(log)
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}
	store := ledger.NewStore(log)
	store.ScoreFn = labelEng.Score
	p := New(log, cat, generator.New(), labelEng, store, DefaultConfig())
	return p, store, cat
}

func TestRefreshIsIdempotent(t *testing.T) {
	t.Parallel()
	p, _, _ := testPipeline(t)

	first, err := p.Refresh()
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if first.NewlyAdded == 0 {
		t.Fatal("first refresh added nothing")
	}
	if first.NewlyAdded != first.Total {
		t.Fatalf("first refresh: added=%d total=%d, want equal", first.NewlyAdded, first.Total)
	}

	second, err := p.Refresh()
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.NewlyAdded != 0 {
		t.Fatalf("second refresh added %d records", second.NewlyAdded)
	}
	if second.Total != first.Total {
		t.Fatalf("ledger size moved: %d -> %d", first.Total, second.Total)
	}
}

func TestRangeFlagsMatchCatalog(t *testing.T) {
	t.Parallel()
	p, store, cat := testPipeline(t)
	if _, err := p.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	checked := 0
	for _, r := range store.GetAll() {
		param, ok := cat.ParameterByCode(r.Labels["parameter"])
		if !ok {
			continue
		}
		checked++
		in := r.QualityFlags.Has(domain.FlagInSpec)
		out := r.QualityFlags.Has(domain.FlagOutOfRange)
		if in == out {
			t.Fatalf("record %s carries in=%v out=%v for %s", r.RecordID, in, out, param.Code)
		}
	}
	if checked == 0 {
		t.Fatal("no probe records checked")
	}
}

func TestDropoutWindowLeavesGap(t *testing.T) {
	t.Parallel()
	p, store, _ := testPipeline(t)
	if _, err := p.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	present := map[string]bool{}
	for _, r := range store.FilterByRun("R-456") {
		present[r.RawRef] = true
	}
	for h := 30; h <= 36; h++ {
		ref := fmt.Sprintf("ts|BR-003-p|R-456|do|h%03d", h)
		if present[ref] {
			t.Fatalf("dropout window sample present: %s", ref)
		}
	}
	// The hours around the window are untouched.
	for _, h := range []int{29, 37} {
		ref := fmt.Sprintf("ts|BR-003-p|R-456|do|h%03d", h)
		if !present[ref] {
			t.Fatalf("sample outside dropout window missing: %s", ref)
		}
	}
}

func TestEventRouting(t *testing.T) {
	t.Parallel()
	p, store, _ := testPipeline(t)
	if _, err := p.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	dosing, other := 0, 0
	for _, r := range store.GetAll() {
		if r.DataType != domain.DataTypeEvent {
			continue
		}
		if domain.EventType(r.Labels["event_type"]).DosingEvent() {
			dosing++
			if r.InterfaceID != "PMP-SKID-01" {
				t.Fatalf("dosing event on %s, want pump module: %s", r.InterfaceID, r.Summary)
			}
		} else {
			other++
			if r.InterfaceID == "PMP-SKID-01" {
				t.Fatalf("non-dosing event on pump module: %s", r.Summary)
			}
		}
	}
	if dosing == 0 || other == 0 {
		t.Fatalf("event mix too thin: dosing=%d other=%d", dosing, other)
	}
}

func TestManualDosingWithoutAmountIsFlagged(t *testing.T) {
	t.Parallel()
	p, store, _ := testPipeline(t)
	if _, err := p.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	flagged := 0
	for _, r := range store.GetAll() {
		if r.DataType != domain.DataTypeEvent || !r.QualityFlags.Has(domain.FlagMissingField) {
			continue
		}
		flagged++
		if _, ok := r.Labels["amount"]; ok {
			t.Fatalf("record flagged missing_field but has amount: %s", r.Summary)
		}
	}
	if flagged == 0 {
		t.Fatal("no missing_field events; the seeded log should produce some")
	}
}

func TestManualEntriesCarryFlagsAndLag(t *testing.T) {
	t.Parallel()
	p, store, _ := testPipeline(t)
	if _, err := p.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	manual := 0
	for _, r := range store.GetAll() {
		if r.EntryMode != domain.EntryModeManual {
			continue
		}
		manual++
		if !r.QualityFlags.Has(domain.FlagManuallyEntered) {
			t.Fatalf("manual record without flag: %s", r.Summary)
		}
		// The operator typing lag exceeds the late threshold.
		if !r.QualityFlags.Has(domain.FlagLateIngestion) {
			t.Fatalf("manual record not late: %s", r.Summary)
		}
	}
	if manual == 0 {
		t.Fatal("no manual records ingested")
	}
}

func TestChromatographyLeavesOneOrphanReport(t *testing.T) {
	t.Parallel()
	p, store, _ := testPipeline(t)
	if _, err := p.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	csv := map[string]bool{}
	var pdfSeqs []string
	for _, r := range store.FilterByInterface("HPLC-02") {
		switch r.Labels["file_type"] {
		case "csv":
			csv[r.Labels["sequence"]] = true
		case "pdf":
			pdfSeqs = append(pdfSeqs, r.Labels["sequence"])
		}
	}
	orphans := 0
	for _, seq := range pdfSeqs {
		if !csv[seq] {
			orphans++
		}
	}
	if orphans != 1 {
		t.Fatalf("orphan report count: got=%d want=1", orphans)
	}
}
