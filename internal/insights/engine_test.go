package insights

import (
	"testing"
	"time"

	"github.com/meridianbio/batchsight-backend/internal/domain"
	"github.com/meridianbio/batchsight-backend/internal/labels"
	"github.com/meridianbio/batchsight-backend/internal/platform/logger"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	log := logger.NewNop()
	labelEng, err := labels.NewEngine(log)
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}
	e, err := NewEngine(log, labelEng)
	if err != nil {
		t.Fatalf("load recipes: %v", err)
	}
	e.SetClock(func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})
	return e
}

func TestRecipesLoadEnabled(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	recipes := e.Recipes()
	if len(recipes) != 5 {
		t.Fatalf("recipe count: got=%d want=5", len(recipes))
	}
	for _, r := range recipes {
		if !r.Enabled {
			t.Fatalf("recipe %s not enabled by default", r.ID)
		}
	}
}

func TestAllClearInsightOnlyWhenNoAlerts(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	out := e.Generate(nil, nil)
	if len(out) != 1 {
		t.Fatalf("all-clear output: got=%d insights, want 1", len(out))
	}
	if out[0].Severity != domain.SeveritySuccess {
		t.Fatalf("all-clear severity: got=%q want=success", out[0].Severity)
	}

	alert := domain.Alert{
		Type:        domain.AlertTimestampGap,
		Severity:    domain.SeverityWarning,
		InterfaceID: "BR-003-p",
	}
	out = e.Generate(nil, []domain.Alert{alert})
	for _, ins := range out {
		if ins.Severity == domain.SeveritySuccess {
			t.Fatal("all-clear insight emitted despite open alerts")
		}
	}
}

func TestAllClearSurvivesDisabledRecipes(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	for _, r := range e.Recipes() {
		e.ToggleRecipe(r.ID)
	}

	out := e.Generate(nil, nil)
	if len(out) != 1 || out[0].Severity != domain.SeveritySuccess {
		t.Fatalf("all-clear with recipes off: got=%+v", out)
	}
}

func TestToggleRecipe(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	if e.Revision() != 0 {
		t.Fatalf("fresh revision: got=%d want=0", e.Revision())
	}
	enabled, known := e.ToggleRecipe("artifact-pairing")
	if !known {
		t.Fatal("toggle off reported the recipe as unknown")
	}
	if enabled {
		t.Fatal("toggle off returned enabled=true")
	}
	if e.Revision() != 1 {
		t.Fatalf("revision after toggle: got=%d want=1", e.Revision())
	}
	enabled, known = e.ToggleRecipe("artifact-pairing")
	if !known {
		t.Fatal("toggle back on reported the recipe as unknown")
	}
	if !enabled {
		t.Fatal("toggle back on returned enabled=false")
	}

	if enabled, known := e.ToggleRecipe("no-such-recipe"); known || enabled {
		t.Fatalf("unknown recipe toggle: got enabled=%t known=%t want both false", enabled, known)
	}
	if e.Revision() != 2 {
		t.Fatalf("unknown toggle bumped revision: got=%d want=2", e.Revision())
	}
}

func TestDisabledRecipeProducesNothing(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	e.ToggleRecipe("coverage-continuity")

	alert := domain.Alert{
		Type:              domain.AlertTimestampGap,
		Severity:          domain.SeverityWarning,
		InterfaceID:       "BR-003-p",
		AffectedRecordIDs: []string{"rec-a", "rec-b"},
	}
	for _, ins := range e.Generate(nil, []domain.Alert{alert}) {
		if ins.RecipeID == "coverage-continuity" {
			t.Fatal("disabled recipe still generated an insight")
		}
	}
}

func TestExcursionReviewTakesWorstSeverity(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	alerts := []domain.Alert{
		{
			Type: domain.AlertOutOfRangeCluster, Severity: domain.SeverityWarning,
			InterfaceID: "BR-001-p", LinkedRunID: "R-123",
			AffectedRecordIDs: []string{"rec-1"},
		},
		{
			Type: domain.AlertOutOfRangeCluster, Severity: domain.SeverityCritical,
			InterfaceID: "BR-003-p", LinkedRunID: "R-456",
			AffectedRecordIDs: []string{"rec-2"},
		},
	}
	var found *domain.Insight
	for _, ins := range e.Generate(nil, alerts) {
		if ins.RecipeID == "excursion-review" {
			ins := ins
			found = &ins
		}
	}
	if found == nil {
		t.Fatal("excursion-review produced nothing")
	}
	if found.Severity != domain.SeverityCritical {
		t.Fatalf("insight severity: got=%q want=critical", found.Severity)
	}
	if len(found.EvidenceIDs) != 2 {
		t.Fatalf("evidence count: got=%d want=2", len(found.EvidenceIDs))
	}
}

func TestAppliesToFiltersByInterface(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	// artifact-pairing only looks at HPLC-* interfaces; a companion alert
	// elsewhere is someone else's problem.
	alert := domain.Alert{
		Type:        domain.AlertMissingCompanion,
		Severity:    domain.SeverityWarning,
		InterfaceID: "GMX-01",
	}
	for _, ins := range e.Generate(nil, []domain.Alert{alert}) {
		if ins.RecipeID == "artifact-pairing" {
			t.Fatal("artifact-pairing matched a non-HPLC interface")
		}
	}
}

func TestMetadataHygieneThreshold(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	mk := func(id string, score int) *domain.DataRecord {
		return &domain.DataRecord{
			RecordID:          id,
			InterfaceID:       "PMP-SKID-01",
			DataType:          domain.DataTypeEvent,
			CompletenessScore: score,
		}
	}
	// Average 75, under the 90 bar.
	records := []*domain.DataRecord{mk("rec-1", 50), mk("rec-2", 100)}
	alert := domain.Alert{Type: domain.AlertMissingMetadata, Severity: domain.SeverityInfo, InterfaceID: "PMP-SKID-01"}

	found := false
	for _, ins := range e.Generate(records, []domain.Alert{alert}) {
		if ins.RecipeID == "metadata-hygiene" {
			found = true
		}
	}
	if !found {
		t.Fatal("metadata-hygiene silent below threshold")
	}

	// All complete: nothing to say.
	records = []*domain.DataRecord{mk("rec-1", 100), mk("rec-2", 95)}
	for _, ins := range e.Generate(records, []domain.Alert{alert}) {
		if ins.RecipeID == "metadata-hygiene" {
			t.Fatal("metadata-hygiene fired above threshold")
		}
	}
}

func TestInsightsSortedBySeverity(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	records := []*domain.DataRecord{
		{
			RecordID:     "rec-manual",
			InterfaceID:  "BR-003",
			DataType:     domain.DataTypeEvent,
			QualityFlags: domain.FlagSet{domain.FlagManuallyEntered, domain.FlagMissingField},
		},
	}
	alerts := []domain.Alert{
		{
			Type: domain.AlertOutOfRangeCluster, Severity: domain.SeverityCritical,
			InterfaceID: "BR-003-p", LinkedRunID: "R-456", AffectedRecordIDs: []string{"rec-x"},
		},
		{
			Type: domain.AlertTimestampGap, Severity: domain.SeverityWarning,
			InterfaceID: "BR-003-p", AffectedRecordIDs: []string{"rec-y", "rec-z"},
		},
	}
	out := e.Generate(records, alerts)
	if len(out) < 3 {
		t.Fatalf("insight count: got=%d want>=3", len(out))
	}
	for i := 1; i < len(out); i++ {
		if domain.SeverityRank(out[i].Severity) < domain.SeverityRank(out[i-1].Severity) {
			t.Fatalf("insights out of severity order at index %d", i)
		}
	}
}
