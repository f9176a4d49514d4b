package labels

import (
	"testing"

	"github.com/meridianbio/batchsight-backend/internal/domain"
	"github.com/meridianbio/batchsight-backend/internal/platform/logger"
)

func testTemplates() []Template {
	return []Template{
		{
			Name:             "probe-timeseries",
			InterfacePattern: "BR-*",
			DataType:         "timeseries",
			Required:         []string{"parameter", "unit"},
			Optional:         []string{"value"},
		},
		{
			Name:             "pump-event",
			InterfacePattern: "PMP-*",
			DataType:         "event",
			Required:         []string{"pump_channel", "lot_number"},
		},
		{
			Name:             "catch-all",
			InterfacePattern: "*",
			DataType:         "*",
		},
	}
}

func TestMatch(t *testing.T) {
	t.Parallel()
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"*", "anything", true},
		{"BR-*", "BR-001-p", true},
		{"BR-*", "PMP-SKID-01", false},
		{"HPLC-02", "HPLC-02", true},
		{"HPLC-02", "HPLC-01", false},
	}
	for _, tc := range cases {
		if got := Match(tc.pattern, tc.s); got != tc.want {
			t.Fatalf("Match(%q, %q): got=%v want=%v", tc.pattern, tc.s, got, tc.want)
		}
	}
}

func TestResolvePrefersDeclarationOrder(t *testing.T) {
	t.Parallel()
	e := NewEngineWithTemplates(logger.NewNop(), testTemplates())

	r := &domain.DataRecord{InterfaceID: "BR-001-p", DataType: domain.DataTypeTimeseries}
	tmpl := e.Resolve(r)
	if tmpl == nil || tmpl.Name != "probe-timeseries" {
		t.Fatalf("unexpected template: %+v", tmpl)
	}

	// The catch-all matches too, but only when nothing earlier does.
	r = &domain.DataRecord{InterfaceID: "ANL-BGA-01", DataType: domain.DataTypeEvent}
	tmpl = e.Resolve(r)
	if tmpl == nil || tmpl.Name != "catch-all" {
		t.Fatalf("unexpected template: %+v", tmpl)
	}
}

func TestComputeCompleteness(t *testing.T) {
	t.Parallel()
	e := NewEngineWithTemplates(logger.NewNop(), testTemplates())

	r := &domain.DataRecord{
		InterfaceID: "PMP-SKID-01",
		DataType:    domain.DataTypeEvent,
		Labels:      map[string]string{"pump_channel": "pump-a1"},
	}
	c := e.ComputeCompleteness(r)
	if c.Score != 50 {
		t.Fatalf("half-complete score: got=%d want=50", c.Score)
	}
	if len(c.Missing) != 1 || c.Missing[0] != "lot_number" {
		t.Fatalf("unexpected missing set: %v", c.Missing)
	}

	// Whitespace-only values count as absent.
	r.Labels["lot_number"] = "   "
	if got := e.Score(r); got != 50 {
		t.Fatalf("blank value score: got=%d want=50", got)
	}

	r.Labels["lot_number"] = "LOT-44"
	if got := e.Score(r); got != 100 {
		t.Fatalf("complete score: got=%d want=100", got)
	}
}

func TestCompletenessWithoutTemplateIs100(t *testing.T) {
	t.Parallel()
	e := NewEngineWithTemplates(logger.NewNop(), testTemplates()[:2])
	r := &domain.DataRecord{InterfaceID: "GMX-01", DataType: domain.DataTypeFile}
	if got := e.Score(r); got != 100 {
		t.Fatalf("no-template score: got=%d want=100", got)
	}

	// A matching template with no required fields also scores 100.
	full := NewEngineWithTemplates(logger.NewNop(), testTemplates())
	r = &domain.DataRecord{InterfaceID: "GMX-01", DataType: domain.DataTypeFile}
	if got := full.Score(r); got != 100 {
		t.Fatalf("no-required score: got=%d want=100", got)
	}
}

func TestApplyLabelsTrimsAndRecomputes(t *testing.T) {
	t.Parallel()
	e := NewEngineWithTemplates(logger.NewNop(), testTemplates())

	r := &domain.DataRecord{
		InterfaceID: "BR-001-p",
		DataType:    domain.DataTypeTimeseries,
		Labels:      map[string]string{"parameter": "ph"},
	}
	r.CompletenessScore = e.Score(r)
	if r.CompletenessScore != 50 {
		t.Fatalf("setup score: got=%d want=50", r.CompletenessScore)
	}

	e.ApplyLabels(r, map[string]string{
		"unit": "  degC  ",
		"":     "dropped",
		"note": "   ",
	})
	if r.Labels["unit"] != "degC" {
		t.Fatalf("unit not trimmed: got=%q", r.Labels["unit"])
	}
	if _, ok := r.Labels["note"]; ok {
		t.Fatal("blank value written")
	}
	if r.CompletenessScore != 100 {
		t.Fatalf("score after apply: got=%d want=100", r.CompletenessScore)
	}
}

func TestBulkApplyLabelsReturnsAttempted(t *testing.T) {
	t.Parallel()
	e := NewEngineWithTemplates(logger.NewNop(), testTemplates())

	records := []*domain.DataRecord{
		{InterfaceID: "BR-001-p", DataType: domain.DataTypeTimeseries},
		{InterfaceID: "BR-001-p", DataType: domain.DataTypeTimeseries, Labels: map[string]string{"unit": "rpm"}},
	}
	n := e.BulkApplyLabels(records, map[string]string{"unit": "rpm"})
	if n != 2 {
		t.Fatalf("attempted count: got=%d want=2", n)
	}
}

func TestEmbeddedTemplatesLoad(t *testing.T) {
	t.Parallel()
	e, err := NewEngine(logger.NewNop())
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}
	if len(e.Templates()) == 0 {
		t.Fatal("no templates loaded")
	}

	// Probe records must resolve to the probe schema, not the catch-all.
	r := &domain.DataRecord{InterfaceID: "BR-003-p", DataType: domain.DataTypeTimeseries}
	tmpl := e.Resolve(r)
	if tmpl == nil {
		t.Fatal("probe record resolved no template")
	}
	if len(tmpl.Required) == 0 {
		t.Fatalf("probe template requires nothing: %+v", tmpl)
	}
}
