package labels

import (
	_ "embed"
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/meridianbio/batchsight-backend/internal/domain"
	"github.com/meridianbio/batchsight-backend/internal/platform/logger"
)

//go:embed templates.yaml
var templatesYAML []byte

// Template is a declarative metadata schema. A record resolves to the first
// template (declaration order) whose interface pattern and data type both
// match; patterns are exact strings, "*", or prefix wildcards like "BR-*".
type Template struct {
	Name             string   `json:"name" yaml:"name"`
	InterfacePattern string   `json:"interface_pattern" yaml:"interface_pattern"`
	DataType         string   `json:"data_type" yaml:"data_type"`
	Required         []string `json:"required" yaml:"required"`
	Optional         []string `json:"optional" yaml:"optional"`
}

// Completeness is the full scoring breakdown for one record.
type Completeness struct {
	Score           int       `json:"score"`
	Present         []string  `json:"present"`
	Missing         []string  `json:"missing"`
	OptionalPresent []string  `json:"optional_present"`
	OptionalMissing []string  `json:"optional_missing"`
	Template        *Template `json:"template,omitempty"`
}

// Engine resolves records against the template list and maintains their
// completeness scores.
type Engine struct {
	log       *logger.Logger
	templates []Template
}

func NewEngine(log *logger.Logger) (*Engine, error) {
	var f struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(templatesYAML, &f); err != nil {
		return nil, fmt.Errorf("decode label templates: %w", err)
	}
	if len(f.Templates) == 0 {
		return nil, fmt.Errorf("label templates empty")
	}
	return &Engine{log: log, templates: f.Templates}, nil
}

// NewEngineWithTemplates builds an engine over an explicit template list,
// declaration order preserved. Used by tests.
func NewEngineWithTemplates(log *logger.Logger, templates []Template) *Engine {
	return &Engine{log: log, templates: templates}
}

func (e *Engine) Templates() []Template {
	out := make([]Template, len(e.templates))
	copy(out, e.templates)
	return out
}

// Resolve returns the first matching template, or nil when none matches.
func (e *Engine) Resolve(r *domain.DataRecord) *Template {
	for i := range e.templates {
		t := &e.templates[i]
		if Match(t.InterfacePattern, r.InterfaceID) && Match(t.DataType, string(r.DataType)) {
			return t
		}
	}
	return nil
}

// ComputeCompleteness scores a record against its resolved template. No
// template, or a template with no required fields, means there is nothing to
// be missing: the score is 100 by definition.
func (e *Engine) ComputeCompleteness(r *domain.DataRecord) Completeness {
	t := e.Resolve(r)
	if t == nil {
		return Completeness{Score: 100}
	}
	c := Completeness{Template: t}
	for _, field := range t.Required {
		if labelPresent(r.Labels, field) {
			c.Present = append(c.Present, field)
		} else {
			c.Missing = append(c.Missing, field)
		}
	}
	for _, field := range t.Optional {
		if labelPresent(r.Labels, field) {
			c.OptionalPresent = append(c.OptionalPresent, field)
		} else {
			c.OptionalMissing = append(c.OptionalMissing, field)
		}
	}
	if len(t.Required) == 0 {
		c.Score = 100
		return c
	}
	c.Score = int(math.Round(100 * float64(len(c.Present)) / float64(len(t.Required))))
	return c
}

// Score is the narrow hook the ledger uses when it needs a fresh score.
func (e *Engine) Score(r *domain.DataRecord) int {
	return e.ComputeCompleteness(r).Score
}

// ApplyLabels trims and writes the non-empty values into the record's labels
// in place, then recomputes and stores the completeness score. Empty-after-
// trim values are ignored rather than written as blanks.
func (e *Engine) ApplyLabels(r *domain.DataRecord, newLabels map[string]string) {
	if r.Labels == nil {
		r.Labels = map[string]string{}
	}
	for k, v := range newLabels {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		r.Labels[k] = v
	}
	r.CompletenessScore = e.ComputeCompleteness(r).Score
}

// BulkApplyLabels applies one label map to many records and returns how many
// records were attempted. The contract is "attempted", not "changed": every
// record in the input counts even when no field actually moves.
func (e *Engine) BulkApplyLabels(records []*domain.DataRecord, newLabels map[string]string) int {
	for _, r := range records {
		e.ApplyLabels(r, newLabels)
	}
	return len(records)
}

func labelPresent(labels map[string]string, field string) bool {
	v, ok := labels[field]
	return ok && strings.TrimSpace(v) != ""
}

// Match applies the shared pattern rules: "*" matches everything, a
// trailing "*" matches by prefix, anything else matches exactly. Recipes
// reuse the same rules for their applies_to lists.
func Match(pattern, s string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(s, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == s
}
