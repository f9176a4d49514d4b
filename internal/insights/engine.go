package insights

import (
	_ "embed"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/meridianbio/batchsight-backend/internal/domain"
	"github.com/meridianbio/batchsight-backend/internal/labels"
	"github.com/meridianbio/batchsight-backend/internal/platform/logger"
)

//go:embed recipes.yaml
var recipesYAML []byte

// Engine synthesizes higher-level findings from alerts, ledger state and
// completeness. Each enabled recipe contributes through its own generator;
// the engine itself holds no derived state beyond recipe enablement.
type Engine struct {
	log     *logger.Logger
	labels  *labels.Engine
	now     func() time.Time
	recipes []domain.Recipe
	byID    map[string]*domain.Recipe

	// revision increases on every toggle so cached insight sets downstream
	// know to recompute.
	revision uint64
}

func NewEngine(log *logger.Logger, labelEngine *labels.Engine) (*Engine, error) {
	var f struct {
		Recipes []domain.Recipe `yaml:"recipes"`
	}
	if err := yaml.Unmarshal(recipesYAML, &f); err != nil {
		return nil, fmt.Errorf("decode insight recipes: %w", err)
	}
	if len(f.Recipes) == 0 {
		return nil, fmt.Errorf("insight recipes empty")
	}
	e := &Engine{
		log:     log,
		labels:  labelEngine,
		now:     time.Now,
		recipes: f.Recipes,
		byID:    make(map[string]*domain.Recipe, len(f.Recipes)),
	}
	for i := range e.recipes {
		e.byID[e.recipes[i].ID] = &e.recipes[i]
	}
	return e, nil
}

// SetClock fixes insight creation timestamps; tests use this.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) Recipes() []domain.Recipe {
	out := make([]domain.Recipe, len(e.recipes))
	copy(out, e.recipes)
	return out
}

func (e *Engine) Revision() uint64 {
	return e.revision
}

// ToggleRecipe flips a recipe's enablement and returns the new state plus
// whether the id was known. Unknown ids are a no-op.
func (e *Engine) ToggleRecipe(id string) (bool, bool) {
	r, ok := e.byID[id]
	if !ok {
		if e.log != nil {
			e.log.Warn("toggle for unknown recipe", "recipe_id", id)
		}
		return false, false
	}
	r.Enabled = !r.Enabled
	e.revision++
	if e.log != nil {
		e.log.Info("recipe toggled", "recipe_id", id, "enabled", r.Enabled)
	}
	return r.Enabled, true
}

// Generate re-evaluates every enabled recipe from scratch over the given
// snapshot. When the alert set is completely empty an "all clear" success
// insight is appended regardless of which recipes are enabled.
func (e *Engine) Generate(records []*domain.DataRecord, alertSet []domain.Alert) []domain.Insight {
	var out []domain.Insight
	for _, recipe := range e.recipes {
		if !recipe.Enabled {
			continue
		}
		out = append(out, e.run(recipe, records, alertSet)...)
	}
	if len(alertSet) == 0 {
		out = append(out, domain.Insight{
			ID:        uuid.NewString(),
			RecipeID:  "",
			Severity:  domain.SeveritySuccess,
			Title:     "All quality checks passing",
			Body:      "No data-quality alerts are open across the ledger.",
			Category:  "status",
			CreatedAt: e.now().UTC(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return domain.SeverityRank(out[i].Severity) < domain.SeverityRank(out[j].Severity)
	})
	if e.log != nil {
		e.log.Debug("insight generation complete", "insights", len(out), "alerts", len(alertSet))
	}
	return out
}

func (e *Engine) run(recipe domain.Recipe, records []*domain.DataRecord, alertSet []domain.Alert) []domain.Insight {
	switch recipe.ID {
	case "excursion-review":
		return e.excursionReview(recipe, alertSet)
	case "metadata-hygiene":
		return e.metadataHygiene(recipe, records)
	case "coverage-continuity":
		return e.coverageContinuity(recipe, alertSet)
	case "artifact-pairing":
		return e.artifactPairing(recipe, alertSet)
	case "manual-entry-audit":
		return e.manualEntryAudit(recipe, records)
	default:
		if e.log != nil {
			e.log.Warn("recipe has no generator", "recipe_id", recipe.ID)
		}
		return nil
	}
}

func (e *Engine) excursionReview(recipe domain.Recipe, alertSet []domain.Alert) []domain.Insight {
	var worst domain.Severity
	clusters := 0
	var evidence []string
	var runs []string
	seenRun := map[string]bool{}
	for _, a := range alertSet {
		if a.Type != domain.AlertOutOfRangeCluster || !appliesTo(recipe, a.InterfaceID) {
			continue
		}
		clusters++
		if worst == "" || domain.SeverityRank(a.Severity) < domain.SeverityRank(worst) {
			worst = a.Severity
		}
		evidence = append(evidence, a.AffectedRecordIDs...)
		if a.LinkedRunID != "" && !seenRun[a.LinkedRunID] {
			seenRun[a.LinkedRunID] = true
			runs = append(runs, a.LinkedRunID)
		}
	}
	if clusters == 0 {
		return nil
	}
	return []domain.Insight{{
		ID:       uuid.NewString(),
		RecipeID: recipe.ID,
		Severity: worst,
		Title:    fmt.Sprintf("%d excursion cluster(s) need review", clusters),
		Body: fmt.Sprintf("Out-of-range readings cluster on %d interface/run pair(s), affecting run(s) %s. Review probe calibration before batch release.",
			clusters, joinOr(runs, "unlinked")),
		Category:    recipe.Category,
		CreatedAt:   e.now().UTC(),
		EvidenceIDs: capIDs(evidence),
	}}
}

func (e *Engine) metadataHygiene(recipe domain.Recipe, records []*domain.DataRecord) []domain.Insight {
	sum := map[string]int{}
	count := map[string]int{}
	for _, r := range records {
		if !appliesTo(recipe, r.InterfaceID) {
			continue
		}
		sum[r.InterfaceID] += r.CompletenessScore
		count[r.InterfaceID]++
	}
	var weak []string
	for iface, n := range count {
		if avg := sum[iface] / n; avg < 90 {
			weak = append(weak, fmt.Sprintf("%s (avg %d)", iface, avg))
		}
	}
	if len(weak) == 0 {
		return nil
	}
	sort.Strings(weak)
	return []domain.Insight{{
		ID:        uuid.NewString(),
		RecipeID:  recipe.ID,
		Severity:  domain.SeverityInfo,
		Title:     "Metadata completeness below target",
		Body:      fmt.Sprintf("Average completeness is under 90 on: %s. Backfill required labels via the labeling surface.", joinOr(weak, "")),
		Category:  recipe.Category,
		CreatedAt: e.now().UTC(),
	}}
}

func (e *Engine) coverageContinuity(recipe domain.Recipe, alertSet []domain.Alert) []domain.Insight {
	var evidence []string
	gaps := 0
	for _, a := range alertSet {
		if a.Type != domain.AlertTimestampGap || !appliesTo(recipe, a.InterfaceID) {
			continue
		}
		gaps++
		evidence = append(evidence, a.AffectedRecordIDs...)
	}
	if gaps == 0 {
		return nil
	}
	return []domain.Insight{{
		ID:          uuid.NewString(),
		RecipeID:    recipe.ID,
		Severity:    domain.SeverityWarning,
		Title:       fmt.Sprintf("%d coverage gap(s) in critical traces", gaps),
		Body:        "Critical parameter traces have sampling gaps beyond three times the expected interval. Continuity of the batch record cannot be shown for those windows.",
		Category:    recipe.Category,
		CreatedAt:   e.now().UTC(),
		EvidenceIDs: capIDs(evidence),
	}}
}

func (e *Engine) artifactPairing(recipe domain.Recipe, alertSet []domain.Alert) []domain.Insight {
	var evidence []string
	orphans := 0
	for _, a := range alertSet {
		if a.Type != domain.AlertMissingCompanion || !appliesTo(recipe, a.InterfaceID) {
			continue
		}
		orphans++
		evidence = append(evidence, a.AffectedRecordIDs...)
	}
	if orphans == 0 {
		return nil
	}
	return []domain.Insight{{
		ID:          uuid.NewString(),
		RecipeID:    recipe.ID,
		Severity:    domain.SeverityWarning,
		Title:       fmt.Sprintf("%d chromatography report(s) missing summaries", orphans),
		Body:        "PDF reports without their CSV summary exports cannot be reconciled against titer results. Re-export from the instrument PC.",
		Category:    recipe.Category,
		CreatedAt:   e.now().UTC(),
		EvidenceIDs: capIDs(evidence),
	}}
}

func (e *Engine) manualEntryAudit(recipe domain.Recipe, records []*domain.DataRecord) []domain.Insight {
	var incomplete []string
	manual := 0
	for _, r := range records {
		if !appliesTo(recipe, r.InterfaceID) || !r.QualityFlags.Has(domain.FlagManuallyEntered) {
			continue
		}
		manual++
		if r.QualityFlags.Has(domain.FlagMissingField) {
			incomplete = append(incomplete, r.RecordID)
		}
	}
	if len(incomplete) == 0 {
		return nil
	}
	return []domain.Insight{{
		ID:          uuid.NewString(),
		RecipeID:    recipe.ID,
		Severity:    domain.SeverityInfo,
		Title:       fmt.Sprintf("%d of %d manual entries lack required values", len(incomplete), manual),
		Body:        "Manually entered records are missing required values (for example a dosing amount). Author corrections rather than editing the originals.",
		Category:    recipe.Category,
		CreatedAt:   e.now().UTC(),
		EvidenceIDs: capIDs(incomplete),
	}}
}

func appliesTo(recipe domain.Recipe, interfaceID string) bool {
	if len(recipe.AppliesTo) == 0 {
		return true
	}
	for _, pattern := range recipe.AppliesTo {
		if labels.Match(pattern, interfaceID) {
			return true
		}
	}
	return false
}

func capIDs(ids []string) []string {
	const maxEvidence = 20
	if len(ids) > maxEvidence {
		return ids[:maxEvidence]
	}
	return ids
}

func joinOr(parts []string, fallback string) string {
	if len(parts) == 0 {
		return fallback
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}
