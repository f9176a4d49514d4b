package domain

import "time"

// Recipe is a named, toggleable insight rule. AppliesTo carries interface
// patterns (exact, "*", or "PREFIX-*") limiting where the recipe looks.
type Recipe struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Category    string   `json:"category" yaml:"category"`
	AppliesTo   []string `json:"applies_to" yaml:"applies_to"`
	Enabled     bool     `json:"enabled" yaml:"enabled"`
}

// Insight is a recipe output: a human-readable finding ranked by severity,
// optionally pointing at evidence records.
type Insight struct {
	ID          string    `json:"id"`
	RecipeID    string    `json:"recipe_id"`
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	EvidenceIDs []string  `json:"evidence_ids,omitempty"`
}
