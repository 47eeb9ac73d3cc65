// Package models is the static registry of selectable chat models.
package models

// GlobalTokenCap is the ceiling applied to max_tokens regardless of model.
const GlobalTokenCap = 2000

// DefaultID is the fastest model and the fallback for unknown ids.
const DefaultID = "fast"

// Model maps a selectable identifier to an upstream model name.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Upstream    string `json:"upstream"`
	MaxTokens   int    `json:"max_tokens"`
	Description string `json:"description"`
}

var registry = []Model{
	{
		ID:          DefaultID,
		Name:        "Fast",
		Upstream:    "llama-3.1-8b-instant",
		MaxTokens:   8192,
		Description: "Quick answers for everyday questions",
	},
	{
		ID:          "balanced",
		Name:        "Balanced",
		Upstream:    "llama-3.3-70b-versatile",
		MaxTokens:   32768,
		Description: "Larger model for longer or harder prompts",
	},
	{
		ID:          "reasoning",
		Name:        "Reasoning",
		Upstream:    "deepseek-r1-distill-llama-70b",
		MaxTokens:   16384,
		Description: "Step by step reasoning",
	},
	{
		ID:          "compact",
		Name:        "Compact",
		Upstream:    "gemma2-9b-it",
		MaxTokens:   1024,
		Description: "Small model with short replies",
	},
}

// All returns every registered model in display order.
func All() []Model {
	out := make([]Model, len(registry))
	copy(out, registry)
	return out
}

// Lookup returns the model registered under id.
func Lookup(id string) (Model, bool) {
	for _, m := range registry {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// Resolve returns the model registered under id, or the default model.
func Resolve(id string) Model {
	if m, ok := Lookup(id); ok {
		return m
	}
	m, _ := Lookup(DefaultID)
	return m
}

// IsKnown reports whether id is a registered model.
func IsKnown(id string) bool {
	_, ok := Lookup(id)
	return ok
}

// TokenCap returns the max_tokens value sent upstream for m.
func TokenCap(m Model) int {
	if m.MaxTokens <= 0 || m.MaxTokens > GlobalTokenCap {
		return GlobalTokenCap
	}
	return m.MaxTokens
}
