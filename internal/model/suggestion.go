// Package model defines the core domain models used throughout the application.
package model

// SuggestionSource indicates which scoring path produced a suggestion.
type SuggestionSource string

// Suggestion source constants.
const (
	SourceMerchantPattern SuggestionSource = "merchant_pattern"
	SourceRule            SuggestionSource = "rule"
	SourceMLModel         SuggestionSource = "ml_model"
	SourceUserHistory     SuggestionSource = "user_history"
	SourceFallback        SuggestionSource = "fallback"
)

// Suggestion represents a single category suggestion. Suggestions are
// ephemeral: they are built per request and never persisted.
type Suggestion struct {
	Category      string           `json:"category"`
	Source        SuggestionSource `json:"source"`
	ProvenanceKey string           `json:"provenance_key,omitempty"`
	Confidence    float64          `json:"confidence"`
}

// FallbackCategory is the category returned when the suggestion path fails.
const FallbackCategory = "Uncategorized"

// FallbackConfidence is the fixed confidence of the fallback suggestion.
const FallbackConfidence = 0.3

// FallbackSuggestion returns the single suggestion surfaced when an error
// occurs anywhere in the scoring path.
func FallbackSuggestion() Suggestion {
	return Suggestion{
		Category:   FallbackCategory,
		Confidence: FallbackConfidence,
		Source:     SourceFallback,
	}
}
