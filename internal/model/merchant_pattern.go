package model

import (
	"strings"
	"time"
)

// MerchantPattern maps a merchant token or phrase to a learned category.
// Patterns are created and reinforced by the feedback loop and pruned by the
// scheduler when they stay weak.
type MerchantPattern struct {
	UpdatedAt  time.Time
	Pattern    string
	Category   string
	Confidence float64
	UsageCount int
}

// MaxSurfacedConfidence caps the confidence a merchant pattern may carry when
// surfaced as a suggestion, regardless of accumulated usage.
const MaxSurfacedConfidence = 0.98

// Key returns the case-normalized lookup key for the pattern.
func (p *MerchantPattern) Key() string {
	return strings.ToLower(strings.TrimSpace(p.Pattern))
}

// SurfacedConfidence returns the confidence used when this pattern backs a
// suggestion: the stored confidence boosted by usage, capped.
func (p *MerchantPattern) SurfacedConfidence() float64 {
	c := p.Confidence + float64(p.UsageCount)/1000.0
	if c > MaxSurfacedConfidence {
		return MaxSurfacedConfidence
	}
	return c
}

// IsWeak reports whether the pattern qualifies for retention pruning.
func (p *MerchantPattern) IsWeak() bool {
	return p.UsageCount < 2 && p.Confidence < 0.3
}
