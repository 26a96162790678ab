// Package features turns raw transaction descriptions into the symbolic
// feature sets consumed by the classifier and the suggestion engine.
package features

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Amount bucket feature values.
const (
	AmountVerySmall = "amount_very_small"
	AmountSmall     = "amount_small"
	AmountMedium    = "amount_medium"
	AmountLarge     = "amount_large"
	AmountVeryLarge = "amount_very_large"
)

// Length bucket feature values.
const (
	LengthShort  = "length_short"
	LengthMedium = "length_medium"
	LengthLong   = "length_long"
)

// Extract converts a free-text description and amount into a deterministic
// sequence of symbolic features. An empty description yields no features.
// Features are not deduplicated; downstream stages tolerate repeats.
func Extract(description string, amount float64) []string {
	raw := strings.TrimSpace(description)
	if raw == "" {
		return nil
	}
	lowered := strings.ToLower(raw)

	var features []string

	for _, token := range Tokenize(lowered) {
		if isStopWord(token) {
			continue
		}
		features = append(features, Stem(token))
	}

	// Merchant detection runs on the raw text: several rules key off
	// capitalization that lower-casing would destroy.
	if merchant := ExtractMerchant(raw); merchant != "" {
		features = append(features, "merchant_"+merchant)
	}

	if bucket := AmountBucket(amount); bucket != "" {
		features = append(features, bucket)
	}

	features = append(features, LengthBucket(lowered))
	features = append(features, brazilianFeatures(lowered)...)
	features = append(features, entityFeatures(lowered)...)

	return features
}

// Tokenize splits text into lower-cased word tokens. Runs of anything that
// is not a letter or digit act as separators.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// AmountBucket returns the amount-range feature for an amount. Boundaries
// are inclusive on the upper end. Amounts at or below zero contribute no
// feature.
func AmountBucket(amount float64) string {
	switch {
	case amount <= 0:
		return ""
	case amount <= 10:
		return AmountVerySmall
	case amount <= 50:
		return AmountSmall
	case amount <= 200:
		return AmountMedium
	case amount <= 1000:
		return AmountLarge
	default:
		return AmountVeryLarge
	}
}

// LengthBucket returns the description-length feature. Length is counted
// in runes so accented text buckets the same as its unaccented form.
func LengthBucket(description string) string {
	switch n := utf8.RuneCountInString(description); {
	case n <= 10:
		return LengthShort
	case n <= 30:
		return LengthMedium
	default:
		return LengthLong
	}
}
