package model

import (
	"fmt"
	"strings"
)

// RuleType indicates how a default rule's value is interpreted.
type RuleType string

const (
	// RuleTypeKeyword matches the rule value anywhere in the description.
	RuleTypeKeyword RuleType = "keyword"
	// RuleTypeMerchant matches the rule value as a merchant name.
	RuleTypeMerchant RuleType = "merchant"
)

// DefaultRule is an externally authored categorization rule. The engine
// treats rules as read-only: they are loaded at startup and never mutated.
type DefaultRule struct {
	RuleType        RuleType
	RuleValue       string
	Category        string
	Confidence      float64
	TransactionType int
	Active          bool
}

// Key returns the lookup key for the rule, "ruleType:value" with the value
// case-normalized.
func (r *DefaultRule) Key() string {
	return fmt.Sprintf("%s:%s", r.RuleType, strings.ToLower(r.RuleValue))
}
