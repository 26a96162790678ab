package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ledgerline/sift/internal/model"
	"github.com/ledgerline/sift/internal/service"
)

// patternStore is the in-memory cache of merchant patterns and default
// rules. The persistence gateway is the source of truth; both tables are
// refreshed by full replacement, never merged.
//
// Merchant patterns are held in an explicitly ordered slice (confidence
// descending, as loaded) so the first-match-wins scan is reproducible.
type patternStore struct {
	patterns []model.MerchantPattern
	rules    []model.DefaultRule
	ruleKeys map[string]int
	mu       sync.RWMutex
}

func newPatternStore() *patternStore {
	return &patternStore{ruleKeys: make(map[string]int)}
}

// loadMerchantPatterns replaces the merchant pattern cache from the gateway.
// Rows arrive ordered by confidence descending and that order is preserved.
func (ps *patternStore) loadMerchantPatterns(ctx context.Context, storage service.Storage) error {
	patterns, err := storage.ListMerchantPatterns(ctx)
	if err != nil {
		return fmt.Errorf("failed to load merchant patterns: %w", err)
	}

	ps.mu.Lock()
	ps.patterns = patterns
	ps.mu.Unlock()

	return nil
}

// loadDefaultRules replaces the rule cache with the active rules, keyed by
// "ruleType:value".
func (ps *patternStore) loadDefaultRules(ctx context.Context, storage service.Storage) error {
	rules, err := storage.ListActiveDefaultRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load default rules: %w", err)
	}

	keys := make(map[string]int, len(rules))
	for i := range rules {
		keys[rules[i].Key()] = i
	}

	ps.mu.Lock()
	ps.rules = rules
	ps.ruleKeys = keys
	ps.mu.Unlock()

	return nil
}

// matchMerchant returns the first pattern whose text appears in the
// lower-cased description. First match wins; the scan order is the loaded
// confidence order.
func (ps *patternStore) matchMerchant(description string) (model.MerchantPattern, bool) {
	lowered := strings.ToLower(description)

	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for i := range ps.patterns {
		key := ps.patterns[i].Key()
		if key != "" && strings.Contains(lowered, key) {
			return ps.patterns[i], true
		}
	}

	return model.MerchantPattern{}, false
}

// matchRules returns every rule of the given transaction type whose value
// appears in the lower-cased description. Unlike the merchant scan this is
// not first-match-wins: all matches become candidates.
func (ps *patternStore) matchRules(description string, transactionType int) []model.DefaultRule {
	lowered := strings.ToLower(description)

	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var matches []model.DefaultRule
	for i := range ps.rules {
		rule := ps.rules[i]
		if rule.TransactionType != transactionType {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(rule.RuleValue)) {
			matches = append(matches, rule)
		}
	}

	return matches
}

// counts reports the cache sizes, for status and logging.
func (ps *patternStore) counts() (patterns, rules int) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.patterns), len(ps.rules)
}
