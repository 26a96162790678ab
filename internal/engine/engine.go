// Package engine implements the smart categorization engine: pattern and
// rule matching, classifier inference, per-user history similarity, and the
// feedback learning loop.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/ledgerline/sift/internal/classifier"
	"github.com/ledgerline/sift/internal/common"
	"github.com/ledgerline/sift/internal/features"
	"github.com/ledgerline/sift/internal/model"
	"github.com/ledgerline/sift/internal/service"
)

// engineState tags the initialization state machine.
type engineState int32

const (
	stateUninitialized engineState = iota
	stateInitializing
	stateReady
)

// Config holds configuration options for the categorization engine.
type Config struct {
	HistorySelection    service.HistorySelection
	MaxSuggestions      int
	MinTrainingExamples int
	MinRetrainExamples  int
	HistoryLimit        int
	HistoryThreshold    float64
	MLDamping           float64
	MLConfidenceCap     float64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		HistorySelection:    service.HistoryRecent,
		MaxSuggestions:      3,
		MinTrainingExamples: 10,
		MinRetrainExamples:  50,
		HistoryLimit:        100,
		HistoryThreshold:    0.6,
		MLDamping:           0.8,
		MLConfidenceCap:     0.9,
	}
}

// Engine orchestrates category suggestions and the learning loop. Construct
// one per process with New and share it; all methods are safe for
// concurrent use.
type Engine struct {
	storage    service.Storage
	classifier *classifier.Classifier
	store      *patternStore
	initGroup  singleflight.Group
	cfg        Config
	state      atomic.Int32
}

// New creates a new categorization engine with the given storage gateway.
func New(storage service.Storage) *Engine {
	return NewWithConfig(storage, DefaultConfig())
}

// NewWithConfig creates a new categorization engine with custom configuration.
func NewWithConfig(storage service.Storage, cfg Config) *Engine {
	return &Engine{
		storage:    storage,
		classifier: classifier.New(),
		store:      newPatternStore(),
		cfg:        cfg,
	}
}

// Initialize loads merchant patterns, default rules, and the ML model.
// It is idempotent: a ready engine returns immediately, and concurrent
// callers collapse to a single in-flight initialization.
//
// This is the one entry point that propagates failures: serving suggestions
// from an engine that silently failed to load its data is a correctness
// hazard, not a degraded mode.
func (e *Engine) Initialize(ctx context.Context) error {
	if engineState(e.state.Load()) == stateReady {
		return nil
	}

	_, err, _ := e.initGroup.Do("initialize", func() (any, error) {
		if engineState(e.state.Load()) == stateReady {
			return nil, nil
		}
		e.state.Store(int32(stateInitializing))

		if err := e.store.loadMerchantPatterns(ctx, e.storage); err != nil {
			e.state.Store(int32(stateUninitialized))
			return nil, err
		}
		if err := e.store.loadDefaultRules(ctx, e.storage); err != nil {
			e.state.Store(int32(stateUninitialized))
			return nil, err
		}
		if err := e.loadModel(ctx); err != nil {
			e.state.Store(int32(stateUninitialized))
			return nil, err
		}

		e.state.Store(int32(stateReady))

		patterns, rules := e.store.counts()
		slog.Info("Categorization engine ready",
			"merchant_patterns", patterns,
			"default_rules", rules,
			"model_trained", e.classifier.Trained())
		return nil, nil
	})
	if err != nil {
		slog.Error("Engine initialization failed", "error", err)
		return fmt.Errorf("engine initialization: %w", err)
	}
	return nil
}

// Ready reports whether initialization has completed.
func (e *Engine) Ready() bool {
	return engineState(e.state.Load()) == stateReady
}

func (e *Engine) ensureInitialized(ctx context.Context) error {
	if e.Ready() {
		return nil
	}
	if err := e.Initialize(ctx); err != nil {
		return fmt.Errorf("%w: %w", common.ErrNotInitialized, err)
	}
	return nil
}

// loadModel trains the classifier from stored verified examples. Fewer
// examples than the training floor is a skip, not an error.
func (e *Engine) loadModel(ctx context.Context) error {
	count, err := e.storage.CountVerifiedTrainingExamples(ctx)
	if err != nil {
		return fmt.Errorf("failed to count training examples: %w", err)
	}

	if count < e.cfg.MinTrainingExamples {
		slog.Info("Skipping model load: not enough training data",
			"examples", count,
			"required", e.cfg.MinTrainingExamples)
		return nil
	}

	examples, err := e.storage.ListVerifiedTrainingExamples(ctx)
	if err != nil {
		return fmt.Errorf("failed to load training examples: %w", err)
	}

	e.trainClassifier(examples)
	return nil
}

// trainClassifier fits the Naive Bayes model over the examples. Features
// are recomputed from the description and amount so that extractor
// improvements apply to old examples on the next training pass.
func (e *Engine) trainClassifier(examples []model.TrainingExample) {
	samples := make([]classifier.Sample, 0, len(examples))
	for _, ex := range examples {
		samples = append(samples, classifier.Sample{
			Category: ex.Category,
			Features: features.Extract(ex.Description, ex.Amount),
		})
	}
	e.classifier.Train(samples)

	slog.Info("Classifier trained",
		"examples", len(samples),
		"model_version", e.classifier.Version())
}

// SuggestCategory returns up to MaxSuggestions ranked category suggestions
// for a transaction description. It never fails: any error inside the
// scoring path degrades to the single fallback suggestion. An empty result
// means nothing matched and no error occurred; the two cases are distinct.
func (e *Engine) SuggestCategory(ctx context.Context, description string, amount float64, transactionType int, userID string) []model.Suggestion {
	suggestions, err := e.suggest(ctx, description, amount, transactionType, userID)
	if err != nil {
		slog.Error("Suggestion path failed, serving fallback",
			"description_length", len(description),
			"error", err)
		return []model.Suggestion{model.FallbackSuggestion()}
	}
	return suggestions
}

func (e *Engine) suggest(ctx context.Context, description string, amount float64, transactionType int, userID string) (result []model.Suggestion, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("suggestion scoring panicked: %v", r)
		}
	}()

	if err := e.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	var candidates []model.Suggestion

	if pattern, ok := e.store.matchMerchant(description); ok {
		candidates = append(candidates, model.Suggestion{
			Category:      pattern.Category,
			Confidence:    pattern.SurfacedConfidence(),
			Source:        model.SourceMerchantPattern,
			ProvenanceKey: pattern.Key(),
		})
	}

	for _, rule := range e.store.matchRules(description, transactionType) {
		candidates = append(candidates, model.Suggestion{
			Category:      rule.Category,
			Confidence:    rule.Confidence,
			Source:        model.SourceRule,
			ProvenanceKey: rule.Key(),
		})
	}

	if e.classifier.Trained() {
		if pred, ok := e.classifier.Predict(features.Extract(description, amount)); ok {
			confidence := pred.Probability * e.cfg.MLDamping
			if confidence > e.cfg.MLConfidenceCap {
				confidence = e.cfg.MLConfidenceCap
			}
			candidates = append(candidates, model.Suggestion{
				Category:      pred.Category,
				Confidence:    confidence,
				Source:        model.SourceMLModel,
				ProvenanceKey: e.classifier.Version(),
			})
		}
	}

	if userID != "" {
		candidate, ok, histErr := e.historyCandidate(ctx, userID, description)
		if histErr != nil {
			return nil, histErr
		}
		if ok {
			candidates = append(candidates, candidate)
		}
	}

	if len(candidates) == 0 {
		return []model.Suggestion{}, nil
	}

	return RankSuggestions(candidates, e.cfg.MaxSuggestions), nil
}

// historyCandidate scans the user's own categorized transactions for the
// closest description and turns it into a candidate if the similarity
// clears the threshold.
func (e *Engine) historyCandidate(ctx context.Context, userID, description string) (model.Suggestion, bool, error) {
	transactions, err := e.storage.ListUserTransactions(ctx, userID, e.cfg.HistoryLimit, e.cfg.HistorySelection)
	if err != nil {
		return model.Suggestion{}, false, fmt.Errorf("failed to load user history: %w", err)
	}

	var best model.Transaction
	bestScore := 0.0
	for _, txn := range transactions {
		if txn.Category == "" {
			continue
		}
		if score := TokenSimilarity(description, txn.Description); score > bestScore {
			best = txn
			bestScore = score
		}
	}

	if bestScore <= e.cfg.HistoryThreshold {
		return model.Suggestion{}, false, nil
	}

	confidence := bestScore * 0.8
	if confidence > 0.85 {
		confidence = 0.85
	}

	return model.Suggestion{
		Category:      best.Category,
		Confidence:    confidence,
		Source:        model.SourceUserHistory,
		ProvenanceKey: best.ID,
	}, true, nil
}

// ModelVersion returns the current classifier version, or "" if untrained.
func (e *Engine) ModelVersion() string {
	return e.classifier.Version()
}

// TrainingSize returns the sample count of the current model.
func (e *Engine) TrainingSize() int {
	return e.classifier.TrainingSize()
}

// PatternCounts reports the cached merchant pattern and rule counts.
func (e *Engine) PatternCounts() (patterns, rules int) {
	return e.store.counts()
}

// ReloadMerchantPatterns refreshes the merchant pattern cache from the
// gateway. A failure leaves the last-known-good cache in place.
func (e *Engine) ReloadMerchantPatterns(ctx context.Context) error {
	return e.store.loadMerchantPatterns(ctx, e.storage)
}
