// Package classifier implements the trainable probabilistic text classifier
// behind ML-sourced category suggestions.
package classifier

import (
	"math"
	"sync"
	"time"
)

// Sample is a single labeled training observation.
type Sample struct {
	Category string
	Features []string
}

// Prediction is the classifier's best category with a probability estimate.
type Prediction struct {
	Category    string
	Probability float64
}

// model holds one immutable set of trained parameters. A retrain builds a
// fresh model and swaps it in whole; readers never observe a partial update.
type model struct {
	trainedAt     time.Time
	version       string
	classCounts   map[string]int
	featureCounts map[string]map[string]int
	featureTotals map[string]int
	vocabulary    map[string]struct{}
	totalExamples int
}

// Classifier is a multinomial Naive Bayes classifier over symbolic feature
// strings. The zero value is not usable; call New.
type Classifier struct {
	current *model
	mu      sync.RWMutex
}

// New creates an untrained classifier. Predict reports no result until
// Train has run at least once.
func New() *Classifier {
	return &Classifier{}
}

// Train fits a new model over the given samples and atomically replaces any
// previous parameters. Samples with no features still count toward the
// class prior.
func (c *Classifier) Train(samples []Sample) {
	m := &model{
		trainedAt:     time.Now(),
		classCounts:   make(map[string]int),
		featureCounts: make(map[string]map[string]int),
		featureTotals: make(map[string]int),
		vocabulary:    make(map[string]struct{}),
		totalExamples: len(samples),
	}
	m.version = m.trainedAt.UTC().Format("v20060102-150405")

	for _, s := range samples {
		m.classCounts[s.Category]++
		counts := m.featureCounts[s.Category]
		if counts == nil {
			counts = make(map[string]int)
			m.featureCounts[s.Category] = counts
		}
		for _, f := range s.Features {
			counts[f]++
			m.featureTotals[s.Category]++
			m.vocabulary[f] = struct{}{}
		}
	}

	c.mu.Lock()
	c.current = m
	c.mu.Unlock()
}

// Predict scores the feature set against every known category and returns
// the winner with a normalized probability. ok is false when the classifier
// has never been trained.
func (c *Classifier) Predict(features []string) (Prediction, bool) {
	c.mu.RLock()
	m := c.current
	c.mu.RUnlock()

	if m == nil || m.totalExamples == 0 {
		return Prediction{}, false
	}

	vocabSize := len(m.vocabulary)
	scores := make(map[string]float64, len(m.classCounts))

	for category, classCount := range m.classCounts {
		// Log prior plus per-feature log likelihood with Laplace smoothing.
		score := math.Log(float64(classCount) / float64(m.totalExamples))
		counts := m.featureCounts[category]
		denom := float64(m.featureTotals[category] + vocabSize)
		for _, f := range features {
			score += math.Log(float64(counts[f]+1) / denom)
		}
		scores[category] = score
	}

	best, probability := normalize(scores)
	return Prediction{Category: best, Probability: probability}, true
}

// Trained reports whether a model has ever been fit.
func (c *Classifier) Trained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current != nil
}

// Version returns the current model version, or "" when untrained.
func (c *Classifier) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return ""
	}
	return c.current.version
}

// TrainingSize returns the number of samples the current model was fit on.
func (c *Classifier) TrainingSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return 0
	}
	return c.current.totalExamples
}

// normalize converts per-class log scores into the winning class and its
// posterior probability.
func normalize(scores map[string]float64) (string, float64) {
	var best string
	maxScore := math.Inf(-1)
	for category, score := range scores {
		if score > maxScore || (score == maxScore && category < best) {
			best = category
			maxScore = score
		}
	}

	var total float64
	for _, score := range scores {
		total += math.Exp(score - maxScore)
	}
	if total == 0 {
		return best, 0
	}

	return best, 1.0 / total
}
