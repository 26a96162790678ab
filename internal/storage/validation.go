package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgerline/sift/internal/common"
	"github.com/ledgerline/sift/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidLimit     = errors.New("limit must be positive")
	ErrInvalidFeedback  = errors.New("invalid feedback record")
	ErrInvalidPattern   = errors.New("invalid merchant pattern")
	ErrInvalidExample   = errors.New("invalid training example")
	ErrInvalidMetrics   = errors.New("invalid model metrics")
	ErrInvalidSelection = errors.New("invalid history selection")
)

// permanent marks a validation failure as non-retryable so callers that
// run storage operations under a backoff policy fail fast instead of
// burning attempts on input that will never change.
func permanent(err error) error {
	return &common.RetryableError{Err: err, Retryable: false}
}

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return permanent(ErrNilContext)
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return permanent(fmt.Errorf("%w: %s", ErrEmptyString, paramName))
	}
	return nil
}

func validateMerchantPattern(p *model.MerchantPattern) error {
	if p == nil {
		return permanent(fmt.Errorf("%w: pattern", ErrNilParameter))
	}
	if strings.TrimSpace(p.Pattern) == "" {
		return permanent(fmt.Errorf("%w: pattern text is empty", ErrInvalidPattern))
	}
	if strings.TrimSpace(p.Category) == "" {
		return permanent(fmt.Errorf("%w: category is empty", ErrInvalidPattern))
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return permanent(fmt.Errorf("%w: confidence %f outside [0,1]", ErrInvalidPattern, p.Confidence))
	}
	if p.UsageCount < 0 {
		return permanent(fmt.Errorf("%w: negative usage count", ErrInvalidPattern))
	}
	return nil
}

func validateFeedback(fb *model.FeedbackRecord) error {
	if fb == nil {
		return permanent(fmt.Errorf("%w: feedback", ErrNilParameter))
	}
	if strings.TrimSpace(fb.ID) == "" {
		return permanent(fmt.Errorf("%w: missing id", ErrInvalidFeedback))
	}
	if strings.TrimSpace(fb.Description) == "" {
		return permanent(fmt.Errorf("%w: missing description", ErrInvalidFeedback))
	}
	if strings.TrimSpace(fb.ActualCategory) == "" {
		return permanent(fmt.Errorf("%w: missing actual category", ErrInvalidFeedback))
	}
	return nil
}

func validateTrainingExample(ex *model.TrainingExample) error {
	if ex == nil {
		return permanent(fmt.Errorf("%w: example", ErrNilParameter))
	}
	if strings.TrimSpace(ex.Description) == "" {
		return permanent(fmt.Errorf("%w: missing description", ErrInvalidExample))
	}
	if strings.TrimSpace(ex.Category) == "" {
		return permanent(fmt.Errorf("%w: missing category", ErrInvalidExample))
	}
	return nil
}

func validateModelMetrics(m *model.ModelMetrics) error {
	if m == nil {
		return permanent(fmt.Errorf("%w: metrics", ErrNilParameter))
	}
	if strings.TrimSpace(m.ModelVersion) == "" {
		return permanent(fmt.Errorf("%w: missing model version", ErrInvalidMetrics))
	}
	return nil
}
