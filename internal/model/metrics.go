package model

import "time"

// ModelMetrics is an append-only snapshot of classifier performance,
// recorded after each scheduled retraining pass.
type ModelMetrics struct {
	CreatedAt          time.Time
	ModelVersion       string
	AccuracyScore      float64
	PrecisionScore     float64
	RecallScore        float64
	TotalPredictions   int
	CorrectPredictions int
	TrainingDataSize   int
}
