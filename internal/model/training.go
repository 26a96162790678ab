package model

import "time"

// TrainingExample is a labeled description/category pair consumed wholesale
// by retraining. Examples are append-only; retention policy for them is
// managed outside the core.
type TrainingExample struct {
	CreatedAt       time.Time
	UserID          string
	Description     string
	Category        string
	Features        []string
	Amount          float64
	TransactionType int
	Verified        bool
}
