package model

import "time"

// FeedbackRecord is an append-only audit row capturing a user's accept or
// reject decision on a suggestion. Records older than the retention horizon
// are purged by the scheduler.
type FeedbackRecord struct {
	CreatedAt         time.Time
	ID                string
	UserID            string
	Description       string
	SuggestedCategory string
	ActualCategory    string
	MerchantPattern   string
	Confidence        float64
	Amount            float64
	TransactionType   int
	WasAccepted       bool
}

// FeedbackRetention is how long feedback records are kept before the weekly
// cleanup job deletes them.
const FeedbackRetention = 6 * 30 * 24 * time.Hour
