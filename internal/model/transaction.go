package model

import "time"

// Transaction is a previously categorized transaction, read back for the
// per-user history similarity scan. The full transaction lifecycle (import,
// editing, budgets) lives outside the categorization core.
type Transaction struct {
	Date            time.Time
	ID              string
	UserID          string
	Description     string
	Category        string
	Amount          float64
	TransactionType int
}
