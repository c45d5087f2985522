package models

import (
	"time"
)

// TokenTransaction is an append-only ledger entry. Rows are never updated
// or deleted once written.
type TokenTransaction struct {
	ID                string    `json:"id" db:"id"`
	UserID            string    `json:"user_id" db:"user_id"`
	Amount            int64     `json:"amount" db:"amount"` // positive magnitude
	Type              string    `json:"type" db:"type"`     // credit or debit
	Reason            string    `json:"reason" db:"reason"`
	RelatedEntityID   string    `json:"related_entity_id,omitempty" db:"related_entity_id"`
	RelatedEntityType string    `json:"related_entity_type,omitempty" db:"related_entity_type"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// TokenBalance caches the signed sum of a user's committed transactions.
// At most one row per user; created lazily on first award.
type TokenBalance struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Amount    int64     `json:"amount" db:"amount"`
	Version   int       `json:"version" db:"version"` // for optimistic locking
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BalanceSummary is the read-side projection returned by balance queries.
type BalanceSummary struct {
	Balance      int64              `json:"balance"`
	Transactions []TokenTransaction `json:"transactions"`
}

const (
	TransactionTypeCredit = "credit"
	TransactionTypeDebit  = "debit"
)
