package models

import "time"

// TransactionType classifies a balance-affecting event.
type TransactionType string

const (
	TransactionTopUp      TransactionType = "TOP_UP"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
)

// Transaction is an immutable ledger record tied to a card.
type Transaction struct {
	ID        int64           `json:"id"`
	CardID    int64           `json:"card_id"`
	Type      TransactionType `json:"type"`
	Amount    int64           `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}
