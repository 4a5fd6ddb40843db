package repository

import (
	"context"
	"fmt"

	"github.com/Dan9191/card-service/internal/models"
)

// AppendTransaction inserts a new ledger record for a card.
func (r *Repository) AppendTransaction(ctx context.Context, cardID int64, typ models.TransactionType, amount int64) (*models.Transaction, error) {
	tx := &models.Transaction{CardID: cardID, Type: typ, Amount: amount}
	query := `
		INSERT INTO bank.transactions (card_id, type, amount, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.q.QueryRowContext(ctx, query, cardID, typ, amount).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}
	return tx, nil
}

// TransactionsByCard lists a card's ledger records, newest first.
func (r *Repository) TransactionsByCard(ctx context.Context, cardID int64, limit int) ([]models.Transaction, error) {
	query := `
		SELECT id, card_id, type, amount, created_at
		FROM bank.transactions
		WHERE card_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`
	rows, err := r.q.QueryContext(ctx, query, cardID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.CardID, &t.Type, &t.Amount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}
