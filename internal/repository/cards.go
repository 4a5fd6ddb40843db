package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/card-service/internal/apperr"
	"github.com/Dan9191/card-service/internal/models"
)

const cardColumns = `id, user_id, number, network, cvc, expires_at, balance, created_at, updated_at`

func scanCard(row *sql.Row) (*models.Card, error) {
	card := &models.Card{}
	err := row.Scan(&card.ID, &card.UserID, &card.Number, &card.Network, &card.CVC,
		&card.ExpiresAt, &card.Balance, &card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return card, nil
}

// CreateCard creates a new card in the database
func (r *Repository) CreateCard(ctx context.Context, card *models.Card) error {
	query := `
		INSERT INTO bank.cards (user_id, number, network, cvc, expires_at, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := r.q.QueryRowContext(ctx, query,
		card.UserID, card.Number, card.Network, card.CVC, card.ExpiresAt, card.Balance).
		Scan(&card.ID, &card.CreatedAt, &card.UpdatedAt)
	if uniqueViolation(err, "cards_number_key") {
		return apperr.Wrap(apperr.Conflict, apperr.ReasonDuplicateNumber, "card number already exists", err)
	}
	if uniqueViolation(err, "cards_user_id_key") {
		return apperr.Wrap(apperr.Conflict, apperr.ReasonDuplicateOwner, "user already has a card", err)
	}
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

// CardByID retrieves a card by id
func (r *Repository) CardByID(ctx context.Context, id int64) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM bank.cards WHERE id = $1`
	card, err := scanCard(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, apperr.ReasonCardNotFound, "card not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card: %w", err)
	}
	return card, nil
}

// CardByNumber retrieves a card by its number
func (r *Repository) CardByNumber(ctx context.Context, number string) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM bank.cards WHERE number = $1`
	card, err := scanCard(r.q.QueryRowContext(ctx, query, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, apperr.ReasonCardNotFound, "card not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card: %w", err)
	}
	return card, nil
}

// CardByOwner retrieves the card linked to a user. Having no card is a
// valid state and returns (nil, nil).
func (r *Repository) CardByOwner(ctx context.Context, userID int64) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM bank.cards WHERE user_id = $1`
	card, err := scanCard(r.q.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card: %w", err)
	}
	return card, nil
}

// ReplaceIdentity swaps the number, network, cvc and expiry of the
// owner's card in one statement, leaving the balance untouched.
func (r *Repository) ReplaceIdentity(ctx context.Context, userID int64, number string, network models.PaymentNetwork, cvc string, expiresAt time.Time) (*models.Card, error) {
	query := `
		UPDATE bank.cards
		SET number = $2, network = $3, cvc = $4, expires_at = $5, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1
		RETURNING ` + cardColumns
	card, err := scanCard(r.q.QueryRowContext(ctx, query, userID, number, network, cvc, expiresAt))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, apperr.ReasonNoCard, "user has no card")
	}
	if uniqueViolation(err, "cards_number_key") {
		return nil, apperr.Wrap(apperr.Conflict, apperr.ReasonDuplicateNumber, "card number already exists", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to replace card identity: %w", err)
	}
	return card, nil
}

// AdjustBalance atomically applies balance += delta. The guard in the
// WHERE clause keeps the balance non-negative without a read-modify-write
// in application code; the row lock taken by UPDATE serializes
// concurrent adjustments to the same card.
func (r *Repository) AdjustBalance(ctx context.Context, cardID int64, delta int64) (*models.Card, error) {
	query := `
		UPDATE bank.cards
		SET balance = balance + $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND balance + $2 >= 0
		RETURNING ` + cardColumns
	card, err := scanCard(r.q.QueryRowContext(ctx, query, cardID, delta))
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish a missing card from a balance that would go negative.
		if _, lookupErr := r.CardByID(ctx, cardID); lookupErr != nil {
			return nil, lookupErr
		}
		return nil, apperr.New(apperr.InsufficientFunds, apperr.ReasonInsufficientFunds, "insufficient funds")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to adjust balance: %w", err)
	}
	return card, nil
}

// CardsExpiringBefore lists cards whose expiry falls before the deadline,
// joined with their owners' contact details.
func (r *Repository) CardsExpiringBefore(ctx context.Context, deadline time.Time) ([]ExpiringCard, error) {
	query := `
		SELECT u.email, u.username, c.number, c.expires_at
		FROM bank.cards c
		JOIN bank.users u ON u.id = c.user_id
		WHERE c.expires_at <= $1
		ORDER BY c.expires_at`
	rows, err := r.q.QueryContext(ctx, query, deadline)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring cards: %w", err)
	}
	defer rows.Close()

	var cards []ExpiringCard
	for rows.Next() {
		var c ExpiringCard
		if err := rows.Scan(&c.Email, &c.Username, &c.Number, &c.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan expiring card: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list expiring cards: %w", err)
	}
	return cards, nil
}
