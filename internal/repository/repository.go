package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Dan9191/card-service/internal/apperr"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/lib/pq"
)

// Store is the persistence surface the service layer depends on. It is
// implemented by *Repository against Postgres and by in-memory fakes in
// tests.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	UserByID(ctx context.Context, id int64) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateCard(ctx context.Context, card *models.Card) error
	CardByID(ctx context.Context, id int64) (*models.Card, error)
	CardByNumber(ctx context.Context, number string) (*models.Card, error)
	// CardByOwner returns (nil, nil) when the user has no card.
	CardByOwner(ctx context.Context, userID int64) (*models.Card, error)
	ReplaceIdentity(ctx context.Context, userID int64, number string, network models.PaymentNetwork, cvc string, expiresAt time.Time) (*models.Card, error)
	// AdjustBalance atomically applies balance += delta and fails with
	// InsufficientFunds if the result would be negative.
	AdjustBalance(ctx context.Context, cardID int64, delta int64) (*models.Card, error)

	AppendTransaction(ctx context.Context, cardID int64, typ models.TransactionType, amount int64) (*models.Transaction, error)
	TransactionsByCard(ctx context.Context, cardID int64, limit int) ([]models.Transaction, error)
	CardsExpiringBefore(ctx context.Context, deadline time.Time) ([]ExpiringCard, error)

	// WithinTx runs fn against a transaction-bound store. Any error from
	// fn rolls every write inside the closure back.
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// ExpiringCard joins a card with its owner's contact details for
// expiry notifications.
type ExpiringCard struct {
	Email     string
	Username  string
	Number    string
	ExpiresAt time.Time
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository provides database operations
type Repository struct {
	db *sql.DB
	q  querier
}

var _ Store = (*Repository)(nil)

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, q: db}
}

// WithinTx runs fn against a transaction-bound repository. Nested calls
// are not supported.
func (r *Repository) WithinTx(ctx context.Context, fn func(Store) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.Unavailable, apperr.ReasonStoreUnavailable, "failed to begin transaction", err)
	}
	if err := fn(&Repository{db: r.db, q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.Unavailable, apperr.ReasonStoreUnavailable, "failed to commit transaction", err)
	}
	return nil
}

// uniqueViolation reports whether err is a Postgres unique-constraint
// violation on the named constraint.
func uniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == constraint
}
