package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Dan9191/card-service/internal/apperr"
	"github.com/Dan9191/card-service/internal/config"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/repository"
	"github.com/Dan9191/card-service/internal/utils"
	"github.com/sirupsen/logrus"
)

// memStore is an in-memory Store with the same contract as the Postgres
// repository: linearizable per-card balance adjustments and rollback of
// everything written inside a failed WithinTx closure.
type memStore struct {
	mu         sync.Mutex
	users      map[int64]*models.User
	cards      map[int64]*models.Card
	txs        []models.Transaction
	nextUserID int64
	nextCardID int64
	nextTxID   int64
	failAppend bool
}

var _ repository.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		users: make(map[int64]*models.User),
		cards: make(map[int64]*models.Card),
	}
}

func copyCard(c *models.Card) *models.Card {
	cp := *c
	return &cp
}

func (m *memStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return apperr.New(apperr.Conflict, apperr.ReasonDuplicateEmail, "email already registered")
		}
	}
	m.nextUserID++
	user.ID = m.nextUserID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memStore) UserByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, apperr.ReasonUserNotFound, "user not found")
	}
	cp := *user
	return &cp, nil
}

func (m *memStore) UserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, apperr.ReasonUserNotFound, "user not found")
}

func (m *memStore) CreateCard(_ context.Context, card *models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cards {
		if c.Number == card.Number {
			return apperr.New(apperr.Conflict, apperr.ReasonDuplicateNumber, "card number already exists")
		}
		if c.UserID == card.UserID {
			return apperr.New(apperr.Conflict, apperr.ReasonDuplicateOwner, "user already has a card")
		}
	}
	m.nextCardID++
	card.ID = m.nextCardID
	card.CreatedAt = time.Now()
	card.UpdatedAt = card.CreatedAt
	m.cards[card.ID] = copyCard(card)
	return nil
}

func (m *memStore) CardByID(_ context.Context, id int64) (*models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, apperr.ReasonCardNotFound, "card not found")
	}
	return copyCard(card), nil
}

func (m *memStore) CardByNumber(_ context.Context, number string) (*models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cards {
		if c.Number == number {
			return copyCard(c), nil
		}
	}
	return nil, apperr.New(apperr.NotFound, apperr.ReasonCardNotFound, "card not found")
}

func (m *memStore) CardByOwner(_ context.Context, userID int64) (*models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cards {
		if c.UserID == userID {
			return copyCard(c), nil
		}
	}
	return nil, nil
}

func (m *memStore) ReplaceIdentity(_ context.Context, userID int64, number string, network models.PaymentNetwork, cvc string, expiresAt time.Time) (*models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cards {
		if c.Number == number && c.UserID != userID {
			return nil, apperr.New(apperr.Conflict, apperr.ReasonDuplicateNumber, "card number already exists")
		}
	}
	for _, c := range m.cards {
		if c.UserID == userID {
			c.Number = number
			c.Network = network
			c.CVC = cvc
			c.ExpiresAt = expiresAt
			c.UpdatedAt = time.Now()
			return copyCard(c), nil
		}
	}
	return nil, apperr.New(apperr.NotFound, apperr.ReasonNoCard, "user has no card")
}

func (m *memStore) AdjustBalance(_ context.Context, cardID int64, delta int64) (*models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[cardID]
	if !ok {
		return nil, apperr.New(apperr.NotFound, apperr.ReasonCardNotFound, "card not found")
	}
	if card.Balance+delta < 0 {
		return nil, apperr.New(apperr.InsufficientFunds, apperr.ReasonInsufficientFunds, "insufficient funds")
	}
	card.Balance += delta
	card.UpdatedAt = time.Now()
	return copyCard(card), nil
}

func (m *memStore) AppendTransaction(_ context.Context, cardID int64, typ models.TransactionType, amount int64) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend {
		return nil, errors.New("ledger unavailable")
	}
	m.nextTxID++
	tx := models.Transaction{
		ID:        m.nextTxID,
		CardID:    cardID,
		Type:      typ,
		Amount:    amount,
		CreatedAt: time.Now(),
	}
	m.txs = append(m.txs, tx)
	return &tx, nil
}

func (m *memStore) TransactionsByCard(_ context.Context, cardID int64, limit int) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Transaction
	for i := len(m.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.txs[i].CardID == cardID {
			out = append(out, m.txs[i])
		}
	}
	return out, nil
}

func (m *memStore) CardsExpiringBefore(_ context.Context, deadline time.Time) ([]repository.ExpiringCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.ExpiringCard
	for _, c := range m.cards {
		if !c.ExpiresAt.After(deadline) {
			owner := m.users[c.UserID]
			out = append(out, repository.ExpiringCard{
				Email:     owner.Email,
				Username:  owner.Username,
				Number:    c.Number,
				ExpiresAt: c.ExpiresAt,
			})
		}
	}
	return out, nil
}

func (m *memStore) WithinTx(_ context.Context, fn func(repository.Store) error) error {
	m.mu.Lock()
	snapCards := make(map[int64]*models.Card, len(m.cards))
	for id, c := range m.cards {
		snapCards[id] = copyCard(c)
	}
	snapTxs := append([]models.Transaction(nil), m.txs...)
	snapTxID := m.nextTxID
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.cards = snapCards
		m.txs = snapTxs
		m.nextTxID = snapTxID
		m.mu.Unlock()
		return err
	}
	return nil
}

// transactionCount counts ledger records for a card, or all records
// when cardID is 0.
func (m *memStore) transactionCount(cardID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, tx := range m.txs {
		if cardID == 0 || tx.CardID == cardID {
			n++
		}
	}
	return n
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestService(store repository.Store) *Service {
	return NewService(store, utils.NewGenerator(), quietLogger(), &config.Config{JWTSecret: "test-secret"})
}

// seedUser registers a user directly in the store and returns its id.
func seedUser(store *memStore, username, email string) int64 {
	user := &models.User{Username: username, Email: email, PasswordHash: "x"}
	store.CreateUser(context.Background(), user)
	return user.ID
}
