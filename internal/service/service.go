package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/card-service/internal/apperr"
	"github.com/Dan9191/card-service/internal/config"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/repository"
	"github.com/Dan9191/card-service/internal/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// maxNumberAttempts bounds the generate-then-insert retry loop on card
// number collisions.
const maxNumberAttempts = 3

// Service handles business logic
type Service struct {
	store  repository.Store
	gen    *utils.Generator
	log    *logrus.Logger
	config *config.Config
}

// NewService initializes a new service
func NewService(store repository.Store, gen *utils.Generator, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{store: store, gen: gen, log: log, config: cfg}
}

// Register creates a new user with hashed password
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s", user.Email)
	return user, nil
}

// Login authenticates a user and returns a JWT token
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return "", apperr.New(apperr.Unauthorized, apperr.ReasonBadCredentials, "invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", apperr.New(apperr.Unauthorized, apperr.ReasonBadCredentials, "invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   fmt.Sprintf("%d", user.ID),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", user.Email)
	return tokenString, nil
}

// GetUserCard returns the user's card, or nil when none is linked.
func (s *Service) GetUserCard(ctx context.Context, userID int64) (*models.Card, error) {
	return s.store.CardByOwner(ctx, userID)
}

// IssueCard creates a card for a user that does not have one yet. A
// number collision is resolved by regenerating; the ownership and
// number uniqueness constraints in the store close the race with
// concurrent issuance.
func (s *Service) IssueCard(ctx context.Context, userID int64) (*models.Card, error) {
	if _, err := s.store.UserByID(ctx, userID); err != nil {
		return nil, err
	}
	existing, err := s.store.CardByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.New(apperr.Conflict, apperr.ReasonDuplicateOwner, "user already has a card")
	}

	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, network, err := s.gen.Fresh()
		if err != nil {
			return nil, fmt.Errorf("failed to generate card number: %w", err)
		}
		cvc, err := s.gen.CVC()
		if err != nil {
			return nil, fmt.Errorf("failed to generate cvc: %w", err)
		}

		card := &models.Card{
			UserID:    userID,
			Number:    number,
			Network:   network,
			CVC:       cvc,
			ExpiresAt: s.gen.ExpiryDate(),
			Balance:   0,
		}
		err = s.store.CreateCard(ctx, card)
		if err == nil {
			s.log.Infof("Card issued for user %d: %s (%s)", userID, utils.MaskNumber(number), network)
			return card, nil
		}
		if apperr.ReasonOf(err) == apperr.ReasonDuplicateNumber {
			continue
		}
		return nil, err
	}
	return nil, apperr.New(apperr.Conflict, apperr.ReasonDuplicateNumber, "could not allocate a unique card number")
}

// ReissueCard replaces the card's number, cvc and expiry under the
// requested network, preserving the balance.
func (s *Service) ReissueCard(ctx context.Context, userID int64, network models.PaymentNetwork) (*models.Card, error) {
	if !network.Valid() {
		return nil, apperr.New(apperr.BadRequest, apperr.ReasonUnknownNetwork, fmt.Sprintf("unknown payment network %q", network))
	}
	card, err := s.replaceIdentity(ctx, userID, network, func() (string, error) {
		return s.gen.ForNetwork(network)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("Card reissued for user %d: %s (%s)", userID, utils.MaskNumber(card.Number), card.Network)
	return card, nil
}

// RenewCard replaces the card's number, cvc and expiry keeping the
// current network, preserving the balance.
func (s *Service) RenewCard(ctx context.Context, userID int64) (*models.Card, error) {
	current, err := s.store.CardByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperr.New(apperr.BadRequest, apperr.ReasonNoCard, "user has no card to renew")
	}

	card, err := s.replaceIdentity(ctx, userID, current.Network, func() (string, error) {
		return s.gen.Regenerate(current.Number)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("Card renewed for user %d: %s", userID, utils.MaskNumber(card.Number))
	return card, nil
}

func (s *Service) replaceIdentity(ctx context.Context, userID int64, network models.PaymentNetwork, numberFn func() (string, error)) (*models.Card, error) {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := numberFn()
		if err != nil {
			return nil, fmt.Errorf("failed to generate card number: %w", err)
		}
		cvc, err := s.gen.CVC()
		if err != nil {
			return nil, fmt.Errorf("failed to generate cvc: %w", err)
		}

		card, err := s.store.ReplaceIdentity(ctx, userID, number, network, cvc, s.gen.ExpiryDate())
		if err == nil {
			return card, nil
		}
		if apperr.ReasonOf(err) == apperr.ReasonDuplicateNumber {
			continue
		}
		if apperr.KindOf(err) == apperr.NotFound {
			return nil, apperr.New(apperr.BadRequest, apperr.ReasonNoCard, "user has no card")
		}
		return nil, err
	}
	return nil, apperr.New(apperr.Conflict, apperr.ReasonDuplicateNumber, "could not allocate a unique card number")
}

// AdjustBalance tops up or withdraws from the user's card. The signed
// delta lives in the transaction type, not in the amount.
func (s *Service) AdjustBalance(ctx context.Context, userID int64, amount int64, typ models.TransactionType) (*models.Card, error) {
	if amount <= 0 {
		return nil, apperr.New(apperr.BadRequest, apperr.ReasonInvalidAmount, "amount must be positive")
	}
	card, err := s.store.CardByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, apperr.New(apperr.BadRequest, apperr.ReasonNoCard, "user has no card")
	}

	delta := amount
	if typ == models.TransactionWithdrawal {
		delta = -amount
	}

	var updated *models.Card
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		var txErr error
		updated, txErr = tx.AdjustBalance(ctx, card.ID, delta)
		if txErr != nil {
			return txErr
		}
		_, txErr = tx.AppendTransaction(ctx, card.ID, typ, amount)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.log.Infof("Balance adjusted for card %s: %s %d", utils.MaskNumber(card.Number), typ, amount)
	return updated, nil
}

// Transactions lists the ledger records of the user's card, newest first.
func (s *Service) Transactions(ctx context.Context, userID int64, limit int) ([]models.Transaction, error) {
	card, err := s.store.CardByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, apperr.New(apperr.BadRequest, apperr.ReasonNoCard, "user has no card")
	}
	return s.store.TransactionsByCard(ctx, card.ID, limit)
}
