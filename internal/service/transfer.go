package service

import (
	"context"

	"github.com/Dan9191/card-service/internal/apperr"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/repository"
	"github.com/Dan9191/card-service/internal/utils"
	"github.com/sirupsen/logrus"
)

// TransferReceipt confirms a committed transfer.
type TransferReceipt struct {
	FromCardID int64 `json:"from_card_id"`
	ToCardID   int64 `json:"to_card_id"`
	Amount     int64 `json:"amount"`
}

// Transfer moves money from the sender's card to the card identified by
// toNumber. Both balance adjustments and both ledger records commit as
// one unit or not at all.
func (s *Service) Transfer(ctx context.Context, userID int64, toNumber string, amount int64) (*TransferReceipt, error) {
	sender, err := s.store.CardByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, apperr.New(apperr.BadRequest, apperr.ReasonNoCard, "no card to transfer from")
	}

	recipient, err := s.store.CardByNumber(ctx, toNumber)
	if err != nil {
		return nil, err
	}

	if amount <= 0 {
		return nil, apperr.New(apperr.BadRequest, apperr.ReasonInvalidAmount, "transfer amount must be positive")
	}
	if sender.ID == recipient.ID {
		return nil, apperr.New(apperr.BadRequest, apperr.ReasonSelfTransfer, "cannot transfer to own card")
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		// Adjust in ascending card id order so two opposite transfers
		// cannot deadlock on the row locks.
		steps := []struct {
			cardID int64
			delta  int64
		}{
			{sender.ID, -amount},
			{recipient.ID, amount},
		}
		if steps[0].cardID > steps[1].cardID {
			steps[0], steps[1] = steps[1], steps[0]
		}
		for _, step := range steps {
			if _, err := tx.AdjustBalance(ctx, step.cardID, step.delta); err != nil {
				return err
			}
		}
		if _, err := tx.AppendTransaction(ctx, sender.ID, models.TransactionWithdrawal, amount); err != nil {
			return err
		}
		if _, err := tx.AppendTransaction(ctx, recipient.ID, models.TransactionTopUp, amount); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"from":   utils.MaskNumber(sender.Number),
		"to":     utils.MaskNumber(recipient.Number),
		"amount": amount,
	}).Info("transfer committed")

	return &TransferReceipt{FromCardID: sender.ID, ToCardID: recipient.ID, Amount: amount}, nil
}
