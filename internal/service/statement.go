package service

import (
	"context"
	"strconv"
	"time"

	"github.com/Dan9191/card-service/internal/apperr"
	"github.com/Dan9191/card-service/internal/utils"
	"github.com/beevik/etree"
)

const statementLimit = 100

// Statement renders the user's card and its recent ledger records as an
// XML document. The card number is masked.
func (s *Service) Statement(ctx context.Context, userID int64) ([]byte, error) {
	card, err := s.store.CardByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, apperr.New(apperr.BadRequest, apperr.ReasonNoCard, "user has no card")
	}

	txs, err := s.store.TransactionsByCard(ctx, card.ID, statementLimit)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("statement")
	root.CreateAttr("generated_at", time.Now().UTC().Format(time.RFC3339))

	cardEl := root.CreateElement("card")
	cardEl.CreateAttr("number", utils.MaskNumber(card.Number))
	cardEl.CreateAttr("network", string(card.Network))
	cardEl.CreateAttr("balance", strconv.FormatInt(card.Balance, 10))
	cardEl.CreateAttr("expires_at", card.ExpiresAt.UTC().Format(time.RFC3339))

	txsEl := root.CreateElement("transactions")
	for _, t := range txs {
		el := txsEl.CreateElement("transaction")
		el.CreateAttr("id", strconv.FormatInt(t.ID, 10))
		el.CreateAttr("type", string(t.Type))
		el.CreateAttr("amount", strconv.FormatInt(t.Amount, 10))
		el.CreateAttr("created_at", t.CreatedAt.UTC().Format(time.RFC3339))
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}
