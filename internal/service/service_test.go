package service

import (
	"context"
	"sync"
	"testing"

	"github.com/Dan9191/card-service/internal/apperr"
	"github.com/Dan9191/card-service/internal/models"
)

func TestIssueCard(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	userID := seedUser(store, "Alice", "alice@test.com")

	card, err := svc.IssueCard(context.Background(), userID)
	if err != nil {
		t.Fatalf("IssueCard: %v", err)
	}

	if card.Balance != 0 {
		t.Errorf("balance = %d, want 0", card.Balance)
	}
	if len(card.Number) != 16 {
		t.Errorf("number length = %d, want 16", len(card.Number))
	}
	if len(card.CVC) != 3 {
		t.Errorf("cvc length = %d, want 3", len(card.CVC))
	}
	if derived, ok := models.NetworkForPrefix(card.Number[0]); !ok || derived != card.Network {
		t.Errorf("number prefix %c inconsistent with network %s", card.Number[0], card.Network)
	}
	if !card.ExpiresAt.After(card.CreatedAt) {
		t.Error("expiry is not forward-dated")
	}
}

func TestIssueCardConflict(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	userID := seedUser(store, "Alice", "alice@test.com")

	if _, err := svc.IssueCard(context.Background(), userID); err != nil {
		t.Fatalf("first IssueCard: %v", err)
	}
	_, err := svc.IssueCard(context.Background(), userID)
	if apperr.KindOf(err) != apperr.Conflict {
		t.Fatalf("second IssueCard err = %v, want Conflict", err)
	}
}

func TestIssueCardUnknownUser(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	_, err := svc.IssueCard(context.Background(), 42)
	if apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestReissueCard(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	userID := seedUser(store, "Alice", "alice@test.com")
	ctx := context.Background()

	issued, err := svc.IssueCard(ctx, userID)
	if err != nil {
		t.Fatalf("IssueCard: %v", err)
	}
	if _, err := svc.AdjustBalance(ctx, userID, 500, models.TransactionTopUp); err != nil {
		t.Fatalf("AdjustBalance: %v", err)
	}

	card, err := svc.ReissueCard(ctx, userID, models.NetworkMaestro)
	if err != nil {
		t.Fatalf("ReissueCard: %v", err)
	}

	if card.ID != issued.ID {
		t.Errorf("card id changed on reissue: %d -> %d", issued.ID, card.ID)
	}
	if card.Network != models.NetworkMaestro {
		t.Errorf("network = %s, want MAESTRO", card.Network)
	}
	if card.Number[0] != '6' {
		t.Errorf("prefix = %c, want 6", card.Number[0])
	}
	if card.Balance != 500 {
		t.Errorf("balance = %d, want 500 (must survive reissue)", card.Balance)
	}
	if card.Number == issued.Number {
		t.Error("number did not change on reissue")
	}
}

func TestReissueCardUnknownNetwork(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	userID := seedUser(store, "Alice", "alice@test.com")
	ctx := context.Background()

	if _, err := svc.IssueCard(ctx, userID); err != nil {
		t.Fatalf("IssueCard: %v", err)
	}
	_, err := svc.ReissueCard(ctx, userID, "AMEX")
	if apperr.KindOf(err) != apperr.BadRequest || apperr.ReasonOf(err) != apperr.ReasonUnknownNetwork {
		t.Fatalf("err = %v, want BadRequest(unknown_network)", err)
	}
}

func TestReissueCardWithoutCard(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	userID := seedUser(store, "Alice", "alice@test.com")

	_, err := svc.ReissueCard(context.Background(), userID, models.NetworkVisa)
	if apperr.KindOf(err) != apperr.BadRequest {
		t.Fatalf("err = %v, want BadRequest", err)
	}
}

func TestRenewCardKeepsNetwork(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	userID := seedUser(store, "Alice", "alice@test.com")
	ctx := context.Background()

	issued, err := svc.IssueCard(ctx, userID)
	if err != nil {
		t.Fatalf("IssueCard: %v", err)
	}
	if _, err := svc.AdjustBalance(ctx, userID, 300, models.TransactionTopUp); err != nil {
		t.Fatalf("AdjustBalance: %v", err)
	}

	card, err := svc.RenewCard(ctx, userID)
	if err != nil {
		t.Fatalf("RenewCard: %v", err)
	}

	if card.Network != issued.Network {
		t.Errorf("network changed on renew: %s -> %s", issued.Network, card.Network)
	}
	if card.Number[0] != issued.Number[0] {
		t.Errorf("prefix changed on renew: %c -> %c", issued.Number[0], card.Number[0])
	}
	if derived, _ := models.NetworkForPrefix(card.Number[0]); derived != card.Network {
		t.Errorf("number prefix %c inconsistent with network %s", card.Number[0], card.Network)
	}
	if card.Balance != 300 {
		t.Errorf("balance = %d, want 300 (must survive renew)", card.Balance)
	}
}

func TestRenewCardWithoutCard(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	userID := seedUser(store, "Alice", "alice@test.com")

	_, err := svc.RenewCard(context.Background(), userID)
	if apperr.KindOf(err) != apperr.BadRequest || apperr.ReasonOf(err) != apperr.ReasonNoCard {
		t.Fatalf("err = %v, want BadRequest(no_card)", err)
	}
}

func TestAdjustBalance(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	userID := seedUser(store, "Alice", "alice@test.com")
	ctx := context.Background()

	if _, err := svc.IssueCard(ctx, userID); err != nil {
		t.Fatalf("IssueCard: %v", err)
	}

	card, err := svc.AdjustBalance(ctx, userID, 500, models.TransactionTopUp)
	if err != nil {
		t.Fatalf("top up: %v", err)
	}
	if card.Balance != 500 {
		t.Errorf("balance = %d, want 500", card.Balance)
	}

	card, err = svc.AdjustBalance(ctx, userID, 200, models.TransactionWithdrawal)
	if err != nil {
		t.Fatalf("withdrawal: %v", err)
	}
	if card.Balance != 300 {
		t.Errorf("balance = %d, want 300", card.Balance)
	}

	// A withdrawal below zero is rejected and leaves the balance alone.
	_, err = svc.AdjustBalance(ctx, userID, 400, models.TransactionWithdrawal)
	if apperr.KindOf(err) != apperr.InsufficientFunds {
		t.Fatalf("err = %v, want InsufficientFunds", err)
	}
	card, _ = svc.GetUserCard(ctx, userID)
	if card.Balance != 300 {
		t.Errorf("balance after rejected withdrawal = %d, want 300", card.Balance)
	}
}

func TestAdjustBalanceRejectsNonPositiveAmount(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	userID := seedUser(store, "Alice", "alice@test.com")
	ctx := context.Background()

	if _, err := svc.IssueCard(ctx, userID); err != nil {
		t.Fatalf("IssueCard: %v", err)
	}
	for _, amount := range []int64{0, -10} {
		_, err := svc.AdjustBalance(ctx, userID, amount, models.TransactionTopUp)
		if apperr.ReasonOf(err) != apperr.ReasonInvalidAmount {
			t.Errorf("amount %d: err = %v, want invalid_amount", amount, err)
		}
	}
}

func TestAdjustBalanceWithoutCard(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	userID := seedUser(store, "Alice", "alice@test.com")

	_, err := svc.AdjustBalance(context.Background(), userID, 100, models.TransactionTopUp)
	if apperr.ReasonOf(err) != apperr.ReasonNoCard {
		t.Fatalf("err = %v, want no_card", err)
	}
}

func TestConcurrentTopUps(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	userID := seedUser(store, "Alice", "alice@test.com")
	ctx := context.Background()

	if _, err := svc.IssueCard(ctx, userID); err != nil {
		t.Fatalf("IssueCard: %v", err)
	}

	const workers = 1000
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := svc.AdjustBalance(ctx, userID, 1, models.TransactionTopUp); err != nil {
				t.Errorf("AdjustBalance: %v", err)
			}
		}()
	}
	wg.Wait()

	card, err := svc.GetUserCard(ctx, userID)
	if err != nil {
		t.Fatalf("GetUserCard: %v", err)
	}
	if card.Balance != workers {
		t.Errorf("balance = %d, want %d (lost updates)", card.Balance, workers)
	}
}

func TestLogin(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Alice", "alice@test.com", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, err := svc.Login(ctx, "alice@test.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Error("empty token")
	}

	if _, err := svc.Login(ctx, "alice@test.com", "wrong"); apperr.KindOf(err) != apperr.Unauthorized {
		t.Errorf("wrong password err = %v, want Unauthorized", err)
	}
	if _, err := svc.Login(ctx, "nobody@test.com", "hunter22"); apperr.KindOf(err) != apperr.Unauthorized {
		t.Errorf("unknown user err = %v, want Unauthorized", err)
	}
}

func TestTransactionsWithoutCard(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	userID := seedUser(store, "Alice", "alice@test.com")

	_, err := svc.Transactions(context.Background(), userID, 10)
	if apperr.ReasonOf(err) != apperr.ReasonNoCard {
		t.Fatalf("err = %v, want no_card", err)
	}
}
