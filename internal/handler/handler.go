package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Dan9191/card-service/internal/apperr"
	"github.com/Dan9191/card-service/internal/httputil"
	"github.com/Dan9191/card-service/internal/middleware"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/service"
)

const defaultTransactionLimit = 50

// CardService is the surface the HTTP layer needs from the service.
type CardService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	GetUserCard(ctx context.Context, userID int64) (*models.Card, error)
	IssueCard(ctx context.Context, userID int64) (*models.Card, error)
	ReissueCard(ctx context.Context, userID int64, network models.PaymentNetwork) (*models.Card, error)
	RenewCard(ctx context.Context, userID int64) (*models.Card, error)
	AdjustBalance(ctx context.Context, userID int64, amount int64, typ models.TransactionType) (*models.Card, error)
	Transfer(ctx context.Context, userID int64, toNumber string, amount int64) (*service.TransferReceipt, error)
	Transactions(ctx context.Context, userID int64, limit int) ([]models.Transaction, error)
	Statement(ctx context.Context, userID int64) ([]byte, error)
}

type Handler struct {
	svc CardService
}

func NewHandler(svc CardService) *Handler {
	return &Handler{svc: svc}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type reissueRequest struct {
	Network string `json:"network"`
}

type balanceRequest struct {
	Amount int64 `json:"amount"`
}

type transferRequest struct {
	ToCardNumber string `json:"to_card_number"`
	Amount       int64  `json:"amount"`
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.New(apperr.BadRequest, "", "invalid request body")
	}
	return nil
}

func authedUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
	}
	return userID, ok
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		httputil.WriteError(w, apperr.New(apperr.BadRequest, "", "username, email and password are required"))
		return
	}

	user, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, user)
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

// GetUserCard returns the caller's card, or an empty object when none
// is linked.
func (h *Handler) GetUserCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	card, err := h.svc.GetUserCard(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if card == nil {
		httputil.WriteJSON(w, http.StatusOK, struct{}{})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, card)
}

// CreateCard issues a card for the caller
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	card, err := h.svc.IssueCard(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, card)
}

// ReissueCard replaces the caller's card identity under a new network
func (h *Handler) ReissueCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	var req reissueRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	card, err := h.svc.ReissueCard(r.Context(), userID, models.PaymentNetwork(req.Network))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, card)
}

// RenewCard replaces the caller's card identity keeping the network
func (h *Handler) RenewCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	card, err := h.svc.RenewCard(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, card)
}

// TopUp credits the caller's card
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	h.adjustBalance(w, r, models.TransactionTopUp)
}

// Withdraw debits the caller's card
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.adjustBalance(w, r, models.TransactionWithdrawal)
}

func (h *Handler) adjustBalance(w http.ResponseWriter, r *http.Request, typ models.TransactionType) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	var req balanceRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	card, err := h.svc.AdjustBalance(r.Context(), userID, req.Amount, typ)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, card)
}

// Transfer moves money from the caller's card to another card
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	receipt, err := h.svc.Transfer(r.Context(), userID, req.ToCardNumber, req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, receipt)
}

// Transactions lists the caller's ledger records
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	limit := defaultTransactionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httputil.WriteError(w, apperr.New(apperr.BadRequest, "", "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	txs, err := h.svc.Transactions(r.Context(), userID, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	httputil.WriteJSON(w, http.StatusOK, txs)
}

// Statement renders the caller's card statement as XML
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	doc, err := h.svc.Statement(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}
