// Package httputil maps service results and typed errors onto HTTP
// responses. Store-internal error text never reaches the client.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Dan9191/card-service/internal/apperr"
)

// ErrorResponse is the JSON shape of every error reply.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// WriteError translates an error into a status code and a safe message.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		WriteJSON(w, statusFor(appErr.Kind), ErrorResponse{Error: appErr.Message, Reason: appErr.Reason})
		return
	}
	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.BadRequest:
		return http.StatusBadRequest
	case apperr.InsufficientFunds:
		return http.StatusPaymentRequired
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
