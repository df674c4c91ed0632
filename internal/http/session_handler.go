package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/table_order/internal/account"
)

type SessionHandler struct {
	session SessionService
	timeout time.Duration
}

func NewSessionHandler(session SessionService, timeout time.Duration) *SessionHandler {
	return &SessionHandler{
		session: session,
		timeout: timeout,
	}
}

type LoginRequestDTO struct {
	Email string `json:"email"`
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Info())
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	info, err := h.session.Login(ctx, req.Email)
	if err != nil {
		handleAccountError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req account.Customer
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	info, err := h.session.Register(ctx, req)
	if err != nil {
		handleAccountError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, info)
}

func handleAccountError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, account.ErrInvalidEmail):
		respondError(w, http.StatusUnprocessableEntity, "invalid_email", "a valid email is required")
	case errors.Is(err, account.ErrMissingName):
		respondError(w, http.StatusUnprocessableEntity, "invalid_name", err.Error())
	case errors.Is(err, account.ErrUnknownCustomer):
		respondError(w, http.StatusNotFound, "unknown_customer", "Customer Doesn't exist")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "account service did not respond in time")
	default:
		respondError(w, http.StatusBadGateway, "service_unavailable", "account service is not available")
	}
}
