package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/table_order/internal/account"
	"github.com/fjod/table_order/internal/checkout"
	"github.com/fjod/table_order/internal/payment"
)

// Checkout is the orchestrator as seen by the handlers.
type Checkout interface {
	Submit(ctx context.Context, req checkout.SubmitRequest) (checkout.State, error)
	State() checkout.State
	Reset() (checkout.State, error)
}

// SessionService holds the identity the table pays with.
type SessionService interface {
	Info() account.Info
	Login(ctx context.Context, email string) (account.Info, error)
	Register(ctx context.Context, c account.Customer) (account.Info, error)
}

type CheckoutHandler struct {
	checkout Checkout
	session  SessionService
}

func NewCheckoutHandler(c Checkout, session SessionService) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: c,
		session:  session,
	}
}

type SubmitCheckoutRequestDTO struct {
	PaymentMethodID string `json:"payment_method_id"`
}

// Submit serves POST /checkout. The attempt outlives the HTTP request: a client that
// disconnects mid-payment must not abandon a charge the processor already accepted.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitCheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	info := h.session.Info()
	submit := checkout.SubmitRequest{
		TableNumber:        info.TableNumber,
		CustomerIdentifier: info.CustomerEmail,
	}
	if req.PaymentMethodID != "" {
		submit.Card = &payment.Card{PaymentMethodID: req.PaymentMethodID}
	}

	st, err := h.checkout.Submit(context.WithoutCancel(r.Context()), submit)
	if err != nil {
		handleCheckoutError(w, st, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (h *CheckoutHandler) GetState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.checkout.State())
}

func (h *CheckoutHandler) Reset(w http.ResponseWriter, r *http.Request) {
	st, err := h.checkout.Reset()
	if err != nil {
		handleCheckoutError(w, st, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func handleCheckoutError(w http.ResponseWriter, st checkout.State, err error) {
	kind := checkout.KindOf(err)
	var ce *checkout.Error
	if kind == "" || !errors.As(err, &ce) {
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	var httpStatus int
	switch {
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		httpStatus = http.StatusConflict
	case kind == checkout.KindValidation:
		httpStatus = http.StatusUnprocessableEntity
	case kind == checkout.KindIntegration:
		httpStatus = http.StatusServiceUnavailable
	default:
		httpStatus = http.StatusBadGateway
	}

	respondJSON(w, httpStatus, ErrorResponse{
		Error:   ce.Message,
		Code:    string(kind),
		Details: st.Status.String(),
	})
}
