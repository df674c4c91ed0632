package checkout

import (
	"errors"
	"strings"

	"github.com/fjod/table_order/internal/backend"
)

// Kind classifies why a checkout attempt was rejected or failed.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindTransport   Kind = "transport"
	KindPayment     Kind = "payment"
	KindIntegration Kind = "integration"
)

const (
	msgGeneric         = "An unexpected error occurred."
	msgPaymentFailed   = "Payment failed."
	msgSucceeded       = "Payment successful!"
	msgGatewayMissing  = "Stripe is not properly initialized."
	msgEmptyCart       = "Your cart is empty."
	msgMissingCard     = "Card details are required."
	msgInProgress      = "A payment is already being processed."
	msgClosed          = "Checkout is no longer available."
	msgCancelled       = "Checkout was cancelled."
	msgNotCompletedFmt = "Payment was not completed (status: %s)."
)

var (
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrGatewayUnavailable = errors.New("payment gateway is not initialized")
	ErrMissingCard        = errors.New("card input is missing")
	ErrClosed             = errors.New("checkout orchestrator is closed")
	ErrCancelled          = errors.New("checkout cancelled by caller")
	ErrIllegalTransition  = errors.New("illegal transition of checkout status")
)

// Error is the user-facing outcome of a rejected or failed checkout.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or "" when err is not a checkout error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// userMessage picks the backend "error" text, then the error text, then a generic fallback.
func userMessage(err error) string {
	if msg := backend.ServerError(err); msg != "" {
		return msg
	}
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			return msg
		}
	}
	return msgGeneric
}
