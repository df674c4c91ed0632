package payment

import (
	"context"
	"errors"
	"strings"
)

const StatusSucceeded = "succeeded"

var (
	ErrInvalidClientSecret = errors.New("invalid client secret")
	ErrMissingCard         = errors.New("card input is required")
)

// Card is the tokenized card captured by the payment form.
type Card struct {
	PaymentMethodID string
}

type ConfirmParams struct {
	Card           *Card
	BillingName    string
	IdempotencyKey string
}

// ConfirmError is a payment-level refusal, such as a declined card.
type ConfirmError struct {
	Code        string
	DeclineCode string
	Message     string
}

type Intent struct {
	ID     string
	Status string
}

// ConfirmResult carries either a refusal or the resulting intent.
type ConfirmResult struct {
	Error  *ConfirmError
	Intent *Intent
}

// Gateway confirms a card payment for a server-created payment intent.
// A refusal by the processor is reported in ConfirmResult.Error; a returned error
// means the processor could not be reached or answered unexpectedly.
type Gateway interface {
	ConfirmCardPayment(ctx context.Context, clientSecret string, params ConfirmParams) (ConfirmResult, error)
}

// IntentID extracts the payment intent ID from a client secret of the form "pi_xxx_secret_yyy".
func IntentID(clientSecret string) (string, error) {
	id, _, ok := strings.Cut(clientSecret, "_secret_")
	if !ok || id == "" {
		return "", ErrInvalidClientSecret
	}
	return id, nil
}
