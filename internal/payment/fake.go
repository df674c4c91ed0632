package payment

import (
	"context"
	"strings"
)

// Test payment methods understood by FakeGateway. The IDs mirror Stripe's test tokens.
const (
	FakeCardDeclined       = "pm_card_chargeDeclined"
	FakeCardRequiresAction = "pm_card_authenticationRequired"
	FakeCardVisa           = "pm_card_visa"
)

// FakeGateway is a deterministic Gateway used when no Stripe key is configured.
type FakeGateway struct{}

func (FakeGateway) ConfirmCardPayment(ctx context.Context, clientSecret string, params ConfirmParams) (ConfirmResult, error) {
	if err := ctx.Err(); err != nil {
		return ConfirmResult{}, err
	}
	if params.Card == nil || strings.TrimSpace(params.Card.PaymentMethodID) == "" {
		return ConfirmResult{}, ErrMissingCard
	}
	intentID, err := IntentID(clientSecret)
	if err != nil {
		return ConfirmResult{}, err
	}

	status, refusal := fakeStatus(params.Card.PaymentMethodID)
	if refusal != nil {
		return ConfirmResult{Error: refusal}, nil
	}
	return ConfirmResult{Intent: &Intent{ID: intentID, Status: status}}, nil
}

func fakeStatus(paymentMethodID string) (string, *ConfirmError) {
	switch paymentMethodID {
	case FakeCardDeclined:
		return "", &ConfirmError{
			Code:        "card_declined",
			DeclineCode: "generic_decline",
			Message:     "Your card was declined.",
		}
	case FakeCardRequiresAction:
		return "requires_action", nil
	case FakeCardVisa:
		return StatusSucceeded, nil
	default:
		return StatusSucceeded, nil
	}
}
