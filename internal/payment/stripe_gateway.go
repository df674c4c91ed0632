package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.uber.org/zap"
)

type stripePaymentIntentAPI interface {
	Confirm(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
}

type stripePaymentMethodAPI interface {
	Update(id string, params *stripe.PaymentMethodParams) (*stripe.PaymentMethod, error)
}

type stripeClients struct {
	intents        stripePaymentIntentAPI
	paymentMethods stripePaymentMethodAPI
}

type StripeGatewayConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   *zap.Logger
	clients  *stripeClients
}

// StripeGateway confirms payment intents through the Stripe API.
type StripeGateway struct {
	api stripeClients
	log *zap.Logger
}

func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.clients != nil {
		clients = *cfg.clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			intents:        sc.PaymentIntents,
			paymentMethods: sc.PaymentMethods,
		}
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &StripeGateway{api: clients, log: log}, nil
}

func (g *StripeGateway) ConfirmCardPayment(ctx context.Context, clientSecret string, params ConfirmParams) (ConfirmResult, error) {
	if params.Card == nil || strings.TrimSpace(params.Card.PaymentMethodID) == "" {
		return ConfirmResult{}, ErrMissingCard
	}
	intentID, err := IntentID(clientSecret)
	if err != nil {
		return ConfirmResult{}, err
	}
	pmID := params.Card.PaymentMethodID

	if params.BillingName != "" {
		pmParams := &stripe.PaymentMethodParams{
			BillingDetails: &stripe.PaymentMethodBillingDetailsParams{
				Name: stripe.String(params.BillingName),
			},
		}
		pmParams.Context = ctx
		if _, err := g.api.paymentMethods.Update(pmID, pmParams); err != nil {
			// billing name is informational, the confirmation still decides the outcome
			g.log.Warn("stripe: set billing name failed", zap.String("payment_method", pmID), zap.Error(err))
		}
	}

	confirm := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(pmID),
	}
	confirm.Context = ctx
	if key := strings.TrimSpace(params.IdempotencyKey); key != "" {
		confirm.SetIdempotencyKey(key)
	}

	pi, err := g.api.intents.Confirm(intentID, confirm)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && isRefusal(stripeErr) {
			return ConfirmResult{Error: &ConfirmError{
				Code:        string(stripeErr.Code),
				DeclineCode: string(stripeErr.DeclineCode),
				Message:     stripeErr.Msg,
			}}, nil
		}
		return ConfirmResult{}, fmt.Errorf("stripe: confirm payment intent: %w", err)
	}

	g.log.Info("stripe: payment intent confirmed",
		zap.String("payment_intent", pi.ID),
		zap.String("status", string(pi.Status)),
	)
	return ConfirmResult{Intent: &Intent{ID: pi.ID, Status: string(pi.Status)}}, nil
}

// isRefusal reports whether Stripe rejected the payment itself rather than failing to process the call.
func isRefusal(err *stripe.Error) bool {
	switch err.Type {
	case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest:
		return true
	default:
		return false
	}
}
