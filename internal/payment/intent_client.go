package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fjod/table_order/internal/backend"
	"github.com/fjod/table_order/internal/domain"
)

const createIntentPath = "/createPaymentIntent"

var ErrEmptyClientSecret = errors.New("payment intent response has no client secret")

type IntentResult struct {
	ClientSecret string
}

// IntentCreator asks the backend to create a payment intent for a cart snapshot.
type IntentCreator interface {
	CreatePaymentIntent(ctx context.Context, req domain.CheckoutRequest, idempotencyKey string) (IntentResult, error)
}

type IntentClient struct {
	api *backend.Client
}

func NewIntentClient(api *backend.Client) *IntentClient {
	return &IntentClient{api: api}
}

type createIntentBody struct {
	Cart        []domain.LineItem `json:"cart"`
	TableNumber int               `json:"table_number"`
	Email       string            `json:"email"`
}

type createIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
	Error        string `json:"error"`
}

func (c *IntentClient) CreatePaymentIntent(ctx context.Context, req domain.CheckoutRequest, idempotencyKey string) (IntentResult, error) {
	body := createIntentBody{
		Cart:        req.Cart.Items,
		TableNumber: req.TableNumber,
		Email:       req.CustomerIdentifier,
	}

	var resp createIntentResponse
	_, err := c.api.Do(ctx, backend.Request{
		Method:         http.MethodPost,
		Path:           createIntentPath,
		Body:           body,
		IdempotencyKey: idempotencyKey,
	}, &resp)
	if err != nil {
		return IntentResult{}, fmt.Errorf("create payment intent: %w", err)
	}
	if resp.Error != "" {
		return IntentResult{}, fmt.Errorf("create payment intent: %w", &backend.StatusError{
			StatusCode:  http.StatusOK,
			ServerError: resp.Error,
		})
	}
	if resp.ClientSecret == "" {
		return IntentResult{}, ErrEmptyClientSecret
	}
	return IntentResult{ClientSecret: resp.ClientSecret}, nil
}
