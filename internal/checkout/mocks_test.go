package checkout

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fjod/table_order/internal/cart"
	"github.com/fjod/table_order/internal/domain"
	"github.com/fjod/table_order/internal/payment"
)

// MockIntentCreator implements payment.IntentCreator for testing
type MockIntentCreator struct {
	mu       sync.Mutex
	Requests []domain.CheckoutRequest
	Keys     []string

	Secret string
	Err    error
	// Gate blocks the call until closed or the context ends.
	Gate    chan struct{}
	Started chan struct{}
}

func (m *MockIntentCreator) CreatePaymentIntent(ctx context.Context, req domain.CheckoutRequest, key string) (payment.IntentResult, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.Keys = append(m.Keys, key)
	m.mu.Unlock()

	if m.Started != nil {
		m.Started <- struct{}{}
	}
	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return payment.IntentResult{}, ctx.Err()
		}
	}
	if m.Err != nil {
		return payment.IntentResult{}, m.Err
	}
	return payment.IntentResult{ClientSecret: m.Secret}, nil
}

func (m *MockIntentCreator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// MockGateway implements payment.Gateway for testing
type MockGateway struct {
	mu      sync.Mutex
	Secrets []string
	Params  []payment.ConfirmParams

	Result payment.ConfirmResult
	Err    error
	Gate   chan struct{}
	// Started is signalled once the confirmation call is in flight.
	Started chan struct{}
}

func (m *MockGateway) ConfirmCardPayment(ctx context.Context, secret string, params payment.ConfirmParams) (payment.ConfirmResult, error) {
	m.mu.Lock()
	m.Secrets = append(m.Secrets, secret)
	m.Params = append(m.Params, params)
	m.mu.Unlock()

	if m.Started != nil {
		m.Started <- struct{}{}
	}
	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return payment.ConfirmResult{}, ctx.Err()
		}
	}
	return m.Result, m.Err
}

func (m *MockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Secrets)
}

// countingStore counts Clear calls on top of a real cart store.
type countingStore struct {
	*cart.Store
	clears atomic.Int32
}

func (s *countingStore) Clear() {
	s.clears.Add(1)
	s.Store.Clear()
}

func succeeded(id string) payment.ConfirmResult {
	return payment.ConfirmResult{Intent: &payment.Intent{ID: id, Status: payment.StatusSucceeded}}
}
