package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fjod/table_order/internal/account"
	"github.com/fjod/table_order/internal/cart"
	"github.com/fjod/table_order/internal/catalog"
	"github.com/fjod/table_order/internal/checkout"
	"github.com/fjod/table_order/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type MenuMock struct {
	items         []domain.MenuItem
	itemErr       error
	invalidateErr error
	invalidated   int
	lastQ         catalog.Query
}

func (m *MenuMock) Invalidate(context.Context) error {
	m.invalidated++
	return m.invalidateErr
}

func (m *MenuMock) Menu(_ context.Context, q catalog.Query) catalog.MenuView {
	m.lastQ = q
	return catalog.MenuView{
		Items:            catalog.Filter(m.items, q.Search, q.Category),
		Categories:       catalog.CategoryOptions([]string{"Pizza", "Drinks"}),
		MenuLoaded:       true,
		CategoriesLoaded: true,
	}
}

func (m *MenuMock) Ingredients(_ context.Context, itemID int64) catalog.IngredientsView {
	return catalog.IngredientsView{
		ItemID:      itemID,
		Ingredients: []domain.Ingredient{{Name: "basil", Quantity: 2}},
		Loaded:      true,
	}
}

func (m *MenuMock) Item(_ context.Context, itemID int64) (domain.MenuItem, error) {
	if m.itemErr != nil {
		return domain.MenuItem{}, m.itemErr
	}
	for _, item := range m.items {
		if item.ID == itemID {
			return item, nil
		}
	}
	return domain.MenuItem{}, catalog.ErrItemNotFound
}

type CheckoutMock struct {
	state    checkout.State
	err      error
	lastReq  checkout.SubmitRequest
	ctxAlive bool
}

func (m *CheckoutMock) Submit(ctx context.Context, req checkout.SubmitRequest) (checkout.State, error) {
	m.lastReq = req
	m.ctxAlive = ctx.Done() == nil
	return m.state, m.err
}

func (m *CheckoutMock) State() checkout.State { return m.state }

func (m *CheckoutMock) Reset() (checkout.State, error) {
	if m.err != nil {
		return m.state, m.err
	}
	m.state = checkout.State{Status: domain.CheckoutStatusIdle}
	return m.state, nil
}

type SessionMock struct {
	info account.Info
	err  error
}

func (m *SessionMock) Info() account.Info { return m.info }

func (m *SessionMock) Login(_ context.Context, email string) (account.Info, error) {
	if m.err != nil {
		return m.info, m.err
	}
	m.info.CustomerEmail = email
	m.info.Verified = true
	return m.info, nil
}

func (m *SessionMock) Register(_ context.Context, c account.Customer) (account.Info, error) {
	return m.Login(context.Background(), c.Email)
}

type testServer struct {
	handler  http.Handler
	store    *cart.Store
	menu     *MenuMock
	checkout *CheckoutMock
	session  *SessionMock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		store: cart.NewStore(),
		menu: &MenuMock{items: []domain.MenuItem{
			{ID: 1, Name: "Margherita", Price: decimal.RequireFromString("9.99"), Category: "Pizza"},
			{ID: 2, Name: "Lemonade", Price: decimal.RequireFromString("3.50"), Category: "Drinks"},
		}},
		checkout: &CheckoutMock{state: checkout.State{Status: domain.CheckoutStatusIdle}},
		session:  &SessionMock{info: account.Info{TableNumber: 4, CustomerEmail: "guest@example.com"}},
	}
	ts.handler = NewRouter(RouterDeps{
		Log:                zaptest.NewLogger(t),
		Menu:               ts.menu,
		Store:              ts.store,
		Checkout:           ts.checkout,
		Session:            ts.session,
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 10,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decodeCart(t *testing.T, w *httptest.ResponseRecorder) CartResponse {
	t.Helper()
	var resp CartResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestGetMenu(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/menu?search=LEM&category=All&sort=price", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var view catalog.MenuView
	require.NoError(t, json.NewDecoder(w.Body).Decode(&view))
	require.Len(t, view.Items, 1)
	assert.Equal(t, "Lemonade", view.Items[0].Name)
	assert.Equal(t, []string{"All", "Pizza", "Drinks"}, view.Categories)
	assert.True(t, ts.menu.lastQ.SortByPrice)
}

func TestGetMenu_InvalidSort(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/api/v1/menu?sort=name", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetIngredients(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/menu/1/ingredients", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var view catalog.IngredientsView
	require.NoError(t, json.NewDecoder(w.Body).Decode(&view))
	assert.Equal(t, int64(1), view.ItemID)
	assert.Equal(t, "basil", view.Ingredients[0].Name)

	w = ts.do(t, http.MethodGet, "/api/v1/menu/abc/ingredients", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefreshMenu(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/menu/refresh", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, ts.menu.invalidated)

	ts.menu.invalidateErr = errors.New("redis down")
	w = ts.do(t, http.MethodPost, "/api/v1/menu/refresh", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAddItem_MergesAndTotals(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{MenuItemID: 1, Quantity: intPtr(1)})
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{MenuItemID: 1, Quantity: intPtr(1)})
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/cart/items", `{"menu_item_id":2}`)
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeCart(t, w)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, 2, resp.Items[0].Quantity)
	assert.Equal(t, "23.48", resp.Total)
	assert.Equal(t, 3, resp.ItemCount)
}

func TestAddItem_Validation(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"invalid json", "{", http.StatusBadRequest},
		{"missing id", AddItemRequestDTO{Quantity: intPtr(1)}, http.StatusBadRequest},
		{"zero quantity", AddItemRequestDTO{MenuItemID: 1, Quantity: intPtr(0)}, http.StatusUnprocessableEntity},
		{"too many", AddItemRequestDTO{MenuItemID: 1, Quantity: intPtr(100)}, http.StatusUnprocessableEntity},
		{"unknown item", AddItemRequestDTO{MenuItemID: 42, Quantity: intPtr(1)}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			w := ts.do(t, http.MethodPost, "/api/v1/cart/items", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, 0, ts.store.Len())
		})
	}
}

func TestAddItem_CapsMergedQuantity(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Add(ts.menu.items[0], 98)

	w := ts.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{MenuItemID: 1, Quantity: intPtr(2)})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, 98, ts.store.Quantity(1))
}

func TestAddItem_ConcurrentAddsRespectCap(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Add(ts.menu.items[0], 90)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{MenuItemID: 1, Quantity: intPtr(1)})
		}()
	}
	wg.Wait()

	assert.Equal(t, 99, ts.store.Quantity(1))
}

func TestAddItem_NegativePrice(t *testing.T) {
	ts := newTestServer(t)
	ts.menu.items = append(ts.menu.items, domain.MenuItem{ID: 3, Name: "Refund", Price: decimal.RequireFromString("-1.00")})

	w := ts.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{MenuItemID: 3})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, 0, ts.store.Len())
}

func TestAddItem_CatalogDown(t *testing.T) {
	ts := newTestServer(t)
	ts.menu.itemErr = errors.New("backend down")

	w := ts.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{MenuItemID: 1})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "catalog_unavailable", decodeError(t, w).Code)
}

func TestUpdateQuantity(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Add(ts.menu.items[0], 3)

	w := ts.do(t, http.MethodPut, "/api/v1/cart/items/1", UpdateQuantityRequestDTO{Quantity: intPtr(5)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, decodeCart(t, w).Items[0].Quantity)

	w = ts.do(t, http.MethodPut, "/api/v1/cart/items/1", UpdateQuantityRequestDTO{Quantity: intPtr(0)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeCart(t, w).Items)

	w = ts.do(t, http.MethodPut, "/api/v1/cart/items/1", UpdateQuantityRequestDTO{Quantity: intPtr(2)})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPut, "/api/v1/cart/items/1", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/api/v1/cart/items/1", UpdateQuantityRequestDTO{Quantity: intPtr(-1)})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUpdateInstructions(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Add(domain.MenuItem{ID: 1, Name: "Burger", Price: decimal.RequireFromString("5.00")}, 2)

	w := ts.do(t, http.MethodPut, "/api/v1/cart/items/1/instructions", UpdateInstructionsRequestDTO{SpecialInstructions: "no onions"})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeCart(t, w)
	assert.Equal(t, "no onions", resp.Items[0].SpecialInstructions)
	assert.Equal(t, "10.00", resp.Total)
}

func TestUpdateInstructions_Sanitized(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Add(ts.menu.items[0], 1)

	w := ts.do(t, http.MethodPut, "/api/v1/cart/items/1/instructions",
		UpdateInstructionsRequestDTO{SpecialInstructions: `<script>alert(1)</script>extra <b>cheese</b> & basil`})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "extra cheese & basil", decodeCart(t, w).Items[0].SpecialInstructions)

	w = ts.do(t, http.MethodPut, "/api/v1/cart/items/1/instructions",
		UpdateInstructionsRequestDTO{SpecialInstructions: strings.Repeat("a", 201)})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.do(t, http.MethodPut, "/api/v1/cart/items/2/instructions", UpdateInstructionsRequestDTO{SpecialInstructions: "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPut, "/api/v1/cart/items/1/instructions",
		UpdateInstructionsRequestDTO{SpecialInstructions: `&lt;script&gt;alert(1)&lt;/script&gt;no onions`})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no onions", decodeCart(t, w).Items[0].SpecialInstructions)
}

func TestSanitize_EncodedMarkup(t *testing.T) {
	h := NewCartHandler(cart.NewStore(), &MenuMock{}, time.Second)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "no onions", "no onions"},
		{"ampersand", "salt & pepper", "salt & pepper"},
		{"less than", "spice < 3", "spice < 3"},
		{"tags", "<b>extra</b> cheese", "extra cheese"},
		{"encoded script", "&lt;script&gt;alert(1)&lt;/script&gt;", ""},
		{"encoded img", "extra &lt;img src=x onerror=alert(1)&gt;cheese", "extra cheese"},
		{"double encoded", "&amp;lt;b&amp;gt;well done&amp;lt;/b&amp;gt;", "well done"},
		{"triple encoded script", "&amp;amp;lt;script&amp;amp;gt;x&amp;amp;lt;/script&amp;amp;gt;ok", "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.sanitize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "<script")
			assert.NotContains(t, got, "<img")
		})
	}
}

func TestRemoveAndClear(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Add(ts.menu.items[0], 1)
	ts.store.Add(ts.menu.items[1], 1)

	w := ts.do(t, http.MethodDelete, "/api/v1/cart/items/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeCart(t, w).Items, 1)

	w = ts.do(t, http.MethodDelete, "/api/v1/cart/items/99", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeCart(t, w)
	assert.Empty(t, resp.Items)
	assert.Equal(t, "0.00", resp.Total)

	w = ts.do(t, http.MethodGet, "/api/v1/cart", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBodyLimit(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/v1/cart/items", `{"menu_item_id":1,"pad":"`+strings.Repeat("x", 2<<10)+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitCheckout(t *testing.T) {
	ts := newTestServer(t)
	ts.checkout.state = checkout.State{Status: domain.CheckoutStatusSucceeded, Message: "Payment successful!"}

	w := ts.do(t, http.MethodPost, "/api/v1/checkout", SubmitCheckoutRequestDTO{PaymentMethodID: "pm_card_visa"})
	require.Equal(t, http.StatusOK, w.Code)

	var st checkout.State
	require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
	assert.Equal(t, domain.CheckoutStatusSucceeded, st.Status)

	req := ts.checkout.lastReq
	require.NotNil(t, req.Card)
	assert.Equal(t, "pm_card_visa", req.Card.PaymentMethodID)
	assert.Equal(t, 4, req.TableNumber)
	assert.Equal(t, "guest@example.com", req.CustomerIdentifier)
	assert.True(t, ts.checkout.ctxAlive)
}

func TestSubmitCheckout_MissingCardPassesNil(t *testing.T) {
	ts := newTestServer(t)
	ts.checkout.err = &checkout.Error{Kind: checkout.KindValidation, Message: "Card details are required.", Err: checkout.ErrMissingCard}

	w := ts.do(t, http.MethodPost, "/api/v1/checkout", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Nil(t, ts.checkout.lastReq.Card)
}

func TestSubmitCheckout_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"in progress", &checkout.Error{Kind: checkout.KindValidation, Message: "busy", Err: checkout.ErrCheckoutInProgress}, http.StatusConflict, "validation"},
		{"empty cart", &checkout.Error{Kind: checkout.KindValidation, Message: "Your cart is empty.", Err: checkout.ErrEmptyCart}, http.StatusUnprocessableEntity, "validation"},
		{"transport", &checkout.Error{Kind: checkout.KindTransport, Message: "No such table"}, http.StatusBadGateway, "transport"},
		{"payment", &checkout.Error{Kind: checkout.KindPayment, Message: "Your card was declined."}, http.StatusBadGateway, "payment"},
		{"integration", &checkout.Error{Kind: checkout.KindIntegration, Message: "Stripe is not properly initialized.", Err: checkout.ErrGatewayUnavailable}, http.StatusServiceUnavailable, "integration"},
		{"wrapped transport", fmt.Errorf("submit: %w", &checkout.Error{Kind: checkout.KindTransport, Message: "timeout"}), http.StatusBadGateway, "transport"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.checkout.err = tt.err
			ts.checkout.state = checkout.State{Status: domain.CheckoutStatusFailed}

			w := ts.do(t, http.MethodPost, "/api/v1/checkout", SubmitCheckoutRequestDTO{PaymentMethodID: "pm_1"})
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestCheckoutStateAndReset(t *testing.T) {
	ts := newTestServer(t)
	ts.checkout.state = checkout.State{Status: domain.CheckoutStatusFailed, Message: "Payment failed."}

	w := ts.do(t, http.MethodGet, "/api/v1/checkout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st checkout.State
	require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
	assert.Equal(t, "Payment failed.", st.Message)

	w = ts.do(t, http.MethodPost, "/api/v1/checkout/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.CheckoutStatusIdle, ts.checkout.state.Status)
}

func TestSession(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/session/login", LoginRequestDTO{Email: "ada@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	var info account.Info
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	assert.Equal(t, "ada@example.com", info.CustomerEmail)
	assert.True(t, info.Verified)

	w = ts.do(t, http.MethodPost, "/api/v1/session/customers", account.Customer{FirstName: "Ada", LastName: "L", Email: "ada@example.com"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestSession_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{account.ErrInvalidEmail, http.StatusUnprocessableEntity},
		{account.ErrUnknownCustomer, http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("down"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		ts := newTestServer(t)
		ts.session.err = tt.err
		w := ts.do(t, http.MethodPost, "/api/v1/session/login", LoginRequestDTO{Email: "x@example.com"})
		assert.Equal(t, tt.status, w.Code, tt.err.Error())
	}
}

func intPtr(n int) *int {
	return &n
}
