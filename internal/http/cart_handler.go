package http

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fjod/table_order/internal/cart"
	"github.com/fjod/table_order/internal/catalog"
	"github.com/fjod/table_order/internal/domain"
	"github.com/microcosm-cc/bluemonday"
)

const (
	maxQuantity     = 99
	maxInstructions = 200

	maxSanitizePasses = 8
)

type CartHandler struct {
	store   *cart.Store
	menu    MenuService
	policy  *bluemonday.Policy
	timeout time.Duration
}

func NewCartHandler(store *cart.Store, menu MenuService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		store:   store,
		menu:    menu,
		policy:  bluemonday.StrictPolicy(),
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	MenuItemID int64 `json:"menu_item_id"`
	Quantity   *int  `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type UpdateInstructionsRequestDTO struct {
	SpecialInstructions string `json:"special_instructions"`
}

// CartResponse is the cart as rendered by the table UI.
type CartResponse struct {
	Items     []domain.LineItem `json:"items"`
	Total     string            `json:"total"`
	ItemCount int               `json:"item_count"`
	Version   uint64            `json:"version"`
}

func newCartResponse(c domain.Cart) CartResponse {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return CartResponse{
		Items:     c.Items,
		Total:     c.Total().StringFixed(2),
		ItemCount: count,
		Version:   c.Version,
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newCartResponse(h.store.Snapshot()))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.MenuItemID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_menu_item_id", "menu_item_id must be positive")
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity <= 0 || quantity > maxQuantity {
		respondError(w, http.StatusUnprocessableEntity, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	item, err := h.menu.Item(ctx, req.MenuItemID)
	if errors.Is(err, catalog.ErrItemNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "menu item not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "catalog_unavailable", "menu is not available right now")
		return
	}

	switch err := h.store.AddUpTo(item, quantity, maxQuantity); {
	case errors.Is(err, cart.ErrQuantityLimit):
		respondError(w, http.StatusUnprocessableEntity, "invalid_quantity", "quantity must be between 1 and 99")
		return
	case errors.Is(err, cart.ErrNegativePrice):
		respondError(w, http.StatusBadGateway, "invalid_menu_item", "menu item has an invalid price")
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondJSON(w, http.StatusCreated, newCartResponse(h.store.Snapshot()))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseItemID(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if *req.Quantity < 0 || *req.Quantity > maxQuantity {
		respondError(w, http.StatusUnprocessableEntity, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	if h.store.Quantity(itemID) == 0 {
		respondError(w, http.StatusNotFound, "not_found", "item is not in the cart")
		return
	}

	h.store.UpdateQuantity(itemID, *req.Quantity)
	respondJSON(w, http.StatusOK, newCartResponse(h.store.Snapshot()))
}

func (h *CartHandler) UpdateInstructions(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseItemID(w, r)
	if !ok {
		return
	}

	var req UpdateInstructionsRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	text := h.sanitize(req.SpecialInstructions)
	if utf8.RuneCountInString(text) > maxInstructions {
		respondError(w, http.StatusUnprocessableEntity, "invalid_instructions", "special_instructions must be at most 200 characters")
		return
	}

	if h.store.Quantity(itemID) == 0 {
		respondError(w, http.StatusNotFound, "not_found", "item is not in the cart")
		return
	}

	h.store.UpdateSpecialInstructions(itemID, text)
	respondJSON(w, http.StatusOK, newCartResponse(h.store.Snapshot()))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseItemID(w, r)
	if !ok {
		return
	}

	h.store.Remove(itemID)
	respondJSON(w, http.StatusOK, newCartResponse(h.store.Snapshot()))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.store.Clear()
	respondJSON(w, http.StatusOK, newCartResponse(h.store.Snapshot()))
}

// sanitize strips markup from free text typed at the table, keeping it printable as plain text.
// Entity-encoded markup is decoded and stripped again until nothing changes; text that
// does not settle within maxSanitizePasses is kept in its escaped form.
func (h *CartHandler) sanitize(text string) string {
	cur := text
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(h.policy.Sanitize(cur))
		if next == cur {
			return strings.TrimSpace(cur)
		}
		cur = next
	}
	return strings.TrimSpace(h.policy.Sanitize(cur))
}
