package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/table_order/internal/catalog"
	"github.com/fjod/table_order/internal/domain"
	"github.com/go-chi/chi/v5"
)

// MenuService is the catalog as seen by the handlers.
type MenuService interface {
	Menu(ctx context.Context, q catalog.Query) catalog.MenuView
	Ingredients(ctx context.Context, itemID int64) catalog.IngredientsView
	Item(ctx context.Context, itemID int64) (domain.MenuItem, error)
	Invalidate(ctx context.Context) error
}

type MenuHandler struct {
	menu    MenuService
	timeout time.Duration
}

func NewMenuHandler(menu MenuService, timeout time.Duration) *MenuHandler {
	return &MenuHandler{
		menu:    menu,
		timeout: timeout,
	}
}

// GetMenu serves GET /menu?search=&category=&sort=price.
func (h *MenuHandler) GetMenu(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	sort := strings.ToLower(q.Get("sort"))
	if sort != "" && sort != "price" {
		respondError(w, http.StatusBadRequest, "invalid_sort", "sort must be empty or price")
		return
	}

	view := h.menu.Menu(ctx, catalog.Query{
		Search:      q.Get("search"),
		Category:    q.Get("category"),
		SortByPrice: sort == "price",
	})
	respondJSON(w, http.StatusOK, view)
}

// GetIngredients serves GET /menu/{id}/ingredients.
func (h *MenuHandler) GetIngredients(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	itemID, ok := parseItemID(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, h.menu.Ingredients(ctx, itemID))
}

// Refresh serves POST /menu/refresh after the kitchen edits the menu.
func (h *MenuHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.menu.Invalidate(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "cache_unavailable", "menu cache could not be refreshed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseItemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || itemID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_menu_item_id", "menu_item_id must be a positive integer")
		return 0, false
	}
	return itemID, true
}
