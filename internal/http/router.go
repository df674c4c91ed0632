package http

import (
	"net/http"
	"time"

	"github.com/fjod/table_order/internal/cart"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Log                *zap.Logger
	Menu               MenuService
	Store              *cart.Store
	Checkout           Checkout
	Session            SessionService
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

// NewRouter mounts the kiosk API under /api/v1.
func NewRouter(d RouterDeps) http.Handler {
	menuHandler := NewMenuHandler(d.Menu, d.RequestTimeout)
	cartHandler := NewCartHandler(d.Store, d.Menu, d.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(d.Checkout, d.Session)
	sessionHandler := NewSessionHandler(d.Session, d.RequestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(RequestIDHeader)
	r.Use(RequestLogger(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(BodyLimit(d.MaxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(d.RequestTimeout))

			r.Get("/menu", menuHandler.GetMenu)
			r.Post("/menu/refresh", menuHandler.Refresh)
			r.Get("/menu/{id}/ingredients", menuHandler.GetIngredients)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{id}", cartHandler.UpdateQuantity)
				r.Put("/items/{id}/instructions", cartHandler.UpdateInstructions)
				r.Delete("/items/{id}", cartHandler.RemoveItem)
			})

			r.Route("/session", func(r chi.Router) {
				r.Get("/", sessionHandler.GetSession)
				r.Post("/login", sessionHandler.Login)
				r.Post("/customers", sessionHandler.Register)
			})
		})

		// Checkout runs on its own per-step timeouts.
		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", checkoutHandler.GetState)
			r.Post("/", checkoutHandler.Submit)
			r.Post("/reset", checkoutHandler.Reset)
		})
	})

	return otelhttp.NewHandler(r, "table-kiosk")
}
