package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fjod/table_order/internal/account"
	"github.com/fjod/table_order/internal/backend"
	"github.com/fjod/table_order/internal/cart"
	"github.com/fjod/table_order/internal/catalog"
	"github.com/fjod/table_order/internal/checkout"
	"github.com/fjod/table_order/internal/config"
	h "github.com/fjod/table_order/internal/http"
	"github.com/fjod/table_order/internal/payment"
	"github.com/fjod/table_order/pkg/circuitbreaker"
	"github.com/fjod/table_order/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not up yet
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New("table-kiosk", cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	catalogAPI, err := backend.New(cfg.APIBaseURL, cfg.RequestTimeout,
		backend.WithLogger(log),
		backend.WithBreaker(circuitbreaker.DefaultConfig("catalog")),
	)
	if err != nil {
		log.Fatal("failed to create catalog client", zap.Error(err))
	}

	// The intent call has its own deadline from the orchestrator.
	paymentAPI, err := backend.New(cfg.APIBaseURL, 0,
		backend.WithLogger(log),
		backend.WithBreaker(circuitbreaker.DefaultConfig("payment-intents")),
	)
	if err != nil {
		log.Fatal("failed to create payment client", zap.Error(err))
	}

	accountBreaker := circuitbreaker.DefaultConfig("accounts")
	accountBreaker.Exclude = account.IsUnknownCustomerAnswer
	accountAPI, err := backend.New(cfg.APIBaseURL, cfg.RequestTimeout,
		backend.WithLogger(log),
		backend.WithBreaker(accountBreaker),
	)
	if err != nil {
		log.Fatal("failed to create account client", zap.Error(err))
	}

	var cache catalog.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal("failed to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		cache = catalog.NewRedisCache(rdb, cfg.CatalogCacheTTL)
		log.Info("catalog cache: redis", zap.String("addr", cfg.RedisAddr))
	} else {
		cache = catalog.NewMemoryCache(cfg.CatalogCacheTTL)
		log.Info("catalog cache: in-memory")
	}

	menu := catalog.NewService(catalog.NewClient(catalogAPI, cfg.IngredientsRoute), cache, log)
	store := cart.NewStore()
	session := account.NewSession(cfg.TableNumber, cfg.CustomerEmail, account.NewClient(accountAPI))

	var gateway payment.Gateway
	if cfg.StripeAPIKey != "" {
		sg, err := payment.NewStripeGateway(payment.StripeGatewayConfig{
			APIKey: cfg.StripeAPIKey,
			Logger: log,
		})
		if err != nil {
			log.Fatal("failed to create stripe gateway", zap.Error(err))
		}
		gateway = sg
	} else {
		log.Warn("STRIPE_API_KEY is not set, card confirmation uses the fake gateway",
			zap.Strings("test_payment_methods", []string{
				payment.FakeCardVisa,
				payment.FakeCardDeclined,
				payment.FakeCardRequiresAction,
			}),
		)
		gateway = payment.FakeGateway{}
	}

	orch := checkout.New(store, payment.NewIntentClient(paymentAPI), gateway, log, checkout.Options{
		IntentTimeout:  cfg.CheckoutIntentTimeout,
		ConfirmTimeout: cfg.CheckoutConfirmTimeout,
	})
	defer orch.Close()

	router := h.NewRouter(h.RouterDeps{
		Log:                log,
		Menu:               menu,
		Store:              store,
		Checkout:           orch,
		Session:            session,
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// POST /checkout blocks for both payment steps.
		WriteTimeout: cfg.CheckoutIntentTimeout + cfg.CheckoutConfirmTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("table kiosk starting",
			zap.String("port", cfg.HTTPPort),
			zap.Int("table_number", cfg.TableNumber),
			zap.String("api_base_url", cfg.APIBaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
