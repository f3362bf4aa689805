package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noxcraft/storefront/internal/catalog"
	"github.com/noxcraft/storefront/internal/checkout"
	"github.com/noxcraft/storefront/internal/config"
	"github.com/noxcraft/storefront/internal/fulfillment"
	"github.com/noxcraft/storefront/internal/httpx"
	kafkax "github.com/noxcraft/storefront/internal/kafka"
	"github.com/noxcraft/storefront/internal/orders"
	"github.com/noxcraft/storefront/internal/payments"
	"github.com/noxcraft/storefront/internal/postgres"
	"github.com/noxcraft/storefront/internal/redisx"
	"github.com/noxcraft/storefront/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := cfg.Logger()
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownOTel, err := telemetry.Setup(ctx, cfg.OTelEnabled, cfg.OTelEndpoint, cfg.ServiceName)
	if err != nil {
		log.Error("telemetry setup", "err", err)
		os.Exit(1)
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCompleted, 1024, log)
	prod.Start(ctx)

	if cfg.StripeSecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY not set, checkout will fail")
	}
	if cfg.StripeWebhookSecret == "" {
		log.Warn("STRIPE_WEBHOOK_SECRET not set, webhooks will be rejected")
	}
	gateway := payments.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil)

	// Repo & services
	products := &catalog.Repo{DB: db}
	store := &orders.PgStore{DB: db}
	receiver := &fulfillment.Service{
		Store:     store,
		Payments:  gateway,
		Dedup:     &redisx.Dedup{Redis: rdb, Service: "fulfillment"},
		Publisher: prod,
		Producer:  cfg.ServiceName,
		Log:       log,
	}

	router := httpx.NewRouter()
	(&httpx.CatalogHandler{Products: products}).Register(router)
	(&httpx.CheckoutHandler{
		Checkout: checkout.NewService(products, gateway, cfg.Currency, log),
		Webhooks: receiver,
		BaseURL:  cfg.PublicBaseURL,
		Log:      log,
	}).Register(router)
	(&httpx.OrdersHandler{Store: store, Redis: rdb, Log: log}).Register(router)

	// HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, "storefront-api"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// graceful shutdown
	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		// handler yang masih jalan tetap aman: Publish setelah Close di-drop
		log.Warn("http shutdown incomplete", "err", err)
	}
	prod.Close()      // tutup inbox -> flush & close writer
	prod.WaitClosed() // drain
	cancel()
	if err := shutdownOTel(ctx2); err != nil {
		log.Warn("telemetry shutdown", "err", err)
	}
}
