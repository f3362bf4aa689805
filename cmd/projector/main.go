package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/noxcraft/storefront/internal/config"
	kafkax "github.com/noxcraft/storefront/internal/kafka"
	"github.com/noxcraft/storefront/internal/orders"
	"github.com/noxcraft/storefront/internal/projector"
	"github.com/noxcraft/storefront/internal/redisx"
	"github.com/noxcraft/storefront/internal/telemetry"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := cfg.Logger().With("component", "projector")
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownOTel, err := telemetry.Setup(ctx, cfg.OTelEnabled, cfg.OTelEndpoint, cfg.ServiceName+"-projector")
	if err != nil {
		log.Error("telemetry setup", "err", err)
		os.Exit(1)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Service
	svc := &projector.Service{
		Redis:       rdb,
		ServiceName: "projector",
		Log:         log,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, orders.TopicOrderCompleted, cfg.ProjectorWorkers, log)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("projector consumer started", "group", cfg.ProjectorGroup, "topic", orders.TopicOrderCompleted, "workers", cfg.ProjectorWorkers)
		if err := cons.Start(ctx, svc.HandleOrderCompleted); err != nil {
			log.Error("consumer exit", "err", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer...")
	cancel()
	<-done
	if err := shutdownOTel(context.Background()); err != nil {
		log.Warn("telemetry shutdown", "err", err)
	}
}
