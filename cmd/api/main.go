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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/batikstore/backend/internal/catalog"
	"github.com/batikstore/backend/internal/config"
	"github.com/batikstore/backend/internal/db"
	"github.com/batikstore/backend/internal/handler"
	kafkax "github.com/batikstore/backend/internal/kafka"
	"github.com/batikstore/backend/internal/notify"
	"github.com/batikstore/backend/internal/order"
	"github.com/batikstore/backend/internal/payment"
	"github.com/batikstore/backend/internal/transport"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	postgres, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer postgres.Close()

	if err := postgres.ApplyMigrations(cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable, settings cache disabled")
	}
	defer rdb.Close()

	producer := kafkax.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, 256)
	producer.Start(context.Background())

	outbox := notify.NewOutbox(postgres.Pool)
	settings := notify.NewSettings(postgres.Pool, rdb, cfg.Notify.SettingsTTL)
	dispatcher := notify.NewDispatcher(outbox, cfg.Notify.PollInterval,
		notify.NewEmailChannel(notify.LogSender{}, settings),
		notify.NewStreamChannel(producer, cfg.App.ServiceName),
	)
	dispatcher.Run(ctx)

	productRepo := catalog.NewRepository(postgres.Pool)
	orderRepo := order.NewRepository(postgres.Pool, productRepo, outbox)
	orderSvc := order.NewService(orderRepo, productRepo, dispatcher)
	paymentRepo := payment.NewRepository(postgres.Pool, outbox)
	paymentSvc := payment.NewService(paymentRepo, dispatcher)

	router := transport.NewRouter(
		handler.NewOrderHandler(orderSvc),
		handler.NewPaymentHandler(paymentSvc),
		handler.NewProductHandler(productRepo),
		handler.NewSettingsHandler(settings),
	)
	server := transport.NewServer(cfg.App, router)

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Stop the drain loop before the producer so no channel publishes into a
	// closed inbox.
	cancel()
	dispatcher.WaitStopped()

	producer.Close()
	producer.WaitClosed()

	log.Info().Msg("Stopped gracefully")
}
