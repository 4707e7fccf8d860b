package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hackgods/doctor-slot-booking/internal/config"
	"github.com/hackgods/doctor-slot-booking/internal/logger"
	"github.com/hackgods/doctor-slot-booking/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer lg.Sync() //nolint:errcheck

	if cfg.AMQPURL == "" {
		lg.Fatal("AMQP_URL is required for the notify worker")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Push delivery is out of scope, deliveries end in the log.
	consumer := notify.NewConsumer(notify.ConsumerConfig{
		URL:      cfg.AMQPURL,
		Exchange: cfg.NotifyExchange,
		Queue:    cfg.NotifyQueue,
	}, notify.NewLogNotifier(lg), lg)

	if err := consumer.Connect(); err != nil {
		lg.Fatal("amqp connection error", zap.Error(err))
	}
	defer consumer.Close()

	lg.Info("notify-worker consuming",
		zap.String("exchange", cfg.NotifyExchange),
		zap.String("queue", cfg.NotifyQueue),
	)

	if err := consumer.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		lg.Fatal("consumer stopped", zap.Error(err))
	}
	lg.Info("notify-worker stopped")
}
