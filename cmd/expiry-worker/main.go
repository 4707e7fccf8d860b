package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-slot-booking/internal/appointment"
	"github.com/hackgods/doctor-slot-booking/internal/config"
	"github.com/hackgods/doctor-slot-booking/internal/db"
	"github.com/hackgods/doctor-slot-booking/internal/logger"
	"github.com/hackgods/doctor-slot-booking/internal/notify"
	"github.com/hackgods/doctor-slot-booking/internal/payment"
	"github.com/hackgods/doctor-slot-booking/internal/slot"
	"github.com/hackgods/doctor-slot-booking/internal/wallet"
)

// runTimeout bounds one sweep so a stuck query cannot pile up behind the schedule.
const runTimeout = 50 * time.Second

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

	lg.Info("expiry-worker starting up",
		zap.String("env", cfg.Env),
		zap.String("schedule", cfg.ExpirySchedule),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		lg.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	lg.Info("connected to Postgres")

	var notifier notify.Notifier = notify.NewLogNotifier(lg)
	if cfg.AMQPURL != "" {
		pub, err := notify.NewPublisher(cfg.AMQPURL, cfg.NotifyExchange)
		if err != nil {
			lg.Fatal("amqp connection error", zap.Error(err))
		}
		defer pub.Close() //nolint:errcheck
		notifier = pub
	}

	svc := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		slot.NewManager(slot.NewPgRepository(pgPool), lg),
		wallet.NewLedger(wallet.NewPgRepository(pgPool), lg),
		notifier,
		payment.NewHMACVerifier(cfg.PaymentSecret),
		cfg,
		lg,
	)

	// Run once at startup
	runOnce(rootCtx, svc, lg)

	c := cron.New()
	if _, err := c.AddFunc(cfg.ExpirySchedule, func() { runOnce(rootCtx, svc, lg) }); err != nil {
		lg.Fatal("invalid EXPIRY_SCHEDULE", zap.String("schedule", cfg.ExpirySchedule), zap.Error(err))
	}
	c.Start()

	<-rootCtx.Done()
	lg.Info("shutdown signal received, stopping expiry worker")

	// wait for a sweep in flight
	<-c.Stop().Done()
}

func runOnce(ctx context.Context, svc *appointment.Service, lg *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	start := time.Now()
	n, err := svc.ExpirePendingAppointments(runCtx)
	if err != nil {
		lg.Error("expiry run error", zap.Int("expired", n), zap.Error(err))
		return
	}
	lg.Info("expiry run complete", zap.Int("expired", n), zap.Duration("took", time.Since(start)))
}
