package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/doctor-slot-booking/internal/api"
	"github.com/hackgods/doctor-slot-booking/internal/appointment"
	"github.com/hackgods/doctor-slot-booking/internal/config"
	"github.com/hackgods/doctor-slot-booking/internal/db"
	"github.com/hackgods/doctor-slot-booking/internal/logger"
	"github.com/hackgods/doctor-slot-booking/internal/notify"
	"github.com/hackgods/doctor-slot-booking/internal/payment"
	redisclient "github.com/hackgods/doctor-slot-booking/internal/redis"
	"github.com/hackgods/doctor-slot-booking/internal/slot"
	"github.com/hackgods/doctor-slot-booking/internal/wallet"
)

var version = "dev"

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

	lg.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.Duration("appointment_ttl", cfg.AppointmentTTL),
		zap.Duration("lock_ttl", cfg.LockTTL),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	if err == nil {
		err = db.Migrate(pgCtx, pgPool)
	}
	cancelPg()
	if err != nil {
		lg.Fatal("postgres setup error", zap.Error(err))
	}
	defer pgPool.Close()
	lg.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		lg.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			lg.Warn("error closing redis", zap.Error(err))
		}
	}()
	lg.Info("connected to Redis")

	var notifier notify.Notifier = notify.NewLogNotifier(lg)
	if cfg.AMQPURL != "" {
		pub, err := notify.NewPublisher(cfg.AMQPURL, cfg.NotifyExchange)
		if err != nil {
			lg.Fatal("amqp connection error", zap.Error(err))
		}
		defer pub.Close() //nolint:errcheck
		notifier = pub
		lg.Info("publishing notifications", zap.String("exchange", cfg.NotifyExchange))
	}

	if cfg.PaymentSecret == "" {
		lg.Warn("PAYMENT_SECRET is empty, every gateway signature will be rejected")
	}

	slotRepo := slot.NewPgRepository(pgPool)
	generator := slot.NewGenerator(slotRepo, redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL), lg)
	slots := slot.NewManager(slotRepo, lg)
	wallets := wallet.NewLedger(wallet.NewPgRepository(pgPool), lg)
	appointments := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		slots,
		wallets,
		notifier,
		payment.NewHMACVerifier(cfg.PaymentSecret),
		cfg,
		lg,
	)

	router := api.NewRouter(api.RouterConfig{
		Generator:    generator,
		Slots:        slots,
		Appointments: appointments,
		Wallets:      wallets,
		Health:       api.NewHealthHandler(pgPool, rdb, cfg.Env, version),
		Log:          lg,
		CORSOrigins:  cfg.CORSOrigins,
		RateLimit:    cfg.RateLimit,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		lg.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	lg.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
}
