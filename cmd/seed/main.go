package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-slot-booking/internal/config"
	"github.com/hackgods/doctor-slot-booking/internal/db"
	"github.com/hackgods/doctor-slot-booking/internal/logger"
	redisclient "github.com/hackgods/doctor-slot-booking/internal/redis"
	"github.com/hackgods/doctor-slot-booking/internal/slot"
	"github.com/hackgods/doctor-slot-booking/internal/wallet"
)

// options are read from SEED_* variables.
type options struct {
	Doctors        int    `default:"20"`
	Patients       int    `default:"500"`
	StartingCredit int64  `split_words:"true" default:"100000"` // minor units per patient wallet
	SlotWeeks      int    `split_words:"true" default:"4"`
	SlotCapacity   int    `split_words:"true" default:"3"`
	FirstDate      string `split_words:"true"` // defaults to tomorrow
}

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

// Every doctor gets the same weekday clinic, one slot per window.
var clinicWindows = [][2]string{
	{"09:00", "09:30"},
	{"09:30", "10:00"},
	{"10:00", "10:30"},
	{"14:00", "14:30"},
	{"14:30", "15:00"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	var opts options
	if err := envconfig.Process("seed", &opts); err != nil {
		log.Fatalf("seed options: %v", err)
	}
	if opts.FirstDate == "" {
		opts.FirstDate = time.Now().AddDate(0, 0, 1).Format(slot.DateLayout)
	}

	lg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer lg.Sync() //nolint:errcheck

	ctx := context.Background()

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	if err == nil {
		err = db.Migrate(pgCtx, pool)
	}
	cancel()
	if err != nil {
		lg.Fatal("postgres setup error", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		lg.Fatal("redis connection error", zap.Error(err))
	}
	defer rdb.Close() //nolint:errcheck

	doctors, err := seedDoctors(ctx, pool, opts.Doctors)
	if err != nil {
		lg.Fatal("seed doctors", zap.Error(err))
	}
	lg.Info("doctors seeded", zap.Int("count", len(doctors)))

	patients, err := seedPatients(ctx, pool, opts.Patients)
	if err != nil {
		lg.Fatal("seed patients", zap.Error(err))
	}
	lg.Info("patients seeded", zap.Int("count", len(patients)))

	ledger := wallet.NewLedger(wallet.NewPgRepository(pool), zap.NewNop())
	for _, id := range patients {
		if _, err := ledger.Credit(ctx, id, opts.StartingCredit, "seed top-up", nil); err != nil {
			lg.Fatal("seed wallet", zap.Stringer("patient_id", id), zap.Error(err))
		}
	}
	lg.Info("wallets funded", zap.Int64("amount", opts.StartingCredit))

	gen := slot.NewGenerator(slot.NewPgRepository(pool), redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL), lg)
	created, err := seedSlots(ctx, gen, doctors, opts)
	if err != nil {
		lg.Fatal("seed slots", zap.Error(err))
	}
	lg.Info("seed complete", zap.Int("slots", created))
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, "Dr. "+gofakeit.Name(), spec)
		if err != nil {
			return nil, fmt.Errorf("insert doctor: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	const batchSize = 500

	ids := make([]uuid.UUID, 0, count)
	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, gofakeit.Name(), gofakeit.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, fmt.Errorf("insert patient: %w", err)
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func seedSlots(ctx context.Context, gen *slot.Generator, doctors []uuid.UUID, opts options) (int, error) {
	first, err := time.Parse(slot.DateLayout, opts.FirstDate)
	if err != nil {
		return 0, fmt.Errorf("SEED_FIRST_DATE: %w", err)
	}
	endDate := first.AddDate(0, 0, 7*opts.SlotWeeks).Format(slot.DateLayout)

	total := 0
	for _, doctorID := range doctors {
		for _, win := range clinicWindows {
			res, err := gen.Generate(ctx, slot.Template{
				DoctorID:    doctorID,
				Date:        opts.FirstDate,
				StartTime:   win[0],
				EndTime:     win[1],
				MaxPatients: opts.SlotCapacity,
				IsRecurring: true,
				Frequency:   slot.FrequencyWeekly,
				EndDate:     endDate,
			})
			if errors.Is(err, slot.ErrScheduleBusy) {
				continue
			}
			if err != nil {
				return total, fmt.Errorf("generate slots for %s: %w", doctorID, err)
			}
			total += len(res.Slots)
		}
	}
	return total, nil
}
