package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-slot-booking/internal/appointment"
	"github.com/hackgods/doctor-slot-booking/internal/payment"
	"github.com/hackgods/doctor-slot-booking/internal/slot"
	"github.com/hackgods/doctor-slot-booking/internal/wallet"
)

type SlotGenerator interface {
	Generate(ctx context.Context, tpl slot.Template) (*slot.GenerateResult, error)
}

type SlotService interface {
	Get(ctx context.Context, slotID uuid.UUID) (*slot.Slot, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, fromDate, toDate string) ([]slot.Slot, error)
	CheckAvailability(ctx context.Context, slotID uuid.UUID) (slot.Availability, error)
	TryReserve(ctx context.Context, slotID uuid.UUID) (*slot.Slot, error)
	Release(ctx context.Context, slotID uuid.UUID) (*slot.Slot, error)
	SetBlocked(ctx context.Context, slotID, doctorID uuid.UUID, blocked bool) (*slot.Slot, error)
	Delete(ctx context.Context, slotID, doctorID uuid.UUID) error
}

type AppointmentService interface {
	Book(ctx context.Context, req appointment.BookRequest) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*appointment.Appointment, error)
	UpdateDoctorStatus(ctx context.Context, id, doctorID uuid.UUID, to appointment.Status) (*appointment.Appointment, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID, proof payment.Proof) (*appointment.Appointment, error)
	FailPayment(ctx context.Context, id uuid.UUID, paymentID string) (*appointment.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	List(ctx context.Context, f appointment.ListFilter) ([]appointment.Appointment, error)
}

type WalletService interface {
	Get(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)
	Credit(ctx context.Context, userID uuid.UUID, amount int64, description string, bookingRef *uuid.UUID) (*wallet.Wallet, error)
	Debit(ctx context.Context, userID uuid.UUID, amount int64, description string, bookingRef *uuid.UUID) (*wallet.Wallet, error)
}

type RouterConfig struct {
	Generator    SlotGenerator
	Slots        SlotService
	Appointments AppointmentService
	Wallets      WalletService
	Health       *HealthHandler
	Log          *zap.Logger
	CORSOrigins  []string
	RateLimit    int // requests per second per IP, 0 disables
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	if cfg.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimit, time.Second))
	}

	// Health endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	r.Route("/slots", func(r chi.Router) {
		r.Post("/generate", generateSlotsHandler(cfg.Generator))
		r.Get("/", listSlotsHandler(cfg.Slots))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getSlotHandler(cfg.Slots))
			r.Delete("/", deleteSlotHandler(cfg.Slots))
			r.Get("/availability", availabilityHandler(cfg.Slots))
			r.Post("/reserve", reserveSlotHandler(cfg.Slots))
			r.Post("/release", releaseSlotHandler(cfg.Slots))
			r.Post("/block", blockSlotHandler(cfg.Slots, true))
			r.Post("/unblock", blockSlotHandler(cfg.Slots, false))
		})
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", bookAppointmentHandler(cfg.Appointments))
		r.Get("/", listAppointmentsHandler(cfg.Appointments))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getAppointmentHandler(cfg.Appointments))
			r.Post("/cancel", cancelAppointmentHandler(cfg.Appointments))
			r.Post("/confirm-payment", confirmPaymentHandler(cfg.Appointments))
			r.Post("/fail-payment", failPaymentHandler(cfg.Appointments))
			r.Patch("/status", updateStatusHandler(cfg.Appointments))
		})
	})

	r.Route("/wallets/{user_id}", func(r chi.Router) {
		r.Get("/", getWalletHandler(cfg.Wallets))
		r.Post("/credit", creditWalletHandler(cfg.Wallets))
		r.Post("/debit", debitWalletHandler(cfg.Wallets))
	})

	return r
}
