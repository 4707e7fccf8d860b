package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-slot-booking/internal/config"
	"github.com/hackgods/doctor-slot-booking/internal/db"
	"github.com/hackgods/doctor-slot-booking/internal/notify"
	"github.com/hackgods/doctor-slot-booking/internal/payment"
	"github.com/hackgods/doctor-slot-booking/internal/slot"
	"github.com/hackgods/doctor-slot-booking/internal/wallet"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventPaymentFailed        = "PAYMENT_FAILED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentExpired   = "APPOINTMENT_EXPIRED"
	EventReconciliation       = "RECONCILIATION_REQUIRED"
)

const (
	// CompensationAttempts bounds how often a compensating step is retried
	// before it is handed over to manual reconciliation.
	CompensationAttempts = 3
	expiryBatchSize      = 500
)

var (
	ErrInvalidRequest          = errors.New("invalid request")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrAlreadyCancelled        = errors.New("appointment is already cancelled")
	ErrPermissionDenied        = errors.New("appointment belongs to another doctor")
	ErrAppointmentExpired      = fmt.Errorf("%w: payment window has expired", ErrInvalidStatusTransition)
)

var validate = validator.New()

// SlotCapacity is the part of the slot capacity manager the lifecycle needs.
type SlotCapacity interface {
	Get(ctx context.Context, slotID uuid.UUID) (*slot.Slot, error)
	TryReserve(ctx context.Context, slotID uuid.UUID) (*slot.Slot, error)
	Release(ctx context.Context, slotID uuid.UUID) (*slot.Slot, error)
}

type WalletLedger interface {
	Credit(ctx context.Context, userID uuid.UUID, amount int64, description string, bookingRef *uuid.UUID) (*wallet.Wallet, error)
	Debit(ctx context.Context, userID uuid.UUID, amount int64, description string, bookingRef *uuid.UUID) (*wallet.Wallet, error)
}

type Service struct {
	repo     Repository
	slots    SlotCapacity
	wallets  WalletLedger
	notifier notify.Notifier
	verifier payment.Verifier
	cfg      config.Config
	log      *zap.Logger

	now          func() time.Time
	retryBackoff time.Duration
}

func NewService(
	repo Repository,
	slots SlotCapacity,
	wallets WalletLedger,
	notifier notify.Notifier,
	verifier payment.Verifier,
	cfg config.Config,
	log *zap.Logger,
) *Service {
	return &Service{
		repo:         repo,
		slots:        slots,
		wallets:      wallets,
		notifier:     notifier,
		verifier:     verifier,
		cfg:          cfg,
		log:          log,
		now:          time.Now,
		retryBackoff: 100 * time.Millisecond,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func validateBooking(req BookRequest) error {
	if req.DoctorID == uuid.Nil || req.PatientID == uuid.Nil || req.SlotID == uuid.Nil {
		return invalid("doctor_id, patient_id and slot_id are required")
	}
	if err := validate.Struct(req); err != nil {
		return invalid("%s", err.Error())
	}
	if req.TotalAmount != req.TicketPrice+req.PlatformFee {
		return invalid("total_amount %d must equal ticket_price %d + platform_fee %d",
			req.TotalAmount, req.TicketPrice, req.PlatformFee)
	}
	if req.Payment != nil && req.PaymentMethod != PaymentOnline {
		return invalid("payment proof is only accepted for online payments")
	}
	return nil
}

// Book reserves a seat and creates the appointment. The steps run as a
// compensating sequence: reserve capacity, debit the wallet (wallet payments
// only), insert the appointment. When a later step fails every earlier one is
// undone before the error is returned.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if err := validateBooking(req); err != nil {
		return nil, err
	}

	if _, err := db.RetryRead(ctx, db.DefaultReadAttempts, func(ctx context.Context) (*Doctor, error) {
		return s.repo.GetDoctorByID(ctx, req.DoctorID)
	}); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	if _, err := db.RetryRead(ctx, db.DefaultReadAttempts, func(ctx context.Context) (*Patient, error) {
		return s.repo.GetPatientByID(ctx, req.PatientID)
	}); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	sl, err := s.slots.Get(ctx, req.SlotID)
	if err != nil {
		return nil, err
	}
	if sl.DoctorID != req.DoctorID {
		return nil, invalid("slot %s does not belong to doctor %s", sl.ID, req.DoctorID)
	}

	// A gateway proof is checked before anything is reserved so a forged
	// proof never holds a seat. Reuse of a payment id is caught by the
	// unique index when the appointment is inserted.
	paid := req.PaymentMethod == PaymentWallet
	var paymentID *string
	if req.Payment != nil {
		if err := s.verifier.Verify(*req.Payment); err != nil {
			return nil, err
		}
		if err := req.Payment.Covers(req.TotalAmount); err != nil {
			return nil, err
		}
		paid = true
		paymentID = &req.Payment.PaymentID
	}

	id := uuid.New()

	if _, err := s.slots.TryReserve(ctx, req.SlotID); err != nil {
		return nil, err
	}

	if req.PaymentMethod == PaymentWallet {
		if _, err := s.wallets.Debit(ctx, req.PatientID, req.TotalAmount, "appointment booking", &id); err != nil {
			s.compensate(ctx, id, "release_slot", func(ctx context.Context) error {
				_, err := s.slots.Release(ctx, req.SlotID)
				return err
			})
			if errors.Is(err, wallet.ErrInsufficientBalance) || errors.Is(err, wallet.ErrWalletNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("debit wallet: %w", err)
		}
	}

	appt := Appointment{
		ID:              id,
		DoctorID:        req.DoctorID,
		PatientID:       req.PatientID,
		SlotID:          req.SlotID,
		Status:          StatusPaymentPending,
		IsPaid:          paid,
		PaymentMethod:   req.PaymentMethod,
		PaymentID:       paymentID,
		TicketPrice:     req.TicketPrice,
		PlatformFee:     req.PlatformFee,
		TotalAmount:     req.TotalAmount,
		AppointmentDate: sl.Date,
		AppointmentTime: sl.StartTime,
	}
	if paid {
		appt.Status = StatusConfirmed
		room := newRoomID()
		appt.VideoCallRoomID = &room
	} else {
		expiresAt := s.now().Add(s.cfg.AppointmentTTL)
		appt.ExpiresAt = &expiresAt
	}

	created, err := s.repo.CreateAppointment(ctx, appt)
	if err != nil {
		if req.PaymentMethod == PaymentWallet {
			s.compensate(ctx, id, "refund_wallet", func(ctx context.Context) error {
				_, err := s.wallets.Credit(ctx, req.PatientID, req.TotalAmount, "booking rollback", &id)
				return err
			})
		}
		s.compensate(ctx, id, "release_slot", func(ctx context.Context) error {
			_, err := s.slots.Release(ctx, req.SlotID)
			return err
		})
		if errors.Is(err, ErrPaymentAlreadyUsed) {
			return nil, err
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.logEvent(ctx, created.ID, EventAppointmentCreated, map[string]any{
		"slot_id":        created.SlotID.String(),
		"patient_id":     created.PatientID.String(),
		"status":         created.Status,
		"payment_method": created.PaymentMethod,
		"total_amount":   created.TotalAmount,
	})

	kind := notify.KindBooked
	if created.Status == StatusConfirmed {
		kind = notify.KindConfirmed
	}
	s.notify(ctx, created, kind, "", notify.RolePatient, notify.RoleDoctor)

	return created, nil
}

// Cancel cancels an appointment on behalf of its patient. The seat is always
// released and a paid appointment refunds ticketPrice to the patient's wallet.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "cancelled by patient"
	}
	return s.cancel(ctx, appt, reason, notify.RolePatient)
}

// UpdateDoctorStatus lets the owning doctor complete or cancel an appointment.
// Ownership is checked before the requested status.
func (s *Service) UpdateDoctorStatus(ctx context.Context, id, doctorID uuid.UUID, to Status) (*Appointment, error) {
	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.DoctorID != doctorID {
		return nil, ErrPermissionDenied
	}

	if to != StatusCompleted && to != StatusCancelled {
		return nil, fmt.Errorf("%w: doctors may not set status %q", ErrInvalidStatusTransition, to)
	}

	if to == StatusCancelled {
		return s.cancel(ctx, appt, "cancelled by doctor", notify.RoleDoctor)
	}

	updated, err := s.transition(ctx, appt, StatusCompleted, StatusUpdate{})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCompleted, map[string]any{
		"doctor_id": doctorID.String(),
	})
	s.notify(ctx, updated, notify.KindCompleted, "", notify.RolePatient)

	return updated, nil
}

// ConfirmPayment confirms a pending appointment from a signed gateway proof.
// The proof must pay exactly the appointment's total and its payment id may
// not already be attached to another appointment. A rejected proof changes
// nothing. Confirming after the payment window closed expires the appointment
// instead.
func (s *Service) ConfirmPayment(ctx context.Context, id uuid.UUID, proof payment.Proof) (*Appointment, error) {
	if err := s.verifier.Verify(proof); err != nil {
		s.log.Warn("rejected payment proof",
			zap.String("appointment_id", id.String()),
			zap.String("order_id", proof.OrderID),
			zap.Error(err),
		)
		return nil, err
	}

	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.Status.CanTransition(StatusConfirmed) {
		return nil, ErrInvalidStatusTransition
	}

	if appt.ExpiresAt != nil && appt.ExpiresAt.Before(s.now()) {
		if _, err := s.expire(ctx, *appt, "confirm_after_expiry"); err != nil &&
			!errors.Is(err, ErrInvalidStatusTransition) && !errors.Is(err, ErrAlreadyCancelled) {
			s.log.Error("failed to expire appointment during confirm",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err),
			)
		}
		return nil, ErrAppointmentExpired
	}

	if err := proof.Covers(appt.TotalAmount); err != nil {
		s.log.Warn("rejected payment proof",
			zap.String("appointment_id", id.String()),
			zap.String("order_id", proof.OrderID),
			zap.Error(err),
		)
		return nil, err
	}

	paid := true
	paymentID := proof.PaymentID
	room := newRoomID()
	updated, err := s.transition(ctx, appt, StatusConfirmed, StatusUpdate{
		IsPaid:          &paid,
		PaymentID:       &paymentID,
		VideoCallRoomID: &room,
	})
	if err != nil {
		if errors.Is(err, ErrPaymentAlreadyUsed) {
			return nil, ErrPaymentAlreadyUsed
		}
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentConfirmed, map[string]any{
		"order_id":   proof.OrderID,
		"payment_id": paymentID,
		"amount":     proof.Amount,
	})
	s.notify(ctx, updated, notify.KindConfirmed, "", notify.RolePatient, notify.RoleDoctor)

	return updated, nil
}

// FailPayment records a failed gateway payment. The seat stays held until the
// payment window closes so the patient can retry. The failed payment id is
// only kept in the event log; the appointment's payment_id is reserved for the
// payment that confirms it.
func (s *Service) FailPayment(ctx context.Context, id uuid.UUID, paymentID string) (*Appointment, error) {
	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.Status.CanTransition(StatusPaymentFailed) {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.transition(ctx, appt, StatusPaymentFailed, StatusUpdate{})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventPaymentFailed, map[string]any{
		"payment_id": paymentID,
	})
	s.notify(ctx, updated, notify.KindPaymentFailed, "", notify.RolePatient)

	return updated, nil
}

// ExpirePendingAppointments moves unpaid appointments past their payment
// window to EXPIRED and gives their seats back. It returns how many were
// expired.
func (s *Service) ExpirePendingAppointments(ctx context.Context) (int, error) {
	candidates, err := s.repo.FindExpiredPending(ctx, s.now(), expiryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("find expired pending appointments: %w", err)
	}

	expired := 0
	for _, appt := range candidates {
		if _, err := s.expire(ctx, appt, "worker"); err != nil {
			if errors.Is(err, ErrInvalidStatusTransition) || errors.Is(err, ErrAlreadyCancelled) {
				// moved on concurrently
				continue
			}
			s.log.Error("failed to expire appointment",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err),
			)
			continue
		}
		expired++
	}

	return expired, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := db.RetryRead(ctx, db.DefaultReadAttempts, func(ctx context.Context) (*Appointment, error) {
		return s.repo.GetAppointmentByID(ctx, id)
	})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Appointment, error) {
	if f.Limit <= 0 {
		f.Limit = 20 // default
	}
	if f.Limit > 100 {
		f.Limit = 100 // max
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, invalid("unknown status %q", *f.Status)
	}

	appointments, err := db.RetryRead(ctx, db.DefaultReadAttempts, func(ctx context.Context) ([]Appointment, error) {
		return s.repo.ListAppointments(ctx, f)
	})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

func (s *Service) cancel(ctx context.Context, appt *Appointment, reason string, by notify.Role) (*Appointment, error) {
	updated, err := s.transition(ctx, appt, StatusCancelled, StatusUpdate{CancellationReason: &reason})
	if err != nil {
		return nil, err
	}

	// The status change is committed; from here on the seat and the refund
	// must follow even if the caller goes away.
	s.compensate(ctx, updated.ID, "release_slot", func(ctx context.Context) error {
		_, err := s.slots.Release(ctx, updated.SlotID)
		return err
	})

	refunded := int64(0)
	if updated.IsPaid {
		ok := s.compensate(ctx, updated.ID, "refund_wallet", func(ctx context.Context) error {
			_, err := s.wallets.Credit(ctx, updated.PatientID, updated.TicketPrice,
				"refund for cancelled appointment", &updated.ID)
			return err
		})
		if ok {
			refunded = updated.TicketPrice
		}
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"reason":       reason,
		"cancelled_by": by,
		"refunded":     refunded,
	})
	s.notify(ctx, updated, notify.KindCancelled, reason, notify.RolePatient, notify.RoleDoctor)

	return updated, nil
}

func (s *Service) expire(ctx context.Context, appt Appointment, reason string) (*Appointment, error) {
	updated, err := s.transition(ctx, &appt, StatusExpired, StatusUpdate{})
	if err != nil {
		return nil, err
	}

	s.compensate(ctx, updated.ID, "release_slot", func(ctx context.Context) error {
		_, err := s.slots.Release(ctx, updated.SlotID)
		return err
	})

	s.logEvent(ctx, updated.ID, EventAppointmentExpired, map[string]any{
		"reason": reason,
	})
	s.notify(ctx, updated, notify.KindExpired, "", notify.RolePatient)

	return updated, nil
}

// transition moves appt from its loaded status to `to`, but only if nobody
// changed the status in between.
func (s *Service) transition(ctx context.Context, appt *Appointment, to Status, upd StatusUpdate) (*Appointment, error) {
	if appt.Status == StatusCancelled && to == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if !appt.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, appt.Status, to)
	}

	updated, err := s.repo.TransitionStatus(ctx, appt.ID, appt.Status, to, upd)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	// Lost the race. Reload to report what happened instead.
	current, err := s.repo.GetAppointmentByID(ctx, appt.ID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("reload appointment: %w", err)
	}
	if current.Status == StatusCancelled && to == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	return nil, fmt.Errorf("%w: status changed to %s", ErrInvalidStatusTransition, current.Status)
}

// compensate runs a step that has to happen for the books to balance. It is
// retried a bounded number of times; if it still fails the appointment is
// flagged for manual reconciliation. Reports whether the step succeeded.
func (s *Service) compensate(ctx context.Context, appointmentID uuid.UUID, action string, fn func(ctx context.Context) error) bool {
	ctx = context.WithoutCancel(ctx)

	var err error
	for attempt := 1; attempt <= CompensationAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return true
		}
		s.log.Warn("compensation step failed",
			zap.String("appointment_id", appointmentID.String()),
			zap.String("action", action),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < CompensationAttempts {
			time.Sleep(s.retryBackoff * time.Duration(attempt))
		}
	}

	s.log.Error("compensation exhausted, manual reconciliation required",
		zap.String("appointment_id", appointmentID.String()),
		zap.String("action", action),
		zap.Error(err),
	)
	s.logEvent(ctx, appointmentID, EventReconciliation, map[string]any{
		"action": action,
		"error":  err.Error(),
	})
	return false
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error("failed to insert event log",
			zap.String("event_type", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) notify(ctx context.Context, appt *Appointment, kind notify.Kind, detail string, roles ...notify.Role) {
	for _, role := range roles {
		recipient := appt.PatientID
		if role == notify.RoleDoctor {
			recipient = appt.DoctorID
		}
		n := notify.Notification{
			Kind:          kind,
			Role:          role,
			RecipientID:   recipient,
			AppointmentID: appt.ID,
			Title:         notificationTitle(kind),
			Message:       notificationMessage(appt, kind, detail),
			CreatedAt:     s.now().UTC(),
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.log.Warn("notification failed",
				zap.String("appointment_id", appt.ID.String()),
				zap.String("kind", string(kind)),
				zap.String("role", string(role)),
				zap.Error(err),
			)
		}
	}
}

func notificationTitle(kind notify.Kind) string {
	switch kind {
	case notify.KindBooked:
		return "Appointment reserved"
	case notify.KindConfirmed:
		return "Appointment confirmed"
	case notify.KindCancelled:
		return "Appointment cancelled"
	case notify.KindCompleted:
		return "Appointment completed"
	case notify.KindExpired:
		return "Appointment expired"
	case notify.KindPaymentFailed:
		return "Payment failed"
	}
	return "Appointment update"
}

func notificationMessage(appt *Appointment, kind notify.Kind, detail string) string {
	msg := fmt.Sprintf("Appointment on %s at %s is now %s.", appt.AppointmentDate, appt.AppointmentTime, appt.Status)
	if kind == notify.KindBooked {
		msg = fmt.Sprintf("Appointment on %s at %s is reserved. Complete payment to confirm it.",
			appt.AppointmentDate, appt.AppointmentTime)
	}
	if detail != "" {
		msg += " Reason: " + detail
	}
	return msg
}

func newRoomID() string {
	return "room-" + uuid.NewString()
}
