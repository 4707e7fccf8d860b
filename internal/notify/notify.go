// Package notify delivers appointment notifications to patients and doctors.
// Delivery is fire-and-forget from the caller's point of view: a failed
// notification never undoes the state change that produced it.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Kind string

const (
	KindBooked        Kind = "appointment.booked"
	KindConfirmed     Kind = "appointment.confirmed"
	KindCancelled     Kind = "appointment.cancelled"
	KindCompleted     Kind = "appointment.completed"
	KindExpired       Kind = "appointment.expired"
	KindPaymentFailed Kind = "payment.failed"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

type Notification struct {
	Kind          Kind      `json:"kind"`
	Role          Role      `json:"role"`
	RecipientID   uuid.UUID `json:"recipient_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	CreatedAt     time.Time `json:"created_at"`
}

// RoutingKey is "notify.<role>.<kind>", e.g. notify.doctor.appointment.cancelled.
func (n Notification) RoutingKey() string {
	return "notify." + string(n.Role) + "." + string(n.Kind)
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log. It backs local development
// when no broker is configured and the delivery side of cmd/notify-worker.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.log.Info("notification",
		zap.String("kind", string(n.Kind)),
		zap.String("role", string(n.Role)),
		zap.String("recipient_id", n.RecipientID.String()),
		zap.String("appointment_id", n.AppointmentID.String()),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
	)
	return nil
}

type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }
