package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrPaymentAlreadyUsed  = errors.New("payment has already been applied to an appointment")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)

	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error)

	// TransitionStatus only applies when the stored status still equals from.
	// It returns ErrAppointmentNotFound when no row matched.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, upd StatusUpdate) (*Appointment, error)

	// Expiry worker
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
