package slot

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrSlotNotFound     = errors.New("slot not found")
	ErrSlotFull         = errors.New("slot is fully booked")
	ErrSlotBlocked      = errors.New("slot is blocked")
	ErrSlotHasBookings  = errors.New("slot has active bookings")
	ErrNotSlotOwner     = errors.New("slot belongs to another doctor")
	ErrInvalidTemplate  = errors.New("invalid slot template")
	ErrScheduleBusy     = errors.New("doctor schedule is being updated, please retry")
	ErrDoctorNotFound   = errors.New("doctor not found")
	ErrCapacityRejected = errors.New("slot capacity update rejected")
)

// Repository is the slot store. IncrementBooked and DecrementBooked must each be a
// single conditional statement against the store, never a read followed by a write.
type Repository interface {
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListSlotsByDoctor(ctx context.Context, doctorID uuid.UUID, fromDate, toDate string) ([]Slot, error)
	DoctorExists(ctx context.Context, doctorID uuid.UUID) (bool, error)

	// CreateSlots inserts all slots or none.
	CreateSlots(ctx context.Context, slots []Slot) ([]Slot, error)

	// IncrementBooked returns ErrCapacityRejected when the slot is full, blocked or missing.
	IncrementBooked(ctx context.Context, id uuid.UUID) (*Slot, error)
	// DecrementBooked floors booked_count at zero.
	DecrementBooked(ctx context.Context, id uuid.UUID) (*Slot, error)

	SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) (*Slot, error)
	// DeleteUnbooked returns ErrSlotHasBookings when booked_count > 0.
	DeleteUnbooked(ctx context.Context, id uuid.UUID) error
}
