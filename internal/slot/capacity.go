package slot

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-slot-booking/internal/db"
)

// Manager owns the booked/available counter of every slot. All counter changes
// go through the repository's single-statement conditional updates.
type Manager struct {
	repo Repository
	log  *zap.Logger
}

func NewManager(repo Repository, log *zap.Logger) *Manager {
	return &Manager{
		repo: repo,
		log:  log,
	}
}

// TryReserve claims one seat on the slot. Exactly one of two concurrent callers
// competing for the last seat succeeds; the other gets ErrSlotFull.
func (m *Manager) TryReserve(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	s, err := m.repo.IncrementBooked(ctx, slotID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrCapacityRejected) {
		return nil, fmt.Errorf("reserve slot: %w", err)
	}

	// The update already failed; this read only explains why.
	current, err := m.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("load slot: %w", err)
	}
	if current.IsBlocked {
		return nil, ErrSlotBlocked
	}
	return nil, ErrSlotFull
}

// Release gives one seat back. Releasing an empty slot is a no-op.
func (m *Manager) Release(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	s, err := m.repo.DecrementBooked(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("release slot: %w", err)
	}
	return s, nil
}

func (m *Manager) CheckAvailability(ctx context.Context, slotID uuid.UUID) (Availability, error) {
	s, err := m.Get(ctx, slotID)
	if err != nil {
		return Availability{}, err
	}
	return Availability{
		SlotID:      s.ID,
		Available:   s.Available(),
		IsBlocked:   s.IsBlocked,
		MaxPatients: s.MaxPatients,
		BookedCount: s.BookedCount,
	}, nil
}

func (m *Manager) Get(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	s, err := db.RetryRead(ctx, db.DefaultReadAttempts, func(ctx context.Context) (*Slot, error) {
		return m.repo.GetSlotByID(ctx, slotID)
	})
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load slot: %w", err)
	}
	return s, nil
}

func (m *Manager) ListByDoctor(ctx context.Context, doctorID uuid.UUID, fromDate, toDate string) ([]Slot, error) {
	slots, err := db.RetryRead(ctx, db.DefaultReadAttempts, func(ctx context.Context) ([]Slot, error) {
		return m.repo.ListSlotsByDoctor(ctx, doctorID, fromDate, toDate)
	})
	if err != nil {
		return nil, fmt.Errorf("list slots by doctor: %w", err)
	}
	return slots, nil
}

// SetBlocked toggles the administrative block. Blocking does not touch existing
// reservations; it only stops new ones.
func (m *Manager) SetBlocked(ctx context.Context, slotID, doctorID uuid.UUID, blocked bool) (*Slot, error) {
	if err := m.checkOwner(ctx, slotID, doctorID); err != nil {
		return nil, err
	}

	s, err := m.repo.SetBlocked(ctx, slotID, blocked)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("set slot blocked: %w", err)
	}

	m.log.Info("slot block updated",
		zap.String("slot_id", slotID.String()),
		zap.Bool("blocked", blocked),
	)
	return s, nil
}

// Delete removes a slot that nobody holds a seat on.
func (m *Manager) Delete(ctx context.Context, slotID, doctorID uuid.UUID) error {
	if err := m.checkOwner(ctx, slotID, doctorID); err != nil {
		return err
	}

	if err := m.repo.DeleteUnbooked(ctx, slotID); err != nil {
		if errors.Is(err, ErrSlotNotFound) || errors.Is(err, ErrSlotHasBookings) {
			return err
		}
		return fmt.Errorf("delete slot: %w", err)
	}

	m.log.Info("slot deleted", zap.String("slot_id", slotID.String()))
	return nil
}

func (m *Manager) checkOwner(ctx context.Context, slotID, doctorID uuid.UUID) error {
	s, err := m.Get(ctx, slotID)
	if err != nil {
		return err
	}
	if s.DoctorID != doctorID {
		return ErrNotSlotOwner
	}
	return nil
}
