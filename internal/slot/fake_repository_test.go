package slot

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/hackgods/doctor-slot-booking/internal/redis"
)

// memRepository applies every counter update under one mutex, mirroring the
// row-level atomicity of the conditional UPDATE in Postgres.
type memRepository struct {
	mu      sync.Mutex
	slots   map[uuid.UUID]Slot
	doctors map[uuid.UUID]bool
}

func newMemRepository(doctors ...uuid.UUID) *memRepository {
	r := &memRepository{
		slots:   make(map[uuid.UUID]Slot),
		doctors: make(map[uuid.UUID]bool),
	}
	for _, d := range doctors {
		r.doctors[d] = true
	}
	return r
}

func (r *memRepository) put(s Slot) Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.slots[s.ID] = s
	return s
}

func (r *memRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (r *memRepository) ListSlotsByDoctor(ctx context.Context, doctorID uuid.UUID, fromDate, toDate string) ([]Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Slot
	for _, s := range r.slots {
		if s.DoctorID == doctorID && s.Date >= fromDate && s.Date <= toDate {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date == out[j].Date {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].Date < out[j].Date
	})
	return out, nil
}

func (r *memRepository) DoctorExists(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doctors[doctorID], nil
}

func (r *memRepository) CreateSlots(ctx context.Context, slots []Slot) ([]Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		s.CreatedAt, s.UpdatedAt = now, now
		r.slots[s.ID] = s
		out = append(out, s)
	}
	return out, nil
}

func (r *memRepository) IncrementBooked(ctx context.Context, id uuid.UUID) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok || s.IsBlocked || s.BookedCount >= s.MaxPatients {
		return nil, ErrCapacityRejected
	}
	s.BookedCount++
	r.slots[id] = s
	return &s, nil
}

func (r *memRepository) DecrementBooked(ctx context.Context, id uuid.UUID) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	if s.BookedCount > 0 {
		s.BookedCount--
	}
	r.slots[id] = s
	return &s, nil
}

func (r *memRepository) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	s.IsBlocked = blocked
	r.slots[id] = s
	return &s, nil
}

func (r *memRepository) DeleteUnbooked(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return ErrSlotNotFound
	}
	if s.BookedCount > 0 {
		return ErrSlotHasBookings
	}
	delete(r.slots, id)
	return nil
}

type passLocker struct {
	busy bool
}

func (l passLocker) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	if l.busy {
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}
