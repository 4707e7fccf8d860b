package appointment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-slot-booking/internal/notify"
	"github.com/hackgods/doctor-slot-booking/internal/slot"
	"github.com/hackgods/doctor-slot-booking/internal/wallet"
)

type memRepository struct {
	mu           sync.Mutex
	doctors      map[uuid.UUID]bool
	patients     map[uuid.UUID]bool
	appointments map[uuid.UUID]Appointment
	events       []EventLog
	failCreate   error
}

func newMemRepository() *memRepository {
	return &memRepository{
		doctors:      make(map[uuid.UUID]bool),
		patients:     make(map[uuid.UUID]bool),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

func (r *memRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.patients[id] {
		return nil, ErrPatientNotFound
	}
	return &Patient{ID: id, Name: "patient"}, nil
}

func (r *memRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.doctors[id] {
		return nil, ErrDoctorNotFound
	}
	return &Doctor{ID: id, Name: "doctor"}, nil
}

func (r *memRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return nil, r.failCreate
	}
	if r.paymentUsed(a.ID, a.PaymentID) {
		return nil, ErrPaymentAlreadyUsed
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	r.appointments[a.ID] = a
	return &a, nil
}

func (r *memRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *memRepository) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.SlotID != nil && a.SlotID != *f.SlotID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, upd StatusUpdate) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	if r.paymentUsed(id, upd.PaymentID) {
		return nil, ErrPaymentAlreadyUsed
	}
	a.Status = to
	if upd.IsPaid != nil {
		a.IsPaid = *upd.IsPaid
	}
	if upd.PaymentID != nil {
		a.PaymentID = upd.PaymentID
	}
	if upd.CancellationReason != nil {
		a.CancellationReason = upd.CancellationReason
	}
	if upd.VideoCallRoomID != nil {
		a.VideoCallRoomID = upd.VideoCallRoomID
	}
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

// paymentUsed mirrors the unique index on appointments.payment_id. Callers
// hold r.mu.
func (r *memRepository) paymentUsed(self uuid.UUID, paymentID *string) bool {
	if paymentID == nil {
		return false
	}
	for id, a := range r.appointments {
		if id != self && a.PaymentID != nil && *a.PaymentID == *paymentID {
			return true
		}
	}
	return false
}

func (r *memRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if (a.Status == StatusPaymentPending || a.Status == StatusPaymentFailed) &&
			a.ExpiresAt != nil && a.ExpiresAt.Before(now) {
			out = append(out, a)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRepository) eventTypes(id uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.AppointmentID != nil && *ev.AppointmentID == id {
			out = append(out, ev.EventType)
		}
	}
	return out
}

// fakeSlots mirrors the conditional increment of the slot repository.
type fakeSlots struct {
	mu           sync.Mutex
	slots        map[uuid.UUID]*slot.Slot
	releaseFails int
	releases     int
}

func newFakeSlots() *fakeSlots {
	return &fakeSlots{slots: make(map[uuid.UUID]*slot.Slot)}
}

func (f *fakeSlots) add(doctorID uuid.UUID, maxPatients int) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.slots[id] = &slot.Slot{
		ID:          id,
		DoctorID:    doctorID,
		Date:        "2026-03-02",
		StartTime:   "10:00",
		EndTime:     "10:30",
		MaxPatients: maxPatients,
	}
	return id
}

func (f *fakeSlots) booked(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slots[id].BookedCount
}

func (f *fakeSlots) Get(ctx context.Context, id uuid.UUID) (*slot.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return nil, slot.ErrSlotNotFound
	}
	out := *s
	return &out, nil
}

func (f *fakeSlots) TryReserve(ctx context.Context, id uuid.UUID) (*slot.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	switch {
	case !ok:
		return nil, slot.ErrSlotNotFound
	case s.IsBlocked:
		return nil, slot.ErrSlotBlocked
	case s.BookedCount >= s.MaxPatients:
		return nil, slot.ErrSlotFull
	}
	s.BookedCount++
	out := *s
	return &out, nil
}

func (f *fakeSlots) Release(ctx context.Context, id uuid.UUID) (*slot.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.releaseFails > 0 {
		f.releaseFails--
		return nil, errors.New("connection reset by peer")
	}
	s, ok := f.slots[id]
	if !ok {
		return nil, slot.ErrSlotNotFound
	}
	f.releases++
	if s.BookedCount > 0 {
		s.BookedCount--
	}
	out := *s
	return &out, nil
}

type fakeWallets struct {
	mu          sync.Mutex
	balances    map[uuid.UUID]int64
	debitErr    error
	creditFails int
	credits     []int64
}

func newFakeWallets() *fakeWallets {
	return &fakeWallets{balances: make(map[uuid.UUID]int64)}
}

func (f *fakeWallets) balance(id uuid.UUID) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[id]
}

func (f *fakeWallets) Credit(ctx context.Context, userID uuid.UUID, amount int64, description string, ref *uuid.UUID) (*wallet.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.creditFails > 0 {
		f.creditFails--
		return nil, errors.New("connection reset by peer")
	}
	f.balances[userID] += amount
	f.credits = append(f.credits, amount)
	return &wallet.Wallet{UserID: userID, Balance: f.balances[userID]}, nil
}

func (f *fakeWallets) Debit(ctx context.Context, userID uuid.UUID, amount int64, description string, ref *uuid.UUID) (*wallet.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.debitErr != nil {
		return nil, f.debitErr
	}
	bal, ok := f.balances[userID]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	if bal < amount {
		return nil, wallet.ErrInsufficientBalance
	}
	f.balances[userID] = bal - amount
	return &wallet.Wallet{UserID: userID, Balance: f.balances[userID]}, nil
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []notify.Notification
	err error
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.err
}

func (r *recordingNotifier) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Kind
	for _, n := range r.got {
		out = append(out, n.Kind)
	}
	return out
}
