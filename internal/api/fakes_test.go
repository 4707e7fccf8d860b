package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-slot-booking/internal/appointment"
	"github.com/hackgods/doctor-slot-booking/internal/payment"
	"github.com/hackgods/doctor-slot-booking/internal/slot"
	"github.com/hackgods/doctor-slot-booking/internal/wallet"
)

type fakeGenerator struct {
	generate func(ctx context.Context, tpl slot.Template) (*slot.GenerateResult, error)
}

func (f fakeGenerator) Generate(ctx context.Context, tpl slot.Template) (*slot.GenerateResult, error) {
	return f.generate(ctx, tpl)
}

// fakeSlots answers every lookup with the slot it holds, or err when set.
type fakeSlots struct {
	slot    slot.Slot
	err     error
	blocked *bool
	listed  [2]string
}

func (f *fakeSlots) result() (*slot.Slot, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := f.slot
	return &s, nil
}

func (f *fakeSlots) Get(ctx context.Context, slotID uuid.UUID) (*slot.Slot, error) {
	return f.result()
}

func (f *fakeSlots) ListByDoctor(ctx context.Context, doctorID uuid.UUID, fromDate, toDate string) ([]slot.Slot, error) {
	f.listed = [2]string{fromDate, toDate}
	if f.err != nil {
		return nil, f.err
	}
	return []slot.Slot{f.slot}, nil
}

func (f *fakeSlots) CheckAvailability(ctx context.Context, slotID uuid.UUID) (slot.Availability, error) {
	if f.err != nil {
		return slot.Availability{}, f.err
	}
	return slot.Availability{
		SlotID:      f.slot.ID,
		Available:   f.slot.Available(),
		IsBlocked:   f.slot.IsBlocked,
		MaxPatients: f.slot.MaxPatients,
		BookedCount: f.slot.BookedCount,
	}, nil
}

func (f *fakeSlots) TryReserve(ctx context.Context, slotID uuid.UUID) (*slot.Slot, error) {
	if f.err == nil {
		f.slot.BookedCount++
	}
	return f.result()
}

func (f *fakeSlots) Release(ctx context.Context, slotID uuid.UUID) (*slot.Slot, error) {
	if f.err == nil && f.slot.BookedCount > 0 {
		f.slot.BookedCount--
	}
	return f.result()
}

func (f *fakeSlots) SetBlocked(ctx context.Context, slotID, doctorID uuid.UUID, blocked bool) (*slot.Slot, error) {
	if doctorID != f.slot.DoctorID {
		return nil, slot.ErrNotSlotOwner
	}
	f.blocked = &blocked
	f.slot.IsBlocked = blocked
	return f.result()
}

func (f *fakeSlots) Delete(ctx context.Context, slotID, doctorID uuid.UUID) error {
	if doctorID != f.slot.DoctorID {
		return slot.ErrNotSlotOwner
	}
	return f.err
}

type fakeAppointments struct {
	book    func(ctx context.Context, req appointment.BookRequest) (*appointment.Appointment, error)
	cancel  func(ctx context.Context, id uuid.UUID, reason string) (*appointment.Appointment, error)
	status  func(ctx context.Context, id, doctorID uuid.UUID, to appointment.Status) (*appointment.Appointment, error)
	confirm func(ctx context.Context, id uuid.UUID, proof payment.Proof) (*appointment.Appointment, error)
	fail    func(ctx context.Context, id uuid.UUID, paymentID string) (*appointment.Appointment, error)
	get     func(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	list    func(ctx context.Context, f appointment.ListFilter) ([]appointment.Appointment, error)
}

func (f fakeAppointments) Book(ctx context.Context, req appointment.BookRequest) (*appointment.Appointment, error) {
	return f.book(ctx, req)
}

func (f fakeAppointments) Cancel(ctx context.Context, id uuid.UUID, reason string) (*appointment.Appointment, error) {
	return f.cancel(ctx, id, reason)
}

func (f fakeAppointments) UpdateDoctorStatus(ctx context.Context, id, doctorID uuid.UUID, to appointment.Status) (*appointment.Appointment, error) {
	return f.status(ctx, id, doctorID, to)
}

func (f fakeAppointments) ConfirmPayment(ctx context.Context, id uuid.UUID, proof payment.Proof) (*appointment.Appointment, error) {
	return f.confirm(ctx, id, proof)
}

func (f fakeAppointments) FailPayment(ctx context.Context, id uuid.UUID, paymentID string) (*appointment.Appointment, error) {
	return f.fail(ctx, id, paymentID)
}

func (f fakeAppointments) Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return f.get(ctx, id)
}

func (f fakeAppointments) List(ctx context.Context, lf appointment.ListFilter) ([]appointment.Appointment, error) {
	return f.list(ctx, lf)
}

// fakeWallets keeps one balance per user and rejects debits that would go
// negative, like the ledger does.
type fakeWallets struct {
	balances map[uuid.UUID]int64
}

func (f *fakeWallets) Get(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	return &wallet.Wallet{UserID: userID, Balance: f.balances[userID]}, nil
}

func (f *fakeWallets) Credit(ctx context.Context, userID uuid.UUID, amount int64, description string, bookingRef *uuid.UUID) (*wallet.Wallet, error) {
	f.balances[userID] += amount
	return f.Get(ctx, userID)
}

func (f *fakeWallets) Debit(ctx context.Context, userID uuid.UUID, amount int64, description string, bookingRef *uuid.UUID) (*wallet.Wallet, error) {
	if f.balances[userID] < amount {
		return nil, wallet.ErrInsufficientBalance
	}
	f.balances[userID] -= amount
	return f.Get(ctx, userID)
}
