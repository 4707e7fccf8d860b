package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-slot-booking/internal/payment"
)

type PaymentMethod string

const (
	PaymentWallet PaymentMethod = "wallet"
	PaymentOnline PaymentMethod = "online"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment amounts are minor currency units. SlotID never changes after
// creation and appointments are never deleted.
type Appointment struct {
	ID                 uuid.UUID
	DoctorID           uuid.UUID
	PatientID          uuid.UUID
	SlotID             uuid.UUID
	Status             Status
	IsPaid             bool
	PaymentMethod      PaymentMethod
	PaymentID          *string
	TicketPrice        int64
	PlatformFee        int64
	TotalAmount        int64
	AppointmentDate    string
	AppointmentTime    string
	CancellationReason *string
	VideoCallRoomID    *string
	ExpiresAt          *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type BookRequest struct {
	DoctorID      uuid.UUID
	PatientID     uuid.UUID
	SlotID        uuid.UUID
	PaymentMethod PaymentMethod `validate:"required,oneof=wallet online"`
	TicketPrice   int64         `validate:"gt=0"`
	PlatformFee   int64         `validate:"gte=0"`
	TotalAmount   int64         `validate:"gt=0"`
	// Payment carries a gateway proof for online payments that were already
	// completed at booking time. Without it an online booking waits in
	// PAYMENT_PENDING.
	Payment *payment.Proof
}

// StatusUpdate carries the columns a status transition may set alongside the
// status. Nil fields are left unchanged.
type StatusUpdate struct {
	IsPaid             *bool
	PaymentID          *string
	CancellationReason *string
	VideoCallRoomID    *string
}

type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	SlotID    *uuid.UUID
	Status    *Status
	Limit     int
	Offset    int
}
