package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-slot-booking/internal/appointment"
	"github.com/hackgods/doctor-slot-booking/internal/payment"
	"github.com/hackgods/doctor-slot-booking/internal/slot"
	"github.com/hackgods/doctor-slot-booking/internal/wallet"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Slots

type GenerateSlotsRequest struct {
	DoctorID    string `json:"doctor_id" validate:"required,uuid"`
	Date        string `json:"date" validate:"required"`
	StartTime   string `json:"start_time" validate:"required"`
	EndTime     string `json:"end_time" validate:"required"`
	MaxPatients int    `json:"max_patients"`
	IsRecurring bool   `json:"is_recurring"`
	Frequency   string `json:"frequency,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
}

type SlotOwnerRequest struct {
	DoctorID string `json:"doctor_id" validate:"required,uuid"`
}

type SlotResponse struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	Date        string    `json:"date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	MaxPatients int       `json:"max_patients"`
	BookedCount int       `json:"booked_count"`
	IsBooked    bool      `json:"is_booked"`
	IsBlocked   bool      `json:"is_blocked"`
	IsRecurring bool      `json:"is_recurring"`
	Frequency   *string   `json:"frequency,omitempty"`
	EndDate     *string   `json:"end_date,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type GenerateSlotsResponse struct {
	Created      []SlotResponse `json:"created"`
	SkippedDates []string       `json:"skipped_dates"`
}

type AvailabilityResponse struct {
	SlotID      uuid.UUID `json:"slot_id"`
	Available   bool      `json:"available"`
	IsBooked    bool      `json:"is_booked"`
	IsBlocked   bool      `json:"is_blocked"`
	MaxPatients int       `json:"max_patients"`
	BookedCount int       `json:"booked_count"`
}

func toSlotResponse(s slot.Slot) SlotResponse {
	resp := SlotResponse{
		ID:          s.ID,
		DoctorID:    s.DoctorID,
		Date:        s.Date,
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		MaxPatients: s.MaxPatients,
		BookedCount: s.BookedCount,
		IsBooked:    s.IsBooked(),
		IsBlocked:   s.IsBlocked,
		IsRecurring: s.IsRecurring,
		EndDate:     s.EndDate,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	if s.Frequency != nil {
		f := string(*s.Frequency)
		resp.Frequency = &f
	}
	return resp
}

func toSlotResponses(slots []slot.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResponse(s))
	}
	return out
}

// Appointments

type BookAppointmentRequest struct {
	DoctorID      string         `json:"doctor_id" validate:"required,uuid"`
	PatientID     string         `json:"patient_id" validate:"required,uuid"`
	SlotID        string         `json:"slot_id" validate:"required,uuid"`
	PaymentMethod string         `json:"payment_method" validate:"required,oneof=wallet online"`
	TicketPrice   int64          `json:"ticket_price" validate:"gt=0"`
	PlatformFee   int64          `json:"platform_fee" validate:"gte=0"`
	TotalAmount   int64          `json:"total_amount" validate:"gt=0"`
	Payment       *payment.Proof `json:"payment,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type FailPaymentRequest struct {
	PaymentID string `json:"payment_id"`
}

type UpdateStatusRequest struct {
	DoctorID string `json:"doctor_id" validate:"required,uuid"`
	Status   string `json:"status" validate:"required"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID  `json:"id"`
	DoctorID           uuid.UUID  `json:"doctor_id"`
	PatientID          uuid.UUID  `json:"patient_id"`
	SlotID             uuid.UUID  `json:"slot_id"`
	Status             string     `json:"status"`
	IsPaid             bool       `json:"is_paid"`
	PaymentMethod      string     `json:"payment_method"`
	PaymentID          *string    `json:"payment_id,omitempty"`
	TicketPrice        int64      `json:"ticket_price"`
	PlatformFee        int64      `json:"platform_fee"`
	TotalAmount        int64      `json:"total_amount"`
	AppointmentDate    string     `json:"appointment_date"`
	AppointmentTime    string     `json:"appointment_time"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	VideoCallRoomID    *string    `json:"video_call_room_id,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		DoctorID:           a.DoctorID,
		PatientID:          a.PatientID,
		SlotID:             a.SlotID,
		Status:             string(a.Status),
		IsPaid:             a.IsPaid,
		PaymentMethod:      string(a.PaymentMethod),
		PaymentID:          a.PaymentID,
		TicketPrice:        a.TicketPrice,
		PlatformFee:        a.PlatformFee,
		TotalAmount:        a.TotalAmount,
		AppointmentDate:    a.AppointmentDate,
		AppointmentTime:    a.AppointmentTime,
		CancellationReason: a.CancellationReason,
		VideoCallRoomID:    a.VideoCallRoomID,
		ExpiresAt:          a.ExpiresAt,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

// Wallets

type WalletMutationRequest struct {
	Amount      int64  `json:"amount" validate:"gt=0"`
	Description string `json:"description" validate:"max=255"`
	BookingRef  string `json:"booking_ref,omitempty" validate:"omitempty,uuid"`
}

type TransactionResponse struct {
	ID          uuid.UUID  `json:"id"`
	Amount      int64      `json:"amount"`
	Type        string     `json:"type"`
	Description string     `json:"description"`
	BookingRef  *uuid.UUID `json:"booking_ref,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type WalletResponse struct {
	UserID       uuid.UUID             `json:"user_id"`
	Balance      int64                 `json:"balance"`
	Transactions []TransactionResponse `json:"transactions,omitempty"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

func toWalletResponse(w wallet.Wallet) WalletResponse {
	resp := WalletResponse{
		UserID:    w.UserID,
		Balance:   w.Balance,
		UpdatedAt: w.UpdatedAt,
	}
	for _, t := range w.Transactions {
		resp.Transactions = append(resp.Transactions, TransactionResponse{
			ID:          t.ID,
			Amount:      t.Amount,
			Type:        string(t.Type),
			Description: t.Description,
			BookingRef:  t.BookingRef,
			CreatedAt:   t.CreatedAt,
		})
	}
	return resp
}
