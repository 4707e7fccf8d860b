package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/hackgods/doctor-slot-booking/internal/appointment"
	"github.com/hackgods/doctor-slot-booking/internal/payment"
	"github.com/hackgods/doctor-slot-booking/internal/slot"
	"github.com/hackgods/doctor-slot-booking/internal/wallet"
)

const codeValidation = "validation_error"

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// decodeBody parses and validates a JSON request body. It writes the 400
// response itself and reports whether the handler may continue.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "could not parse JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return false
	}
	return true
}

// decodeOptionalBody is decodeBody for endpoints whose body may be empty.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength == 0 {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return true
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "could not parse JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// queryUUID returns nil when the parameter is absent.
func queryUUID(w http.ResponseWriter, r *http.Request, name string) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, name+" must be a valid UUID")
		return nil, false
	}
	return &id, true
}

func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, name+" must be an integer")
		return 0, false
	}
	return n, true
}

// writeServiceError maps domain errors to their stable codes. Anything not
// listed is an internal error.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, slot.ErrSlotNotFound):
		return http.StatusNotFound, "slot_not_found"
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		return http.StatusNotFound, "appointment_not_found"
	case errors.Is(err, appointment.ErrDoctorNotFound), errors.Is(err, slot.ErrDoctorNotFound):
		return http.StatusNotFound, "doctor_not_found"
	case errors.Is(err, appointment.ErrPatientNotFound):
		return http.StatusNotFound, "patient_not_found"
	case errors.Is(err, wallet.ErrWalletNotFound):
		return http.StatusNotFound, "wallet_not_found"

	case errors.Is(err, slot.ErrSlotFull):
		return http.StatusConflict, "slot_full"
	case errors.Is(err, slot.ErrSlotBlocked):
		return http.StatusConflict, "slot_blocked"
	case errors.Is(err, slot.ErrSlotHasBookings):
		return http.StatusConflict, "slot_has_bookings"
	case errors.Is(err, slot.ErrScheduleBusy):
		return http.StatusConflict, "schedule_busy"
	case errors.Is(err, appointment.ErrAlreadyCancelled):
		return http.StatusConflict, "already_cancelled"
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		return http.StatusConflict, "invalid_status_transition"
	case errors.Is(err, wallet.ErrInsufficientBalance):
		return http.StatusConflict, "insufficient_balance"
	case errors.Is(err, appointment.ErrPaymentAlreadyUsed):
		return http.StatusConflict, "payment_already_used"

	case errors.Is(err, appointment.ErrPermissionDenied), errors.Is(err, slot.ErrNotSlotOwner):
		return http.StatusForbidden, "permission_denied"

	case errors.Is(err, slot.ErrInvalidTemplate),
		errors.Is(err, appointment.ErrInvalidRequest),
		errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, payment.ErrInvalidSignature),
		errors.Is(err, payment.ErrAmountMismatch):
		return http.StatusBadRequest, codeValidation
	}
	return http.StatusInternalServerError, "internal_error"
}
