package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-slot-booking/internal/appointment"
	"github.com/hackgods/doctor-slot-booking/internal/payment"
)

// POST /appointments
func bookAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if !decodeBody(w, r, &req) {
			return
		}

		// decodeBody already checked these are UUIDs
		doctorID, _ := uuid.Parse(req.DoctorID)
		patientID, _ := uuid.Parse(req.PatientID)
		slotID, _ := uuid.Parse(req.SlotID)

		appt, err := svc.Book(r.Context(), appointment.BookRequest{
			DoctorID:      doctorID,
			PatientID:     patientID,
			SlotID:        slotID,
			PaymentMethod: appointment.PaymentMethod(req.PaymentMethod),
			TicketPrice:   req.TicketPrice,
			PlatformFee:   req.PlatformFee,
			TotalAmount:   req.TotalAmount,
			Payment:       req.Payment,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

// GET /appointments?patient_id=&doctor_id=&slot_id=&status=&limit=&offset=
func listAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			f  appointment.ListFilter
			ok bool
		)
		if f.PatientID, ok = queryUUID(w, r, "patient_id"); !ok {
			return
		}
		if f.DoctorID, ok = queryUUID(w, r, "doctor_id"); !ok {
			return
		}
		if f.SlotID, ok = queryUUID(w, r, "slot_id"); !ok {
			return
		}
		if raw := r.URL.Query().Get("status"); raw != "" {
			st := appointment.Status(raw)
			f.Status = &st
		}
		if f.Limit, ok = queryInt(w, r, "limit"); !ok {
			return
		}
		if f.Offset, ok = queryInt(w, r, "offset"); !ok {
			return
		}

		appts, err := svc.List(r.Context(), f)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		out := make([]AppointmentResponse, 0, len(appts))
		for _, a := range appts {
			out = append(out, toAppointmentResponse(a))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /appointments/{id}
func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

// POST /appointments/{id}/cancel
func cancelAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		var req CancelAppointmentRequest
		if !decodeOptionalBody(w, r, &req) {
			return
		}

		appt, err := svc.Cancel(r.Context(), id, req.Reason)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

// POST /appointments/{id}/confirm-payment carries the gateway's signed proof.
func confirmPaymentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		var proof payment.Proof
		if !decodeBody(w, r, &proof) {
			return
		}

		appt, err := svc.ConfirmPayment(r.Context(), id, proof)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

// POST /appointments/{id}/fail-payment
func failPaymentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		var req FailPaymentRequest
		if !decodeOptionalBody(w, r, &req) {
			return
		}

		appt, err := svc.FailPayment(r.Context(), id, req.PaymentID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

// PATCH /appointments/{id}/status
func updateStatusHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		var req UpdateStatusRequest
		if !decodeBody(w, r, &req) {
			return
		}
		doctorID, _ := uuid.Parse(req.DoctorID)

		appt, err := svc.UpdateDoctorStatus(r.Context(), id, doctorID, appointment.Status(req.Status))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}
