package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-slot-booking/internal/slot"
)

// defaultListWindow bounds GET /slots when the caller omits "to".
const defaultListWindow = 365 * 24 * time.Hour

// POST /slots/generate
func generateSlotsHandler(gen SlotGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateSlotsRequest
		if !decodeBody(w, r, &req) {
			return
		}

		doctorID, _ := uuid.Parse(req.DoctorID)
		res, err := gen.Generate(r.Context(), slot.Template{
			DoctorID:    doctorID,
			Date:        req.Date,
			StartTime:   req.StartTime,
			EndTime:     req.EndTime,
			MaxPatients: req.MaxPatients,
			IsRecurring: req.IsRecurring,
			Frequency:   slot.Frequency(req.Frequency),
			EndDate:     req.EndDate,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		skipped := res.Skipped
		if skipped == nil {
			skipped = []string{}
		}
		writeJSON(w, http.StatusCreated, GenerateSlotsResponse{
			Created:      toSlotResponses(res.Slots),
			SkippedDates: skipped,
		})
	}
}

// GET /slots?doctor_id=&from=&to=
func listSlotsHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := queryUUID(w, r, "doctor_id")
		if !ok {
			return
		}
		if doctorID == nil {
			writeError(w, http.StatusBadRequest, codeValidation, "doctor_id is required")
			return
		}

		q := r.URL.Query()
		from := time.Now().UTC()
		if raw := q.Get("from"); raw != "" {
			t, err := time.Parse(slot.DateLayout, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeValidation, "from must be YYYY-MM-DD")
				return
			}
			from = t
		}
		to := from.Add(defaultListWindow)
		if raw := q.Get("to"); raw != "" {
			t, err := time.Parse(slot.DateLayout, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeValidation, "to must be YYYY-MM-DD")
				return
			}
			to = t
		}
		if to.Before(from) {
			writeError(w, http.StatusBadRequest, codeValidation, "to must not be before from")
			return
		}

		slots, err := svc.ListByDoctor(r.Context(), *doctorID, from.Format(slot.DateLayout), to.Format(slot.DateLayout))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

// GET /slots/{id}
func getSlotHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		s, err := svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponse(*s))
	}
}

// DELETE /slots/{id}?doctor_id=
func deleteSlotHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		doctorID, ok := queryUUID(w, r, "doctor_id")
		if !ok {
			return
		}
		if doctorID == nil {
			writeError(w, http.StatusBadRequest, codeValidation, "doctor_id is required")
			return
		}
		if err := svc.Delete(r.Context(), id, *doctorID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /slots/{id}/availability
func availabilityHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		av, err := svc.CheckAvailability(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AvailabilityResponse{
			SlotID:      av.SlotID,
			Available:   av.Available,
			IsBooked:    av.BookedCount >= av.MaxPatients,
			IsBlocked:   av.IsBlocked,
			MaxPatients: av.MaxPatients,
			BookedCount: av.BookedCount,
		})
	}
}

// POST /slots/{id}/reserve
func reserveSlotHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		s, err := svc.TryReserve(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponse(*s))
	}
}

// POST /slots/{id}/release
func releaseSlotHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		s, err := svc.Release(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponse(*s))
	}
}

// POST /slots/{id}/block and /slots/{id}/unblock
func blockSlotHandler(svc SlotService, blocked bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		var req SlotOwnerRequest
		if !decodeBody(w, r, &req) {
			return
		}
		doctorID, _ := uuid.Parse(req.DoctorID)

		s, err := svc.SetBlocked(r.Context(), id, doctorID, blocked)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponse(*s))
	}
}
