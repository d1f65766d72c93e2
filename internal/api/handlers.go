package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/campus-clinic-scheduling/internal/appointment"
	"github.com/hackgods/campus-clinic-scheduling/internal/catalog"
)

func createAppointmentHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			handleServiceError(w, r, &appointment.ValidationError{Field: "patientId", Reason: "must be a valid UUID"})
			return
		}

		nurseID, err := appointment.ParseNurseSelection(req.NurseID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		appt, err := svc.BookAppointment(r.Context(), appointment.BookingRequest{
			PatientID:    patientID,
			PatientName:  req.PatientName,
			PatientEmail: req.PatientEmail,
			NurseID:      nurseID,
			Date:         req.Date,
			Time:         req.Time,
			EndTime:      req.EndTime,
			Type:         req.Type,
			Notes:        req.Notes,
			Symptoms:     req.Symptoms,
			Priority:     appointment.Priority(req.Priority),
			Status:       appointment.Status(req.Status),
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func listAppointmentsHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseListFilter(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		list, err := svc.ListAppointments(r.Context(), f)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, ListAppointmentsResponse{
			Appointments: toAppointmentResponses(list),
			Limit:        clampLimit(f.Limit),
			Offset:       f.Offset,
		})
	}
}

func parseListFilter(r *http.Request) (appointment.ListFilter, error) {
	q := r.URL.Query()
	var f appointment.ListFilter

	if v := q.Get("patientId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, &appointment.ValidationError{Field: "patientId", Reason: "must be a valid UUID"}
		}
		f.PatientID = &id
	}
	if v := q.Get("nurseId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, &appointment.ValidationError{Field: "nurseId", Reason: "must be a valid UUID"}
		}
		f.NurseID = &id
	}
	if v := q.Get("status"); v != "" {
		s := appointment.Status(v)
		if !s.Valid() {
			return f, &appointment.ValidationError{Field: "status", Reason: "unknown status"}
		}
		f.Status = &s
	}
	if v := q.Get("type"); v != "" {
		f.Type = &v
	}
	if v := q.Get("date"); v != "" {
		d, err := appointment.NormalizeDate("date", v)
		if err != nil {
			return f, err
		}
		f.Date = &d
	}

	var err error
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		return f, err
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	return f, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &appointment.ValidationError{Field: key, Reason: "must be an integer"}
	}
	return n, nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return appointment.DefaultListLimit
	case n > appointment.MaxListLimit:
		return appointment.MaxListLimit
	}
	return n
}

func getAppointmentHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func updateAppointmentHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		ch := appointment.Changes{
			Date:     req.Date,
			Time:     req.Time,
			EndTime:  req.EndTime,
			Type:     req.Type,
			Notes:    req.Notes,
			Symptoms: req.Symptoms,
		}
		if req.NurseID != nil {
			nurseID, err := appointment.ParseNurseSelection(*req.NurseID)
			if err != nil {
				handleServiceError(w, r, err)
				return
			}
			ch.NurseID = nurseID
			ch.AutoAssign = nurseID == nil
		}
		if req.Status != nil {
			s := appointment.Status(*req.Status)
			ch.Status = &s
		}
		if req.Priority != nil {
			p := appointment.Priority(*req.Priority)
			ch.Priority = &p
		}

		appt, err := svc.UpdateAppointment(r.Context(), id, ch)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func deleteAppointmentHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.DeleteAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func listNursesHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nurses, err := svc.ListNurses(r.Context())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toNurseResponses(nurses))
	}
}

func availableNursesHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slot, err := appointment.NewSlot(r.URL.Query().Get("date"), r.URL.Query().Get("time"))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		nurses, err := svc.AvailableNurses(r.Context(), slot)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailableNursesResponse{
			Date:   slot.Date,
			Time:   slot.Time,
			Nurses: toNurseResponses(nurses),
		})
	}
}

func nurseScheduleHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nurseID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_nurse_id", "id must be a valid UUID")
			return
		}

		nurse, list, err := svc.NurseSchedule(r.Context(), nurseID, r.URL.Query().Get("date"))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		// already validated by NurseSchedule
		date, _ := appointment.NormalizeDate("date", r.URL.Query().Get("date"))

		writeJSON(w, http.StatusOK, NurseScheduleResponse{
			Nurse:        NurseResponse{ID: nurse.ID, Name: nurse.Name, Shift: nurse.Shift},
			Date:         date,
			Appointments: toAppointmentResponses(list),
		})
	}
}

func listTypesHandler(types TypeCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := types.List(r.Context())
		if err != nil {
			handleCatalogError(w, r, err)
			return
		}

		out := make([]AppointmentTypeResponse, 0, len(list))
		for _, t := range list {
			out = append(out, toTypeResponse(t))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getTypeHandler(types TypeCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := types.Get(r.Context(), chi.URLParam(r, "value"))
		if err != nil {
			handleCatalogError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toTypeResponse(*t))
	}
}

func createTypeHandler(types TypeCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentTypeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		t, err := types.Create(r.Context(), catalog.AppointmentType{
			Value:           req.Value,
			Label:           req.Label,
			DurationMinutes: req.DurationMinutes,
		})
		if err != nil {
			handleCatalogError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toTypeResponse(*t))
	}
}

func updateTypeHandler(types TypeCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateAppointmentTypeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		t, err := types.Update(r.Context(), chi.URLParam(r, "value"), catalog.TypeChanges{
			Label:           req.Label,
			DurationMinutes: req.DurationMinutes,
		})
		if err != nil {
			handleCatalogError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toTypeResponse(*t))
	}
}

func deleteTypeHandler(types TypeCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := types.Delete(r.Context(), chi.URLParam(r, "value")); err != nil {
			handleCatalogError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *appointment.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "validation_error", vErr.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrNoAvailableProvider):
		writeError(w, http.StatusConflict, "no_available_provider", err.Error())
	case errors.Is(err, appointment.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrStaleAppointment):
		writeError(w, http.StatusConflict, "appointment_modified", err.Error())
	case errors.Is(err, appointment.ErrStoreUnavailable):
		log.Printf("store error request_id=%s: %v", GetRequestID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "store_unavailable", "appointment store unavailable, try again later")
	default:
		log.Printf("internal error request_id=%s: %v", GetRequestID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func handleCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	var tErr *catalog.InvalidTypeError
	switch {
	case errors.As(err, &tErr):
		writeError(w, http.StatusBadRequest, "validation_error", tErr.Error())
	case errors.Is(err, catalog.ErrTypeNotFound):
		writeError(w, http.StatusNotFound, "appointment_type_not_found", err.Error())
	case errors.Is(err, catalog.ErrTypeExists):
		writeError(w, http.StatusConflict, "appointment_type_exists", err.Error())
	default:
		log.Printf("catalog error request_id=%s: %v", GetRequestID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind, details string) {
	writeJSON(w, status, ErrorResponse{Error: kind, Details: details})
}
