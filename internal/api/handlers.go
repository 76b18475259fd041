package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/scheduling"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func urlUUID(w http.ResponseWriter, r *http.Request, param, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, param+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// errorCodes gives the stable machine-readable code for each sentinel.
var errorCodes = []struct {
	err  error
	code string
}{
	{scheduling.ErrScheduleNotFound, "schedule_not_found"},
	{scheduling.ErrSlotNotFound, "slot_not_found"},
	{scheduling.ErrAppointmentNotFound, "appointment_not_found"},
	{scheduling.ErrAbsenceNotFound, "absence_not_found"},
	{scheduling.ErrDoctorNotFound, "doctor_not_found"},
	{scheduling.ErrRoomNotFound, "room_not_found"},
	{scheduling.ErrPatientNotFound, "patient_not_found"},
	{scheduling.ErrScheduleConflict, "schedule_conflict"},
	{scheduling.ErrSpecialtyMismatch, "specialty_mismatch"},
	{scheduling.ErrSlotAlreadyBooked, "slot_already_booked"},
	{scheduling.ErrSlotBooked, "slot_booked"},
	{scheduling.ErrSlotBeingBooked, "slot_being_booked"},
	{scheduling.ErrWeekdayMismatch, "weekday_mismatch"},
	{scheduling.ErrInvalidVisitType, "invalid_visit_type"},
}

// handleError maps a service error to a status by its kind.
func handleError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var fe *fieldError
	if errors.As(err, &fe) {
		writeError(w, http.StatusBadRequest, fe.code, fe.msg)
		return
	}

	code := ""
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			code = c.code
			break
		}
	}

	switch scheduling.KindOf(err) {
	case scheduling.KindInvalid:
		if code == "" {
			code = "invalid_request"
		}
		writeError(w, http.StatusBadRequest, code, err.Error())
	case scheduling.KindNotFound:
		if code == "" {
			code = "not_found"
		}
		writeError(w, http.StatusNotFound, code, err.Error())
	case scheduling.KindConflict:
		if code == "" {
			code = "conflict"
		}
		writeError(w, http.StatusConflict, code, err.Error())
	case scheduling.KindStorageUnavailable:
		log.Error("storage unavailable",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "storage is temporarily unavailable")
	default:
		log.Error("unhandled error",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// -- Schedules --

func createScheduleHandler(svc ScheduleService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScheduleRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		in, err := req.toInput()
		if err != nil {
			handleError(w, r, log, err)
			return
		}

		sched, err := svc.AddSchedule(r.Context(), in)
		if err != nil {
			handleError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, toScheduleResponse(sched))
	}
}

func listSchedulesHandler(svc ScheduleService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := parseUUIDField("doctor_id", r.URL.Query().Get("doctor_id"))
		if err != nil {
			handleError(w, r, log, err)
			return
		}

		list, err := svc.ListSchedules(r.Context(), doctorID)
		if err != nil {
			handleError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toScheduleResponses(list))
	}
}

func getScheduleHandler(svc ScheduleService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id", "invalid_schedule_id")
		if !ok {
			return
		}

		sched, err := svc.GetSchedule(r.Context(), id)
		if err != nil {
			handleError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toScheduleResponse(sched))
	}
}

func updateScheduleHandler(svc ScheduleService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id", "invalid_schedule_id")
		if !ok {
			return
		}

		var req ScheduleRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		in, err := req.toInput()
		if err != nil {
			handleError(w, r, log, err)
			return
		}

		sched, err := svc.UpdateSchedule(r.Context(), id, in)
		if err != nil {
			handleError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toScheduleResponse(sched))
	}
}

func deleteScheduleHandler(svc ScheduleService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id", "invalid_schedule_id")
		if !ok {
			return
		}

		if err := svc.DeleteSchedule(r.Context(), id); err != nil {
			handleError(w, r, log, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func generateSlotsHandler(svc SlotService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id", "invalid_schedule_id")
		if !ok {
			return
		}

		var req GenerateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		from, to, err := req.dateRange()
		if err != nil {
			handleError(w, r, log, err)
			return
		}

		var slots []scheduling.AppointmentSlot
		if req.Date != "" {
			slots, err = svc.GenerateForDate(r.Context(), id, from)
		} else {
			slots, err = svc.GenerateForDateRange(r.Context(), id, from, to)
		}
		if err != nil {
			handleError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, GenerateResponse{
			ScheduleID: id,
			Created:    len(slots),
			Slots:      toSlotResponses(slots),
		})
	}
}

// -- Slots --

func listDoctorSlotsHandler(svc SlotService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := urlUUID(w, r, "id", "invalid_doctor_id")
		if !ok {
			return
		}

		q := r.URL.Query()
		var (
			slots []scheduling.AppointmentSlot
			err   error
		)
		switch {
		case q.Get("date") != "":
			date, perr := parseDateField("date", q.Get("date"))
			if perr != nil {
				handleError(w, r, log, perr)
				return
			}
			slots, err = svc.ListSlotsByDoctorDate(r.Context(), doctorID, date)
		case q.Get("from") != "" && q.Get("to") != "":
			from, perr := parseDateField("from", q.Get("from"))
			if perr != nil {
				handleError(w, r, log, perr)
				return
			}
			to, perr := parseDateField("to", q.Get("to"))
			if perr != nil {
				handleError(w, r, log, perr)
				return
			}
			slots, err = svc.ListSlotsByDoctorRange(r.Context(), doctorID, from, to)
		default:
			writeError(w, http.StatusBadRequest, "invalid_query", "date or from and to are required")
			return
		}
		if err != nil {
			handleError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

func getSlotHandler(svc SlotService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id", "invalid_slot_id")
		if !ok {
			return
		}

		slot, err := svc.GetSlot(r.Context(), id)
		if err != nil {
			handleError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponse(slot))
	}
}

func deleteSlotHandler(svc SlotService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id", "invalid_slot_id")
		if !ok {
			return
		}

		if err := svc.DeleteSlot(r.Context(), id); err != nil {
			handleError(w, r, log, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// -- Booking --

func bookSlotHandler(svc BookingService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := urlUUID(w, r, "id", "invalid_slot_id")
		if !ok {
			return
		}

		var req BookSlotRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		booking, err := req.toRequest(slotID)
		if err != nil {
			handleError(w, r, log, err)
			return
		}

		appt, err := svc.BookSlot(r.Context(), booking)
		if err != nil {
			handleError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc BookingService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id", "invalid_appointment_id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// -- Absences --

func createAbsenceHandler(svc ScheduleService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := urlUUID(w, r, "id", "invalid_doctor_id")
		if !ok {
			return
		}

		var req AbsenceRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		in, err := req.toInput(doctorID)
		if err != nil {
			handleError(w, r, log, err)
			return
		}

		absence, err := svc.AddAbsence(r.Context(), in)
		if err != nil {
			handleError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAbsenceResponse(absence))
	}
}

func listAbsencesHandler(svc ScheduleService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := urlUUID(w, r, "id", "invalid_doctor_id")
		if !ok {
			return
		}

		date, err := parseDateField("date", r.URL.Query().Get("date"))
		if err != nil {
			handleError(w, r, log, err)
			return
		}

		list, err := svc.ListAbsences(r.Context(), doctorID, date)
		if err != nil {
			handleError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAbsenceResponses(list))
	}
}

func deleteAbsenceHandler(svc ScheduleService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id", "invalid_absence_id")
		if !ok {
			return
		}

		if err := svc.DeleteAbsence(r.Context(), id); err != nil {
			handleError(w, r, log, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
