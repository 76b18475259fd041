package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-slot-booking/internal/interval"
	"github.com/hackgods/clinic-slot-booking/internal/scheduling"
)

// Times of day travel as "HH:MM" and dates as "YYYY-MM-DD".

type ScheduleRequest struct {
	DoctorID        string `json:"doctor_id"`
	SpecialtyID     string `json:"specialty_id"`
	RoomID          string `json:"room_id"`
	DayOfWeek       *int   `json:"day_of_week"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

type ScheduleResponse struct {
	ID              uuid.UUID `json:"id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	SpecialtyID     uuid.UUID `json:"specialty_id"`
	RoomID          uuid.UUID `json:"room_id"`
	DayOfWeek       int       `json:"day_of_week"`
	DayName         string    `json:"day_name"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type GenerateRequest struct {
	Date      string `json:"date,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

type GenerateResponse struct {
	ScheduleID uuid.UUID      `json:"schedule_id"`
	Created    int            `json:"created"`
	Slots      []SlotResponse `json:"slots"`
}

type SlotResponse struct {
	ID            uuid.UUID  `json:"id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	SpecialtyID   uuid.UUID  `json:"specialty_id"`
	RoomID        uuid.UUID  `json:"room_id"`
	Date          string     `json:"date"`
	StartTime     string     `json:"start_time"`
	EndTime       string     `json:"end_time"`
	Available     bool       `json:"available"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
}

type BookSlotRequest struct {
	PatientID string `json:"patient_id"`
	VisitType string `json:"visit_type,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type AppointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	SlotID    uuid.UUID `json:"slot_id"`
	PatientID uuid.UUID `json:"patient_id"`
	VisitType string    `json:"visit_type"`
	Reason    string    `json:"reason,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type AbsenceRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason,omitempty"`
}

type AbsenceResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Reason    string    `json:"reason,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// fieldError names the request field that failed to parse.
type fieldError struct {
	code string
	msg  string
}

func (e *fieldError) Error() string { return e.msg }

func parseUUIDField(name, v string) (uuid.UUID, error) {
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, &fieldError{code: "invalid_" + name, msg: name + " must be a valid UUID"}
	}
	return id, nil
}

func parseTimeField(name, v string) (interval.TimeOfDay, error) {
	t, err := interval.ParseTimeOfDay(v)
	if err != nil {
		return 0, &fieldError{code: "invalid_" + name, msg: name + " must be HH:MM"}
	}
	return t, nil
}

func parseDateField(name, v string) (time.Time, error) {
	d, err := interval.ParseDate(v)
	if err != nil {
		return time.Time{}, &fieldError{code: "invalid_" + name, msg: name + " must be YYYY-MM-DD"}
	}
	return d, nil
}

func (req ScheduleRequest) toInput() (scheduling.ScheduleInput, error) {
	var (
		in  scheduling.ScheduleInput
		err error
	)
	if in.DoctorID, err = parseUUIDField("doctor_id", req.DoctorID); err != nil {
		return in, err
	}
	if in.SpecialtyID, err = parseUUIDField("specialty_id", req.SpecialtyID); err != nil {
		return in, err
	}
	if in.RoomID, err = parseUUIDField("room_id", req.RoomID); err != nil {
		return in, err
	}
	if req.DayOfWeek == nil {
		return in, &fieldError{code: "invalid_day_of_week", msg: "day_of_week is required (0 = Sunday .. 6 = Saturday)"}
	}
	in.DayOfWeek = time.Weekday(*req.DayOfWeek)
	if in.StartTime, err = parseTimeField("start_time", req.StartTime); err != nil {
		return in, err
	}
	if in.EndTime, err = parseTimeField("end_time", req.EndTime); err != nil {
		return in, err
	}
	in.DurationMinutes = req.DurationMinutes
	return in, nil
}

func (req AbsenceRequest) toInput(doctorID uuid.UUID) (scheduling.AbsenceInput, error) {
	in := scheduling.AbsenceInput{DoctorID: doctorID, Reason: req.Reason}

	var err error
	if in.Date, err = parseDateField("date", req.Date); err != nil {
		return in, err
	}
	if in.StartTime, err = parseTimeField("start_time", req.StartTime); err != nil {
		return in, err
	}
	if in.EndTime, err = parseTimeField("end_time", req.EndTime); err != nil {
		return in, err
	}
	return in, nil
}

func (req BookSlotRequest) toRequest(slotID uuid.UUID) (scheduling.BookingRequest, error) {
	patientID, err := parseUUIDField("patient_id", req.PatientID)
	if err != nil {
		return scheduling.BookingRequest{}, err
	}
	return scheduling.BookingRequest{
		SlotID:    slotID,
		PatientID: patientID,
		VisitType: scheduling.VisitType(req.VisitType),
		Reason:    req.Reason,
	}, nil
}

// dateRange resolves either a single date or a start/end pair.
func (req GenerateRequest) dateRange() (from, to time.Time, err error) {
	switch {
	case req.Date != "" && (req.StartDate != "" || req.EndDate != ""):
		return from, to, &fieldError{code: "invalid_request_body", msg: "use either date or start_date/end_date, not both"}
	case req.Date != "":
		from, err = parseDateField("date", req.Date)
		return from, from, err
	case req.StartDate != "" && req.EndDate != "":
		if from, err = parseDateField("start_date", req.StartDate); err != nil {
			return from, to, err
		}
		to, err = parseDateField("end_date", req.EndDate)
		return from, to, err
	}
	return from, to, &fieldError{code: "invalid_request_body", msg: "date or start_date and end_date are required"}
}

func toScheduleResponse(s *scheduling.DoctorSchedule) ScheduleResponse {
	return ScheduleResponse{
		ID:              s.ID,
		DoctorID:        s.DoctorID,
		SpecialtyID:     s.SpecialtyID,
		RoomID:          s.RoomID,
		DayOfWeek:       int(s.DayOfWeek),
		DayName:         s.DayOfWeek.String(),
		StartTime:       s.StartTime.String(),
		EndTime:         s.EndTime.String(),
		DurationMinutes: s.DurationMinutes,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func toScheduleResponses(list []scheduling.DoctorSchedule) []ScheduleResponse {
	out := make([]ScheduleResponse, len(list))
	for i := range list {
		out[i] = toScheduleResponse(&list[i])
	}
	return out
}

func toSlotResponse(s *scheduling.AppointmentSlot) SlotResponse {
	return SlotResponse{
		ID:            s.ID,
		DoctorID:      s.DoctorID,
		SpecialtyID:   s.SpecialtyID,
		RoomID:        s.RoomID,
		Date:          interval.FormatDate(s.Date),
		StartTime:     s.StartTime.String(),
		EndTime:       s.EndTime.String(),
		Available:     !s.Booked(),
		AppointmentID: s.AppointmentID,
	}
}

func toSlotResponses(list []scheduling.AppointmentSlot) []SlotResponse {
	out := make([]SlotResponse, len(list))
	for i := range list {
		out[i] = toSlotResponse(&list[i])
	}
	return out
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		SlotID:    a.SlotID,
		PatientID: a.PatientID,
		VisitType: string(a.VisitType),
		Reason:    a.Reason,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
	}
}

func toAbsenceResponse(a *scheduling.DoctorAbsence) AbsenceResponse {
	return AbsenceResponse{
		ID:        a.ID,
		DoctorID:  a.DoctorID,
		Date:      interval.FormatDate(a.Date),
		StartTime: a.StartTime.String(),
		EndTime:   a.EndTime.String(),
		Reason:    a.Reason,
	}
}

func toAbsenceResponses(list []scheduling.DoctorAbsence) []AbsenceResponse {
	out := make([]AbsenceResponse, len(list))
	for i := range list {
		out[i] = toAbsenceResponse(&list[i])
	}
	return out
}
