package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-slot-booking/internal/interval"
)

type VisitType string

const (
	VisitInPerson VisitType = "in_person"
	VisitRemote   VisitType = "remote"
	VisitPhone    VisitType = "phone"
)

func (v VisitType) IsValid() bool {
	switch v {
	case VisitInPerson, VisitRemote, VisitPhone:
		return true
	}
	return false
}

// Status transitions beyond pending are owned by the record keeping side of
// the clinic, not by the booking engine.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

type Timestamps struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *Timestamps) stamp(now time.Time) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}

// DoctorSchedule is a recurring weekly availability window.
type DoctorSchedule struct {
	ID              uuid.UUID
	DoctorID        uuid.UUID
	SpecialtyID     uuid.UUID
	RoomID          uuid.UUID
	DayOfWeek       time.Weekday
	StartTime       interval.TimeOfDay
	EndTime         interval.TimeOfDay
	DurationMinutes int
	Timestamps
}

func (s DoctorSchedule) Window() interval.Interval {
	return interval.Interval{Start: s.StartTime, End: s.EndTime}
}

func (s DoctorSchedule) SlotDuration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// AppointmentSlot is one dated, bookable unit. A nil AppointmentID means the
// slot is available.
type AppointmentSlot struct {
	ID            uuid.UUID
	DoctorID      uuid.UUID
	SpecialtyID   uuid.UUID
	RoomID        uuid.UUID
	Date          time.Time
	StartTime     interval.TimeOfDay
	EndTime       interval.TimeOfDay
	AppointmentID *uuid.UUID
	Timestamps
}

func (s AppointmentSlot) Window() interval.Interval {
	return interval.Interval{Start: s.StartTime, End: s.EndTime}
}

func (s AppointmentSlot) Booked() bool {
	return s.AppointmentID != nil
}

func (s AppointmentSlot) StartsAt() time.Time {
	return s.StartTime.On(s.Date)
}

type Appointment struct {
	ID        uuid.UUID
	SlotID    uuid.UUID
	PatientID uuid.UUID
	VisitType VisitType
	Reason    string
	Status    AppointmentStatus
	Timestamps
}

// DoctorAbsence blocks part of a day for one doctor. Generation skips any
// candidate slot that overlaps it.
type DoctorAbsence struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	StartTime interval.TimeOfDay
	EndTime   interval.TimeOfDay
	Reason    string
	Timestamps
}

func (a DoctorAbsence) Window() interval.Interval {
	return interval.Interval{Start: a.StartTime, End: a.EndTime}
}

// ScheduleInput carries every field of a schedule; updates replace the whole
// record.
type ScheduleInput struct {
	DoctorID        uuid.UUID
	SpecialtyID     uuid.UUID
	RoomID          uuid.UUID
	DayOfWeek       time.Weekday
	StartTime       interval.TimeOfDay
	EndTime         interval.TimeOfDay
	DurationMinutes int
}

type BookingRequest struct {
	SlotID    uuid.UUID
	PatientID uuid.UUID
	VisitType VisitType
	Reason    string
}

type AbsenceInput struct {
	DoctorID  uuid.UUID
	Date      time.Time
	StartTime interval.TimeOfDay
	EndTime   interval.TimeOfDay
	Reason    string
}
