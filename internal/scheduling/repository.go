package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ScheduleStore interface {
	CreateSchedule(ctx context.Context, s *DoctorSchedule) error
	GetSchedule(ctx context.Context, id uuid.UUID) (*DoctorSchedule, error)
	UpdateSchedule(ctx context.Context, s *DoctorSchedule) error
	DeleteSchedule(ctx context.Context, id uuid.UUID) error

	ListSchedulesByDoctorDay(ctx context.Context, doctorID uuid.UUID, day time.Weekday) ([]DoctorSchedule, error)
	ListSchedulesByDoctor(ctx context.Context, doctorID uuid.UUID) ([]DoctorSchedule, error)
	ListAllSchedules(ctx context.Context) ([]DoctorSchedule, error)
}

type SlotStore interface {
	CreateSlots(ctx context.Context, slots []*AppointmentSlot) error
	GetSlot(ctx context.Context, id uuid.UUID) (*AppointmentSlot, error)
	// LockSlot loads the slot and holds it against concurrent writers until
	// the surrounding transaction ends.
	LockSlot(ctx context.Context, id uuid.UUID) (*AppointmentSlot, error)
	DeleteSlot(ctx context.Context, id uuid.UUID) error

	ListSlotsByRoomDate(ctx context.Context, roomID uuid.UUID, date time.Time) ([]AppointmentSlot, error)
	ListSlotsByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]AppointmentSlot, error)
	ListSlotsByDoctorRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]AppointmentSlot, error)

	// AttachAppointment sets the slot's appointment reference. It fails with
	// ErrSlotAlreadyBooked if the reference is already set.
	AttachAppointment(ctx context.Context, slotID, appointmentID uuid.UUID) error
}

type AppointmentStore interface {
	// CreateAppointment fails with ErrSlotAlreadyBooked when another
	// appointment already references the same slot.
	CreateAppointment(ctx context.Context, a *Appointment) error
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
}

type AbsenceStore interface {
	CreateAbsence(ctx context.Context, a *DoctorAbsence) error
	DeleteAbsence(ctx context.Context, id uuid.UUID) error
	ListAbsences(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]DoctorAbsence, error)
}

// Store is the durable state behind the scheduling core.
type Store interface {
	ScheduleStore
	SlotStore
	AppointmentStore
	AbsenceStore

	// InTx runs fn with a Store bound to a single transaction. Returning an
	// error from fn rolls everything back.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// LockKeys serializes transactions that touch the same grouping keys.
	// Locks are released when the transaction ends.
	LockKeys(ctx context.Context, keys ...string) error
}

// Directory answers identity questions owned by other parts of the clinic.
type Directory interface {
	DoctorExists(ctx context.Context, doctorID uuid.UUID) (bool, error)
	DoctorHasSpecialty(ctx context.Context, doctorID, specialtyID uuid.UUID) (bool, error)
	RoomExists(ctx context.Context, roomID uuid.UUID) (bool, error)
	PatientExists(ctx context.Context, patientID uuid.UUID) (bool, error)
}

func scheduleKey(doctorID uuid.UUID, day time.Weekday) string {
	return "schedule:doctor:" + doctorID.String() + ":" + day.String()
}

func roomDayKey(roomID uuid.UUID, date time.Time) string {
	return "slots:room:" + roomID.String() + ":" + date.Format(time.DateOnly)
}

func doctorDayKey(doctorID uuid.UUID, date time.Time) string {
	return "slots:doctor:" + doctorID.String() + ":" + date.Format(time.DateOnly)
}
