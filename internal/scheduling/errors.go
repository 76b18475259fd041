package scheduling

import (
	"errors"
	"fmt"
)

// Kind classifies failures for callers that do not care about the specific
// sentinel.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalid
	KindNotFound
	KindConflict
	KindStorageUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindStorageUnavailable:
		return "storage_unavailable"
	}
	return "unknown"
}

type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Kind() Kind { return e.kind }

func newError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func invalidf(format string, args ...any) error {
	return newError(KindInvalid, fmt.Sprintf(format, args...))
}

var (
	ErrScheduleNotFound    = newError(KindNotFound, "schedule not found")
	ErrSlotNotFound        = newError(KindNotFound, "slot not found")
	ErrAppointmentNotFound = newError(KindNotFound, "appointment not found")
	ErrAbsenceNotFound     = newError(KindNotFound, "absence not found")
	ErrDoctorNotFound      = newError(KindNotFound, "doctor not found")
	ErrRoomNotFound        = newError(KindNotFound, "room not found")
	ErrPatientNotFound     = newError(KindNotFound, "patient not found")

	ErrScheduleConflict  = newError(KindConflict, "schedule overlaps an existing schedule for this doctor and day")
	ErrSpecialtyMismatch = newError(KindConflict, "doctor does not hold the requested specialty")
	ErrSlotAlreadyBooked = newError(KindConflict, "slot already has an appointment")
	ErrSlotBooked        = newError(KindConflict, "slot is booked; cancel the appointment before deleting it")
	ErrSlotBeingBooked   = newError(KindConflict, "slot is currently being booked, please retry")

	ErrWeekdayMismatch  = newError(KindInvalid, "date does not fall on the schedule's day of week")
	ErrInvalidVisitType = newError(KindInvalid, "visit type must be in_person, remote or phone")

	ErrStorageUnavailable = newError(KindStorageUnavailable, "storage unavailable")
)

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// storageErr passes classified errors through and marks everything else as
// a storage failure.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
