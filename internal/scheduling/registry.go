package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/interval"
	"github.com/hackgods/clinic-slot-booking/internal/metrics"
)

// Registry owns doctors' recurring weekly schedules and their absences.
type Registry struct {
	store   Store
	dir     Directory
	log     *zap.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

func NewRegistry(store Store, dir Directory, log *zap.Logger, m *metrics.Collector) *Registry {
	return &Registry{
		store:   store,
		dir:     dir,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// AddSchedule stores a new weekly window after checking that the doctor
// holds the specialty and that no other window of the same doctor on the same
// weekday overlaps it.
func (r *Registry) AddSchedule(ctx context.Context, in ScheduleInput) (*DoctorSchedule, error) {
	if err := validateScheduleInput(in); err != nil {
		return nil, err
	}
	if err := r.checkReferences(ctx, in); err != nil {
		return nil, err
	}

	sched := &DoctorSchedule{
		DoctorID:        in.DoctorID,
		SpecialtyID:     in.SpecialtyID,
		RoomID:          in.RoomID,
		DayOfWeek:       in.DayOfWeek,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		DurationMinutes: in.DurationMinutes,
	}
	sched.stamp(r.now())

	err := r.store.InTx(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.LockKeys(ctx, scheduleKey(in.DoctorID, in.DayOfWeek)); err != nil {
			return err
		}
		if err := r.ensureNoOverlap(ctx, tx, sched, uuid.Nil); err != nil {
			return err
		}
		return tx.CreateSchedule(ctx, sched)
	})
	if err != nil {
		return nil, r.scheduleWriteErr("add schedule", sched, err)
	}

	r.log.Info("schedule added",
		zap.Stringer("schedule_id", sched.ID),
		zap.Stringer("doctor_id", sched.DoctorID),
		zap.Stringer("day", sched.DayOfWeek),
		zap.Stringer("window", sched.Window()),
	)
	return sched, nil
}

// UpdateSchedule replaces every field of schedule id. The overlap check
// ignores the record being replaced. An unknown id is reported before any
// problem with the input.
func (r *Registry) UpdateSchedule(ctx context.Context, id uuid.UUID, in ScheduleInput) (*DoctorSchedule, error) {
	if _, err := r.store.GetSchedule(ctx, id); err != nil {
		return nil, storageErr("load schedule", err)
	}
	if err := validateScheduleInput(in); err != nil {
		return nil, err
	}
	if err := r.checkReferences(ctx, in); err != nil {
		return nil, err
	}

	var updated *DoctorSchedule
	err := r.store.InTx(ctx, func(ctx context.Context, tx Store) error {
		current, err := tx.GetSchedule(ctx, id)
		if err != nil {
			return err
		}

		keys := []string{scheduleKey(current.DoctorID, current.DayOfWeek), scheduleKey(in.DoctorID, in.DayOfWeek)}
		if err := tx.LockKeys(ctx, keys...); err != nil {
			return err
		}

		next := *current
		next.DoctorID = in.DoctorID
		next.SpecialtyID = in.SpecialtyID
		next.RoomID = in.RoomID
		next.DayOfWeek = in.DayOfWeek
		next.StartTime = in.StartTime
		next.EndTime = in.EndTime
		next.DurationMinutes = in.DurationMinutes
		next.stamp(r.now())

		if err := r.ensureNoOverlap(ctx, tx, &next, id); err != nil {
			return err
		}
		if err := tx.UpdateSchedule(ctx, &next); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, r.scheduleWriteErr("update schedule", &DoctorSchedule{ID: id, DoctorID: in.DoctorID, DayOfWeek: in.DayOfWeek}, err)
	}

	r.log.Info("schedule updated",
		zap.Stringer("schedule_id", updated.ID),
		zap.Stringer("window", updated.Window()),
	)
	return updated, nil
}

func (r *Registry) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	if err := r.store.DeleteSchedule(ctx, id); err != nil {
		return storageErr("delete schedule", err)
	}
	r.log.Info("schedule deleted", zap.Stringer("schedule_id", id))
	return nil
}

func (r *Registry) GetSchedule(ctx context.Context, id uuid.UUID) (*DoctorSchedule, error) {
	s, err := r.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, storageErr("get schedule", err)
	}
	return s, nil
}

func (r *Registry) ListSchedules(ctx context.Context, doctorID uuid.UUID) ([]DoctorSchedule, error) {
	list, err := r.store.ListSchedulesByDoctor(ctx, doctorID)
	if err != nil {
		return nil, storageErr("list schedules", err)
	}
	return list, nil
}

// AddAbsence blocks part of a day for a doctor. Slots that already exist are
// left alone; only later generation runs avoid the window.
func (r *Registry) AddAbsence(ctx context.Context, in AbsenceInput) (*DoctorAbsence, error) {
	if _, err := interval.New(in.StartTime, in.EndTime); err != nil {
		return nil, invalidf("absence: %v", err)
	}
	if in.Date.IsZero() {
		return nil, invalidf("absence: date is required")
	}

	ok, err := r.dir.DoctorExists(ctx, in.DoctorID)
	if err != nil {
		return nil, storageErr("lookup doctor", err)
	}
	if !ok {
		return nil, ErrDoctorNotFound
	}

	a := &DoctorAbsence{
		DoctorID:  in.DoctorID,
		Date:      interval.DateOf(in.Date),
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Reason:    in.Reason,
	}
	a.stamp(r.now())

	if err := r.store.CreateAbsence(ctx, a); err != nil {
		return nil, storageErr("add absence", err)
	}
	return a, nil
}

func (r *Registry) ListAbsences(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]DoctorAbsence, error) {
	list, err := r.store.ListAbsences(ctx, doctorID, interval.DateOf(date))
	if err != nil {
		return nil, storageErr("list absences", err)
	}
	return list, nil
}

func (r *Registry) DeleteAbsence(ctx context.Context, id uuid.UUID) error {
	if err := r.store.DeleteAbsence(ctx, id); err != nil {
		return storageErr("delete absence", err)
	}
	return nil
}

func (r *Registry) ensureNoOverlap(ctx context.Context, tx Store, sched *DoctorSchedule, exclude uuid.UUID) error {
	existing, err := tx.ListSchedulesByDoctorDay(ctx, sched.DoctorID, sched.DayOfWeek)
	if err != nil {
		return err
	}

	det := interval.NewDetector[uuid.UUID]()
	for _, other := range existing {
		if other.ID == exclude {
			continue
		}
		det.Add(other.DoctorID, other.Window())
	}

	if det.Collides(sched.DoctorID, sched.Window()) {
		return ErrScheduleConflict
	}
	return nil
}

func (r *Registry) checkReferences(ctx context.Context, in ScheduleInput) error {
	ok, err := r.dir.DoctorExists(ctx, in.DoctorID)
	if err != nil {
		return storageErr("lookup doctor", err)
	}
	if !ok {
		return ErrDoctorNotFound
	}

	ok, err = r.dir.DoctorHasSpecialty(ctx, in.DoctorID, in.SpecialtyID)
	if err != nil {
		return storageErr("lookup specialty", err)
	}
	if !ok {
		return ErrSpecialtyMismatch
	}

	ok, err = r.dir.RoomExists(ctx, in.RoomID)
	if err != nil {
		return storageErr("lookup room", err)
	}
	if !ok {
		return ErrRoomNotFound
	}
	return nil
}

func (r *Registry) scheduleWriteErr(op string, sched *DoctorSchedule, err error) error {
	if errors.Is(err, ErrScheduleConflict) {
		r.metrics.ScheduleConflict()
		r.log.Info("schedule rejected: overlap",
			zap.Stringer("doctor_id", sched.DoctorID),
			zap.Stringer("day", sched.DayOfWeek),
		)
		return err
	}
	if KindOf(err) == KindUnknown {
		r.log.Error(op+" failed", zap.Stringer("schedule_id", sched.ID), zap.Error(err))
	}
	return storageErr(op, err)
}

func validateScheduleInput(in ScheduleInput) error {
	if in.DayOfWeek < time.Sunday || in.DayOfWeek > time.Saturday {
		return invalidf("day of week %d out of range", in.DayOfWeek)
	}
	window, err := interval.New(in.StartTime, in.EndTime)
	if err != nil {
		return invalidf("schedule window: %v", err)
	}
	if in.DurationMinutes <= 0 {
		return invalidf("slot duration must be positive, got %d", in.DurationMinutes)
	}
	if d := time.Duration(in.DurationMinutes) * time.Minute; d > window.Duration() {
		return invalidf("slot duration %s is longer than the window %s", d, window)
	}
	if in.DoctorID == uuid.Nil || in.SpecialtyID == uuid.Nil || in.RoomID == uuid.Nil {
		return invalidf("doctor, specialty and room are required")
	}
	return nil
}
