package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/interval"
	"github.com/hackgods/clinic-slot-booking/internal/metrics"
	redisclient "github.com/hackgods/clinic-slot-booking/internal/redis"
)

// MaxGenerationDays caps a single range request.
const MaxGenerationDays = 366

// Generator materializes schedules into dated slots and owns slot removal.
type Generator struct {
	store   Store
	locker  redisclient.Locker
	log     *zap.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

func NewGenerator(store Store, locker redisclient.Locker, log *zap.Logger, m *metrics.Collector) *Generator {
	return &Generator{
		store:   store,
		locker:  locker,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// GenerateForDate expands schedule scheduleID on date into fixed-length
// slots. Candidates that overlap an existing slot in the same room or for the
// same doctor, or a doctor absence, are skipped, so running it again for the
// same schedule and date adds nothing. An empty result is not an error.
func (g *Generator) GenerateForDate(ctx context.Context, scheduleID uuid.UUID, date time.Time) ([]AppointmentSlot, error) {
	sched, err := g.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, storageErr("load schedule", err)
	}

	date = interval.DateOf(date)
	if date.Weekday() != sched.DayOfWeek {
		return nil, ErrWeekdayMismatch
	}

	return g.generate(ctx, sched, date)
}

// GenerateForDateRange runs GenerateForDate for every day in [from, to] that
// falls on the schedule's weekday.
func (g *Generator) GenerateForDateRange(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) ([]AppointmentSlot, error) {
	from, to = interval.DateOf(from), interval.DateOf(to)
	if to.Before(from) {
		return nil, invalidf("end date %s is before start date %s", interval.FormatDate(to), interval.FormatDate(from))
	}
	if days := int(to.Sub(from).Hours()/24) + 1; days > MaxGenerationDays {
		return nil, invalidf("range of %d days exceeds the limit of %d", days, MaxGenerationDays)
	}

	sched, err := g.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, storageErr("load schedule", err)
	}

	return g.generateRange(ctx, sched, from, to)
}

// GenerateHorizon materializes every stored schedule for the days starting at
// from. A failing schedule is logged and does not stop the others; the
// returned error joins all failures.
func (g *Generator) GenerateHorizon(ctx context.Context, from time.Time, days int) (int, error) {
	if days <= 0 || days > MaxGenerationDays {
		return 0, invalidf("horizon must be between 1 and %d days", MaxGenerationDays)
	}

	schedules, err := g.store.ListAllSchedules(ctx)
	if err != nil {
		return 0, storageErr("list schedules", err)
	}

	from = interval.DateOf(from)
	to := from.AddDate(0, 0, days-1)

	var (
		total int
		errs  []error
	)
	for i := range schedules {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		created, err := g.generateRange(ctx, &schedules[i], from, to)
		total += len(created)
		if err != nil {
			g.log.Error("horizon generation failed",
				zap.Stringer("schedule_id", schedules[i].ID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}

	return total, errors.Join(errs...)
}

func (g *Generator) generateRange(ctx context.Context, sched *DoctorSchedule, from, to time.Time) ([]AppointmentSlot, error) {
	var all []AppointmentSlot
	for _, day := range interval.Dates(from, to) {
		if day.Weekday() != sched.DayOfWeek {
			continue
		}
		created, err := g.generate(ctx, sched, day)
		if err != nil {
			return all, err
		}
		all = append(all, created...)
	}
	return all, nil
}

func (g *Generator) generate(ctx context.Context, sched *DoctorSchedule, date time.Time) ([]AppointmentSlot, error) {
	candidates, err := sched.Window().Split(sched.SlotDuration())
	if err != nil {
		return nil, invalidf("schedule %s: %v", sched.ID, err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	roomKey := roomDayKey(sched.RoomID, date)
	doctorKey := doctorDayKey(sched.DoctorID, date)
	keys := []string{roomKey, doctorKey}

	var (
		created []*AppointmentSlot
		skipped int
	)

	run := func(ctx context.Context) error {
		return g.store.InTx(ctx, func(ctx context.Context, tx Store) error {
			created, skipped = nil, 0

			if err := tx.LockKeys(ctx, keys...); err != nil {
				return err
			}

			det, err := g.occupied(ctx, tx, sched, date, roomKey, doctorKey)
			if err != nil {
				return err
			}

			now := g.now()
			for _, c := range candidates {
				if det.Collides(roomKey, c) || det.Collides(doctorKey, c) {
					skipped++
					continue
				}
				det.Add(roomKey, c)
				det.Add(doctorKey, c)

				slot := &AppointmentSlot{
					DoctorID:    sched.DoctorID,
					SpecialtyID: sched.SpecialtyID,
					RoomID:      sched.RoomID,
					Date:        date,
					StartTime:   c.Start,
					EndTime:     c.End,
				}
				slot.stamp(now)
				created = append(created, slot)
			}

			if len(created) == 0 {
				return nil
			}
			return tx.CreateSlots(ctx, created)
		})
	}

	err = g.locker.WithKeysLock(ctx, keys, run)
	if errors.Is(err, redisclient.ErrLockUnavailable) {
		// advisory locks taken inside the transaction still serialize generation
		g.log.Warn("generation lock unavailable, relying on database locking",
			zap.Stringer("schedule_id", sched.ID),
			zap.String("date", interval.FormatDate(date)),
			zap.Error(err),
		)
		err = run(ctx)
	}
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, newError(KindConflict, "slot generation already running for this room or doctor")
		}
		if KindOf(err) == KindUnknown {
			g.log.Error("slot generation failed",
				zap.Stringer("schedule_id", sched.ID),
				zap.String("date", interval.FormatDate(date)),
				zap.Error(err),
			)
		}
		return nil, storageErr("generate slots", err)
	}

	g.metrics.SlotsGenerated(len(created), skipped)
	g.log.Debug("slots generated",
		zap.Stringer("schedule_id", sched.ID),
		zap.String("date", interval.FormatDate(date)),
		zap.Int("created", len(created)),
		zap.Int("skipped", skipped),
	)

	out := make([]AppointmentSlot, len(created))
	for i, s := range created {
		out[i] = *s
	}
	return out, nil
}

// occupied loads everything a new slot on date could collide with. Absences
// are recorded under the doctor key.
func (g *Generator) occupied(ctx context.Context, tx Store, sched *DoctorSchedule, date time.Time, roomKey, doctorKey string) (*interval.Detector[string], error) {
	det := interval.NewDetector[string]()

	roomSlots, err := tx.ListSlotsByRoomDate(ctx, sched.RoomID, date)
	if err != nil {
		return nil, err
	}
	for _, s := range roomSlots {
		det.Add(roomKey, s.Window())
	}

	doctorSlots, err := tx.ListSlotsByDoctorDate(ctx, sched.DoctorID, date)
	if err != nil {
		return nil, err
	}
	for _, s := range doctorSlots {
		det.Add(doctorKey, s.Window())
	}

	absences, err := tx.ListAbsences(ctx, sched.DoctorID, date)
	if err != nil {
		return nil, err
	}
	for _, a := range absences {
		det.Add(doctorKey, a.Window())
	}

	return det, nil
}

func (g *Generator) GetSlot(ctx context.Context, id uuid.UUID) (*AppointmentSlot, error) {
	s, err := g.store.GetSlot(ctx, id)
	if err != nil {
		return nil, storageErr("get slot", err)
	}
	return s, nil
}

func (g *Generator) ListSlotsByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]AppointmentSlot, error) {
	slots, err := g.store.ListSlotsByDoctorDate(ctx, doctorID, interval.DateOf(date))
	if err != nil {
		return nil, storageErr("list slots", err)
	}
	return slots, nil
}

func (g *Generator) ListSlotsByDoctorRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]AppointmentSlot, error) {
	from, to = interval.DateOf(from), interval.DateOf(to)
	if to.Before(from) {
		return nil, invalidf("end date %s is before start date %s", interval.FormatDate(to), interval.FormatDate(from))
	}
	slots, err := g.store.ListSlotsByDoctorRange(ctx, doctorID, from, to)
	if err != nil {
		return nil, storageErr("list slots", err)
	}
	return slots, nil
}

// DeleteSlot removes an unbooked slot. A booked slot must have its
// appointment cancelled first.
func (g *Generator) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	err := g.store.InTx(ctx, func(ctx context.Context, tx Store) error {
		slot, err := tx.LockSlot(ctx, id)
		if err != nil {
			return err
		}
		if slot.Booked() {
			return ErrSlotBooked
		}
		return tx.DeleteSlot(ctx, id)
	})
	if err != nil {
		return storageErr("delete slot", err)
	}

	g.log.Info("slot deleted", zap.Stringer("slot_id", id))
	return nil
}
