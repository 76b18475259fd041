package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/metrics"
	redisclient "github.com/hackgods/clinic-slot-booking/internal/redis"
)

// BookingEngine moves a slot from available to booked by attaching a new
// appointment to it.
//
// At most one claim per slot succeeds. Three layers enforce that: a Redis
// lock keeps concurrent callers for the same slot out of the critical
// section, the slot row is locked inside the transaction, and the store
// rejects a second appointment for the same slot. Whichever layer stops the
// losing caller, it sees ErrSlotAlreadyBooked.
type BookingEngine struct {
	store   Store
	dir     Directory
	locker  redisclient.Locker
	log     *zap.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

func NewBookingEngine(store Store, dir Directory, locker redisclient.Locker, log *zap.Logger, m *metrics.Collector) *BookingEngine {
	return &BookingEngine{
		store:   store,
		dir:     dir,
		locker:  locker,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// BookSlot claims req.SlotID for req.PatientID. The patient is always taken
// from the request, never from ambient state.
func (b *BookingEngine) BookSlot(ctx context.Context, req BookingRequest) (*Appointment, error) {
	appt, err := b.bookSlot(ctx, req)
	b.metrics.Booking(bookingResult(err))
	return appt, err
}

func (b *BookingEngine) bookSlot(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if req.VisitType == "" {
		req.VisitType = VisitInPerson
	}
	if !req.VisitType.IsValid() {
		return nil, ErrInvalidVisitType
	}

	// pre-check outside the lock
	slot, err := b.store.GetSlot(ctx, req.SlotID)
	if err != nil {
		return nil, storageErr("load slot", err)
	}
	if slot.Booked() {
		return nil, ErrSlotAlreadyBooked
	}

	ok, err := b.dir.PatientExists(ctx, req.PatientID)
	if err != nil {
		return nil, storageErr("lookup patient", err)
	}
	if !ok {
		return nil, ErrPatientNotFound
	}

	var created *Appointment
	claim := func(ctx context.Context) error {
		appt, err := b.claim(ctx, req)
		if err != nil {
			return err
		}
		created = appt
		return nil
	}

	err = b.locker.WithSlotLock(ctx, req.SlotID, claim)
	if errors.Is(err, redisclient.ErrLockUnavailable) {
		// the row lock and unique constraint still hold on their own
		b.log.Warn("slot lock unavailable, relying on database locking",
			zap.Stringer("slot_id", req.SlotID),
			zap.Error(err),
		)
		err = claim(ctx)
	}
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		if KindOf(err) == KindUnknown {
			b.log.Error("booking failed", zap.Stringer("slot_id", req.SlotID), zap.Error(err))
		}
		return nil, storageErr("book slot", err)
	}

	b.log.Info("slot booked",
		zap.Stringer("slot_id", req.SlotID),
		zap.Stringer("appointment_id", created.ID),
		zap.Stringer("patient_id", req.PatientID),
	)
	return created, nil
}

// claim is the check-and-write sequence. It must run inside one transaction
// with the slot row held.
func (b *BookingEngine) claim(ctx context.Context, req BookingRequest) (*Appointment, error) {
	var appt *Appointment

	err := b.store.InTx(ctx, func(ctx context.Context, tx Store) error {
		slot, err := tx.LockSlot(ctx, req.SlotID)
		if err != nil {
			return err
		}
		if slot.Booked() {
			return ErrSlotAlreadyBooked
		}

		a := &Appointment{
			SlotID:    slot.ID,
			PatientID: req.PatientID,
			VisitType: req.VisitType,
			Reason:    req.Reason,
			Status:    StatusPending,
		}
		a.stamp(b.now())

		if err := tx.CreateAppointment(ctx, a); err != nil {
			return err
		}
		if err := tx.AttachAppointment(ctx, slot.ID, a.ID); err != nil {
			return err
		}

		appt = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (b *BookingEngine) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := b.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, storageErr("get appointment", err)
	}
	return a, nil
}

func bookingResult(err error) string {
	switch {
	case err == nil:
		return "booked"
	case errors.Is(err, ErrSlotAlreadyBooked):
		return "already_booked"
	case errors.Is(err, ErrSlotBeingBooked):
		return "lock_timeout"
	}
	return KindOf(err).String()
}
