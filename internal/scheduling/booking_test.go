package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/hackgods/clinic-slot-booking/internal/redis"
)

func generatedSlot(t *testing.T, env *testEnv) AppointmentSlot {
	t.Helper()
	sched := mustSchedule(t, env, env.input(time.Monday, "09:00", "09:30", 30))
	slots, err := env.generator.GenerateForDate(context.Background(), sched.ID, monday)
	if err != nil || len(slots) != 1 {
		t.Fatalf("generate: %v (%d slots)", err, len(slots))
	}
	return slots[0]
}

func TestBookSlot(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	slot := generatedSlot(t, env)
	patient := env.dir.addPatient()

	appt, err := env.booking.BookSlot(ctx, BookingRequest{
		SlotID:    slot.ID,
		PatientID: patient,
		VisitType: VisitRemote,
		Reason:    "follow-up",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.PatientID != patient || appt.SlotID != slot.ID {
		t.Error("appointment must reference the requested patient and slot")
	}
	if appt.Status != StatusPending {
		t.Errorf("status = %s, want %s", appt.Status, StatusPending)
	}
	if appt.VisitType != VisitRemote || appt.Reason != "follow-up" {
		t.Error("visit type and reason must be kept")
	}

	stored, err := env.generator.GetSlot(ctx, slot.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.AppointmentID == nil || *stored.AppointmentID != appt.ID {
		t.Error("slot must point at the new appointment")
	}

	got, err := env.booking.GetAppointment(ctx, appt.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != appt.ID {
		t.Error("stored appointment mismatch")
	}
}

func TestBookSlot_DefaultVisitType(t *testing.T) {
	env := newTestEnv()
	slot := generatedSlot(t, env)

	appt, err := env.booking.BookSlot(context.Background(), BookingRequest{
		SlotID:    slot.ID,
		PatientID: env.dir.addPatient(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.VisitType != VisitInPerson {
		t.Errorf("visit type = %s, want %s", appt.VisitType, VisitInPerson)
	}
}

func TestBookSlot_AlreadyBooked(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	slot := generatedSlot(t, env)

	first, err := env.booking.BookSlot(ctx, BookingRequest{SlotID: slot.ID, PatientID: env.dir.addPatient()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = env.booking.BookSlot(ctx, BookingRequest{SlotID: slot.ID, PatientID: env.dir.addPatient()})
	if !errors.Is(err, ErrSlotAlreadyBooked) {
		t.Fatalf("expected ErrSlotAlreadyBooked, got %v", err)
	}

	stored, _ := env.generator.GetSlot(ctx, slot.ID)
	if *stored.AppointmentID != first.ID {
		t.Error("losing booking must not replace the first appointment")
	}
	if n := len(env.store.appointmentsForSlot(slot.ID)); n != 1 {
		t.Errorf("expected 1 appointment for slot, got %d", n)
	}
}

func TestBookSlot_Concurrent(t *testing.T) {
	for _, lockErr := range []error{nil, redisclient.ErrLockUnavailable} {
		name := "redis lock"
		if lockErr != nil {
			name = "database only"
		}

		t.Run(name, func(t *testing.T) {
			env := newTestEnv()
			env.locker.fail = lockErr
			slot := generatedSlot(t, env)

			const callers = 20
			patients := make([]uuid.UUID, callers)
			for i := range patients {
				patients[i] = env.dir.addPatient()
			}

			var wg sync.WaitGroup
			start := make(chan struct{})
			errs := make([]error, callers)
			for i := range callers {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					_, errs[i] = env.booking.BookSlot(context.Background(), BookingRequest{
						SlotID:    slot.ID,
						PatientID: patients[i],
					})
				}(i)
			}
			close(start)
			wg.Wait()

			won := 0
			for _, err := range errs {
				switch {
				case err == nil:
					won++
				case errors.Is(err, ErrSlotAlreadyBooked):
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}
			if won != 1 {
				t.Errorf("expected exactly one successful booking, got %d", won)
			}
			if n := len(env.store.appointmentsForSlot(slot.ID)); n != 1 {
				t.Errorf("expected 1 appointment for slot, got %d", n)
			}
		})
	}
}

func TestBookSlot_Errors(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	slot := generatedSlot(t, env)
	patient := env.dir.addPatient()

	cases := []struct {
		name string
		req  BookingRequest
		want error
	}{
		{"unknown slot", BookingRequest{SlotID: uuid.New(), PatientID: patient}, ErrSlotNotFound},
		{"unknown patient", BookingRequest{SlotID: slot.ID, PatientID: uuid.New()}, ErrPatientNotFound},
		{"unknown slot and patient", BookingRequest{SlotID: uuid.New(), PatientID: uuid.New()}, ErrSlotNotFound},
		{"bad visit type", BookingRequest{SlotID: slot.ID, PatientID: patient, VisitType: "carrier_pigeon"}, ErrInvalidVisitType},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.booking.BookSlot(ctx, tc.req)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if n := len(env.store.appointmentsForSlot(slot.ID)); n != 0 {
		t.Errorf("failed bookings created %d appointments", n)
	}
}

func TestBookSlot_LockContended(t *testing.T) {
	env := newTestEnv()
	slot := generatedSlot(t, env)
	env.locker.fail = redisclient.ErrLockNotAcquired

	_, err := env.booking.BookSlot(context.Background(), BookingRequest{SlotID: slot.ID, PatientID: env.dir.addPatient()})
	if !errors.Is(err, ErrSlotBeingBooked) {
		t.Fatalf("expected ErrSlotBeingBooked, got %v", err)
	}
	if KindOf(err) != KindConflict {
		t.Errorf("kind = %s, want conflict", KindOf(err))
	}
}

func TestBookSlot_LockUnavailable(t *testing.T) {
	env := newTestEnv()
	slot := generatedSlot(t, env)
	env.locker.fail = redisclient.ErrLockUnavailable

	if _, err := env.booking.BookSlot(context.Background(), BookingRequest{SlotID: slot.ID, PatientID: env.dir.addPatient()}); err != nil {
		t.Fatalf("expected database fallback to book, got %v", err)
	}
}

// staleSlotStore reports every slot as free so that only the store's own
// uniqueness check can stop a second booking.
type staleSlotStore struct {
	*memStore
}

func (s staleSlotStore) GetSlot(ctx context.Context, id uuid.UUID) (*AppointmentSlot, error) {
	slot, err := s.memStore.GetSlot(ctx, id)
	if err == nil {
		slot.AppointmentID = nil
	}
	return slot, err
}

func (s staleSlotStore) LockSlot(ctx context.Context, id uuid.UUID) (*AppointmentSlot, error) {
	return s.GetSlot(ctx, id)
}

func (s staleSlotStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.memStore.InTx(ctx, func(ctx context.Context, _ Store) error {
		return fn(ctx, s)
	})
}

func TestBookSlot_StoreUniqueness(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	slot := generatedSlot(t, env)

	if _, err := env.booking.BookSlot(ctx, BookingRequest{SlotID: slot.ID, PatientID: env.dir.addPatient()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stale := NewBookingEngine(staleSlotStore{env.store}, env.dir, env.locker, zap.NewNop(), nil)
	_, err := stale.BookSlot(ctx, BookingRequest{SlotID: slot.ID, PatientID: env.dir.addPatient()})
	if !errors.Is(err, ErrSlotAlreadyBooked) {
		t.Fatalf("expected ErrSlotAlreadyBooked, got %v", err)
	}
	if n := len(env.store.appointmentsForSlot(slot.ID)); n != 1 {
		t.Errorf("expected 1 appointment for slot, got %d", n)
	}
}

func TestGetAppointment_NotFound(t *testing.T) {
	env := newTestEnv()
	if _, err := env.booking.GetAppointment(context.Background(), uuid.New()); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestBookingResult(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "booked"},
		{ErrSlotAlreadyBooked, "already_booked"},
		{ErrSlotBeingBooked, "lock_timeout"},
		{ErrSlotNotFound, "not_found"},
		{ErrInvalidVisitType, "invalid"},
		{storageErr("book slot", errors.New("conn reset")), "storage_unavailable"},
	}
	for _, tc := range cases {
		if got := bookingResult(tc.err); got != tc.want {
			t.Errorf("bookingResult(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
