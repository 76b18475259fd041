package scheduling

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/interval"
	redisclient "github.com/hackgods/clinic-slot-booking/internal/redis"
)

// -- In-memory store --

// memStore runs transactions one at a time and restores a snapshot when fn
// fails, which is enough to model row locks and rollback.
type memStore struct {
	txMu sync.Mutex

	mu           sync.Mutex
	schedules    map[uuid.UUID]DoctorSchedule
	slots        map[uuid.UUID]AppointmentSlot
	appointments map[uuid.UUID]Appointment
	absences     map[uuid.UUID]DoctorAbsence

	// lockedKeys records every LockKeys call for assertions.
	lockedKeys []string
}

func newMemStore() *memStore {
	return &memStore{
		schedules:    make(map[uuid.UUID]DoctorSchedule),
		slots:        make(map[uuid.UUID]AppointmentSlot),
		appointments: make(map[uuid.UUID]Appointment),
		absences:     make(map[uuid.UUID]DoctorAbsence),
	}
}

type memTx struct {
	*memStore
}

func (t memTx) InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return fn(ctx, t)
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	schedules := maps.Clone(m.schedules)
	slots := maps.Clone(m.slots)
	appointments := maps.Clone(m.appointments)
	absences := maps.Clone(m.absences)
	m.mu.Unlock()

	if err := fn(ctx, memTx{m}); err != nil {
		m.mu.Lock()
		m.schedules, m.slots, m.appointments, m.absences = schedules, slots, appointments, absences
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) LockKeys(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockedKeys = append(m.lockedKeys, keys...)
	return nil
}

func (m *memStore) CreateSchedule(_ context.Context, s *DoctorSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.schedules {
		if other.DoctorID == s.DoctorID && other.DayOfWeek == s.DayOfWeek &&
			other.StartTime == s.StartTime && other.EndTime == s.EndTime {
			return ErrScheduleConflict
		}
	}
	s.ID = uuid.New()
	m.schedules[s.ID] = *s
	return nil
}

func (m *memStore) GetSchedule(_ context.Context, id uuid.UUID) (*DoctorSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	return &s, nil
}

func (m *memStore) UpdateSchedule(_ context.Context, s *DoctorSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[s.ID]; !ok {
		return ErrScheduleNotFound
	}
	m.schedules[s.ID] = *s
	return nil
}

func (m *memStore) DeleteSchedule(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[id]; !ok {
		return ErrScheduleNotFound
	}
	delete(m.schedules, id)
	return nil
}

func (m *memStore) filterSchedules(keep func(DoctorSchedule) bool) []DoctorSchedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DoctorSchedule
	for _, s := range m.schedules {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

func (m *memStore) ListSchedulesByDoctorDay(_ context.Context, doctorID uuid.UUID, day time.Weekday) ([]DoctorSchedule, error) {
	return m.filterSchedules(func(s DoctorSchedule) bool {
		return s.DoctorID == doctorID && s.DayOfWeek == day
	}), nil
}

func (m *memStore) ListSchedulesByDoctor(_ context.Context, doctorID uuid.UUID) ([]DoctorSchedule, error) {
	return m.filterSchedules(func(s DoctorSchedule) bool { return s.DoctorID == doctorID }), nil
}

func (m *memStore) ListAllSchedules(_ context.Context) ([]DoctorSchedule, error) {
	return m.filterSchedules(func(DoctorSchedule) bool { return true }), nil
}

func (m *memStore) CreateSlots(_ context.Context, slots []*AppointmentSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range slots {
		s.ID = uuid.New()
		m.slots[s.ID] = *s
	}
	return nil
}

func (m *memStore) GetSlot(_ context.Context, id uuid.UUID) (*AppointmentSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (m *memStore) LockSlot(ctx context.Context, id uuid.UUID) (*AppointmentSlot, error) {
	return m.GetSlot(ctx, id)
}

func (m *memStore) DeleteSlot(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[id]; !ok {
		return ErrSlotNotFound
	}
	delete(m.slots, id)
	return nil
}

func (m *memStore) filterSlots(keep func(AppointmentSlot) bool) []AppointmentSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AppointmentSlot
	for _, s := range m.slots {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (m *memStore) ListSlotsByRoomDate(_ context.Context, roomID uuid.UUID, date time.Time) ([]AppointmentSlot, error) {
	return m.filterSlots(func(s AppointmentSlot) bool {
		return s.RoomID == roomID && s.Date.Equal(date)
	}), nil
}

func (m *memStore) ListSlotsByDoctorDate(_ context.Context, doctorID uuid.UUID, date time.Time) ([]AppointmentSlot, error) {
	return m.filterSlots(func(s AppointmentSlot) bool {
		return s.DoctorID == doctorID && s.Date.Equal(date)
	}), nil
}

func (m *memStore) ListSlotsByDoctorRange(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]AppointmentSlot, error) {
	return m.filterSlots(func(s AppointmentSlot) bool {
		return s.DoctorID == doctorID && !s.Date.Before(from) && !s.Date.After(to)
	}), nil
}

func (m *memStore) AttachAppointment(_ context.Context, slotID, appointmentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[slotID]
	if !ok {
		return ErrSlotNotFound
	}
	if s.AppointmentID != nil {
		return ErrSlotAlreadyBooked
	}
	s.AppointmentID = &appointmentID
	m.slots[slotID] = s
	return nil
}

func (m *memStore) CreateAppointment(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.appointments {
		if other.SlotID == a.SlotID {
			return ErrSlotAlreadyBooked
		}
	}
	a.ID = uuid.New()
	m.appointments[a.ID] = *a
	return nil
}

func (m *memStore) GetAppointment(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *memStore) appointmentsForSlot(slotID uuid.UUID) []Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appointments {
		if a.SlotID == slotID {
			out = append(out, a)
		}
	}
	return out
}

func (m *memStore) CreateAbsence(_ context.Context, a *DoctorAbsence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	m.absences[a.ID] = *a
	return nil
}

func (m *memStore) DeleteAbsence(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.absences[id]; !ok {
		return ErrAbsenceNotFound
	}
	delete(m.absences, id)
	return nil
}

func (m *memStore) ListAbsences(_ context.Context, doctorID uuid.UUID, date time.Time) ([]DoctorAbsence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DoctorAbsence
	for _, a := range m.absences {
		if a.DoctorID == doctorID && a.Date.Equal(date) {
			out = append(out, a)
		}
	}
	return out, nil
}

// -- Locker --

type fakeLocker struct {
	mu    sync.Mutex
	keys  map[string]*sync.Mutex
	fail  error
	calls int
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{keys: make(map[string]*sync.Mutex)}
}

func (l *fakeLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	return l.WithKeysLock(ctx, []string{"slot:" + slotID.String()}, fn)
}

func (l *fakeLocker) WithKeysLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	l.calls++
	if l.fail != nil {
		err := l.fail
		l.mu.Unlock()
		return err
	}
	sorted := slices.Sorted(slices.Values(keys))
	held := make([]*sync.Mutex, 0, len(sorted))
	for _, k := range sorted {
		if l.keys[k] == nil {
			l.keys[k] = &sync.Mutex{}
		}
		held = append(held, l.keys[k])
	}
	l.mu.Unlock()

	for _, m := range held {
		m.Lock()
		defer m.Unlock()
	}
	return fn(ctx)
}

var _ redisclient.Locker = (*fakeLocker)(nil)

// -- Directory --

type fakeDirectory struct {
	doctors     map[uuid.UUID]bool
	specialties map[[2]uuid.UUID]bool
	rooms       map[uuid.UUID]bool
	patients    map[uuid.UUID]bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		doctors:     make(map[uuid.UUID]bool),
		specialties: make(map[[2]uuid.UUID]bool),
		rooms:       make(map[uuid.UUID]bool),
		patients:    make(map[uuid.UUID]bool),
	}
}

func (d *fakeDirectory) addDoctor(specialties ...uuid.UUID) uuid.UUID {
	id := uuid.New()
	d.doctors[id] = true
	for _, s := range specialties {
		d.specialties[[2]uuid.UUID{id, s}] = true
	}
	return id
}

func (d *fakeDirectory) addRoom() uuid.UUID {
	id := uuid.New()
	d.rooms[id] = true
	return id
}

func (d *fakeDirectory) addPatient() uuid.UUID {
	id := uuid.New()
	d.patients[id] = true
	return id
}

func (d *fakeDirectory) DoctorExists(_ context.Context, id uuid.UUID) (bool, error) {
	return d.doctors[id], nil
}

func (d *fakeDirectory) DoctorHasSpecialty(_ context.Context, doctorID, specialtyID uuid.UUID) (bool, error) {
	return d.specialties[[2]uuid.UUID{doctorID, specialtyID}], nil
}

func (d *fakeDirectory) RoomExists(_ context.Context, id uuid.UUID) (bool, error) {
	return d.rooms[id], nil
}

func (d *fakeDirectory) PatientExists(_ context.Context, id uuid.UUID) (bool, error) {
	return d.patients[id], nil
}

// -- Test environment --

type testEnv struct {
	store     *memStore
	dir       *fakeDirectory
	locker    *fakeLocker
	registry  *Registry
	generator *Generator
	booking   *BookingEngine

	specialty uuid.UUID
	doctor    uuid.UUID
	room      uuid.UUID
}

func newTestEnv() *testEnv {
	store := newMemStore()
	dir := newFakeDirectory()
	locker := newFakeLocker()
	log := zap.NewNop()

	specialty := uuid.New()
	return &testEnv{
		store:     store,
		dir:       dir,
		locker:    locker,
		registry:  NewRegistry(store, dir, log, nil),
		generator: NewGenerator(store, locker, log, nil),
		booking:   NewBookingEngine(store, dir, locker, log, nil),
		specialty: specialty,
		doctor:    dir.addDoctor(specialty),
		room:      dir.addRoom(),
	}
}

// monday is 2025-03-03.
var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func hm(s string) interval.TimeOfDay {
	t, err := interval.ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (e *testEnv) input(day time.Weekday, start, end string, minutes int) ScheduleInput {
	return ScheduleInput{
		DoctorID:        e.doctor,
		SpecialtyID:     e.specialty,
		RoomID:          e.room,
		DayOfWeek:       day,
		StartTime:       hm(start),
		EndTime:         hm(end),
		DurationMinutes: minutes,
	}
}
