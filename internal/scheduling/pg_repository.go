package scheduling

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-slot-booking/internal/interval"
)

const (
	uniqueViolation = "23505"

	constraintScheduleWindow  = "doctor_schedule_unique_window"
	constraintAppointmentSlot = "appointment_slot_id_key"
)

// querier is the part of pgxpool.Pool and pgx.Tx the store needs.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type PgStore struct {
	pool *pgxpool.Pool
	db   querier
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool, db: pool}
}

// InTx begins a transaction unless the store is already bound to one, in
// which case fn joins it.
func (r *PgStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &PgStore{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return translateWriteErr(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func (r *PgStore) LockKeys(ctx context.Context, keys ...string) error {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	for _, key := range sorted {
		if _, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return fmt.Errorf("advisory lock %s: %w", key, err)
		}
	}
	return nil
}

// Helpers

func toPgTime(t interval.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * int64(time.Minute/time.Microsecond), Valid: true}
}

func fromPgTime(t pgtype.Time) interval.TimeOfDay {
	return interval.TimeOfDay(t.Microseconds / int64(time.Minute/time.Microsecond))
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

func translateWriteErr(err error) error {
	switch {
	case isUniqueViolation(err, constraintScheduleWindow):
		return ErrScheduleConflict
	case isUniqueViolation(err, constraintAppointmentSlot):
		return ErrSlotAlreadyBooked
	}
	return err
}

func scanSchedule(row pgx.Row) (*DoctorSchedule, error) {
	var (
		s          DoctorSchedule
		day        int16
		start, end pgtype.Time
	)

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.SpecialtyID,
		&s.RoomID,
		&day,
		&start,
		&end,
		&s.DurationMinutes,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	s.DayOfWeek = time.Weekday(day)
	s.StartTime = fromPgTime(start)
	s.EndTime = fromPgTime(end)
	return &s, nil
}

func scanSlot(row pgx.Row) (*AppointmentSlot, error) {
	var (
		s          AppointmentSlot
		start, end pgtype.Time
	)

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.SpecialtyID,
		&s.RoomID,
		&s.Date,
		&start,
		&end,
		&s.AppointmentID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.StartTime = fromPgTime(start)
	s.EndTime = fromPgTime(end)
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.SlotID,
		&a.PatientID,
		&a.VisitType,
		&a.Reason,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanAbsence(row pgx.Row) (*DoctorAbsence, error) {
	var (
		a          DoctorAbsence
		start, end pgtype.Time
	)

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.Date,
		&start,
		&end,
		&a.Reason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAbsenceNotFound
		}
		return nil, err
	}

	a.StartTime = fromPgTime(start)
	a.EndTime = fromPgTime(end)
	return &a, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Schedules

const scheduleColumns = `id, doctor_id, specialty_id, room_id, day_of_week, start_time, end_time, duration_minutes, created_at, updated_at`

func (r *PgStore) CreateSchedule(ctx context.Context, s *DoctorSchedule) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO doctor_schedule (`+scheduleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, s.ID, s.DoctorID, s.SpecialtyID, s.RoomID, int16(s.DayOfWeek),
		toPgTime(s.StartTime), toPgTime(s.EndTime), s.DurationMinutes, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return translateWriteErr(fmt.Errorf("insert schedule: %w", err))
	}
	return nil
}

func (r *PgStore) GetSchedule(ctx context.Context, id uuid.UUID) (*DoctorSchedule, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+scheduleColumns+`
		FROM doctor_schedule
		WHERE id = $1
	`, id)
	return scanSchedule(row)
}

func (r *PgStore) UpdateSchedule(ctx context.Context, s *DoctorSchedule) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE doctor_schedule
		SET doctor_id = $2,
		    specialty_id = $3,
		    room_id = $4,
		    day_of_week = $5,
		    start_time = $6,
		    end_time = $7,
		    duration_minutes = $8,
		    updated_at = $9
		WHERE id = $1
	`, s.ID, s.DoctorID, s.SpecialtyID, s.RoomID, int16(s.DayOfWeek),
		toPgTime(s.StartTime), toPgTime(s.EndTime), s.DurationMinutes, s.UpdatedAt)
	if err != nil {
		return translateWriteErr(fmt.Errorf("update schedule: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (r *PgStore) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM doctor_schedule WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (r *PgStore) ListSchedulesByDoctorDay(ctx context.Context, doctorID uuid.UUID, day time.Weekday) ([]DoctorSchedule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM doctor_schedule
		WHERE doctor_id = $1 AND day_of_week = $2
		ORDER BY start_time
	`, doctorID, int16(day))
	if err != nil {
		return nil, fmt.Errorf("list schedules by doctor day: %w", err)
	}
	return collect(rows, scanSchedule)
}

func (r *PgStore) ListSchedulesByDoctor(ctx context.Context, doctorID uuid.UUID) ([]DoctorSchedule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM doctor_schedule
		WHERE doctor_id = $1
		ORDER BY day_of_week, start_time
	`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list schedules by doctor: %w", err)
	}
	return collect(rows, scanSchedule)
}

func (r *PgStore) ListAllSchedules(ctx context.Context) ([]DoctorSchedule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM doctor_schedule
		ORDER BY doctor_id, day_of_week, start_time
	`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return collect(rows, scanSchedule)
}

// Slots

const slotColumns = `id, doctor_id, specialty_id, room_id, date, start_time, end_time, appointment_id, created_at, updated_at`

func (r *PgStore) CreateSlots(ctx context.Context, slots []*AppointmentSlot) error {
	batch := &pgx.Batch{}
	for _, s := range slots {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		batch.Queue(`
			INSERT INTO appointment_slot (`+slotColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8, $9)
		`, s.ID, s.DoctorID, s.SpecialtyID, s.RoomID, s.Date,
			toPgTime(s.StartTime), toPgTime(s.EndTime), s.CreatedAt, s.UpdatedAt)
	}

	br := r.db.SendBatch(ctx, batch)
	for range slots {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert slot: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("insert slots: %w", err)
	}
	return nil
}

func (r *PgStore) GetSlot(ctx context.Context, id uuid.UUID) (*AppointmentSlot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM appointment_slot
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgStore) LockSlot(ctx context.Context, id uuid.UUID) (*AppointmentSlot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM appointment_slot
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanSlot(row)
}

func (r *PgStore) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM appointment_slot WHERE id = $1 AND appointment_id IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetSlot(ctx, id); err != nil {
			return err
		}
		return ErrSlotBooked
	}
	return nil
}

func (r *PgStore) ListSlotsByRoomDate(ctx context.Context, roomID uuid.UUID, date time.Time) ([]AppointmentSlot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+slotColumns+`
		FROM appointment_slot
		WHERE room_id = $1 AND date = $2
		ORDER BY start_time
	`, roomID, date)
	if err != nil {
		return nil, fmt.Errorf("list slots by room: %w", err)
	}
	return collect(rows, scanSlot)
}

func (r *PgStore) ListSlotsByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]AppointmentSlot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+slotColumns+`
		FROM appointment_slot
		WHERE doctor_id = $1 AND date = $2
		ORDER BY start_time
	`, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list slots by doctor: %w", err)
	}
	return collect(rows, scanSlot)
}

func (r *PgStore) ListSlotsByDoctorRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]AppointmentSlot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+slotColumns+`
		FROM appointment_slot
		WHERE doctor_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, start_time
	`, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list slots by doctor range: %w", err)
	}
	return collect(rows, scanSlot)
}

func (r *PgStore) AttachAppointment(ctx context.Context, slotID, appointmentID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointment_slot
		SET appointment_id = $2,
		    updated_at = now()
		WHERE id = $1
		  AND appointment_id IS NULL
	`, slotID, appointmentID)
	if err != nil {
		return fmt.Errorf("attach appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotAlreadyBooked
	}
	return nil
}

// Appointments

func (r *PgStore) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO appointment (id, slot_id, patient_id, visit_type, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.SlotID, a.PatientID, a.VisitType, a.Reason, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return translateWriteErr(fmt.Errorf("insert appointment: %w", err))
	}
	return nil
}

func (r *PgStore) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, slot_id, patient_id, visit_type, reason, status, created_at, updated_at
		FROM appointment
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

// Absences

func (r *PgStore) CreateAbsence(ctx context.Context, a *DoctorAbsence) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO doctor_absence (id, doctor_id, date, start_time, end_time, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.DoctorID, a.Date, toPgTime(a.StartTime), toPgTime(a.EndTime), a.Reason, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert absence: %w", err)
	}
	return nil
}

func (r *PgStore) DeleteAbsence(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM doctor_absence WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete absence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAbsenceNotFound
	}
	return nil
}

func (r *PgStore) ListAbsences(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]DoctorAbsence, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, doctor_id, date, start_time, end_time, reason, created_at, updated_at
		FROM doctor_absence
		WHERE doctor_id = $1 AND date = $2
		ORDER BY start_time
	`, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list absences: %w", err)
	}
	return collect(rows, scanAbsence)
}
