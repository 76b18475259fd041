package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/config"
	"github.com/hackgods/clinic-slot-booking/internal/db"
	"github.com/hackgods/clinic-slot-booking/internal/interval"
	"github.com/hackgods/clinic-slot-booking/internal/logger"
	"github.com/hackgods/clinic-slot-booking/internal/scheduling"
)

const (
	doctorCount  = 40
	roomCount    = 15
	patientCount = 9000
)

var specialtyNames = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

// weekly blocks a seeded schedule can use
var blocks = []struct {
	start, end interval.TimeOfDay
}{
	{interval.Clock(8, 0), interval.Clock(12, 0)},
	{interval.Clock(13, 0), interval.Clock(17, 0)},
	{interval.Clock(9, 0), interval.Clock(11, 30)},
	{interval.Clock(14, 0), interval.Clock(18, 0)},
}

var durations = []int{15, 20, 30, 45}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logr, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logr.Sync() }()

	logr.Info("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logr.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logr.Fatal("migrate", zap.Error(err))
	}

	gofakeit.Seed(time.Now().UnixNano())

	specialties, err := seedSpecialties(ctx, pool)
	if err != nil {
		logr.Fatal("seed specialties", zap.Error(err))
	}
	doctors, err := seedDoctors(ctx, pool, specialties, doctorCount)
	if err != nil {
		logr.Fatal("seed doctors", zap.Error(err))
	}
	rooms, err := seedRooms(ctx, pool, roomCount)
	if err != nil {
		logr.Fatal("seed rooms", zap.Error(err))
	}
	if err := seedPatients(ctx, pool, patientCount, logr); err != nil {
		logr.Fatal("seed patients", zap.Error(err))
	}

	registry := scheduling.NewRegistry(
		scheduling.NewPgStore(pool),
		scheduling.NewPgDirectory(pool),
		logr.Named("registry"),
		nil,
	)
	created, rejected := seedSchedules(ctx, registry, doctors, rooms, logr)

	logr.Info("seed complete",
		zap.Int("specialties", len(specialties)),
		zap.Int("doctors", len(doctors)),
		zap.Int("rooms", len(rooms)),
		zap.Int("patients", patientCount),
		zap.Int("schedules", created),
		zap.Int("schedules_rejected", rejected),
	)
}

func seedSpecialties(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(specialtyNames))
	for _, name := range specialtyNames {
		var id uuid.UUID
		err := pool.QueryRow(ctx, `
			INSERT INTO specialties (id, name)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET updated_at = now()
			RETURNING id
		`, uuid.New(), name).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

type seededDoctor struct {
	id          uuid.UUID
	specialties []uuid.UUID
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, specialties []uuid.UUID, count int) ([]seededDoctor, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	doctors := make([]seededDoctor, 0, count)
	for i := 0; i < count; i++ {
		d := seededDoctor{id: uuid.New()}

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, email)
			VALUES ($1, $2, $3)
		`, d.id, "Dr. "+gofakeit.Name(), gofakeit.Email())
		if err != nil {
			return nil, err
		}

		// one or two distinct specialties each
		first := gofakeit.Number(0, len(specialties)-1)
		picked := []int{first}
		if gofakeit.Bool() {
			picked = append(picked, (first+gofakeit.Number(1, len(specialties)-1))%len(specialties))
		}
		for _, idx := range picked {
			if _, err := tx.Exec(ctx, `
				INSERT INTO doctor_specialties (doctor_id, specialty_id)
				VALUES ($1, $2)
			`, d.id, specialties[idx]); err != nil {
				return nil, err
			}
			d.specialties = append(d.specialties, specialties[idx])
		}

		doctors = append(doctors, d)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return doctors, nil
}

func seedRooms(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, count)
	for i := 1; i <= count; i++ {
		id := uuid.New()
		if _, err := pool.Exec(ctx, `
			INSERT INTO rooms (id, name)
			VALUES ($1, $2)
		`, id, fmt.Sprintf("Room %d", i)); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int, logr *zap.Logger) error {
	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email)
				VALUES ($1, $2, $3)
			`, uuid.New(), gofakeit.Name(), gofakeit.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logr.Debug("patients seeded", zap.Int("done", end), zap.Int("total", count))
	}
	return nil
}

// seedSchedules goes through the registry so seeded data obeys the same
// overlap rules as the API. Rejected candidates are counted, not fatal.
func seedSchedules(ctx context.Context, registry *scheduling.Registry, doctors []seededDoctor, rooms []uuid.UUID, logr *zap.Logger) (created, rejected int) {
	for _, d := range doctors {
		room := rooms[gofakeit.Number(0, len(rooms)-1)]

		for _, day := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday} {
			if !gofakeit.Bool() {
				continue
			}
			b := blocks[gofakeit.Number(0, len(blocks)-1)]

			_, err := registry.AddSchedule(ctx, scheduling.ScheduleInput{
				DoctorID:        d.id,
				SpecialtyID:     d.specialties[0],
				RoomID:          room,
				DayOfWeek:       day,
				StartTime:       b.start,
				EndTime:         b.end,
				DurationMinutes: durations[gofakeit.Number(0, len(durations)-1)],
			})
			if err != nil {
				if !errors.Is(err, scheduling.ErrScheduleConflict) {
					logr.Warn("schedule rejected", zap.Stringer("doctor_id", d.id), zap.Error(err))
				}
				rejected++
				continue
			}
			created++
		}
	}
	return created, rejected
}
