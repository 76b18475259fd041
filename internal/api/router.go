package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/metrics"
	"github.com/hackgods/clinic-slot-booking/internal/scheduling"
)

// ScheduleService is implemented by *scheduling.Registry.
type ScheduleService interface {
	AddSchedule(ctx context.Context, in scheduling.ScheduleInput) (*scheduling.DoctorSchedule, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, in scheduling.ScheduleInput) (*scheduling.DoctorSchedule, error)
	DeleteSchedule(ctx context.Context, id uuid.UUID) error
	GetSchedule(ctx context.Context, id uuid.UUID) (*scheduling.DoctorSchedule, error)
	ListSchedules(ctx context.Context, doctorID uuid.UUID) ([]scheduling.DoctorSchedule, error)
	AddAbsence(ctx context.Context, in scheduling.AbsenceInput) (*scheduling.DoctorAbsence, error)
	ListAbsences(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]scheduling.DoctorAbsence, error)
	DeleteAbsence(ctx context.Context, id uuid.UUID) error
}

// SlotService is implemented by *scheduling.Generator.
type SlotService interface {
	GenerateForDate(ctx context.Context, scheduleID uuid.UUID, date time.Time) ([]scheduling.AppointmentSlot, error)
	GenerateForDateRange(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) ([]scheduling.AppointmentSlot, error)
	GetSlot(ctx context.Context, id uuid.UUID) (*scheduling.AppointmentSlot, error)
	ListSlotsByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]scheduling.AppointmentSlot, error)
	ListSlotsByDoctorRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]scheduling.AppointmentSlot, error)
	DeleteSlot(ctx context.Context, id uuid.UUID) error
}

// BookingService is implemented by *scheduling.BookingEngine.
type BookingService interface {
	BookSlot(ctx context.Context, req scheduling.BookingRequest) (*scheduling.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
}

type RouterConfig struct {
	Schedules ScheduleService
	Slots     SlotService
	Booking   BookingService
	Health    *HealthHandler
	Metrics   *metrics.Collector
	Logger    *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(RecoverMiddleware(log))
	r.Use(LoggingMiddleware(log, cfg.Metrics))

	// Health endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	r.Route("/schedules", func(r chi.Router) {
		r.Post("/", createScheduleHandler(cfg.Schedules, log))
		r.Get("/", listSchedulesHandler(cfg.Schedules, log))
		r.Get("/{id}", getScheduleHandler(cfg.Schedules, log))
		r.Put("/{id}", updateScheduleHandler(cfg.Schedules, log))
		r.Delete("/{id}", deleteScheduleHandler(cfg.Schedules, log))
		r.Post("/{id}/generate", generateSlotsHandler(cfg.Slots, log))
	})

	r.Route("/doctors/{id}", func(r chi.Router) {
		r.Get("/slots", listDoctorSlotsHandler(cfg.Slots, log))
		r.Post("/absences", createAbsenceHandler(cfg.Schedules, log))
		r.Get("/absences", listAbsencesHandler(cfg.Schedules, log))
	})

	r.Route("/slots/{id}", func(r chi.Router) {
		r.Get("/", getSlotHandler(cfg.Slots, log))
		r.Delete("/", deleteSlotHandler(cfg.Slots, log))
		r.Post("/book", bookSlotHandler(cfg.Booking, log))
	})

	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Booking, log))
	r.Delete("/absences/{id}", deleteAbsenceHandler(cfg.Schedules, log))

	return r
}
