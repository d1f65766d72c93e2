package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/campus-clinic-scheduling/internal/appointment"
	"github.com/hackgods/campus-clinic-scheduling/internal/catalog"
	"github.com/hackgods/campus-clinic-scheduling/internal/directory"
)

// Scheduler is the subset of appointment.Service the handlers use.
type Scheduler interface {
	BookAppointment(ctx context.Context, req appointment.BookingRequest) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context, f appointment.ListFilter) ([]appointment.Appointment, error)
	UpdateAppointment(ctx context.Context, id uuid.UUID, ch appointment.Changes) (*appointment.Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListNurses(ctx context.Context) ([]directory.Nurse, error)
	AvailableNurses(ctx context.Context, slot appointment.Slot) ([]directory.Nurse, error)
	NurseSchedule(ctx context.Context, nurseID uuid.UUID, date string) (*directory.Nurse, []appointment.Appointment, error)
}

type TypeCatalog interface {
	List(ctx context.Context) ([]catalog.AppointmentType, error)
	Get(ctx context.Context, value string) (*catalog.AppointmentType, error)
	Create(ctx context.Context, t catalog.AppointmentType) (*catalog.AppointmentType, error)
	Update(ctx context.Context, value string, ch catalog.TypeChanges) (*catalog.AppointmentType, error)
	Delete(ctx context.Context, value string) error
}

type RouterConfig struct {
	Scheduler   Scheduler
	Types       TypeCatalog
	PgPool      *pgxpool.Pool
	Redis       *redis.Client // nil when slot locks are in-process
	RateLimiter *RateLimiter  // nil disables booking throttling
	Env         string
	Version     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Appointment endpoints
	r.Route("/appointments", func(r chi.Router) {
		r.With(RateLimitMiddleware(cfg.RateLimiter)).Post("/", createAppointmentHandler(cfg.Scheduler))
		r.Get("/", listAppointmentsHandler(cfg.Scheduler))
		r.Get("/{id}", getAppointmentHandler(cfg.Scheduler))
		r.Patch("/{id}", updateAppointmentHandler(cfg.Scheduler))
		r.Delete("/{id}", deleteAppointmentHandler(cfg.Scheduler))
	})

	// Nurse endpoints
	r.Get("/nurses", listNursesHandler(cfg.Scheduler))
	r.Get("/nurses/available", availableNursesHandler(cfg.Scheduler))
	r.Get("/nurses/{id}/schedule", nurseScheduleHandler(cfg.Scheduler))

	// Appointment type catalog
	if cfg.Types != nil {
		r.Get("/appointment-types", listTypesHandler(cfg.Types))
		r.Post("/appointment-types", createTypeHandler(cfg.Types))
		r.Get("/appointment-types/{value}", getTypeHandler(cfg.Types))
		r.Patch("/appointment-types/{value}", updateTypeHandler(cfg.Types))
		r.Delete("/appointment-types/{value}", deleteTypeHandler(cfg.Types))
	}

	return r
}
