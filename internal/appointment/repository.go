package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrNoAvailableProvider     = errors.New("no available nurses at this time")
	ErrSlotConflict            = errors.New("selected nurse is not available at this time")
	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrStaleAppointment        = errors.New("appointment was modified concurrently")
	ErrStoreUnavailable        = errors.New("appointment store unavailable")
)

// ValidationError reports a request field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// Conflict checks. Cancelled appointments never occupy a slot.
	FindBookedNurses(ctx context.Context, slot Slot) ([]uuid.UUID, error)
	// FindAppointment returns the live appointment of nurseID at slot, ignoring excludeID.
	FindAppointment(ctx context.Context, nurseID uuid.UUID, slot Slot, excludeID uuid.UUID) (*Appointment, error)
	CountBookingsByNurse(ctx context.Context, date string) (map[uuid.UUID]int, error)

	// InsertAppointment returns ErrSlotConflict when the nurse already holds the slot.
	InsertAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	// UpdateAppointment writes a only while the stored status still equals expected.
	UpdateAppointment(ctx context.Context, a *Appointment, expected Status) (*Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error)

	// No-show worker
	FindOverdue(ctx context.Context, cutoff time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
