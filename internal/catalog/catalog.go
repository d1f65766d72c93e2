// Package catalog stores the appointment types patients can book.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrTypeNotFound = errors.New("appointment type not found")
	ErrTypeExists   = errors.New("appointment type already exists")
)

var valuePattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

type AppointmentType struct {
	Value           string
	Label           string
	DurationMinutes int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TypeChanges is a partial update of an appointment type.
type TypeChanges struct {
	Label           *string
	DurationMinutes *int
}

// InvalidTypeError reports a malformed appointment type.
type InvalidTypeError struct {
	Field  string
	Reason string
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validate checks t and trims its text fields.
func Validate(t *AppointmentType) error {
	t.Value = strings.TrimSpace(t.Value)
	t.Label = strings.TrimSpace(t.Label)

	if !valuePattern.MatchString(t.Value) {
		return &InvalidTypeError{Field: "value", Reason: "must be lowercase words joined by hyphens"}
	}
	if t.Label == "" {
		return &InvalidTypeError{Field: "label", Reason: "is required"}
	}
	if t.DurationMinutes <= 0 || t.DurationMinutes > 480 {
		return &InvalidTypeError{Field: "durationMinutes", Reason: "must be between 1 and 480"}
	}
	return nil
}

// Defaults is the catalog the clinic starts with.
func Defaults() []AppointmentType {
	return []AppointmentType{
		{Value: "general-checkup", Label: "General Checkup", DurationMinutes: 30},
		{Value: "illness", Label: "Illness/Symptoms", DurationMinutes: 30},
		{Value: "injury", Label: "Injury", DurationMinutes: 45},
		{Value: "follow-up", Label: "Follow-up", DurationMinutes: 30},
		{Value: "mental-health", Label: "Mental Health", DurationMinutes: 60},
		{Value: "vaccination", Label: "Vaccination", DurationMinutes: 15},
		{Value: "screening", Label: "Health Screening", DurationMinutes: 45},
	}
}

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func scanType(row pgx.Row) (*AppointmentType, error) {
	var t AppointmentType
	err := row.Scan(&t.Value, &t.Label, &t.DurationMinutes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTypeNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *PgStore) List(ctx context.Context) ([]AppointmentType, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT value, label, duration_minutes, created_at, updated_at
		FROM appointment_types
		ORDER BY label
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []AppointmentType
	for rows.Next() {
		t, err := scanType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return types, nil
}

func (s *PgStore) Get(ctx context.Context, value string) (*AppointmentType, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT value, label, duration_minutes, created_at, updated_at
		FROM appointment_types
		WHERE value = $1
	`, value)
	return scanType(row)
}

// HasType reports whether value is in the catalog.
func (s *PgStore) HasType(ctx context.Context, value string) (bool, error) {
	_, err := s.Get(ctx, value)
	if errors.Is(err, ErrTypeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PgStore) Create(ctx context.Context, t AppointmentType) (*AppointmentType, error) {
	if err := Validate(&t); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO appointment_types (value, label, duration_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING value, label, duration_minutes, created_at, updated_at
	`, t.Value, t.Label, t.DurationMinutes)

	created, err := scanType(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrTypeExists
		}
		return nil, err
	}
	return created, nil
}

// EnsureDefaults inserts the default types that are missing and leaves the rest alone.
func (s *PgStore) EnsureDefaults(ctx context.Context) error {
	for _, t := range Defaults() {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO appointment_types (value, label, duration_minutes)
			VALUES ($1, $2, $3)
			ON CONFLICT (value) DO NOTHING
		`, t.Value, t.Label, t.DurationMinutes)
		if err != nil {
			return fmt.Errorf("insert appointment type %s: %w", t.Value, err)
		}
	}
	return nil
}

func (s *PgStore) Update(ctx context.Context, value string, ch TypeChanges) (*AppointmentType, error) {
	current, err := s.Get(ctx, value)
	if err != nil {
		return nil, err
	}

	next := *current
	if ch.Label != nil {
		next.Label = *ch.Label
	}
	if ch.DurationMinutes != nil {
		next.DurationMinutes = *ch.DurationMinutes
	}
	if err := Validate(&next); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE appointment_types
		SET label = $2,
		    duration_minutes = $3,
		    updated_at = now()
		WHERE value = $1
		RETURNING value, label, duration_minutes, created_at, updated_at
	`, next.Value, next.Label, next.DurationMinutes)
	return scanType(row)
}

func (s *PgStore) Delete(ctx context.Context, value string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM appointment_types WHERE value = $1`, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTypeNotFound
	}
	return nil
}
