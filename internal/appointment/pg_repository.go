package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation     = "23505"
	nurseSlotConstraint = "appointments_nurse_slot_uniq"
	timestampLayout     = "2006-01-02 15:04:05"
)

const appointmentColumns = `id, patient_id, patient_name, patient_email, nurse_id, nurse_name,
	to_char(appointment_date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
	status, type, notes, symptoms, priority, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PatientName,
		&a.PatientEmail,
		&a.NurseID,
		&a.NurseName,
		&a.Date,
		&a.Time,
		&a.EndTime,
		&a.Status,
		&a.Type,
		&a.Notes,
		&a.Symptoms,
		&a.Priority,
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

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// mapWriteError turns a violation of the nurse slot index into ErrSlotConflict.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == nurseSlotConstraint {
		return ErrSlotConflict
	}
	return err
}

// Interface methods

func (r *PgRepository) FindBookedNurses(ctx context.Context, slot Slot) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT nurse_id
		FROM appointments
		WHERE appointment_date = $1::date
		  AND start_time = $2::time
		  AND status <> 'cancelled'
	`, slot.Date, slot.Time)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *PgRepository) FindAppointment(ctx context.Context, nurseID uuid.UUID, slot Slot, excludeID uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE nurse_id = $1
		  AND appointment_date = $2::date
		  AND start_time = $3::time
		  AND status <> 'cancelled'
		  AND id <> $4
		LIMIT 1
	`, nurseID, slot.Date, slot.Time, excludeID)
	return scanAppointment(row)
}

func (r *PgRepository) CountBookingsByNurse(ctx context.Context, date string) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT nurse_id, count(*)
		FROM appointments
		WHERE appointment_date = $1::date
		  AND status <> 'cancelled'
		GROUP BY nurse_id
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var id uuid.UUID
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

func (r *PgRepository) InsertAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, patient_name, patient_email, nurse_id, nurse_name,
			appointment_date, start_time, end_time, status, type, notes, symptoms, priority,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8::time, $9::time, $10, $11, $12, $13, $14, now(), now())
		RETURNING `+appointmentColumns,
		id, a.PatientID, a.PatientName, a.PatientEmail, a.NurseID, a.NurseName,
		a.Date, a.Time, a.EndTime, string(a.Status), a.Type, a.Notes, a.Symptoms, string(a.Priority),
	)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, a *Appointment, expected Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET nurse_id = $2,
		    nurse_name = $3,
		    appointment_date = $4::date,
		    start_time = $5::time,
		    end_time = $6::time,
		    status = $7,
		    type = $8,
		    notes = $9,
		    symptoms = $10,
		    priority = $11,
		    updated_at = now()
		WHERE id = $1
		  AND status = $12
		RETURNING `+appointmentColumns,
		a.ID, a.NurseID, a.NurseName, a.Date, a.Time, a.EndTime, string(a.Status),
		a.Type, a.Notes, a.Symptoms, string(a.Priority), string(expected),
	)

	updated, err := scanAppointment(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, mapWriteError(err)
	}

	// no row matched: either the appointment is gone or its status moved on
	if _, getErr := r.GetAppointmentByID(ctx, a.ID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrStaleAppointment
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		DELETE FROM appointments
		WHERE id = $1
		RETURNING `+appointmentColumns, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.PatientID != nil {
		add("patient_id = $%d", *f.PatientID)
	}
	if f.NurseID != nil {
		add("nurse_id = $%d", *f.NurseID)
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if f.Type != nil {
		add("type = $%d", *f.Type)
	}
	if f.Date != nil {
		add("appointment_date = $%d::date", *f.Date)
	}

	query := "SELECT " + appointmentColumns + " FROM appointments"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY appointment_date DESC, start_time DESC, created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// FindOverdue lists pending and confirmed appointments that ended before cutoff.
// cutoff is compared as clinic wall-clock time.
func (r *PgRepository) FindOverdue(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('pending', 'confirmed')
		  AND (appointment_date + end_time) < $1::timestamp
		ORDER BY appointment_date, start_time
	`, cutoff.Format(timestampLayout))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
