// Package directory looks up clinic staff by role.
package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const RoleNurse = "nurse"

var ErrNurseNotFound = errors.New("nurse not found")

type Nurse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Shift *string   `json:"shift,omitempty"`
}

type Directory interface {
	ListNurses(ctx context.Context) ([]Nurse, error)
	GetNurse(ctx context.Context, id uuid.UUID) (*Nurse, error)
}

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func scanNurse(row pgx.Row) (*Nurse, error) {
	var n Nurse
	if err := row.Scan(&n.ID, &n.Name, &n.Shift); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNurseNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (d *PgDirectory) ListNurses(ctx context.Context) ([]Nurse, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, name, shift
		FROM users
		WHERE role = $1
		ORDER BY name, id
	`, RoleNurse)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nurses []Nurse
	for rows.Next() {
		n, err := scanNurse(rows)
		if err != nil {
			return nil, err
		}
		nurses = append(nurses, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return nurses, nil
}

func (d *PgDirectory) GetNurse(ctx context.Context, id uuid.UUID) (*Nurse, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, name, shift
		FROM users
		WHERE id = $1 AND role = $2
	`, id, RoleNurse)
	return scanNurse(row)
}
