package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgDirectory reads the doctor, room and patient tables maintained by the
// clinic's CRUD services.
type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func (d *PgDirectory) DoctorExists(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	return d.exists(ctx, "doctor", `SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1)`, doctorID)
}

func (d *PgDirectory) DoctorHasSpecialty(ctx context.Context, doctorID, specialtyID uuid.UUID) (bool, error) {
	return d.exists(ctx, "doctor specialty", `
		SELECT EXISTS (
			SELECT 1 FROM doctor_specialties
			WHERE doctor_id = $1 AND specialty_id = $2
		)
	`, doctorID, specialtyID)
}

func (d *PgDirectory) RoomExists(ctx context.Context, roomID uuid.UUID) (bool, error) {
	return d.exists(ctx, "room", `SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)`, roomID)
}

func (d *PgDirectory) PatientExists(ctx context.Context, patientID uuid.UUID) (bool, error) {
	return d.exists(ctx, "patient", `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, patientID)
}

func (d *PgDirectory) exists(ctx context.Context, what, query string, args ...any) (bool, error) {
	var ok bool
	if err := d.pool.QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("lookup %s: %w", what, err)
	}
	return ok, nil
}
