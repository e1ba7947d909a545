package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Scan helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var phone *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&phone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Phone = phone
	return &p, nil
}

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	var specialty *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Title,
		&specialty,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	p.Specialty = specialty
	return &p, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.ProviderID,
		&s.StartTime,
		&s.EndTime,
		&s.Booked,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ProviderID,
		&a.SlotID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.Notes,
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

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, title, specialty, created_at, updated_at
		FROM providers
		WHERE id = $1
	`, id)
	return scanProvider(row)
}

func (r *PgRepository) ListProviders(ctx context.Context) ([]Provider, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, title, specialty, created_at, updated_at
		FROM providers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateSlots(ctx context.Context, providerID uuid.UUID, inputs []SlotInput) ([]Slot, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	result := make([]Slot, 0, len(inputs))
	for _, in := range inputs {
		row := tx.QueryRow(ctx, `
			INSERT INTO provider_slots (id, provider_id, start_time, end_time, booked, created_at, updated_at)
			VALUES ($1, $2, $3, $4, false, now(), now())
			RETURNING id, provider_id, start_time, end_time, booked, created_at, updated_at
		`, uuid.New(), providerID, in.StartTime, in.EndTime)

		slot, err := scanSlot(row)
		if err != nil {
			return nil, err
		}
		result = append(result, *slot)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, providerID, slotID uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, provider_id, start_time, end_time, booked, created_at, updated_at
		FROM provider_slots
		WHERE id = $1 AND provider_id = $2
	`, slotID, providerID)
	return scanSlot(row)
}

func (r *PgRepository) ListSlots(ctx context.Context, providerID uuid.UUID, onlyOpen bool) ([]Slot, error) {
	query := `
		SELECT id, provider_id, start_time, end_time, booked, created_at, updated_at
		FROM provider_slots
		WHERE provider_id = $1
	`
	if onlyOpen {
		query += ` AND booked = false`
	}
	query += ` ORDER BY start_time`

	rows, err := r.pool.Query(ctx, query, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

// ReserveSlot is the reservation primitive: one conditional UPDATE that
// Postgres evaluates atomically against the current booked flag. Concurrent
// callers serialize on the row; exactly one sees booked = false.
func (r *PgRepository) ReserveSlot(ctx context.Context, providerID, slotID uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE provider_slots
		SET booked = true,
		    updated_at = now()
		WHERE id = $1
		  AND provider_id = $2
		  AND booked = false
		RETURNING id, provider_id, start_time, end_time, booked, created_at, updated_at
	`, slotID, providerID)

	slot, err := scanSlot(row)
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, ErrSlotNotFound) {
		return nil, err
	}

	// No row updated: either the slot does not exist or it was already
	// booked. The follow-up read only picks the error to return; it is
	// outside the atomic step on purpose.
	if _, getErr := r.GetSlotByID(ctx, providerID, slotID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrSlotTaken
}

func (r *PgRepository) ReleaseSlot(ctx context.Context, providerID, slotID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE provider_slots
		SET booked = false,
		    updated_at = now()
		WHERE id = $1
		  AND provider_id = $2
		  AND booked = true
	`, slotID, providerID)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, provider_id, slot_id, start_time, end_time, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING id, patient_id, provider_id, slot_id, start_time, end_time, status, notes, created_at, updated_at
	`, id, appt.PatientID, appt.ProviderID, appt.SlotID, appt.StartTime, appt.EndTime, appt.Status, appt.Notes)

	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, provider_id, slot_id, start_time, end_time, status, notes, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, patient_id, provider_id, slot_id, start_time, end_time, status, notes, created_at, updated_at
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM appointments
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return r.listAppointments(ctx, `patient_id`, patientID)
}

func (r *PgRepository) ListAppointmentsByProvider(ctx context.Context, providerID uuid.UUID) ([]Appointment, error) {
	return r.listAppointments(ctx, `provider_id`, providerID)
}

func (r *PgRepository) listAppointments(ctx context.Context, column string, id uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, provider_id, slot_id, start_time, end_time, status, notes, created_at, updated_at
		FROM appointments
		WHERE `+column+` = $1
		ORDER BY start_time
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) FindConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, provider_id, slot_id, start_time, end_time, status, notes, created_at, updated_at
		FROM appointments
		WHERE status = 'confirmed'
		  AND start_time >= $1
		  AND start_time <= $2
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) FindConfirmedEndedBefore(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, provider_id, slot_id, start_time, end_time, status, notes, created_at, updated_at
		FROM appointments
		WHERE status = 'confirmed'
		  AND end_time < $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}
