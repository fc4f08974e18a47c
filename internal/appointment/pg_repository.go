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

	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, schedule.ErrPersistence, err)
}

const uniqueViolation = "23505"

const appointmentColumns = `id, patient_id, provider_id, slot_id, appt_date, appt_time, type, status, reason, notes, payment_status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var slotID *uuid.UUID

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ProviderID,
		&slotID,
		&a.Date,
		&a.Time,
		&a.Type,
		&a.Status,
		&a.Reason,
		&a.Notes,
		&a.PaymentStatus,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, persistErr("scan appointment", err)
	}

	a.SlotID = slotID
	return &a, nil
}

func scanSlot(row pgx.Row) (*schedule.Slot, error) {
	var s schedule.Slot

	err := row.Scan(
		&s.ID,
		&s.ProviderID,
		&s.Date,
		&s.Time,
		&s.IsAvailable,
		&s.IsBlocked,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schedule.ErrSlotNotFound
		}
		return nil, persistErr("scan slot", err)
	}
	return &s, nil
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
		return nil, persistErr("iterate appointments", err)
	}
	return result, nil
}

// Interface methods

func (r *PgRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return persistErr("begin transaction", err)
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return persistErr("commit transaction", err)
	}
	return nil
}

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f Filter) ([]Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.PatientID != uuid.Nil {
		add("patient_id = $%d", f.PatientID)
	}
	if f.ProviderID != uuid.Nil {
		add("provider_id = $%d", f.ProviderID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(` ORDER BY appt_date, appt_time, created_at LIMIT NULLIF($%d::int, 0) OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, persistErr("list appointments", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindNoShowCandidates(ctx context.Context, cutoffDate schedule.Date, cutoffTime schedule.Clock, limit int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('Scheduled', 'Confirmed')
		  AND (appt_date < $1 OR (appt_date = $1 AND appt_time <= $2))
		ORDER BY appt_date, appt_time
		LIMIT NULLIF($3::int, 0)
	`, cutoffDate, cutoffTime, limit)
	if err != nil {
		return nil, persistErr("find no-show candidates", err)
	}
	return collectAppointments(rows)
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockSlot(ctx context.Context, id uuid.UUID) (*schedule.Slot, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, provider_id, slot_date, slot_time, is_available, is_blocked, created_at, updated_at
		FROM slots
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanSlot(row)
}

func (t *pgTx) SetSlotAvailable(ctx context.Context, id uuid.UUID, available bool) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE slots
		SET is_available = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, available)
	if err != nil {
		return persistErr("update slot availability", err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrSlotNotFound
	}
	return nil
}

func (t *pgTx) InsertAppointment(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := t.tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, provider_id, slot_id, appt_date, appt_time, type, status, reason, notes, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.ProviderID, a.SlotID, a.Date, a.Time,
		string(a.Type), string(a.Status), a.Reason, a.Notes, string(a.PaymentStatus))

	created, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: slot already has a live appointment", ErrSlotUnavailable)
		}
		return err
	}
	*a = *created
	return nil
}

func (t *pgTx) LockAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanAppointment(row)
}

func (t *pgTx) UpdateAppointment(ctx context.Context, a *Appointment) error {
	row := t.tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    notes = $3,
		    payment_status = $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		a.ID, string(a.Status), a.Notes, string(a.PaymentStatus))

	updated, err := scanAppointment(row)
	if err != nil {
		return err
	}
	*a = *updated
	return nil
}

func (t *pgTx) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return persistErr("insert event log", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
