package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

const templateColumns = `id, provider_id, weekday, start_time, end_time, slot_duration_minutes, is_active, created_at, updated_at`

func scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	var weekday int16

	err := row.Scan(
		&t.ID,
		&t.ProviderID,
		&weekday,
		&t.StartTime,
		&t.EndTime,
		&t.SlotDurationMinutes,
		&t.IsActive,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, persistErr("scan template", err)
	}

	t.Weekday = Weekday(weekday)
	return &t, nil
}

const slotColumns = `id, provider_id, slot_date, slot_time, is_available, is_blocked, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

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
			return nil, ErrSlotNotFound
		}
		return nil, persistErr("scan slot", err)
	}

	return &s, nil
}

func collectTemplates(rows pgx.Rows) ([]Template, error) {
	defer rows.Close()

	var result []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate templates", err)
	}
	return result, nil
}

// Templates

func (r *PgRepository) CreateTemplate(ctx context.Context, t *Template) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO schedule_templates (id, provider_id, weekday, start_time, end_time, slot_duration_minutes, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+templateColumns,
		t.ID, t.ProviderID, int16(t.Weekday), t.StartTime, t.EndTime, t.SlotDurationMinutes, t.IsActive)

	created, err := scanTemplate(row)
	if err != nil {
		return err
	}
	*t = *created
	return nil
}

func (r *PgRepository) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM schedule_templates
		WHERE id = $1
	`, id)
	return scanTemplate(row)
}

func (r *PgRepository) ListTemplates(ctx context.Context, providerID uuid.UUID) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+templateColumns+`
		FROM schedule_templates
		WHERE $1::uuid IS NULL OR provider_id = $1
		ORDER BY provider_id, weekday, start_time
	`, nullableUUID(providerID))
	if err != nil {
		return nil, persistErr("list templates", err)
	}
	return collectTemplates(rows)
}

func (r *PgRepository) ListActiveTemplates(ctx context.Context, providerID uuid.UUID) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+templateColumns+`
		FROM schedule_templates
		WHERE provider_id = $1 AND is_active
		ORDER BY weekday, start_time
	`, providerID)
	if err != nil {
		return nil, persistErr("list active templates", err)
	}
	return collectTemplates(rows)
}

func (r *PgRepository) ListProvidersWithActiveTemplates(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT provider_id
		FROM schedule_templates
		WHERE is_active
		ORDER BY provider_id
	`)
	if err != nil {
		return nil, persistErr("list providers", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, persistErr("collect providers", err)
	}
	return ids, nil
}

func (r *PgRepository) UpdateTemplate(ctx context.Context, t *Template) error {
	row := r.pool.QueryRow(ctx, `
		UPDATE schedule_templates
		SET weekday = $2,
		    start_time = $3,
		    end_time = $4,
		    slot_duration_minutes = $5,
		    is_active = $6,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+templateColumns,
		t.ID, int16(t.Weekday), t.StartTime, t.EndTime, t.SlotDurationMinutes, t.IsActive)

	updated, err := scanTemplate(row)
	if err != nil {
		return err
	}
	*t = *updated
	return nil
}

func (r *PgRepository) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedule_templates WHERE id = $1`, id)
	if err != nil {
		return persistErr("delete template", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// Slots

func (r *PgRepository) CreateSlot(ctx context.Context, s *Slot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO slots (id, provider_id, slot_date, slot_time, is_available, is_blocked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+slotColumns,
		s.ID, s.ProviderID, s.Date, s.Time, s.IsAvailable, s.IsBlocked)

	created, err := scanSlot(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrSlotExists
		}
		return err
	}
	*s = *created
	return nil
}

func (r *PgRepository) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListSlots(ctx context.Context, f SlotFilter) ([]Slot, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.ProviderID != uuid.Nil {
		add("provider_id = $%d", f.ProviderID)
	}
	if !f.From.IsZero() {
		add("slot_date >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("slot_date <= $%d", f.To)
	}
	if f.OnlyBookable {
		where = append(where, "is_available AND NOT is_blocked")
	}

	query := `SELECT ` + slotColumns + ` FROM slots`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY slot_date, slot_time, provider_id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, persistErr("list slots", err)
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
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate slots", err)
	}
	return result, nil
}

func (r *PgRepository) SetSlotBlocked(ctx context.Context, id uuid.UUID, blocked bool) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE slots
		SET is_blocked = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+slotColumns,
		id, blocked)
	return scanSlot(row)
}

func (r *PgRepository) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM slots WHERE id = $1 AND is_available`, id)
	if err != nil {
		return persistErr("delete slot", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := r.GetSlot(ctx, id); err != nil {
		return err
	}
	return ErrSlotClaimed
}

func (r *PgRepository) ExistingSlotKeys(ctx context.Context, providerID uuid.UUID, from, to Date) (map[SlotKey]struct{}, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot_date, slot_time
		FROM slots
		WHERE provider_id = $1
		  AND slot_date BETWEEN $2 AND $3
	`, providerID, from, to)
	if err != nil {
		return nil, persistErr("load slot keys", err)
	}
	defer rows.Close()

	keys := make(map[SlotKey]struct{})
	for rows.Next() {
		key := SlotKey{ProviderID: providerID}
		if err := rows.Scan(&key.Date, &key.Time); err != nil {
			return nil, persistErr("scan slot key", err)
		}
		keys[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate slot keys", err)
	}
	return keys, nil
}

func (r *PgRepository) InsertSlots(ctx context.Context, slots []Slot) (int, error) {
	batch := &pgx.Batch{}
	for _, s := range slots {
		id := s.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		batch.Queue(`
			INSERT INTO slots (id, provider_id, slot_date, slot_time, is_available, is_blocked, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			ON CONFLICT (provider_id, slot_date, slot_time) DO NOTHING
		`, id, s.ProviderID, s.Date, s.Time, s.IsAvailable, s.IsBlocked)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	created := 0
	for range slots {
		tag, err := br.Exec()
		if err != nil {
			return created, persistErr("insert slot", err)
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
