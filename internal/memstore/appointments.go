package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

// WithTx holds the store lock for the whole of fn. Writes made through the
// transaction are recorded in an undo log and reverted if fn fails.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx appointment.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	if err := fn(ctx, tx); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

func (s *Store) GetAppointment(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (s *Store) ListAppointments(_ context.Context, f appointment.Filter) ([]appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []appointment.Appointment
	for _, a := range s.appointments {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	sortAppointments(out)

	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) FindNoShowCandidates(_ context.Context, cutoffDate schedule.Date, cutoffTime schedule.Clock, limit int) ([]appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []appointment.Appointment
	for _, a := range s.appointments {
		if a.Status != appointment.StatusScheduled && a.Status != appointment.StatusConfirmed {
			continue
		}
		if a.Date.Before(cutoffDate) || (a.Date.Equal(cutoffDate) && a.Time <= cutoffTime) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortAppointments(out []appointment.Appointment) {
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

type memTx struct {
	s    *Store
	undo []func()
}

func (t *memTx) LockSlot(_ context.Context, id uuid.UUID) (*schedule.Slot, error) {
	sl, ok := t.s.slots[id]
	if !ok {
		return nil, schedule.ErrSlotNotFound
	}
	return &sl, nil
}

func (t *memTx) SetSlotAvailable(_ context.Context, id uuid.UUID, available bool) error {
	prev, ok := t.s.slots[id]
	if !ok {
		return schedule.ErrSlotNotFound
	}
	t.undo = append(t.undo, func() { t.s.slots[id] = prev })

	next := prev
	next.IsAvailable = available
	next.UpdatedAt = t.s.now()
	t.s.slots[id] = next
	return nil
}

func (t *memTx) InsertAppointment(_ context.Context, a *appointment.Appointment) error {
	if err := t.s.FailNextInsert; err != nil {
		t.s.FailNextInsert = nil
		return err
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := t.s.now()
	a.CreatedAt, a.UpdatedAt = now, now

	id := a.ID
	t.undo = append(t.undo, func() { delete(t.s.appointments, id) })
	t.s.appointments[id] = *a
	return nil
}

func (t *memTx) LockAppointment(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := t.s.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (t *memTx) UpdateAppointment(_ context.Context, a *appointment.Appointment) error {
	prev, ok := t.s.appointments[a.ID]
	if !ok {
		return appointment.ErrAppointmentNotFound
	}
	t.undo = append(t.undo, func() { t.s.appointments[a.ID] = prev })

	next := prev
	next.Status = a.Status
	next.Notes = a.Notes
	next.PaymentStatus = a.PaymentStatus
	next.UpdatedAt = t.s.now()
	t.s.appointments[a.ID] = next
	*a = next
	return nil
}

func (t *memTx) InsertEvent(_ context.Context, ev appointment.EventLog) error {
	n := len(t.s.events)
	t.undo = append(t.undo, func() { t.s.events = t.s.events[:n] })

	t.s.nextEventID++
	ev.ID = t.s.nextEventID
	t.s.events = append(t.s.events, ev)
	return nil
}
