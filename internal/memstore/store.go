// Package memstore keeps every repository in process memory. It backs the
// api-server's memory mode and the service tests. Transactions are
// serialised behind one mutex and undone on error, which gives the same
// claim guarantees as the row locks of the Postgres repositories.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

var (
	_ schedule.TemplateRepository = (*Store)(nil)
	_ schedule.SlotRepository     = (*Store)(nil)
	_ appointment.Repository      = (*Store)(nil)
)

type Store struct {
	mu           sync.Mutex
	templates    map[uuid.UUID]schedule.Template
	slots        map[uuid.UUID]schedule.Slot
	slotKeys     map[schedule.SlotKey]uuid.UUID
	appointments map[uuid.UUID]appointment.Appointment
	events       []appointment.EventLog
	nextEventID  int64
	now          func() time.Time

	// FailNextInsert makes the next appointment insert fail; used to prove rollback.
	FailNextInsert error
}

func New() *Store {
	return &Store{
		templates:    make(map[uuid.UUID]schedule.Template),
		slots:        make(map[uuid.UUID]schedule.Slot),
		slotKeys:     make(map[schedule.SlotKey]uuid.UUID),
		appointments: make(map[uuid.UUID]appointment.Appointment),
		now:          time.Now,
	}
}

// Events returns a copy of the recorded event log.
func (s *Store) Events() []appointment.EventLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]appointment.EventLog(nil), s.events...)
}

// Templates

func (s *Store) CreateTemplate(_ context.Context, t *schedule.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	s.templates[t.ID] = *t
	return nil
}

func (s *Store) GetTemplate(_ context.Context, id uuid.UUID) (*schedule.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[id]
	if !ok {
		return nil, schedule.ErrTemplateNotFound
	}
	return &t, nil
}

func (s *Store) ListTemplates(_ context.Context, providerID uuid.UUID) ([]schedule.Template, error) {
	return s.listTemplates(func(t schedule.Template) bool {
		return providerID == uuid.Nil || t.ProviderID == providerID
	}), nil
}

func (s *Store) ListActiveTemplates(_ context.Context, providerID uuid.UUID) ([]schedule.Template, error) {
	return s.listTemplates(func(t schedule.Template) bool {
		return t.ProviderID == providerID && t.IsActive
	}), nil
}

func (s *Store) listTemplates(keep func(schedule.Template) bool) []schedule.Template {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []schedule.Template
	for _, t := range s.templates {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ProviderID != b.ProviderID {
			return a.ProviderID.String() < b.ProviderID.String()
		}
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		return a.StartTime < b.StartTime
	})
	return out
}

func (s *Store) ListProvidersWithActiveTemplates(_ context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for _, t := range s.templates {
		if _, ok := seen[t.ProviderID]; ok || !t.IsActive {
			continue
		}
		seen[t.ProviderID] = struct{}{}
		out = append(out, t.ProviderID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (s *Store) UpdateTemplate(_ context.Context, t *schedule.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.templates[t.ID]
	if !ok {
		return schedule.ErrTemplateNotFound
	}
	t.CreatedAt = cur.CreatedAt
	t.UpdatedAt = s.now()
	s.templates[t.ID] = *t
	return nil
}

func (s *Store) DeleteTemplate(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[id]; !ok {
		return schedule.ErrTemplateNotFound
	}
	delete(s.templates, id)
	return nil
}

// Slots

func (s *Store) CreateSlot(_ context.Context, sl *schedule.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.slotKeys[sl.Key()]; exists {
		return schedule.ErrSlotExists
	}
	s.insertSlotLocked(sl)
	return nil
}

func (s *Store) insertSlotLocked(sl *schedule.Slot) {
	if sl.ID == uuid.Nil {
		sl.ID = uuid.New()
	}
	now := s.now()
	sl.CreatedAt, sl.UpdatedAt = now, now
	s.slots[sl.ID] = *sl
	s.slotKeys[sl.Key()] = sl.ID
}

func (s *Store) GetSlot(_ context.Context, id uuid.UUID) (*schedule.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[id]
	if !ok {
		return nil, schedule.ErrSlotNotFound
	}
	return &sl, nil
}

func (s *Store) ListSlots(_ context.Context, f schedule.SlotFilter) ([]schedule.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []schedule.Slot
	for _, sl := range s.slots {
		if f.Match(sl) {
			out = append(out, sl)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.ProviderID.String() < b.ProviderID.String()
	})
	return out, nil
}

func (s *Store) SetSlotBlocked(_ context.Context, id uuid.UUID, blocked bool) (*schedule.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[id]
	if !ok {
		return nil, schedule.ErrSlotNotFound
	}
	sl.IsBlocked = blocked
	sl.UpdatedAt = s.now()
	s.slots[id] = sl
	return &sl, nil
}

func (s *Store) DeleteSlot(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[id]
	if !ok {
		return schedule.ErrSlotNotFound
	}
	if !sl.IsAvailable {
		return schedule.ErrSlotClaimed
	}
	delete(s.slots, id)
	delete(s.slotKeys, sl.Key())
	for apptID, a := range s.appointments {
		if a.SlotID != nil && *a.SlotID == id {
			a.SlotID = nil
			s.appointments[apptID] = a
		}
	}
	return nil
}

func (s *Store) ExistingSlotKeys(_ context.Context, providerID uuid.UUID, from, to schedule.Date) (map[schedule.SlotKey]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := schedule.SlotFilter{ProviderID: providerID, From: from, To: to}
	keys := make(map[schedule.SlotKey]struct{})
	for _, sl := range s.slots {
		if f.Match(sl) {
			keys[sl.Key()] = struct{}{}
		}
	}
	return keys, nil
}

func (s *Store) InsertSlots(_ context.Context, slots []schedule.Slot) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := 0
	for i := range slots {
		sl := slots[i]
		if _, exists := s.slotKeys[sl.Key()]; exists {
			continue
		}
		s.insertSlotLocked(&sl)
		created++
	}
	return created, nil
}
