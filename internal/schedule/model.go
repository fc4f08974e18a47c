package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Template is a provider's recurring weekly availability window.
type Template struct {
	ID                  uuid.UUID
	ProviderID          uuid.UUID
	Weekday             Weekday
	StartTime           Clock
	EndTime             Clock
	SlotDurationMinutes int
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (t Template) Validate() error {
	if t.ProviderID == uuid.Nil {
		return fmt.Errorf("%w: provider id is required", ErrInvalidTemplate)
	}
	if !t.Weekday.Valid() {
		return fmt.Errorf("%w: weekday out of range", ErrInvalidTemplate)
	}
	if !t.StartTime.Valid() || !t.EndTime.Valid() {
		return fmt.Errorf("%w: times must fall within one day", ErrInvalidTemplate)
	}
	if t.StartTime >= t.EndTime {
		return fmt.Errorf("%w: start_time %s must be before end_time %s", ErrInvalidTemplate, t.StartTime, t.EndTime)
	}
	if t.SlotDurationMinutes <= 0 {
		return fmt.Errorf("%w: slot duration must be positive, got %d", ErrInvalidTemplate, t.SlotDurationMinutes)
	}
	return nil
}

// Starts lists the slot start times the window yields. A trailing remainder
// shorter than one slot is dropped.
func (t Template) Starts() []Clock {
	if t.SlotDurationMinutes <= 0 {
		return nil
	}
	var out []Clock
	for c := t.StartTime; c.Add(t.SlotDurationMinutes) <= t.EndTime; c = c.Add(t.SlotDurationMinutes) {
		out = append(out, c)
	}
	return out
}

// TemplatePatch carries the fields of a partial template update. Nil means unchanged.
type TemplatePatch struct {
	Weekday             *Weekday
	StartTime           *Clock
	EndTime             *Clock
	SlotDurationMinutes *int
	IsActive            *bool
}

func (p TemplatePatch) Apply(t *Template) {
	if p.Weekday != nil {
		t.Weekday = *p.Weekday
	}
	if p.StartTime != nil {
		t.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		t.EndTime = *p.EndTime
	}
	if p.SlotDurationMinutes != nil {
		t.SlotDurationMinutes = *p.SlotDurationMinutes
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
}

// Slot is one concrete bookable unit of a provider's time. It keeps no
// reference to the template it was generated from.
type Slot struct {
	ID          uuid.UUID
	ProviderID  uuid.UUID
	Date        Date
	Time        Clock
	IsAvailable bool
	IsBlocked   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (s Slot) Bookable() bool {
	return s.IsAvailable && !s.IsBlocked
}

func (s Slot) Key() SlotKey {
	return SlotKey{ProviderID: s.ProviderID, Date: s.Date, Time: s.Time}
}

func (s Slot) StartsAt(loc *time.Location) time.Time {
	return s.Date.At(s.Time, loc)
}

// SlotKey is the natural key of a slot; at most one slot exists per key.
type SlotKey struct {
	ProviderID uuid.UUID
	Date       Date
	Time       Clock
}

// SlotFilter narrows slot listings. Zero values leave a dimension unbounded.
type SlotFilter struct {
	ProviderID   uuid.UUID
	From         Date
	To           Date
	OnlyBookable bool
}

func (f SlotFilter) Match(s Slot) bool {
	if f.ProviderID != uuid.Nil && s.ProviderID != f.ProviderID {
		return false
	}
	if !f.From.IsZero() && s.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && s.Date.After(f.To) {
		return false
	}
	if f.OnlyBookable && !s.Bookable() {
		return false
	}
	return true
}

// GenerationResult summarises one slot generation run.
type GenerationResult struct {
	ProviderID      uuid.UUID `json:"Doctor_id"`
	SlotsGenerated  int       `json:"slotsGenerated"`
	Candidates      int       `json:"candidates"`
	SkippedExisting int       `json:"skippedExisting"`
	SkippedPast     int       `json:"skippedPast"`
	Warning         string    `json:"warning,omitempty"`
}

const WarningNoActiveTemplates = "no_active_templates"
