package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Availability answers "which slots can still be booked". Results are a
// snapshot; only the booking claim decides whether a slot is really free.
// Slots that have already started are left out since they can never be claimed.
type Availability struct {
	slots   SlotRepository
	loc     *time.Location
	maxDays int
	now     func() time.Time
}

func NewAvailability(slots SlotRepository, loc *time.Location, maxDays int) *Availability {
	if loc == nil {
		loc = time.UTC
	}
	return &Availability{slots: slots, loc: loc, maxDays: maxDays, now: time.Now}
}

// WithClock replaces the time source.
func (a *Availability) WithClock(now func() time.Time) *Availability {
	a.now = now
	return a
}

func (a *Availability) FindAvailable(ctx context.Context, providerID uuid.UUID, date Date) ([]Slot, error) {
	return a.FindAvailableRange(ctx, providerID, date, date)
}

func (a *Availability) FindAvailableRange(ctx context.Context, providerID uuid.UUID, from, to Date) ([]Slot, error) {
	if providerID == uuid.Nil {
		return nil, fmt.Errorf("%w: provider id is required", ErrInvalidInput)
	}
	if err := ValidateRange(from, to, a.maxDays); err != nil {
		return nil, err
	}

	slots, err := a.slots.ListSlots(ctx, SlotFilter{
		ProviderID:   providerID,
		From:         from,
		To:           to,
		OnlyBookable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("find available slots: %w", err)
	}

	now := a.now()
	upcoming := slots[:0]
	for _, s := range slots {
		if s.StartsAt(a.loc).After(now) {
			upcoming = append(upcoming, s)
		}
	}
	return upcoming, nil
}
