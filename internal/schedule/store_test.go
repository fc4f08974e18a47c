package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

func TestTemplateStore_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tmpl := f.addTemplate(t, time.Monday, schedule.NewClock(9, 0), schedule.NewClock(10, 0), 30)
	assert.NotEqual(t, uuid.Nil, tmpl.ID)

	other := auth.Actor{ID: uuid.New(), Role: auth.RoleProvider}
	admin := auth.Actor{ID: uuid.New(), Role: auth.RoleAdmin}
	patient := auth.Actor{ID: uuid.New(), Role: auth.RolePatient}

	_, err := f.templates.Get(ctx, other, tmpl.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = f.templates.Get(ctx, admin, tmpl.ID)
	assert.NoError(t, err)

	err = f.templates.Create(ctx, patient, &schedule.Template{
		ProviderID:          f.provider.ID,
		Weekday:             schedule.Weekday(time.Friday),
		StartTime:           schedule.NewClock(9, 0),
		EndTime:             schedule.NewClock(10, 0),
		SlotDurationMinutes: 15,
	})
	assert.ErrorIs(t, err, auth.ErrForbidden)

	// providers default to their own listing, and only admins may list everyone
	mine, err := f.templates.List(ctx, f.provider, uuid.Nil)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = f.templates.List(ctx, other, f.provider.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = f.templates.List(ctx, patient, uuid.Nil)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	everyone, err := f.templates.List(ctx, admin, uuid.Nil)
	require.NoError(t, err)
	assert.Len(t, everyone, 1)

	assert.ErrorIs(t, f.templates.Delete(ctx, other, tmpl.ID), auth.ErrForbidden)
	require.NoError(t, f.templates.Delete(ctx, admin, tmpl.ID))

	_, err = f.templates.Get(ctx, admin, tmpl.ID)
	assert.ErrorIs(t, err, schedule.ErrTemplateNotFound)
}

func TestTemplateStore_UpdateValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tmpl := f.addTemplate(t, time.Monday, schedule.NewClock(9, 0), schedule.NewClock(10, 0), 30)

	end := schedule.NewClock(8, 0)
	_, err := f.templates.Update(ctx, f.provider, tmpl.ID, schedule.TemplatePatch{EndTime: &end})
	assert.ErrorIs(t, err, schedule.ErrInvalidTemplate)

	stored, err := f.templates.Get(ctx, f.provider, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.NewClock(10, 0), stored.EndTime)

	duration := 15
	updated, err := f.templates.Update(ctx, f.provider, tmpl.ID, schedule.TemplatePatch{SlotDurationMinutes: &duration})
	require.NoError(t, err)
	assert.Equal(t, 15, updated.SlotDurationMinutes)

	_, err = f.templates.Update(ctx, f.provider, uuid.New(), schedule.TemplatePatch{})
	assert.ErrorIs(t, err, schedule.ErrTemplateNotFound)
}

func TestTemplateStore_OverlapAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addTemplate(t, time.Monday, schedule.NewClock(9, 0), schedule.NewClock(10, 0), 30)
	f.addTemplate(t, time.Monday, schedule.NewClock(9, 0), schedule.NewClock(10, 0), 30)

	res, err := f.generator.Generate(ctx, f.provider, f.provider.ID, monday, monday)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SlotsGenerated)
	assert.Equal(t, 2, res.Candidates)
}

func TestSlotAdmin_CreateAndDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot := &schedule.Slot{Date: monday, Time: schedule.NewClock(13, 0), IsAvailable: true}
	require.NoError(t, f.slots.Create(ctx, f.provider, slot))
	assert.Equal(t, f.provider.ID, slot.ProviderID)

	dup := &schedule.Slot{Date: monday, Time: schedule.NewClock(13, 0), IsAvailable: true}
	assert.ErrorIs(t, f.slots.Create(ctx, f.provider, dup), schedule.ErrSlotExists)

	// generation treats a manual slot like any other existing key
	f.addTemplate(t, time.Monday, schedule.NewClock(13, 0), schedule.NewClock(14, 0), 30)
	res, err := f.generator.Generate(ctx, f.provider, f.provider.ID, monday, monday)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SlotsGenerated)
	assert.Equal(t, 1, res.SkippedExisting)

	patient := auth.Actor{ID: uuid.New(), Role: auth.RolePatient}
	err = f.slots.Create(ctx, patient, &schedule.Slot{ProviderID: f.provider.ID, Date: monday, Time: schedule.NewClock(15, 0)})
	assert.ErrorIs(t, err, auth.ErrForbidden)

	err = f.slots.Create(ctx, f.provider, &schedule.Slot{Time: schedule.NewClock(15, 0)})
	assert.ErrorIs(t, err, schedule.ErrInvalidInput)
}

func TestSlotAdmin_RejectsUnavailableSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	closed := &schedule.Slot{Date: monday, Time: schedule.NewClock(15, 0), IsAvailable: false}
	assert.ErrorIs(t, f.slots.Create(ctx, f.provider, closed), schedule.ErrInvalidInput)

	slots, err := f.slots.List(ctx, schedule.SlotFilter{ProviderID: f.provider.ID})
	require.NoError(t, err)
	assert.Empty(t, slots)

	// closing a slot goes through the block flag, which stays deletable
	blocked := &schedule.Slot{Date: monday, Time: schedule.NewClock(15, 0), IsAvailable: true, IsBlocked: true}
	require.NoError(t, f.slots.Create(ctx, f.provider, blocked))
	assert.False(t, blocked.Bookable())
	require.NoError(t, f.slots.Delete(ctx, f.provider, blocked.ID))
}

func TestSlotAdmin_BlockAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot := &schedule.Slot{Date: monday, Time: schedule.NewClock(13, 0), IsAvailable: true}
	require.NoError(t, f.slots.Create(ctx, f.provider, slot))

	other := auth.Actor{ID: uuid.New(), Role: auth.RoleProvider}
	_, err := f.slots.SetBlocked(ctx, other, slot.ID, true)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	blocked, err := f.slots.SetBlocked(ctx, f.provider, slot.ID, true)
	require.NoError(t, err)
	assert.True(t, blocked.IsBlocked)
	assert.True(t, blocked.IsAvailable)
	assert.False(t, blocked.Bookable())

	assert.ErrorIs(t, f.slots.Delete(ctx, other, slot.ID), auth.ErrForbidden)
	require.NoError(t, f.slots.Delete(ctx, f.provider, slot.ID))

	_, err = f.slots.Get(ctx, slot.ID)
	assert.ErrorIs(t, err, schedule.ErrSlotNotFound)

	assert.ErrorIs(t, f.slots.Delete(ctx, f.provider, slot.ID), schedule.ErrSlotNotFound)
}

func TestSlotAdmin_ListRejectsInvertedRange(t *testing.T) {
	f := newFixture(t)

	_, err := f.slots.List(context.Background(), schedule.SlotFilter{From: monday, To: monday.AddDays(-1)})
	assert.ErrorIs(t, err, schedule.ErrInvalidInput)
}
