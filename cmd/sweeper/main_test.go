package main

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

func TestRunOnce_GeneratesHorizonAndMarksNoShows(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{
		Store:                 config.StoreMemory,
		Location:              time.UTC,
		MaxGenerationDays:     90,
		GenerationHorizonDays: 14,
		NoShowGrace:           15 * time.Minute,
	}
	a, err := app.New(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	// 2030-01-01 is a Tuesday
	now := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	a.Generator.WithClock(clock)
	a.Availability.WithClock(clock)
	a.Appointments.WithClock(clock)

	provider := auth.Actor{ID: uuid.New(), Role: auth.RoleProvider}
	require.NoError(t, a.Templates.Create(ctx, provider, &schedule.Template{
		Weekday:             schedule.Weekday(time.Tuesday),
		StartTime:           schedule.NewClock(9, 0),
		EndTime:             schedule.NewClock(10, 0),
		SlotDurationMinutes: 30,
		IsActive:            true,
	}))

	runOnce(ctx, a)

	from := schedule.NewDate(2030, time.January, 1)
	slots, err := a.Availability.FindAvailableRange(ctx, provider.ID, from, from.AddDays(13))
	require.NoError(t, err)
	require.Len(t, slots, 4)

	patient := auth.Actor{ID: uuid.New(), Role: auth.RolePatient}
	appt, err := a.Appointments.Book(ctx, patient, slots[0].ID, uuid.Nil, appointment.BookingFields{})
	require.NoError(t, err)

	now = time.Date(2030, time.January, 1, 9, 20, 0, 0, time.UTC)
	runOnce(ctx, a)

	got, err := a.Appointments.GetAppointment(ctx, auth.System(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusNoShow, got.Status)

	// a second run finds nothing new to create
	results, err := a.Generator.GenerateHorizon(ctx, cfg.GenerationHorizonDays)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Zero(t, results[0].SlotsGenerated)
}
