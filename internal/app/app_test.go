package app

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

func memoryConfig() config.Config {
	return config.Config{
		Store:                 config.StoreMemory,
		Location:              time.UTC,
		MaxGenerationDays:     90,
		GenerationHorizonDays: 14,
		NoShowGrace:           15 * time.Minute,
	}
}

func TestNew_MemoryStore(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Pool)
	assert.Nil(t, a.Redis)

	provider := auth.Actor{ID: uuid.New(), Role: auth.RoleProvider}
	tmpl := &schedule.Template{
		Weekday:             schedule.Weekday(time.Monday),
		StartTime:           schedule.NewClock(9, 0),
		EndTime:             schedule.NewClock(10, 0),
		SlotDurationMinutes: 20,
		IsActive:            true,
	}
	require.NoError(t, a.Templates.Create(context.Background(), provider, tmpl))

	// the services share one store
	a.Generator.WithClock(func() time.Time { return time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC) })
	monday := schedule.NewDate(2030, time.January, 7)
	res, err := a.Generator.Generate(context.Background(), provider, provider.ID, monday, monday)
	require.NoError(t, err)
	assert.Equal(t, 3, res.SlotsGenerated)

	slots, err := a.Availability.FindAvailableRange(context.Background(), provider.ID, monday, monday)
	require.NoError(t, err)
	assert.Len(t, slots, 3)
}

func TestNew_UnreachableRedisIsSkipped(t *testing.T) {
	cfg := memoryConfig()
	cfg.RedisAddr = "127.0.0.1:1"
	cfg.LockTTL = time.Second

	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Redis)
	assert.NotNil(t, a.Appointments)
}

func TestNew_WarnsAboutDevSecret(t *testing.T) {
	cfg := memoryConfig()
	cfg.DevJWTSecret = true

	var buf bytes.Buffer
	a, err := New(context.Background(), cfg, zerolog.New(&buf))
	require.NoError(t, err)
	defer a.Close()

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "public dev secret")
}
