package appointment_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db/dbtest"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

type pgFixture struct {
	pool     *pgxpool.Pool
	repo     *appointment.PgRepository
	svc      *appointment.Service
	provider auth.Actor
	slots    []schedule.Slot
}

// newPgFixture generates Monday 09:00-10:00 in 20 minute slots for a fresh
// provider on the test database.
func newPgFixture(t *testing.T) *pgFixture {
	t.Helper()

	pool := dbtest.NewPool(t)
	ctx := context.Background()
	now := func() time.Time { return time.Date(2030, time.January, 1, 8, 0, 0, 0, time.UTC) }
	log := zerolog.Nop()

	f := &pgFixture{
		pool:     pool,
		repo:     appointment.NewPgRepository(pool),
		provider: auth.Actor{ID: uuid.New(), Role: auth.RoleProvider},
	}
	cfg := config.Config{Location: time.UTC, NoShowGrace: 15 * time.Minute}
	f.svc = appointment.NewService(f.repo, nil, cfg, log).WithClock(now)

	schedRepo := schedule.NewPgRepository(pool)
	require.NoError(t, schedule.NewTemplateStore(schedRepo, log).Create(ctx, f.provider, &schedule.Template{
		Weekday:             schedule.Weekday(time.Monday),
		StartTime:           schedule.NewClock(9, 0),
		EndTime:             schedule.NewClock(10, 0),
		SlotDurationMinutes: 20,
		IsActive:            true,
	}))
	gen := schedule.NewGenerator(schedRepo, schedRepo, time.UTC, 90, log).WithClock(now)
	res, err := gen.Generate(ctx, f.provider, f.provider.ID, monday, monday)
	require.NoError(t, err)
	require.Equal(t, 3, res.SlotsGenerated)

	f.slots, err = schedRepo.ListSlots(ctx, schedule.SlotFilter{ProviderID: f.provider.ID})
	require.NoError(t, err)
	require.Len(t, f.slots, 3)
	return f
}

func (f *pgFixture) slotAvailable(t *testing.T, id uuid.UUID) bool {
	t.Helper()
	var available bool
	err := f.pool.QueryRow(context.Background(), `SELECT is_available FROM slots WHERE id = $1`, id).Scan(&available)
	require.NoError(t, err)
	return available
}

func TestPgBook_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()
	slot := f.slots[0]

	const n = 32
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		successes   int
		unavailable int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Book(ctx, newPatient(), slot.ID, uuid.Nil, appointment.BookingFields{})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, appointment.ErrSlotUnavailable):
				unavailable++
			default:
				t.Errorf("unexpected booking error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, unavailable)
	assert.False(t, f.slotAvailable(t, slot.ID))

	var live int
	err := f.pool.QueryRow(ctx, `
		SELECT count(*) FROM appointments
		WHERE slot_id = $1 AND status IN ('Scheduled', 'Confirmed', 'InProgress')
	`, slot.ID).Scan(&live)
	require.NoError(t, err)
	assert.Equal(t, 1, live)
}

func TestPgBook_SecondLiveAppointmentViolatesIndex(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()
	slot := f.slots[1]

	_, err := f.svc.Book(ctx, newPatient(), slot.ID, uuid.Nil, appointment.BookingFields{})
	require.NoError(t, err)

	// skip the availability check and hit the partial unique index directly
	id := slot.ID
	err = f.repo.WithTx(ctx, func(ctx context.Context, tx appointment.Tx) error {
		return tx.InsertAppointment(ctx, &appointment.Appointment{
			PatientID:     uuid.New(),
			ProviderID:    slot.ProviderID,
			SlotID:        &id,
			Date:          slot.Date,
			Time:          slot.Time,
			Type:          appointment.TypeInPerson,
			Status:        appointment.StatusConfirmed,
			PaymentStatus: appointment.PaymentPending,
		})
	})
	assert.ErrorIs(t, err, appointment.ErrSlotUnavailable)
}

func TestPgCancel_ThenRebook(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()
	slot := f.slots[2]
	first, second := newPatient(), newPatient()

	appt, err := f.svc.Book(ctx, first, slot.ID, uuid.Nil, appointment.BookingFields{
		Type:   appointment.TypeTeleMedicine,
		Reason: "Follow-up visit",
	})
	require.NoError(t, err)
	assert.Equal(t, "2030-01-07", appt.Date.String())
	assert.Equal(t, "09:40", appt.Time.String())

	got, err := f.repo.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.TypeTeleMedicine, got.Type)
	assert.Equal(t, appt.Time, got.Time)

	_, err = f.svc.Book(ctx, second, slot.ID, uuid.Nil, appointment.BookingFields{})
	require.ErrorIs(t, err, appointment.ErrSlotUnavailable)

	cancelled, err := f.svc.Transition(ctx, first, appt.ID, appointment.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCancelled, cancelled.Status)
	assert.True(t, f.slotAvailable(t, slot.ID))

	rebooked, err := f.svc.Book(ctx, second, slot.ID, uuid.Nil, appointment.BookingFields{})
	require.NoError(t, err)
	assert.Equal(t, second.ID, rebooked.PatientID)
	assert.False(t, f.slotAvailable(t, slot.ID))

	var events int
	err = f.pool.QueryRow(ctx, `SELECT count(*) FROM event_logs WHERE appointment_id = $1`, appt.ID).Scan(&events)
	require.NoError(t, err)
	assert.Equal(t, 2, events)

	listed, err := f.repo.ListAppointments(ctx, appointment.Filter{ProviderID: f.provider.ID})
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestPgFindNoShowCandidates(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, newPatient(), f.slots[0].ID, uuid.Nil, appointment.BookingFields{})
	require.NoError(t, err)

	before, err := f.repo.FindNoShowCandidates(ctx, monday, schedule.NewClock(8, 59), 0)
	require.NoError(t, err)
	for _, a := range before {
		assert.NotEqual(t, appt.ID, a.ID)
	}

	after, err := f.repo.FindNoShowCandidates(ctx, monday, schedule.NewClock(9, 0), 0)
	require.NoError(t, err)
	var found bool
	for _, a := range after {
		found = found || a.ID == appt.ID
	}
	assert.True(t, found)
}
