package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

var reasons = []string{
	"Annual checkup",
	"Follow-up visit",
	"Skin rash",
	"Back pain",
	"Blood pressure review",
	"Vaccination",
	"Headache",
	"Lab results discussion",
	"Prescription renewal",
	"Sore throat",
}

var appointmentTypes = []appointment.Type{
	appointment.TypeInPerson,
	appointment.TypeTeleMedicine,
	appointment.TypeFollowUp,
}

type seedOptions struct {
	providers int
	patients  int
	days      int
	bookRatio float64
	seed      uint64
}

func main() {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Fill the database with weekly templates, generated slots and bookings",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWith(map[string]any{"STORE": config.StorePostgres})
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Env, cfg.LogLevel)

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			return run(cmd.Context(), a, logger, opts)
		},
	}
	cmd.Flags().IntVar(&opts.providers, "providers", 20, "Number of providers to give templates")
	cmd.Flags().IntVar(&opts.patients, "patients", 500, "Number of distinct patients to book for")
	cmd.Flags().IntVar(&opts.days, "days", 14, "Days of slots to generate from today")
	cmd.Flags().Float64Var(&opts.bookRatio, "book-ratio", 0.3, "Share of generated slots to book")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Random seed, 0 for a random one")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, logger zerolog.Logger, opts seedOptions) error {
	if opts.providers <= 0 || opts.patients <= 0 || opts.days <= 0 {
		return errors.New("providers, patients and days must be positive")
	}

	faker := gofakeit.New(opts.seed)
	system := auth.System()

	logger.Info().Int("providers", opts.providers).Msg("seeding templates")
	providers := make([]uuid.UUID, 0, opts.providers)
	for i := 0; i < opts.providers; i++ {
		providerID := uuid.New()
		providers = append(providers, providerID)

		for _, t := range weeklyTemplates(faker, providerID) {
			if err := a.Templates.Create(ctx, system, &t); err != nil {
				return fmt.Errorf("create template: %w", err)
			}
		}
	}

	today := schedule.DateOf(time.Now().In(a.Config.Location))
	to := today.AddDays(opts.days - 1)

	var slots []schedule.Slot
	for _, providerID := range providers {
		if _, err := a.Generator.Generate(ctx, system, providerID, today, to); err != nil {
			return fmt.Errorf("generate slots: %w", err)
		}
		open, err := a.Availability.FindAvailableRange(ctx, providerID, today, to)
		if err != nil {
			return fmt.Errorf("list slots: %w", err)
		}
		slots = append(slots, open...)
	}
	logger.Info().Int("slots", len(slots)).Msg("slots generated")

	patients := make([]uuid.UUID, opts.patients)
	for i := range patients {
		patients[i] = uuid.New()
	}

	admin := auth.Actor{ID: uuid.New(), Role: auth.RoleAdmin}
	booked := 0
	for _, slot := range slots {
		if faker.Float64() >= opts.bookRatio {
			continue
		}
		patientID := patients[faker.Number(0, len(patients)-1)]
		_, err := a.Appointments.Book(ctx, admin, slot.ID, patientID, appointment.BookingFields{
			Type:   appointmentTypes[faker.Number(0, len(appointmentTypes)-1)],
			Reason: reasons[faker.Number(0, len(reasons)-1)],
			Notes:  "Referred by Dr. " + faker.LastName(),
		})
		if err != nil {
			if errors.Is(err, appointment.ErrSlotUnavailable) {
				continue
			}
			return fmt.Errorf("book slot %s: %w", slot.ID, err)
		}
		booked++
	}

	logger.Info().
		Int("providers", len(providers)).
		Int("slots", len(slots)).
		Int("appointments", booked).
		Msg("seed complete")
	return nil
}

// weeklyTemplates gives a provider a morning block on most weekdays and an
// afternoon block on some.
func weeklyTemplates(faker *gofakeit.Faker, providerID uuid.UUID) []schedule.Template {
	durations := []int{15, 20, 30}
	duration := durations[faker.Number(0, len(durations)-1)]

	var out []schedule.Template
	for wd := time.Monday; wd <= time.Friday; wd++ {
		if faker.Number(0, 4) == 0 {
			continue
		}
		startHour := faker.Number(8, 9)
		out = append(out, schedule.Template{
			ProviderID:          providerID,
			Weekday:             schedule.Weekday(wd),
			StartTime:           schedule.NewClock(startHour, 0),
			EndTime:             schedule.NewClock(startHour+3, 30),
			SlotDurationMinutes: duration,
			IsActive:            true,
		})
		if faker.Bool() {
			out = append(out, schedule.Template{
				ProviderID:          providerID,
				Weekday:             schedule.Weekday(wd),
				StartTime:           schedule.NewClock(13, 30),
				EndTime:             schedule.NewClock(17, 0),
				SlotDurationMinutes: duration,
				IsActive:            true,
			})
		}
	}
	return out
}
