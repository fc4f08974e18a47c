package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "sweeper").Logger()
	logger.Info().
		Str("schedule", cfg.SweepSchedule).
		Int("horizon_days", cfg.GenerationHorizonDays).
		Dur("no_show_grace", cfg.NoShowGrace).
		Msg("sweeper starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	// Run once at startup
	runOnce(rootCtx, a)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.SweepSchedule, func() { runOnce(rootCtx, a) }); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.SweepSchedule).Msg("invalid sweep schedule")
	}
	c.Start()

	<-rootCtx.Done()
	logger.Info().Msg("shutdown signal received, stopping sweeper")
	<-c.Stop().Done()
}

// runOnce marks overdue appointments as no-shows and tops up the slot
// horizon for every provider with active templates.
func runOnce(ctx context.Context, a *app.App) {
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	start := time.Now()

	marked, err := a.Appointments.SweepNoShows(runCtx)
	if err != nil {
		a.Logger.Error().Err(err).Msg("no-show sweep failed")
	}

	results, err := a.Generator.GenerateHorizon(runCtx, a.Config.GenerationHorizonDays)
	if err != nil {
		a.Logger.Error().Err(err).Msg("horizon generation failed")
	}
	generated := 0
	for _, r := range results {
		generated += r.SlotsGenerated
	}

	a.Logger.Info().
		Int("no_shows", marked).
		Int("providers", len(results)).
		Int("slots_generated", generated).
		Dur("took", time.Since(start)).
		Msg("sweep complete")
}
