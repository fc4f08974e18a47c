package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/memstore"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

// App holds the scheduling services shared by the server, the sweeper and the
// CLI commands.
type App struct {
	Config config.Config
	Logger zerolog.Logger

	Pool  *pgxpool.Pool // nil for the memory store
	Redis *redis.Client // nil when the slot lock is off

	Templates    *schedule.TemplateStore
	Slots        *schedule.SlotAdmin
	Generator    *schedule.Generator
	Availability *schedule.Availability
	Appointments *appointment.Service
}

// New connects the configured backends and builds the services on top.
// An unreachable Redis is logged and skipped; bookings then rely on the
// database row lock.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if cfg.DevJWTSecret {
		logger.Warn().Msg("JWT_SECRET is not set, accepting tokens signed with the public dev secret")
	}

	var (
		templates schedule.TemplateRepository
		slots     schedule.SlotRepository
		appts     appointment.Repository
	)

	switch cfg.Store {
	case config.StorePostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, db.PoolOptions{
			DSN:      cfg.PostgresDSN,
			MaxConns: cfg.PostgresMaxConns,
			Timezone: cfg.Timezone,
		})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.Pool = pool
		logger.Info().Msg("connected to postgres")

		repo := schedule.NewPgRepository(pool)
		templates, slots = repo, repo
		appts = appointment.NewPgRepository(pool)
	default:
		store := memstore.New()
		templates, slots, appts = store, store, store
		logger.Warn().Msg("using in-memory store, data is lost on exit")
	}

	var locker redisclient.Locker
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, slot lock disabled")
		} else {
			a.Redis = rdb
			locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, logger)
			logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
		}
	}

	a.Templates = schedule.NewTemplateStore(templates, logger)
	a.Slots = schedule.NewSlotAdmin(slots, logger)
	a.Generator = schedule.NewGenerator(templates, slots, cfg.Location, cfg.MaxGenerationDays, logger)
	a.Availability = schedule.NewAvailability(slots, cfg.Location, cfg.MaxGenerationDays)
	a.Appointments = appointment.NewService(appts, locker, cfg, logger)
	return a, nil
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
