package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "api-server",
		Short:        "Clinic appointment scheduling API",
		SilenceUsage: true,
		// without a subcommand the server starts with environment settings
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(generateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig applies the flags that were set explicitly on top of the
// environment.
func loadConfig(cmd *cobra.Command, flagToKey map[string]string) (config.Config, error) {
	overrides := make(map[string]any)
	for flag, key := range flagToKey {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			overrides[key] = f.Value.String()
		}
	}
	return config.LoadWith(overrides)
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, map[string]string{"port": "HTTP_PORT", "store": "STORE"})
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
	cmd.Flags().String("port", "8080", "HTTP listen port")
	cmd.Flags().String("store", config.StorePostgres, "Storage backend: postgres or memory")
	return cmd
}

func runServer(cfg config.Config) error {
	logger := logging.New(cfg.Env, cfg.LogLevel)
	logger.Info().
		Str("env", cfg.Env).
		Str("store", cfg.Store).
		Str("timezone", cfg.Location.String()).
		Str("version", version).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(rootCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	handler := api.NewRouter(api.RouterConfig{
		Templates:      a.Templates,
		Slots:          a.Slots,
		Generator:      a.Generator,
		Availability:   a.Availability,
		Appointments:   a.Appointments,
		Verifier:       auth.NewTokenVerifier(cfg.JWTSecret),
		PgPool:         a.Pool,
		Redis:          a.Redis,
		Logger:         logger,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Env:            cfg.Env,
		Version:        version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	logger.Info().Msg("api-server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	up := func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
			count, err := m.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s).\n", count)
			return nil
		})
	}

	// bare "migrate" applies pending migrations
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE:  up,
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE:  up,
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("migration status: %w", err)
				}
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				for _, s := range statuses {
					state, at := "pending", ""
					if s.Applied {
						state = "applied"
					}
					if s.AppliedAt != nil {
						at = s.AppliedAt.Format(time.RFC3339)
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, state, at)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(upCmd, statusCmd)
	return cmd
}

func withMigrator(ctx context.Context, fn func(ctx context.Context, m *db.Migrator) error) error {
	cfg, err := config.LoadWith(map[string]any{"STORE": config.StorePostgres})
	if err != nil {
		return err
	}

	pool, err := db.ConnectPostgres(ctx, db.PoolOptions{
		DSN:      cfg.PostgresDSN,
		MaxConns: cfg.PostgresMaxConns,
		Timezone: cfg.Timezone,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, db.Migrations()))
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate slots from active templates for a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			providerFlag, _ := cmd.Flags().GetString("provider")
			fromFlag, _ := cmd.Flags().GetString("from")
			toFlag, _ := cmd.Flags().GetString("to")

			cfg, err := loadConfig(cmd, map[string]string{"store": "STORE"})
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Env, cfg.LogLevel)

			from, err := schedule.ParseDate(fromFlag)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			to, err := schedule.ParseDate(toFlag)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			var providers []uuid.UUID
			if providerFlag != "" {
				id, err := uuid.Parse(providerFlag)
				if err != nil {
					return fmt.Errorf("--provider: %w", err)
				}
				providers = append(providers, id)
			} else {
				templates, err := a.Templates.List(cmd.Context(), auth.System(), uuid.Nil)
				if err != nil {
					return err
				}
				seen := make(map[uuid.UUID]bool)
				for _, t := range templates {
					if t.IsActive && !seen[t.ProviderID] {
						seen[t.ProviderID] = true
						providers = append(providers, t.ProviderID)
					}
				}
			}

			for _, p := range providers {
				res, err := a.Generator.Generate(cmd.Context(), auth.System(), p, from, to)
				if err != nil {
					return fmt.Errorf("generate for %s: %w", p, err)
				}
				fmt.Printf("%s: %d generated, %d existing, %d past %s\n",
					p, res.SlotsGenerated, res.SkippedExisting, res.SkippedPast, res.Warning)
			}
			return nil
		},
	}
	cmd.Flags().String("provider", "", "Provider id (default: every provider with an active template)")
	cmd.Flags().String("from", "", "First date, YYYY-MM-DD")
	cmd.Flags().String("to", "", "Last date, YYYY-MM-DD")
	cmd.Flags().String("store", config.StorePostgres, "Storage backend: postgres or memory")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
