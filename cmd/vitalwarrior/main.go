package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/vitalwarrior/internal/analysis"
	httptransport "github.com/spec-kit/vitalwarrior/internal/api/http"
	"github.com/spec-kit/vitalwarrior/internal/api/http/handlers"
	"github.com/spec-kit/vitalwarrior/internal/app"
	"github.com/spec-kit/vitalwarrior/internal/backend"
	"github.com/spec-kit/vitalwarrior/internal/camera"
	"github.com/spec-kit/vitalwarrior/internal/config"
	"github.com/spec-kit/vitalwarrior/internal/domain"
	"github.com/spec-kit/vitalwarrior/internal/notify"
	"github.com/spec-kit/vitalwarrior/internal/observability"
	"github.com/spec-kit/vitalwarrior/internal/persistence"
	"github.com/spec-kit/vitalwarrior/internal/repository"
	"github.com/spec-kit/vitalwarrior/internal/syncqueue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()
	slots := persistence.NewSlotStore(redis, cfg.Redis.KeyPrefix)

	device, err := camera.NewDevice(cfg.Camera)
	if err != nil {
		logger.Fatal("failed to init camera", zap.Error(err))
	}

	analyzerOpts := []analysis.MockOption{analysis.WithDelay(cfg.Analysis.Delay)}
	if cfg.Analysis.Seed != 0 {
		analyzerOpts = append(analyzerOpts, analysis.WithSeed(cfg.Analysis.Seed))
	}

	metrics := observability.NewMetrics()
	sink := notify.NewSink(logger.Named("toast"), cfg.Notification.DefaultDuration)

	ctrl := app.New(*cfg, app.Dependencies{
		Camera:   camera.NewController(device, domain.ParseFacingMode(cfg.Camera.DefaultFacing), cfg.Camera.JPEGQuality, logger),
		Analyzer: analysis.NewMockAnalyzer(analyzerOpts...),
		Backend:  selectBackend(*cfg, pg, slots, logger),
		Queue:    syncqueue.New(slots, logger),
		Notifier: sink,
		Metrics:  metrics,
		Logger:   logger,
	})
	ctrl.Start(ctx)
	defer ctrl.Stop()

	fiberApp := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(fiberApp, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(fiberApp, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		State:  handlers.NewStateHandler(ctrl, sink, metrics),
		Scan:   handlers.NewScanHandler(ctrl),
		Auth:   handlers.NewAuthHandler(ctrl),
		Kiosk:  handlers.NewKioskHandler(ctrl),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := fiberApp.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = fiberApp.Shutdown()
}

// selectBackend prefers the hosted product, then the self-hosted database,
// and falls back to demo mode.
func selectBackend(cfg config.Config, pg *persistence.Postgres, slots persistence.SlotStore, logger *zap.Logger) backend.Backend {
	switch {
	case cfg.Supabase.Enabled():
		logger.Info("using hosted backend", zap.String("url", cfg.Supabase.URL))
		return backend.NewSupabaseBackend(backend.SupabaseOptions{
			URL:       cfg.Supabase.URL,
			AnonKey:   cfg.Supabase.AnonKey,
			JWTSecret: cfg.Supabase.JWTSecret,
			Timeout:   cfg.Supabase.Timeout,
			Slots:     slots,
			Logger:    logger,
		})
	case pg.Enabled():
		logger.Info("using self-hosted postgres backend")
		pool := pg.PoolHandle()
		return backend.NewPostgresBackend(backend.PostgresDependencies{
			Accounts:      repository.NewAccountRepository(pool),
			Profiles:      repository.NewProfileRepository(pool),
			HealthRecords: repository.NewHealthRecordRepository(pool),
			Tokens:        backend.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
			BcryptCost:    cfg.Auth.BcryptCost,
			Slots:         slots,
			Logger:        logger,
		})
	}
	logger.Info("no backend configured; running in demo mode")
	return nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
