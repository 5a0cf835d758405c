package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/example/ride-sharing/internal/config"
	"github.com/example/ride-sharing/internal/directory"
	"github.com/example/ride-sharing/internal/dispatch"
	"github.com/example/ride-sharing/internal/engine"
	"github.com/example/ride-sharing/internal/events"
	httpapi "github.com/example/ride-sharing/internal/http"
	"github.com/example/ride-sharing/internal/logging"
	"github.com/example/ride-sharing/internal/storage"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	opts := []engine.Option{engine.WithLogger(logger)}

	var store storage.RideStore = storage.NewMemoryStore()
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable, archiving in memory", "error", err)
		} else {
			defer ps.Close()
			if cfg.RunMigrations {
				migrate(ps, logger)
			}
			store = ps
		}
	}
	opts = append(opts, engine.WithStore(store))

	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		opts = append(opts, engine.WithPublisher(kp))
	}

	wsreg := dispatch.NewWSRegistry()
	opts = append(opts, engine.WithNotifier(dispatch.NewPushNotifier(cfg.NotifyWebhook, wsreg)))

	dir := directory.NewMemory()
	eng := engine.New(dir, opts...)
	api := httpapi.NewServer(eng, dir, wsreg, logger)
	api.DefaultSeats = cfg.SelectDefaultSeats

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("ride-sharing listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("ride-sharing stopped")
}

// migrate applies migrations/001_create_rides.sql when present.
func migrate(ps *storage.PostgresStore, logger *slog.Logger) {
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_rides.sql"))
	if err != nil {
		logger.Warn("migration file not readable", "error", err)
		return
	}
	if err := ps.Migrate(context.Background(), string(b)); err != nil {
		logger.Error("migration exec error", "error", err)
		return
	}
	logger.Info("migration applied", "file", "001_create_rides.sql")
}
