package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"carechat/config"
	"carechat/internal/database"
	"carechat/internal/repository"
	"carechat/internal/router"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := newLogger(cfg)

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Str("dialect", cfg.Database.Dialect).Msg("database")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("database handle")
	}

	// Nothing is connected yet, so state left by an unclean exit is stale.
	now := time.Now()
	if n, err := repository.NewSessionRepository(db).CloseAllActive(context.Background(), now); err != nil {
		log.Warn().Err(err).Msg("close stale sessions")
	} else if n > 0 {
		log.Info().Int64("sessions", n).Msg("closed stale sessions")
	}
	if _, err := repository.NewUserRepository(db).ResetOnline(context.Background(), now); err != nil {
		log.Warn().Err(err).Msg("reset online users")
	}

	handler, hub := router.Setup(cfg, db, log)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("env", cfg.Server.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
			// Hijacked WebSocket connections are not tracked by Shutdown.
			"ws-hub": func(ctx context.Context) error {
				hub.CloseAll()
				return nil
			},
		},
	)

	exitCode := <-wait
	// Disconnect handlers may still be writing until the hub drains.
	if err := sqlDB.Close(); err != nil {
		log.Error().Err(err).Msg("close database")
	}
	log.Info().Int("code", exitCode).Msg("server stopped")
	os.Exit(exitCode)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("service", "carechat").Logger()
}
