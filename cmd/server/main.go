package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/go-garage/internal/auth"
	"github.com/diewo77/go-garage/internal/config"
	"github.com/diewo77/go-garage/internal/db"
	"github.com/diewo77/go-garage/internal/lock"
	"github.com/diewo77/go-garage/internal/logger"
	"github.com/diewo77/go-garage/internal/metrics"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var (
	migrateOnlyFlag  = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag     = flag.Bool("seed-only", false, "Run DB seed and exit")
	hashPasswordFlag = flag.String("hash-password", "", "Print a bcrypt hash for ADMIN_PASSWORD_HASH and exit")
)

func main() {
	flag.Parse()

	if *hashPasswordFlag != "" {
		hash, err := auth.HashPassword(*hashPasswordFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init("garage", cfg.App.Dev)
	logger.SetLevel(cfg.Log.Level)

	// honour incoming traceparent headers so request logs join upstream traces
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	log := logger.Logger

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	if *migrateOnlyFlag {
		if err := db.Migrate(conn, cfg.Database, cfg.App.Migrations); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		log.Info().Msg("migrations completed successfully")
		return
	}

	if *seedOnlyFlag {
		if err := db.Seed(conn); err != nil {
			log.Fatal().Err(err).Msg("seeding failed")
		}
		log.Info().Msg("seeding completed successfully")
		return
	}

	if err := db.Migrate(conn, cfg.Database, cfg.App.Migrations); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if cfg.App.Seed {
		if err := db.Seed(conn); err != nil {
			log.Fatal().Err(err).Msg("seeding failed")
		}
	}

	locker, closeLocker, err := lock.Connect(ctx, cfg.Redis.Addr, cfg.Redis.LockTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer func() { _ = closeLocker() }()

	app := NewApp(cfg, conn, locker, metrics.New())
	if !app.gate.Enabled() {
		log.Warn().Msg("ADMIN_PASSWORD_HASH not set; admin is not protected")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Bool("dev", cfg.App.Dev).Str("pdf_engine", cfg.PDF.Engine).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	if sqlDB, err := conn.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server stopped gracefully")
}
