package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slotwise/booking-api/internal/api"
	"github.com/slotwise/booking-api/internal/booking"
	"github.com/slotwise/booking-api/internal/config"
	"github.com/slotwise/booking-api/internal/db"
	"github.com/slotwise/booking-api/internal/identity"
	redisclient "github.com/slotwise/booking-api/internal/redis"
)

const version = "0.1.0"

const migrationFile = "db/migrations/001_init.sql"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s", cfg.Env, cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	if _, err := os.Stat(migrationFile); err == nil {
		migCtx, cancelMig := context.WithTimeout(rootCtx, 30*time.Second)
		err = db.ApplyMigrations(migCtx, pgPool, migrationFile)
		cancelMig()
		if err != nil {
			log.Fatalf("migration error: %v", err)
		}
		log.Println("migrations applied")
	} else {
		log.Printf("migration file not found, skipping: %v", err)
	}

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	identitySvc := identity.NewService(identity.NewPgRepository(pgPool), cfg.JWTSecret, cfg.TokenTTL)

	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	bookingSvc := booking.NewService(booking.NewPgRepository(pgPool), locker)

	handler := api.NewRouter(api.RouterConfig{
		Identity: identitySvc,
		Booking:  bookingSvc,
		PgPool:   pgPool,
		Redis:    rdb,
		Cfg:      cfg,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()

	log.Println("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
