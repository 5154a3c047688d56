package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotwise/booking-api/internal/auth"
	"github.com/slotwise/booking-api/internal/db"
)

const (
	seedPassword = "Passw0rd!"
	slotDaysOut  = 7
	firstHourUTC = 9
	lastHourUTC  = 17 // exclusive; 16 half-hour slots per day
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	fakePatients := flag.Int("fake-patients", 0, "number of extra fake patient accounts to create")
	flag.Parse()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, "db/migrations/001_init.sql"); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	if err := seedUsers(ctx, pool); err != nil {
		log.Fatalf("seed users: %v", err)
	}

	if *fakePatients > 0 {
		gofakeit.Seed(time.Now().UnixNano())
		if err := seedFakePatients(ctx, pool, *fakePatients); err != nil {
			log.Fatalf("seed fake patients: %v", err)
		}
	}

	if err := seedSlots(ctx, pool); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Println("seed complete")
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) error {
	accounts := []struct {
		name  string
		email string
		role  auth.Role
	}{
		{"Admin User", "admin@example.com", auth.RoleAdmin},
		{"Patient User", "patient@example.com", auth.RolePatient},
	}

	hash, err := auth.HashPassword(seedPassword)
	if err != nil {
		return err
	}

	for _, a := range accounts {
		_, err := pool.Exec(ctx, `
			INSERT INTO users (id, name, email, password_hash, role, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (email) DO NOTHING
		`, uuid.New(), a.name, a.email, hash, string(a.role))
		if err != nil {
			return err
		}
		log.Printf("ensured %s account %s", a.role, a.email)
	}

	return nil
}

func seedFakePatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d fake patients", count)

	hash, err := auth.HashPassword(seedPassword)
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, name, email, password_hash, role, created_at)
			VALUES ($1, $2, $3, $4, 'patient', now())
			ON CONFLICT (email) DO NOTHING
		`, uuid.New(), gofakeit.Name(), gofakeit.Email(), hash)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("fake patients seeded")
	return nil
}

// seedSlots wipes existing slots and inserts half-hour slots from 09:00 to
// 17:00 UTC for each of the next seven days.
func seedSlots(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM bookings`); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM slots`); err != nil {
		return err
	}

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	inserted := 0
	for day := 0; day < slotDaysOut; day++ {
		date := today.AddDate(0, 0, day)
		for hour := firstHourUTC; hour < lastHourUTC; hour++ {
			for _, minute := range []int{0, 30} {
				startAt := date.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
				endAt := startAt.Add(30 * time.Minute)

				_, err := tx.Exec(ctx, `
					INSERT INTO slots (id, start_at, end_at, created_at)
					VALUES ($1, $2, $3, now())
				`, uuid.New(), startAt, endAt)
				if err != nil {
					return err
				}
				inserted++
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("created %d slots for the next %d days", inserted, slotDaysOut)
	return nil
}
