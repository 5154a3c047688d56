package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) ListSlots(ctx context.Context, from, to time.Time) ([]SlotAvailability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.start_at, s.end_at, s.created_at, b.id IS NULL AS available
		FROM slots s
		LEFT JOIN bookings b ON b.slot_id = s.id
		WHERE s.start_at >= $1 AND s.start_at <= $2
		ORDER BY s.start_at ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SlotAvailability
	for rows.Next() {
		var sa SlotAvailability
		if err := rows.Scan(&sa.ID, &sa.StartAt, &sa.EndAt, &sa.CreatedAt, &sa.Available); err != nil {
			return nil, err
		}
		result = append(result, sa)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// ClaimSlot runs the claim inside a single transaction. The read-then-check
// is the optimistic fast path; the insert hitting the unique index on
// bookings.slot_id is the authoritative arbiter when claims race.
func (r *PgRepository) ClaimSlot(ctx context.Context, userID, slotID uuid.UUID) (*BookingDetail, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var slot Slot
	var existingBooking *uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT s.id, s.start_at, s.end_at, s.created_at, b.id
		FROM slots s
		LEFT JOIN bookings b ON b.slot_id = s.id
		WHERE s.id = $1
	`, slotID).Scan(&slot.ID, &slot.StartAt, &slot.EndAt, &slot.CreatedAt, &existingBooking)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("load slot: %w", err)
	}
	if existingBooking != nil {
		return nil, ErrSlotTaken
	}

	var b Booking
	err = tx.QueryRow(ctx, `
		INSERT INTO bookings (id, user_id, slot_id, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, user_id, slot_id, created_at
	`, uuid.New(), userID, slotID).Scan(&b.ID, &b.UserID, &b.SlotID, &b.CreatedAt)
	if err != nil {
		return nil, classifyClaimError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classifyClaimError(err)
	}

	return &BookingDetail{Booking: b, Slot: slot}, nil
}

// classifyClaimError turns constraint violations surfaced by the storage
// layer into the typed outcomes callers branch on.
func classifyClaimError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			// a concurrent claim won the race
			return ErrSlotTaken
		case foreignKeyViolation:
			if pgErr.ConstraintName == "bookings_user_id_fkey" {
				return ErrUserNotFound
			}
			return ErrSlotNotFound
		}
	}
	return fmt.Errorf("create booking: %w", err)
}

func (r *PgRepository) ListBookingsByUser(ctx context.Context, userID uuid.UUID) ([]BookingDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.user_id, b.slot_id, b.created_at,
		       s.id, s.start_at, s.end_at, s.created_at
		FROM bookings b
		JOIN slots s ON s.id = b.slot_id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BookingDetail
	for rows.Next() {
		var d BookingDetail
		err := rows.Scan(
			&d.Booking.ID, &d.UserID, &d.SlotID, &d.Booking.CreatedAt,
			&d.Slot.ID, &d.Slot.StartAt, &d.Slot.EndAt, &d.Slot.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListAllBookings(ctx context.Context) ([]AdminBookingDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.user_id, b.slot_id, b.created_at,
		       s.id, s.start_at, s.end_at, s.created_at,
		       u.id, u.name, u.email
		FROM bookings b
		JOIN slots s ON s.id = b.slot_id
		JOIN users u ON u.id = b.user_id
		ORDER BY b.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AdminBookingDetail
	for rows.Next() {
		var d AdminBookingDetail
		err := rows.Scan(
			&d.Booking.ID, &d.UserID, &d.SlotID, &d.Booking.CreatedAt,
			&d.Slot.ID, &d.Slot.StartAt, &d.Slot.EndAt, &d.Slot.CreatedAt,
			&d.User.ID, &d.User.Name, &d.User.Email,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
