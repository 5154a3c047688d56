package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlotNotFound = errors.New("slot not found")
	ErrSlotTaken    = errors.New("slot already booked")
	ErrUserNotFound = errors.New("user not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// ListSlots reads slots and their availability in a single query so
	// each call sees one consistent snapshot.
	ListSlots(ctx context.Context, from, to time.Time) ([]SlotAvailability, error)

	// ClaimSlot atomically creates the booking for a slot. Exclusivity is
	// enforced by the uniqueness constraint on bookings.slot_id.
	ClaimSlot(ctx context.Context, userID, slotID uuid.UUID) (*BookingDetail, error)

	ListBookingsByUser(ctx context.Context, userID uuid.UUID) ([]BookingDetail, error)
	ListAllBookings(ctx context.Context) ([]AdminBookingDetail, error)
}
