package booking

import (
	"time"

	"github.com/google/uuid"
)

type Slot struct {
	ID        uuid.UUID
	StartAt   time.Time
	EndAt     time.Time
	CreatedAt time.Time
}

// SlotAvailability is a Slot plus whether it still has no booking.
type SlotAvailability struct {
	Slot
	Available bool
}

type Booking struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	SlotID    uuid.UUID
	CreatedAt time.Time
}

type BookingDetail struct {
	Booking
	Slot Slot
}

type UserSummary struct {
	ID    uuid.UUID
	Name  string
	Email string
}

type AdminBookingDetail struct {
	BookingDetail
	User UserSummary
}
