package api

import (
	"time"

	"github.com/slotwise/booking-api/internal/booking"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

type SlotResponse struct {
	ID        string `json:"id"`
	StartAt   string `json:"startAt"`
	EndAt     string `json:"endAt"`
	Available bool   `json:"available"`
}

type BookRequest struct {
	SlotID string `json:"slotId"`
}

type SlotSummary struct {
	ID      string `json:"id"`
	StartAt string `json:"startAt"`
	EndAt   string `json:"endAt"`
}

type BookingResponse struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	SlotID    string      `json:"slotId"`
	CreatedAt string      `json:"createdAt"`
	Slot      SlotSummary `json:"slot"`
}

type UserSummaryResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type AdminBookingResponse struct {
	BookingResponse
	User UserSummaryResponse `json:"user"`
}

// isoUTC renders timestamps the way the API promises them: ISO-8601 with
// millisecond precision in UTC.
func isoUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func toSlotResponse(sa booking.SlotAvailability) SlotResponse {
	return SlotResponse{
		ID:        sa.ID.String(),
		StartAt:   isoUTC(sa.StartAt),
		EndAt:     isoUTC(sa.EndAt),
		Available: sa.Available,
	}
}

func toBookingResponse(d booking.BookingDetail) BookingResponse {
	return BookingResponse{
		ID:        d.Booking.ID.String(),
		UserID:    d.UserID.String(),
		SlotID:    d.SlotID.String(),
		CreatedAt: isoUTC(d.Booking.CreatedAt),
		Slot: SlotSummary{
			ID:      d.Slot.ID.String(),
			StartAt: isoUTC(d.Slot.StartAt),
			EndAt:   isoUTC(d.Slot.EndAt),
		},
	}
}

func toAdminBookingResponse(d booking.AdminBookingDetail) AdminBookingResponse {
	return AdminBookingResponse{
		BookingResponse: toBookingResponse(d.BookingDetail),
		User: UserSummaryResponse{
			ID:    d.User.ID.String(),
			Name:  d.User.Name,
			Email: d.User.Email,
		},
	}
}
