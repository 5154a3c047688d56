package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/booking-api/internal/auth"
)

type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         auth.Role
	CreatedAt    time.Time
}
