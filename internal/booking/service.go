package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/slotwise/booking-api/internal/redis"
)

// ErrSlotBusy means another claim currently holds the slot lock. Callers
// treat it like a lost race on the slot.
var ErrSlotBusy = errors.New("slot is currently being booked, please retry")

type Service struct {
	repo   Repository
	locker redisclient.Locker
}

func NewService(repo Repository, locker redisclient.Locker) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
	}
}

// ClaimSlot books a slot for a user, at most once per slot. The Redis lock
// serializes concurrent attempts on the same slot so losers fail fast
// without a round trip to Postgres; the database uniqueness constraint
// still decides the outcome if the lock ever lets two claims through.
func (s *Service) ClaimSlot(ctx context.Context, userID, slotID uuid.UUID) (*BookingDetail, error) {
	var created *BookingDetail

	err := s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		detail, err := s.repo.ClaimSlot(lockCtx, userID, slotID)
		if err != nil {
			return err
		}
		created = detail
		return nil
	})

	if err != nil {
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			return nil, ErrSlotBusy
		case errors.Is(err, redisclient.ErrLockUnavailable):
			// the lock backend is down; the uniqueness constraint still
			// protects the claim, so go to the database directly
			log.Printf("slot lock unavailable for %s, claiming without lock: %v", slotID, err)
			detail, claimErr := s.repo.ClaimSlot(ctx, userID, slotID)
			if claimErr != nil {
				if isClaimOutcome(claimErr) {
					return nil, claimErr
				}
				return nil, fmt.Errorf("claim slot: %w", claimErr)
			}
			return detail, nil
		case isClaimOutcome(err):
			return nil, err
		default:
			return nil, fmt.Errorf("claim slot: %w", err)
		}
	}

	return created, nil
}

func isClaimOutcome(err error) bool {
	return errors.Is(err, ErrSlotNotFound) ||
		errors.Is(err, ErrSlotTaken) ||
		errors.Is(err, ErrUserNotFound)
}

// ListAvailableSlots returns every slot in the requested window together
// with its availability, ordered by start time.
func (s *Service) ListAvailableSlots(ctx context.Context, fromStr, toStr string) ([]SlotAvailability, error) {
	from, to, err := SlotWindow(fromStr, toStr, time.Now())
	if err != nil {
		return nil, err
	}

	slots, err := s.repo.ListSlots(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

func (s *Service) ListMyBookings(ctx context.Context, userID uuid.UUID) ([]BookingDetail, error) {
	bookings, err := s.repo.ListBookingsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings by user: %w", err)
	}
	return bookings, nil
}

func (s *Service) ListAllBookings(ctx context.Context) ([]AdminBookingDetail, error) {
	bookings, err := s.repo.ListAllBookings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list all bookings: %w", err)
	}
	return bookings, nil
}
