package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/booking-api/internal/auth"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type Service struct {
	repo     Repository
	secret   string
	tokenTTL time.Duration
}

func NewService(repo Repository, secret string, tokenTTL time.Duration) *Service {
	return &Service{
		repo:     repo,
		secret:   secret,
		tokenTTL: tokenTTL,
	}
}

// Register creates a patient account. The email pre-check gives a clean
// error on the common path; the unique index on users.email decides the
// race when two registrations arrive together.
func (s *Service) Register(ctx context.Context, name, email, password string) (*User, error) {
	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         auth.RolePatient,
	}

	if err := s.repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return u, nil
}

// Login verifies credentials and issues a signed bearer token. Unknown
// email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (token string, role auth.Role, err error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", "", ErrInvalidCredentials
		}
		return "", "", fmt.Errorf("load user: %w", err)
	}

	if !auth.CheckPassword(u.PasswordHash, password) {
		return "", "", ErrInvalidCredentials
	}

	token, err = auth.MakeToken(u.ID.String(), u.Role, s.secret, s.tokenTTL)
	if err != nil {
		return "", "", fmt.Errorf("sign token: %w", err)
	}

	return token, u.Role, nil
}
