package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/booking-api/internal/auth"
	"github.com/slotwise/booking-api/internal/booking"
	"github.com/slotwise/booking-api/internal/config"
	"github.com/slotwise/booking-api/internal/identity"
)

const testSecret = "test-secret"

// memUserRepo implements identity.Repository in memory.
type memUserRepo struct {
	mu      sync.Mutex
	byEmail map[string]*identity.User
	byID    map[uuid.UUID]*identity.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		byEmail: make(map[string]*identity.User),
		byID:    make(map[uuid.UUID]*identity.User),
	}
}

func (m *memUserRepo) CreateUser(ctx context.Context, u *identity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[u.Email]; exists {
		return identity.ErrEmailTaken
	}
	cp := *u
	cp.CreatedAt = time.Now()
	m.byEmail[u.Email] = &cp
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUserRepo) GetUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[email]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// memBookingRepo implements booking.Repository in memory, enforcing slot
// exclusivity under its mutex the way the unique index does in Postgres.
type memBookingRepo struct {
	mu      sync.Mutex
	slots   map[uuid.UUID]booking.Slot
	claimed map[uuid.UUID]booking.Booking // keyed by slot ID
	users   *memUserRepo
}

func newMemBookingRepo(users *memUserRepo) *memBookingRepo {
	return &memBookingRepo{
		slots:   make(map[uuid.UUID]booking.Slot),
		claimed: make(map[uuid.UUID]booking.Booking),
		users:   users,
	}
}

func (m *memBookingRepo) addSlot(start time.Time) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.slots[id] = booking.Slot{ID: id, StartAt: start, EndAt: start.Add(30 * time.Minute), CreatedAt: time.Now()}
	return id
}

func (m *memBookingRepo) ListSlots(ctx context.Context, from, to time.Time) ([]booking.SlotAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []booking.SlotAvailability
	for id, s := range m.slots {
		if s.StartAt.Before(from) || s.StartAt.After(to) {
			continue
		}
		_, taken := m.claimed[id]
		result = append(result, booking.SlotAvailability{Slot: s, Available: !taken})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartAt.Before(result[j].StartAt)
	})
	return result, nil
}

func (m *memBookingRepo) ClaimSlot(ctx context.Context, userID, slotID uuid.UUID) (*booking.BookingDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[slotID]
	if !ok {
		return nil, booking.ErrSlotNotFound
	}
	if _, taken := m.claimed[slotID]; taken {
		return nil, booking.ErrSlotTaken
	}
	b := booking.Booking{ID: uuid.New(), UserID: userID, SlotID: slotID, CreatedAt: time.Now()}
	m.claimed[slotID] = b
	return &booking.BookingDetail{Booking: b, Slot: slot}, nil
}

func (m *memBookingRepo) ListBookingsByUser(ctx context.Context, userID uuid.UUID) ([]booking.BookingDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []booking.BookingDetail
	for slotID, b := range m.claimed {
		if b.UserID == userID {
			result = append(result, booking.BookingDetail{Booking: b, Slot: m.slots[slotID]})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Booking.CreatedAt.After(result[j].Booking.CreatedAt)
	})
	return result, nil
}

func (m *memBookingRepo) ListAllBookings(ctx context.Context) ([]booking.AdminBookingDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []booking.AdminBookingDetail
	for slotID, b := range m.claimed {
		detail := booking.AdminBookingDetail{
			BookingDetail: booking.BookingDetail{Booking: b, Slot: m.slots[slotID]},
		}
		if u, err := m.users.GetUserByID(ctx, b.UserID); err == nil {
			detail.User = booking.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
		}
		result = append(result, detail)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Booking.CreatedAt.After(result[j].Booking.CreatedAt)
	})
	return result, nil
}

// passLocker runs claims without coordination; the repository stays the
// only safeguard, as it must be.
type passLocker struct{}

func (passLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type testEnv struct {
	router   http.Handler
	users    *memUserRepo
	bookings *memBookingRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newMemUserRepo()
	bookings := newMemBookingRepo(users)

	cfg := config.Config{
		Env:          "test",
		JWTSecret:    testSecret,
		TokenTTL:     7 * 24 * time.Hour,
		CORSOrigin:   "http://localhost:5173",
		GeneralRPS:   10000,
		GeneralBurst: 10000,
		LoginRPS:     10000,
		LoginBurst:   10000,
	}

	router := NewRouter(RouterConfig{
		Identity: identity.NewService(users, cfg.JWTSecret, cfg.TokenTTL),
		Booking:  booking.NewService(bookings, passLocker{}),
		Cfg:      cfg,
		Version:  "test",
	})

	return &testEnv{router: router, users: users, bookings: bookings}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// registerAndLogin creates a patient account through the API and returns
// its id and bearer token.
func (e *testEnv) registerAndLogin(t *testing.T, email string) (uuid.UUID, string) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/register", "", RegisterRequest{
		Name: "Test User", Email: email, Password: "testpass123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", email, rec.Code, rec.Body.String())
	}
	var reg RegisterResponse
	decodeBody(t, rec, &reg)
	userID, err := uuid.Parse(reg.UserID)
	if err != nil {
		t.Fatalf("register returned bad userId %q", reg.UserID)
	}

	rec = e.do(t, http.MethodPost, "/api/login", "", LoginRequest{Email: email, Password: "testpass123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", email, rec.Code, rec.Body.String())
	}
	var login LoginResponse
	decodeBody(t, rec, &login)

	return userID, login.Token
}

// adminToken creates an admin account directly in the store (registration
// only mints patients) and signs a token for it.
func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()

	hash, err := auth.HashPassword("Passw0rd!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	admin := &identity.User{
		ID:           uuid.New(),
		Name:         "Admin User",
		Email:        "admin@example.com",
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
	}
	if err := e.users.CreateUser(context.Background(), admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}

	token, err := auth.MakeToken(admin.ID.String(), auth.RoleAdmin, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("sign admin token: %v", err)
	}
	return token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rec.Body.String())
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	decodeBody(t, rec, &body)
	return body.Error.Code
}
