package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/booking-api/internal/auth"
)

// probe records the identity the middleware chain handed to the handler.
func probe(got *Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ident, ok := GetIdentity(r.Context()); ok {
			*got = ident
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticateMissingToken(t *testing.T) {
	var got Identity
	h := Authenticate(testSecret)(probe(&got))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
	if code := errorCode(t, rec); code != CodeUnauthorized {
		t.Errorf("error code %q, want %q", code, CodeUnauthorized)
	}
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	userID := uuid.New()
	expired, err := auth.MakeToken(userID.String(), auth.RolePatient, testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("make token: %v", err)
	}
	wrongSecret, err := auth.MakeToken(userID.String(), auth.RolePatient, "other-secret", time.Hour)
	if err != nil {
		t.Fatalf("make token: %v", err)
	}
	badUserID, err := auth.MakeToken("not-a-uuid", auth.RolePatient, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("make token: %v", err)
	}

	cases := []struct {
		name   string
		header string
	}{
		{"garbage", "Bearer not.a.token"},
		{"expired", "Bearer " + expired},
		{"wrong secret", "Bearer " + wrongSecret},
		{"bad user id claim", "Bearer " + badUserID},
		{"wrong scheme", "Basic " + expired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got Identity
			h := Authenticate(testSecret)(probe(&got))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tc.header)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			want := http.StatusForbidden
			if tc.name == "wrong scheme" {
				want = http.StatusUnauthorized
			}
			if rec.Code != want {
				t.Fatalf("status %d, want %d", rec.Code, want)
			}
			if got.UserID != uuid.Nil {
				t.Errorf("handler ran with identity %v", got)
			}
		})
	}
}

func TestAuthenticateInjectsIdentity(t *testing.T) {
	userID := uuid.New()
	token, err := auth.MakeToken(userID.String(), auth.RoleAdmin, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("make token: %v", err)
	}

	var got Identity
	h := Authenticate(testSecret)(probe(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if got.UserID != userID {
		t.Errorf("identity user = %s, want %s", got.UserID, userID)
	}
	if got.Role != auth.RoleAdmin {
		t.Errorf("identity role = %q, want %q", got.Role, auth.RoleAdmin)
	}
}

func TestRequireRole(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("matching role passes", func(t *testing.T) {
		h := RequireRole(auth.RoleAdmin)(handler)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := context.WithValue(req.Context(), identityKey, Identity{UserID: uuid.New(), Role: auth.RoleAdmin})
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status %d, want 204", rec.Code)
		}
	})

	t.Run("mismatched role forbidden", func(t *testing.T) {
		h := RequireRole(auth.RoleAdmin)(handler)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := context.WithValue(req.Context(), identityKey, Identity{UserID: uuid.New(), Role: auth.RolePatient})
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status %d, want 403", rec.Code)
		}
		if code := errorCode(t, rec); code != CodeForbidden {
			t.Errorf("error code %q, want %q", code, CodeForbidden)
		}
	})

	t.Run("no identity unauthorized", func(t *testing.T) {
		h := RequireRole(auth.RoleAdmin)(handler)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status %d, want 401", rec.Code)
		}
	})
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Bearer", ""},
		{"Token abc", ""},
		{"Bearer  abc", "abc"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		if got := bearerToken(req); got != tc.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("burst of 2 should allow first two requests")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("third request within burst window should be denied")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("a different IP has its own bucket")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:12345"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status %d, want 429", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != CodeRateLimited {
		t.Errorf("error code %q, want %q", body.Error.Code, CodeRateLimited)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if seen == "" {
			t.Error("request id not set in context")
		}
		if hdr := rec.Header().Get("X-Request-ID"); hdr != seen {
			t.Errorf("header %q != context value %q", hdr, seen)
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "client-supplied")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if seen != "client-supplied" {
			t.Errorf("request id %q, want client-supplied", seen)
		}
	})
}
