package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/slotwise/booking-api/internal/booking"
	"github.com/slotwise/booking-api/internal/identity"
)

const minPasswordLength = 8

func registerHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, CodeValidationError, "could not parse JSON")
			return
		}

		if msg := validateRegister(req); msg != "" {
			writeError(w, http.StatusBadRequest, CodeValidationError, msg)
			return
		}

		u, err := svc.Register(r.Context(), strings.TrimSpace(req.Name), normalizeEmail(req.Email), req.Password)
		if err != nil {
			if errors.Is(err, identity.ErrEmailTaken) {
				writeError(w, http.StatusBadRequest, CodeUserExists, "User with this email already exists")
				return
			}
			internalError(w, r, "register", err)
			return
		}

		writeJSON(w, http.StatusCreated, RegisterResponse{
			Message: "User created successfully",
			UserID:  u.ID.String(),
		})
	}
}

func loginHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, CodeValidationError, "could not parse JSON")
			return
		}

		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, CodeValidationError, "email and password are required")
			return
		}

		token, role, err := svc.Login(r.Context(), normalizeEmail(req.Email), req.Password)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password")
				return
			}
			internalError(w, r, "login", err)
			return
		}

		writeJSON(w, http.StatusOK, LoginResponse{Token: token, Role: string(role)})
	}
}

func listSlotsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots, err := svc.ListAvailableSlots(r.Context(), r.URL.Query().Get("from"), r.URL.Query().Get("to"))
		if err != nil {
			if errors.Is(err, booking.ErrInvalidWindow) {
				writeError(w, http.StatusBadRequest, CodeValidationError, err.Error())
				return
			}
			internalError(w, r, "list slots", err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, toSlotResponse(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func bookHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := GetIdentity(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Access token required")
			return
		}

		var req BookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, CodeValidationError, "could not parse JSON")
			return
		}

		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeValidationError, "slotId must be a valid UUID")
			return
		}

		detail, err := svc.ClaimSlot(r.Context(), ident.UserID, slotID)
		if err != nil {
			handleClaimError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBookingResponse(*detail))
	}
}

func handleClaimError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, booking.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, CodeSlotNotFound, "Slot not found")
	case errors.Is(err, booking.ErrSlotTaken), errors.Is(err, booking.ErrSlotBusy):
		writeError(w, http.StatusConflict, CodeSlotTaken, "Slot already booked")
	case errors.Is(err, booking.ErrUserNotFound):
		writeError(w, http.StatusForbidden, CodeForbidden, "Unknown user")
	default:
		internalError(w, r, "book slot", err)
	}
}

func myBookingsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := GetIdentity(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Access token required")
			return
		}

		bookings, err := svc.ListMyBookings(r.Context(), ident.UserID)
		if err != nil {
			internalError(w, r, "list my bookings", err)
			return
		}

		resp := make([]BookingResponse, 0, len(bookings))
		for _, b := range bookings {
			resp = append(resp, toBookingResponse(b))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func allBookingsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookings, err := svc.ListAllBookings(r.Context())
		if err != nil {
			internalError(w, r, "list all bookings", err)
			return
		}

		resp := make([]AdminBookingResponse, 0, len(bookings))
		for _, b := range bookings {
			resp = append(resp, toAdminBookingResponse(b))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func validateRegister(req RegisterRequest) string {
	if strings.TrimSpace(req.Name) == "" {
		return "name is required"
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		return "email is required"
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || !strings.Contains(email[at:], ".") {
		return "email is not valid"
	}
	if len(req.Password) < minPasswordLength {
		return "password must be at least 8 characters"
	}
	return ""
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
