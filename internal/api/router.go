package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/slotwise/booking-api/internal/auth"
	"github.com/slotwise/booking-api/internal/booking"
	"github.com/slotwise/booking-api/internal/config"
	"github.com/slotwise/booking-api/internal/identity"
)

type RouterConfig struct {
	Identity *identity.Service
	Booking  *booking.Service
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Cfg      config.Config
	Version  string
}

func NewRouter(rc RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoverMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{rc.Cfg.CORSOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))

	general := NewRateLimiter(rc.Cfg.GeneralRPS, rc.Cfg.GeneralBurst)
	login := NewRateLimiter(rc.Cfg.LoginRPS, rc.Cfg.LoginBurst)
	r.Use(general.Middleware)

	// Health endpoints
	health := NewHealthHandler(rc.PgPool, rc.Redis, rc.Cfg.Env, rc.Version)
	r.Get("/health", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Post("/register", registerHandler(rc.Identity))
		r.With(login.Middleware).Post("/login", loginHandler(rc.Identity))
		r.Get("/slots", listSlotsHandler(rc.Booking))

		// Patient endpoints
		r.Group(func(r chi.Router) {
			r.Use(Authenticate(rc.Cfg.JWTSecret))
			r.Use(RequireRole(auth.RolePatient))
			r.Post("/book", bookHandler(rc.Booking))
			r.Get("/my-bookings", myBookingsHandler(rc.Booking))
		})

		// Admin endpoints
		r.Group(func(r chi.Router) {
			r.Use(Authenticate(rc.Cfg.JWTSecret))
			r.Use(RequireRole(auth.RoleAdmin))
			r.Get("/all-bookings", allBookingsHandler(rc.Booking))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "Route not found")
	})

	return r
}
