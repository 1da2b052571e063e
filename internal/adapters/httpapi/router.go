package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/kinship-labs/parent-match-api/internal/platform/metrics"
)

type RouterOptions struct {
	// AuthMiddleware guards every /api route except /api/auth/*. Nil means dev auth
	// with no default subject.
	AuthMiddleware func(http.Handler) http.Handler

	Logger *slog.Logger

	// CORSAllowedOrigins enables CORS when non-empty.
	CORSAllowedOrigins []string

	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}

// NewRouter constructs the API HTTP router.
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	if opts.AuthMiddleware == nil {
		opts.AuthMiddleware = NewDevAuthMiddleware("")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observe(opts.Logger))
	r.Use(middleware.Recoverer)

	// Infra endpoints are unauthenticated.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "ROUTE_NOT_FOUND", "no such route", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.register)
		r.Post("/auth/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(opts.AuthMiddleware)

			r.Get("/auth/me", s.me)

			r.Post("/profiles", s.createProfile)
			r.Get("/profiles/me", s.getMyProfile)
			r.Patch("/profiles/me", s.updateMyProfile)
			r.Get("/profiles/nearby", s.nearbyProfiles)
			r.Get("/profiles/candidates", s.candidates)
			r.Get("/profiles/{profileId}", s.getProfile)
			r.Get("/profiles/{profileId}/compatibility", s.compatibility)

			r.Get("/matches", s.listMatches)
			r.Post("/matches/{profileId}", s.requestMatch)
			r.Put("/matches/{matchId}/accept", s.acceptMatch)
			r.Put("/matches/{matchId}/reject", s.rejectMatch)

			r.Post("/messages", s.sendMessage)
			r.Get("/messages/conversations/{profileId}", s.conversation)
			r.Put("/messages/{messageId}/read", s.markRead)
			r.Get("/messages/unread/count", s.unreadCount)

			r.Post("/events", s.createEvent)
			r.Get("/events/upcoming", s.upcomingEvents)
			r.Get("/events/nearby", s.nearbyEvents)
			r.Get("/events/organized", s.organizedEvents)
			r.Get("/events/participating", s.participatingEvents)
			r.Get("/events/{eventId}", s.getEvent)
			r.Patch("/events/{eventId}", s.updateEvent)
			r.Delete("/events/{eventId}", s.deleteEvent)
			r.Post("/events/{eventId}/join", s.joinEvent)
			r.Post("/events/{eventId}/leave", s.leaveEvent)
		})
	})

	if len(opts.CORSAllowedOrigins) == 0 {
		return r
	}
	return cors.New(cors.Options{
		AllowedOrigins: opts.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Debug-Subject", middleware.RequestIDHeader},
		MaxAge:         300,
	}).Handler(r)
}

// observe records one log line and one metrics sample per request, labelled by route pattern.
func observe(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				route := ""
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					route = rctx.RoutePattern()
				}
				elapsed := time.Since(start)
				metrics.ObserveHTTPRequest(r.Method, route, status, elapsed)

				level := slog.LevelInfo
				if status >= http.StatusInternalServerError {
					level = slog.LevelError
				}
				logger.LogAttrs(r.Context(), level, "http request",
					slog.String("requestId", middleware.GetReqID(r.Context())),
					slog.String("method", r.Method),
					slog.String("route", route),
					slog.String("path", r.URL.Path),
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", elapsed),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
