package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hemoconecta/donor-portal-api/internal/platform/metrics"
)

type RouterOptions struct {
	// AuthMiddleware guards the /admin routes. Nil rejects every admin request with 401.
	AuthMiddleware func(http.Handler) http.Handler

	// AdminSubjects optionally restricts /admin to these subjects.
	AdminSubjects []string

	CORSAllowedOrigins []string

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// NewRouter constructs the API HTTP router.
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auth := opts.AuthMiddleware
	if auth == nil {
		auth = denyAll
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewAccessLogMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(opts.Metrics.Middleware)
	if len(opts.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", IdempotencyKeyHeader, SubjectHeader},
			MaxAge:         300,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	// Infra endpoints; unauthenticated.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Post("/donors", s.RegisterDonor)
	r.Get("/donors/{donorId}", s.GetDonor)
	r.Patch("/donors/{donorId}", s.UpdateDonor)
	r.Get("/donors/{donorId}/participations", s.ListDonorParticipations)

	r.Get("/campaigns", s.ListCampaigns)
	r.Get("/campaigns/{campaignId}", s.GetCampaign)
	r.Post("/campaigns/{campaignId}/participants", s.JoinCampaign)
	r.Delete("/campaigns/{campaignId}/participants/{donorId}", s.LeaveCampaign)

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth)
		r.Use(RequireAdmin(opts.AdminSubjects))

		r.Post("/campaigns", s.CreateCampaign)
		r.Patch("/campaigns/{campaignId}", s.UpdateCampaign)
		r.Delete("/campaigns/{campaignId}", s.DeleteCampaign)

		r.Post("/segments/preview", s.PreviewSegment)
		r.Post("/broadcasts", s.SendBroadcast)
		r.Post("/emails", s.SendEmail)
	})

	return r
}

// NewAccessLogMiddleware logs one line per request.
func NewAccessLogMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("component", "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
