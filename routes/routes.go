package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/healthassess/secure-gateway/app"
	"github.com/healthassess/secure-gateway/models"
)

// SetupRoutes configures all application routes and middleware.
//
// Assessment routes omit the rate-limit and auth middleware on purpose: the
// gateway pipeline performs those stages itself in its fixed order. The auth
// routes are not gateway-dispatched, so they get the middleware chain
// directly, including brute-force rate limiting on login.
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(deps.Security.RequestID)
	r.Use(deps.Security.ClientIP)
	r.Use(deps.Security.SecurityHeaders)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", deps.HealthHandler.HandleHealth)
	r.Get("/health/ready", deps.HealthHandler.HandleReadiness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(deps.Security.Analyze)
			r.Use(deps.Security.RateLimit)
			r.Post("/login", deps.AuthHandler.HandleLogin)
			r.Post("/refresh", deps.AuthHandler.HandleRefresh)

			r.Group(func(r chi.Router) {
				r.Use(deps.Auth.RequireAuth)
				r.Post("/logout", deps.AuthHandler.HandleLogout)
				r.Get("/me", deps.AuthHandler.HandleMe)
			})
		})

		// Gateway-dispatched routes: the pipeline owns threat scanning,
		// rate limiting, auth and permission checks.
		r.Route("/assessments", func(r chi.Router) {
			r.Post("/", deps.AssessmentHandler.HandleCreate)
			r.Get("/", deps.AssessmentHandler.HandleHistory)
			r.Get("/{id}", deps.AssessmentHandler.HandleGet)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(deps.Security.Analyze)
			r.Use(deps.Security.RateLimit)
			r.Use(deps.Auth.RequireAuth)
			r.Use(deps.Auth.RequirePermission(models.PermAdminAccess))
			r.Get("/security/summary", deps.AdminHandler.HandleSecuritySummary)
			r.Get("/security/events", deps.AdminHandler.HandleThreatEvents)
			r.Get("/audit/trail", deps.AdminHandler.HandleAuditTrail)
			r.Get("/audit/retention", deps.AdminHandler.HandleRetentionReport)

			r.Group(func(r chi.Router) {
				r.Use(deps.Auth.RequirePermission(models.PermExportData))
				r.Get("/export/anonymized", deps.AdminHandler.HandleAnonymizedExport)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
