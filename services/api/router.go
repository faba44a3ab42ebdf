package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pmgmt/pkg/render"
)

// Routes constructs the chi router containing all endpoints.
func (a *API) Routes() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(a.config.RequestTimeout))

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.metrics.registry, promhttp.HandlerOpts{}))

	static, err := render.Static()
	if err != nil {
		return nil, err
	}
	r.Handle("/static/*", http.StripPrefix("/static/", static))

	r.Group(func(r chi.Router) {
		if a.config.RateLimit > 0 {
			r.Use(httprate.LimitByIP(a.config.RateLimit, time.Minute))
		}

		r.With(a.limitBody, a.requireAPIKey).Post("/api/updates", a.handleSubmitUpdates)

		r.Route("/api/v1", func(r chi.Router) {
			if len(a.config.AllowedOrigins) > 0 {
				r.Use(cors.Handler(corsOptions(a.config.AllowedOrigins)))
			}
			r.Use(a.requireDashboardAuth)

			r.Get("/hosts", a.handleListHosts)
			r.Post("/hosts", a.handleCreateHost)
			r.Get("/hosts/{hostID}", a.handleGetHost)
			r.Post("/hosts/{hostID}/rotate-key", a.handleRotateHostKey)
			r.Delete("/hosts/{hostID}", a.handleDeleteHost)
			r.Get("/audit", a.handleAuditLog)
		})

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/dashboard/", http.StatusSeeOther)
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Use(a.requireDashboardAuth)

			r.Get("/", a.handleDashboardHome)
			r.Get("/host/{hostID}", a.handleDashboardHost)
			r.Get("/hosts", a.handleDashboardHosts)
			r.Post("/hosts/add", a.handleDashboardAddHost)
			r.Post("/hosts/{hostID}/regenerate-key", a.handleDashboardRegenerateKey)
			r.Post("/hosts/{hostID}/delete", a.handleDashboardDeleteHost)
		})
	})

	return r, nil
}

// corsOptions is only applied when origins are configured; without them the
// JSON API answers no cross-origin requests.
func corsOptions(allowed []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}
}

func (a *API) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodyBytes)
		next.ServeHTTP(w, r)
	})
}
