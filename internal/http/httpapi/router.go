package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"videostyler/internal/http/handlers"
	"videostyler/internal/infra"
	"videostyler/internal/middleware"
)

// NewRouter wires the HTTP surface: the public callback endpoint, the
// authenticated video routes and the static file space backing the durable
// storage URLs in development.
func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger, countries middleware.CountryResolver) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Logger(logger, countries),
		middleware.Locale,
	)

	r.Get("/v1/healthz", app.Health)

	// Callback authenticates via the shared-secret signature, not a bearer
	// token, and is exempt from the per-IP limit so provider retries are
	// never throttled away.
	r.Post("/v1/videos/callback", app.ProviderCallback)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
		r.Use(middleware.AuthJWT(cfg.JWTSecret))
		r.Post("/v1/videos/transform", app.VideosTransform)
		r.Get("/v1/videos", app.VideosHistory)
		r.Get("/v1/videos/{job_id}", app.VideoStatus)
	})

	if cfg.StoragePath != "" {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StoragePath)))
		r.Get("/static/*", fileServer.ServeHTTP)
	}

	return r
}
