// Package httpapi assembles the chi router for the intake service.
package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/permale/atelier/internal/http/handlers"
	"github.com/permale/atelier/internal/middleware"
)

// NewRouter mounts the public and cookie-protected routes.
func NewRouter(app *handlers.App, loginRateLimit int) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer, chimw.Logger)

	// Health
	r.Get("/v1/healthz", app.Health)

	// Public surface: login, the presentation page lookup, and the
	// self-POSTed generation webhook.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(loginRateLimit, time.Minute))
		r.Post("/auth/login", app.Login)
	})
	r.Post("/auth/logout", app.Logout)
	r.Get("/projets/presentation", app.ProjetsPresentation)
	r.Post("/generate-images-webhook", app.GenerateImagesWebhook)
	r.Post("/modification-image", app.ModificationImage)

	// Staff surface behind the session cookie.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/projets", app.ProjetsGet)
		r.Post("/projets", app.ProjetsCreate)
		r.Put("/projets", app.ProjetsUpdate)
		r.Post("/generate-images", app.GenerateImages)
		r.Post("/generate-images/sync", app.GenerateImagesSync)
		r.Post("/generate-presentation", app.GeneratePresentation)
	})

	return r
}
