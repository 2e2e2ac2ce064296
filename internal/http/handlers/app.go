// Package handlers implements the HTTP surface of the intake service.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/permale/atelier/internal/auth"
	"github.com/permale/atelier/internal/cache"
	"github.com/permale/atelier/internal/domain"
	"github.com/permale/atelier/internal/infra"
	"github.com/permale/atelier/internal/orchestrator"
)

// Uploads persists client-supplied photos.
type Uploads interface {
	UploadImage(ctx context.Context, input, filename string) (string, error)
	UploadImages(ctx context.Context, inputs []string, baseFilename string) ([]string, error)
}

// Pipeline is the slice of the orchestrator the handlers drive.
type Pipeline interface {
	GenerateCandidates(ctx context.Context, id string) (*orchestrator.Result, error)
	GenerateSlot(ctx context.Context, id string, slot int) (string, error)
	GeneratePresentation(ctx context.Context, id string) (*orchestrator.Result, error)
}

// App aggregates the dependencies of all HTTP handlers.
type App struct {
	Logger   *infra.Logger
	Projets  domain.ProjetRepository
	Pipeline Pipeline
	Uploads  Uploads
	Verifier auth.Verifier

	// BaseURL is this service's public origin, used for self-POSTs in the
	// webhook chain.
	BaseURL string
	// WebhookBatch is how many candidate slots the webhook chain fills in
	// total.
	WebhookBatch int
	// IntakeWebhookURL, when set, receives a fire-and-forget notification
	// for each new projet.
	IntakeWebhookURL string
	// ModificationWebhookURL receives image-modification requests forwarded
	// server-side so the browser never talks to the automation host.
	ModificationWebhookURL string

	PresentationCache *cache.Cache[projetResponse]

	HTTPClient *http.Client
	Production bool
}

// NewPresentationCache builds the response cache used by the presentation
// lookup endpoint.
func NewPresentationCache(ttl time.Duration) *cache.Cache[projetResponse] {
	return cache.New[projetResponse](ttl)
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, codeStr, msg string) {
	a.json(w, code, map[string]string{
		"error":   codeStr,
		"details": msg,
	})
}

func (a *App) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return http.DefaultClient
}
