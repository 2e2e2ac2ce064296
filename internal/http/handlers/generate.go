package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/permale/atelier/internal/domain"
	"github.com/permale/atelier/internal/middleware"
)

type generateRequest struct {
	ProjetID string `json:"projetId"`
}

type generateResponse struct {
	Success   bool     `json:"success"`
	ProjetID  string   `json:"projetId"`
	Images    []string `json:"images,omitempty"`
	Prompt    string   `json:"prompt,omitempty"`
	Generated int      `json:"generated,omitempty"`
	CostUSD   float64  `json:"cost,omitempty"`
}

// GenerateImages starts the candidate pipeline in the background and
// returns immediately. Clients poll the record (or the presentation
// endpoint) for results.
func (a *App) GenerateImages(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ProjetID) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "projetId is required")
		return
	}

	// Existence check up front so a bad ID fails the request, not the
	// detached run.
	if _, err := a.Projets.Get(r.Context(), req.ProjetID); err != nil {
		a.respondStoreError(w, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := a.Pipeline.GenerateCandidates(ctx, req.ProjetID); err != nil {
			a.Logger.Error().Err(err).Str("projet_id", req.ProjetID).Msg("generate: background run failed")
		}
	}()

	a.json(w, http.StatusAccepted, generateResponse{Success: true, ProjetID: req.ProjetID})
}

// GenerateImagesSync runs the candidate pipeline inline and returns the
// generated URLs. For callers that can afford to wait out the whole batch.
func (a *App) GenerateImagesSync(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ProjetID) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "projetId is required")
		return
	}

	result, err := a.Pipeline.GenerateCandidates(r.Context(), req.ProjetID)
	if err != nil {
		a.respondPipelineError(w, req.ProjetID, err)
		return
	}
	a.json(w, http.StatusOK, generateResponse{
		Success:   true,
		ProjetID:  req.ProjetID,
		Images:    result.URLs,
		Prompt:    result.Prompt,
		Generated: result.Generated,
		CostUSD:   result.CostUSD,
	})
}

type presentationGenerateRequest struct {
	ProjetID          string `json:"projetId"`
	ImageSelectionnee string `json:"imageSelectionnee"`
	TypeBijou         string `json:"typeBijou"`
	Description       string `json:"description"`
}

// GeneratePresentation persists the candidate selection and schedules the
// four presentation scenes in the background.
func (a *App) GeneratePresentation(w http.ResponseWriter, r *http.Request) {
	var req presentationGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.ProjetID) == "" || strings.TrimSpace(req.ImageSelectionnee) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "projetId and imageSelectionnee are required")
		return
	}

	selected := req.ImageSelectionnee
	if _, err := a.Projets.Update(r.Context(), req.ProjetID, domain.ProjetUpdate{
		ImageSelectionnee: &selected,
	}); err != nil {
		a.respondStoreError(w, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := a.Pipeline.GeneratePresentation(ctx, req.ProjetID); err != nil {
			a.Logger.Error().Err(err).Str("projet_id", req.ProjetID).Msg("generate: presentation run failed")
		}
	}()

	a.json(w, http.StatusAccepted, generateResponse{Success: true, ProjetID: req.ProjetID})
}

type webhookRequest struct {
	ProjetID   string `json:"projetId"`
	ImageIndex int    `json:"imageIndex"`
}

type webhookResponse struct {
	Success    bool   `json:"success"`
	ProjetID   string `json:"projetId"`
	ImageIndex int    `json:"imageIndex"`
	PublicURL  string `json:"publicUrl,omitempty"`
	Error      string `json:"error,omitempty"`
	NextImage  int    `json:"nextImage,omitempty"`
}

// GenerateImagesWebhook fills one candidate slot and chains the next one
// with a self-POST. Each hop stays short enough for platforms that cap
// request execution time. The chain continues even when a slot fails, so
// one bad generation never loses the remaining slots.
func (a *App) GenerateImagesWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ProjetID) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "projetId is required")
		return
	}
	if req.ImageIndex < 1 {
		req.ImageIndex = 1
	}
	if req.ImageIndex > domain.CandidateSlots {
		a.error(w, http.StatusBadRequest, "bad_request", "imageIndex out of range")
		return
	}

	resp := webhookResponse{ProjetID: req.ProjetID, ImageIndex: req.ImageIndex}
	url, err := a.Pipeline.GenerateSlot(r.Context(), req.ProjetID, req.ImageIndex)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.respondStoreError(w, err)
			return
		}
		a.Logger.Warn().Err(err).Str("projet_id", req.ProjetID).Int("slot", req.ImageIndex).Msg("generate: webhook slot failed")
		resp.Error = err.Error()
	} else {
		resp.Success = true
		resp.PublicURL = url
	}

	batch := a.WebhookBatch
	if batch < 1 || batch > domain.CandidateSlots {
		batch = domain.CandidateSlots - 1
	}
	if req.ImageIndex < batch {
		resp.NextImage = req.ImageIndex + 1
		a.chainNextSlot(middleware.RequestIDFromContext(r.Context()), req.ProjetID, resp.NextImage)
	}

	a.json(w, http.StatusOK, resp)
}

// chainNextSlot fires the self-POST for the next webhook hop. The request id
// rides along so one chain stays traceable across hops.
func (a *App) chainNextSlot(requestID, id string, slot int) {
	payload, err := json.Marshal(webhookRequest{ProjetID: id, ImageIndex: slot})
	if err != nil {
		return
	}
	endpoint := strings.TrimRight(a.BaseURL, "/") + "/generate-images-webhook"
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		if requestID != "" {
			req.Header.Set("X-Request-ID", requestID)
		}
		resp, err := a.httpClient().Do(req)
		if err != nil {
			a.Logger.Error().Err(err).Str("projet_id", id).Int("slot", slot).Msg("generate: webhook chain broke")
			return
		}
		resp.Body.Close()
	}()
}

func (a *App) respondPipelineError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "project not found")
	case errors.Is(err, domain.ErrRateLimited):
		a.error(w, http.StatusTooManyRequests, "rate_limited", "image provider rate limit reached, retry later")
	case errors.Is(err, domain.ErrContentPolicy):
		a.error(w, http.StatusBadRequest, "content_policy", "the description was rejected by the image provider")
	case errors.Is(err, domain.ErrUnsupportedInput):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrMissingConfig):
		a.Logger.Error().Err(err).Str("projet_id", id).Msg("generate: provider misconfigured")
		a.error(w, http.StatusInternalServerError, "provider_misconfigured", "image provider is not configured")
	default:
		a.Logger.Error().Err(err).Str("projet_id", id).Msg("generate: pipeline failed")
		a.error(w, http.StatusInternalServerError, "generation_failed", "image generation failed")
	}
}
