package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

type modificationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    string `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ModificationImage forwards an image-modification request to the
// automation webhook. The proxy exists so the browser talks only to this
// origin; the payload passes through untouched.
func (a *App) ModificationImage(w http.ResponseWriter, r *http.Request) {
	if a.ModificationWebhookURL == "" {
		a.error(w, http.StatusInternalServerError, "not_configured", "modification webhook is not configured")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.ModificationWebhookURL, bytes.NewReader(body))
	if err != nil {
		a.json(w, http.StatusInternalServerError, modificationResponse{Error: "failed to build webhook request"})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient().Do(req)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("modification: webhook unreachable")
		a.json(w, http.StatusInternalServerError, modificationResponse{Error: "failed to forward modification request"})
		return
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		a.Logger.Warn().Int("status", resp.StatusCode).Msg("modification: webhook rejected")
		a.json(w, http.StatusInternalServerError, modificationResponse{Error: "failed to forward modification request"})
		return
	}

	a.json(w, http.StatusOK, modificationResponse{
		Success: true,
		Message: "modification request forwarded",
		Data:    string(data),
	})
}
