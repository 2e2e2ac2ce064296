// Package openai performs HTTP calls to the OpenAI image generation API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/permale/atelier/internal/domain"
	"github.com/permale/atelier/internal/infra"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "dall-e-3"
	defaultSize    = "1024x1024"
	defaultQuality = "standard"
)

// imageCostUSD is the per-image price by quality tier for the default model.
var imageCostUSD = map[string]float64{
	"standard": 0.04,
	"hd":       0.08,
}

// Options configures the OpenAI image client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	Quality        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the OpenAI images endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	quality    string
	httpClient *http.Client
	logger     *infra.Logger
}

// ImageRequest captures the inputs for a single image generation.
type ImageRequest struct {
	Prompt string
	// Quality overrides the client default when set ("standard" or "hd").
	Quality string
	// ReturnBase64 asks the API for inline image bytes instead of a
	// short-lived hosted URL.
	ReturnBase64 bool
}

// GeneratedImage is the normalized result from the API.
type GeneratedImage struct {
	URL     string
	DataURI string
	Model   string
	Quality string
	CostUSD float64
}

type generationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	Quality        string `json:"quality,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type generationResponse struct {
	Data []struct {
		URL           string `json:"url"`
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewClient constructs a client with defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	quality := strings.TrimSpace(opts.Quality)
	if quality == "" {
		quality = defaultQuality
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		quality:    quality,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// GenerateImage invokes the images endpoint once and returns a single image.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*GeneratedImage, error) {
	if !c.HasCredentials() {
		return nil, fmt.Errorf("openai: api key: %w", domain.ErrMissingConfig)
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("openai: prompt is required")
	}
	quality := strings.TrimSpace(req.Quality)
	if quality == "" {
		quality = c.quality
	}
	payload := generationRequest{
		Model:   c.model,
		Prompt:  prompt,
		N:       1,
		Size:    defaultSize,
		Quality: quality,
	}
	if req.ReturnBase64 {
		payload.ResponseFormat = "b64_json"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, c.classifyError(resp.StatusCode, raw)
	}

	var decoded generationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(decoded.Data) == 0 {
		return nil, fmt.Errorf("openai: empty response data: %w", domain.ErrProviderFailure)
	}

	out := &GeneratedImage{
		Model:   c.model,
		Quality: quality,
		CostUSD: imageCostUSD[quality],
	}
	first := decoded.Data[0]
	switch {
	case first.B64JSON != "":
		out.DataURI = "data:image/png;base64," + first.B64JSON
	case first.URL != "":
		if _, err := url.Parse(first.URL); err != nil {
			return nil, fmt.Errorf("openai: invalid image url: %w", domain.ErrProviderFailure)
		}
		out.URL = first.URL
	default:
		return nil, fmt.Errorf("openai: response has neither url nor data: %w", domain.ErrProviderFailure)
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("quality", quality).
		Float64("cost_usd", out.CostUSD).
		Msg("openai: generated image")
	return out, nil
}

// classifyError maps API failures onto domain sentinels so callers can
// decide between retrying, surfacing to the user, or giving up.
func (c *Client) classifyError(status int, raw []byte) error {
	var detail errorResponse
	message := strings.TrimSpace(string(raw))
	code := ""
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
		message = detail.Error.Message
		code = detail.Error.Code
	}
	lowered := strings.ToLower(message + " " + code)
	switch {
	case status == http.StatusTooManyRequests || strings.Contains(lowered, "rate limit"):
		return fmt.Errorf("openai: %s: %w", message, domain.ErrRateLimited)
	case strings.Contains(lowered, "content_policy") || strings.Contains(lowered, "moderation") || strings.Contains(lowered, "safety"):
		return fmt.Errorf("openai: %s: %w", message, domain.ErrContentPolicy)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("openai: %s: %w", message, domain.ErrMissingConfig)
	default:
		return fmt.Errorf("openai: status %d: %s: %w", status, message, domain.ErrProviderFailure)
	}
}
