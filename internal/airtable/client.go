// Package airtable implements the projet repository over the Airtable REST
// API.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/permale/atelier/internal/domain"
	"github.com/permale/atelier/internal/infra"
	"github.com/permale/atelier/internal/slug"
)

const defaultBaseURL = "https://api.airtable.com/v0"

// Options configures the Airtable client.
type Options struct {
	APIKey  string
	BaseID  string
	Table   string
	BaseURL string
	// PublicBaseURL is the site origin used to mint presentation URLs on
	// record creation.
	PublicBaseURL  string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client talks to one Airtable table and implements domain.ProjetRepository.
type Client struct {
	apiKey        string
	baseID        string
	table         string
	baseURL       string
	publicBaseURL string
	httpClient    *http.Client
	logger        *infra.Logger

	// now stamps Date de creation; replaceable in tests.
	now func() time.Time
}

type recordEnvelope struct {
	Fields map[string]any `json:"fields"`
}

type listResponse struct {
	Records []record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a client with defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
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
		apiKey:        strings.TrimSpace(opts.APIKey),
		baseID:        strings.TrimSpace(opts.BaseID),
		table:         strings.TrimSpace(opts.Table),
		baseURL:       baseURL,
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		httpClient:    httpClient,
		logger:        logger,
		now:           time.Now,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != "" && c.baseID != "" && c.table != ""
}

func (c *Client) tableURL() string {
	return c.baseURL + "/" + c.baseID + "/" + url.PathEscape(c.table)
}

// Create inserts a new projet, then stamps its public presentation URL in a
// second write once the record ID is known.
func (c *Client) Create(ctx context.Context, p domain.Projet) (*domain.Projet, error) {
	if !c.HasCredentials() {
		return nil, fmt.Errorf("airtable: credentials: %w", domain.ErrMissingConfig)
	}
	var created record
	payload := recordEnvelope{Fields: encodeCreate(p, c.now())}
	if err := c.do(ctx, http.MethodPost, c.tableURL(), payload, &created); err != nil {
		return nil, err
	}

	presURL := slug.PresentationURL(c.publicBaseURL, p.Nom, p.Prenom, created.ID)
	var stamped record
	stampPayload := recordEnvelope{Fields: map[string]any{fieldURLPresentation: presURL}}
	if err := c.do(ctx, http.MethodPatch, c.tableURL()+"/"+created.ID, stampPayload, &stamped); err != nil {
		// The record exists; a failed stamp is recoverable on the next write.
		c.logger.Warn().Err(err).Str("record_id", created.ID).Msg("airtable: presentation url stamp failed")
		out := decodeProjet(created)
		return &out, nil
	}
	out := decodeProjet(stamped)
	return &out, nil
}

// Get fetches one projet by record ID.
func (c *Client) Get(ctx context.Context, id string) (*domain.Projet, error) {
	if !c.HasCredentials() {
		return nil, fmt.Errorf("airtable: credentials: %w", domain.ErrMissingConfig)
	}
	var rec record
	if err := c.do(ctx, http.MethodGet, c.tableURL()+"/"+url.PathEscape(id), nil, &rec); err != nil {
		return nil, err
	}
	out := decodeProjet(rec)
	return &out, nil
}

// Update applies a field-level partial update and returns the refreshed
// record. PATCH semantics leave every untouched column intact.
func (c *Client) Update(ctx context.Context, id string, u domain.ProjetUpdate) (*domain.Projet, error) {
	if !c.HasCredentials() {
		return nil, fmt.Errorf("airtable: credentials: %w", domain.ErrMissingConfig)
	}
	if u.IsZero() {
		return c.Get(ctx, id)
	}
	var rec record
	payload := recordEnvelope{Fields: encodeUpdate(u)}
	if err := c.do(ctx, http.MethodPatch, c.tableURL()+"/"+url.PathEscape(id), payload, &rec); err != nil {
		return nil, err
	}
	out := decodeProjet(rec)
	return &out, nil
}

// List returns every projet, newest first, following pagination offsets.
func (c *Client) List(ctx context.Context) ([]domain.Projet, error) {
	if !c.HasCredentials() {
		return nil, fmt.Errorf("airtable: credentials: %w", domain.ErrMissingConfig)
	}
	query := url.Values{}
	query.Set("sort[0][field]", fieldDateCreation)
	query.Set("sort[0][direction]", "desc")

	var out []domain.Projet
	offset := ""
	for {
		q := url.Values{}
		for k, vs := range query {
			q[k] = vs
		}
		if offset != "" {
			q.Set("offset", offset)
		}
		var page listResponse
		if err := c.do(ctx, http.MethodGet, c.tableURL()+"?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		for _, rec := range page.Records {
			out = append(out, decodeProjet(rec))
		}
		if page.Offset == "" {
			return out, nil
		}
		offset = page.Offset
	}
}

func (c *Client) do(ctx context.Context, method, rawURL string, payload, into any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("airtable: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("airtable: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("airtable: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("airtable: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return c.classifyError(resp.StatusCode, raw)
	}
	if into == nil {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("airtable: decode response: %w", err)
	}
	return nil
}

func (c *Client) classifyError(status int, raw []byte) error {
	message := strings.TrimSpace(string(raw))
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
		message = detail.Error.Message
	}
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("airtable: %s: %w", message, domain.ErrNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("airtable: %s: %w", message, domain.ErrRateLimited)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("airtable: %s: %w", message, domain.ErrMissingConfig)
	default:
		return fmt.Errorf("airtable: status %d: %s", status, message)
	}
}

var _ domain.ProjetRepository = (*Client)(nil)
