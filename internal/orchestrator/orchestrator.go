// Package orchestrator drives the generation pipeline: prompt synthesis,
// image generation, storage upload, and incremental record writes.
package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/permale/atelier/internal/domain"
	"github.com/permale/atelier/internal/infra"
	"github.com/permale/atelier/internal/prompt"
	"github.com/permale/atelier/internal/providers/openai"
)

// Generator produces one image for a prompt.
type Generator interface {
	GenerateImage(ctx context.Context, req openai.ImageRequest) (*openai.GeneratedImage, error)
}

// Uploads persists a single image payload and returns its durable URL.
type Uploads interface {
	UploadImage(ctx context.Context, input, filename string) (string, error)
}

// Result summarizes one pipeline run.
type Result struct {
	ProjetID  string
	Prompt    string
	URLs      []string
	Generated int
	CostUSD   float64
}

// Orchestrator coordinates the candidate and presentation pipelines for one
// deployment. Concurrent runs for the same projet are collapsed into one.
type Orchestrator struct {
	Repo      domain.ProjetRepository
	Generator Generator
	Uploads   Uploads

	// BatchSize is how many candidate slots one run fills, bounded by
	// domain.CandidateSlots.
	BatchSize int

	// HTTPClient downloads provider-hosted images; nil means
	// http.DefaultClient.
	HTTPClient *http.Client
	Logger     *infra.Logger

	group singleflight.Group
}

func (o *Orchestrator) logger() *infra.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	discard := zerolog.New(io.Discard)
	l := infra.Logger(discard)
	return &l
}

func (o *Orchestrator) batchSize() int {
	if o.BatchSize < 1 || o.BatchSize > domain.CandidateSlots {
		return domain.CandidateSlots - 1
	}
	return o.BatchSize
}

// GenerateCandidates runs the candidate pipeline for one projet. Slots are
// filled sequentially and written to the record store as each lands, so a
// partial run still leaves every finished image visible. One failed slot is
// logged and skipped; the run only fails when no slot succeeds.
func (o *Orchestrator) GenerateCandidates(ctx context.Context, id string) (*Result, error) {
	v, err, _ := o.group.Do("candidates:"+id, func() (any, error) {
		return o.generateCandidates(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (o *Orchestrator) generateCandidates(ctx context.Context, id string) (*Result, error) {
	p, err := o.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	jewelryPrompt := prompt.BuildJewelryPrompt(*p)
	result := &Result{ProjetID: id, Prompt: jewelryPrompt}
	logger := o.logger()

	slots := map[int]string{}
	var lastErr error
	for slot := 1; slot <= o.batchSize(); slot++ {
		url, cost, err := o.generateOne(ctx, id, jewelryPrompt, fmt.Sprintf("projet-%s-image-%d", id, slot))
		if err != nil {
			lastErr = err
			logger.Warn().Err(err).Str("projet_id", id).Int("slot", slot).Msg("orchestrator: candidate slot failed")
			continue
		}
		result.CostUSD += cost
		result.URLs = append(result.URLs, url)
		result.Generated++
		slots[slot] = url

		if _, err := o.Repo.Update(ctx, id, domain.ProjetUpdate{
			CandidateSlot: map[int]string{slot: url},
		}); err != nil {
			logger.Error().Err(err).Str("projet_id", id).Int("slot", slot).Msg("orchestrator: slot write failed")
		}
	}

	if result.Generated == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("orchestrator: no candidate generated: %w", lastErr)
		}
		return nil, errors.New("orchestrator: no candidate generated")
	}

	// Final write keeps the multi-valued list consistent with the slots even
	// when some per-slot writes failed mid-run.
	if _, err := o.Repo.Update(ctx, id, domain.ProjetUpdate{Images: result.URLs, CandidateSlot: slots}); err != nil {
		logger.Error().Err(err).Str("projet_id", id).Msg("orchestrator: final candidate write failed")
	}

	logger.Info().
		Str("projet_id", id).
		Int("generated", result.Generated).
		Float64("cost_usd", result.CostUSD).
		Msg("orchestrator: candidates ready")
	return result, nil
}

// GenerateSlot fills exactly one candidate slot. The webhook chain calls
// this once per hop so each HTTP request stays under platform execution
// limits.
func (o *Orchestrator) GenerateSlot(ctx context.Context, id string, slot int) (string, error) {
	if slot < 1 || slot > domain.CandidateSlots {
		return "", fmt.Errorf("orchestrator: slot %d out of range", slot)
	}
	p, err := o.Repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	jewelryPrompt := prompt.BuildJewelryPrompt(*p)
	url, _, err := o.generateOne(ctx, id, jewelryPrompt, fmt.Sprintf("projet-%s-image-%d", id, slot))
	if err != nil {
		return "", err
	}
	if _, err := o.Repo.Update(ctx, id, domain.ProjetUpdate{
		CandidateSlot: map[int]string{slot: url},
		Images:        appendImage(p.GeneratedImages(), url),
	}); err != nil {
		return "", err
	}
	return url, nil
}

// GeneratePresentation renders the four staged scenes for the selected
// candidate. It requires a prior selection; each scene writes its slot as it
// lands, and like the candidate run a single failed scene does not abort the
// rest.
func (o *Orchestrator) GeneratePresentation(ctx context.Context, id string) (*Result, error) {
	v, err, _ := o.group.Do("presentation:"+id, func() (any, error) {
		return o.generatePresentation(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (o *Orchestrator) generatePresentation(ctx context.Context, id string) (*Result, error) {
	p, err := o.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.ImageSelectionnee) == "" {
		return nil, fmt.Errorf("orchestrator: projet %s has no selected image: %w", id, domain.ErrUnsupportedInput)
	}

	scenes := prompt.BuildPresentationPrompts(*p)
	result := &Result{ProjetID: id}
	logger := o.logger()

	var lastErr error
	for i, scenePrompt := range scenes.List() {
		slot := i + 1
		url, cost, err := o.generateOne(ctx, id, scenePrompt, fmt.Sprintf("projet-%s-pres-%d", id, slot))
		if err != nil {
			lastErr = err
			logger.Warn().Err(err).Str("projet_id", id).Int("slot", slot).Msg("orchestrator: presentation slot failed")
			continue
		}
		result.CostUSD += cost
		result.URLs = append(result.URLs, url)
		result.Generated++

		if _, err := o.Repo.Update(ctx, id, domain.ProjetUpdate{
			PresentationSlot: map[int]string{slot: url},
		}); err != nil {
			logger.Error().Err(err).Str("projet_id", id).Int("slot", slot).Msg("orchestrator: presentation write failed")
		}
	}

	if result.Generated == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("orchestrator: no presentation image generated: %w", lastErr)
		}
		return nil, errors.New("orchestrator: no presentation image generated")
	}

	logger.Info().
		Str("projet_id", id).
		Int("generated", result.Generated).
		Float64("cost_usd", result.CostUSD).
		Msg("orchestrator: presentation ready")
	return result, nil
}

// generateOne runs the generate, download, upload sequence for a single
// image and returns its durable URL.
func (o *Orchestrator) generateOne(ctx context.Context, id, promptText, filename string) (string, float64, error) {
	img, err := o.Generator.GenerateImage(ctx, openai.ImageRequest{Prompt: promptText})
	if err != nil {
		return "", 0, err
	}

	payload := img.DataURI
	if payload == "" {
		payload, err = o.downloadAsDataURI(ctx, img.URL)
		if err != nil {
			return "", img.CostUSD, err
		}
	}

	url, err := o.Uploads.UploadImage(ctx, payload, filename)
	if err != nil {
		return "", img.CostUSD, err
	}
	return url, img.CostUSD, nil
}

// downloadAsDataURI fetches a provider-hosted image before its short-lived
// URL expires and re-encodes it for the uploader.
func (o *Orchestrator) downloadAsDataURI(ctx context.Context, url string) (string, error) {
	client := o.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("orchestrator: build download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("orchestrator: download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("orchestrator: download status %d: %w", resp.StatusCode, domain.ErrProviderFailure)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("orchestrator: read image: %w", err)
	}

	mime := mimetype.Detect(data).String()
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func appendImage(urls []string, url string) []string {
	for _, u := range urls {
		if u == url {
			return urls
		}
	}
	return append(urls, url)
}
