// Package poller waits for a projet's generated images to land in the
// record store. Generation runs in the background, so readers that need the
// images poll the record until the first candidate slot fills.
package poller

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/permale/atelier/internal/domain"
	"github.com/permale/atelier/internal/infra"
)

// ErrStillProcessing reports that the attempt ceiling passed without any
// generated image appearing. Callers treat it as "try again later", not a
// failure of the record itself.
var ErrStillProcessing = errors.New("poller: images still processing")

// Watcher polls one record until it has generated images.
type Watcher struct {
	Fetch func(ctx context.Context) (*domain.Projet, error)

	Interval    time.Duration
	MaxAttempts int

	// Sleep is replaceable in tests. Nil means a context-aware time.Sleep.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *infra.Logger
}

// Wait polls until the record has at least one generated image, the attempt
// ceiling is reached, or ctx ends. The initial snapshot short-circuits a
// record that is already done. Fetch errors are logged and count as
// attempts; a record stuck behind a flaky store still stops at the ceiling.
func (w *Watcher) Wait(ctx context.Context, initial *domain.Projet) (*domain.Projet, error) {
	if initial != nil && initial.HasGeneratedImages() {
		return initial, nil
	}
	interval := w.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	maxAttempts := w.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 20
	}
	sleep := w.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := w.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := sleep(ctx, interval); err != nil {
			return nil, err
		}
		p, err := w.Fetch(ctx)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("poller: fetch failed")
			continue
		}
		if p.HasGeneratedImages() {
			logger.Info().Int("attempt", attempt).Int("images", len(p.GeneratedImages())).Msg("poller: images ready")
			return p, nil
		}
	}
	return nil, ErrStillProcessing
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
