// Command watch polls one projet until its generated images land in the
// record store. Ops use it after kicking off a background generation to see
// when (and what) the pipeline produced.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/permale/atelier/internal/airtable"
	"github.com/permale/atelier/internal/domain"
	"github.com/permale/atelier/internal/infra"
	"github.com/permale/atelier/internal/poller"
)

func main() {
	var (
		id       = flag.String("id", "", "record id of the projet to watch")
		interval = flag.Duration("interval", 0, "poll interval (default from POLL_INTERVAL_SECONDS)")
		attempts = flag.Int("attempts", 0, "max poll attempts (default from POLL_MAX_ATTEMPTS)")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if *id == "" {
		logger.Fatal().Msg("missing -id flag")
	}

	projets, err := airtable.NewClient(airtable.Options{
		APIKey:        cfg.AirtableAPIKey,
		BaseID:        cfg.AirtableBaseID,
		Table:         cfg.AirtableTable,
		BaseURL:       cfg.AirtableBaseURL,
		PublicBaseURL: cfg.BaseURL,
		Logger:        &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build record store client")
	}

	pollInterval := cfg.PollInterval
	if *interval > 0 {
		pollInterval = *interval
	}
	maxAttempts := cfg.PollMaxAttempts
	if *attempts > 0 {
		maxAttempts = *attempts
	}

	watcher := &poller.Watcher{
		Fetch: func(ctx context.Context) (*domain.Projet, error) {
			return projets.Get(ctx, *id)
		},
		Interval:    pollInterval,
		MaxAttempts: maxAttempts,
		Logger:      &logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(maxAttempts+1)*pollInterval)
	defer cancel()

	initial, err := projets.Get(ctx, *id)
	if err != nil {
		logger.Fatal().Err(err).Str("id", *id).Msg("failed to fetch projet")
	}

	p, err := watcher.Wait(ctx, initial)
	if err != nil {
		if errors.Is(err, poller.ErrStillProcessing) {
			logger.Warn().Str("id", *id).Msg("no generated images after the attempt ceiling")
			os.Exit(1)
		}
		logger.Fatal().Err(err).Str("id", *id).Msg("watch failed")
	}

	for i, url := range p.GeneratedImages() {
		logger.Info().Int("slot", i+1).Str("url", url).Msg("generated image")
	}
	logger.Info().Str("id", p.ID).Str("presentation", p.URLPresentation).Msg("projet ready")
}
