package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/permale/atelier/internal/airtable"
	"github.com/permale/atelier/internal/auth"
	"github.com/permale/atelier/internal/http/handlers"
	"github.com/permale/atelier/internal/http/httpapi"
	"github.com/permale/atelier/internal/infra"
	"github.com/permale/atelier/internal/orchestrator"
	"github.com/permale/atelier/internal/providers/openai"
	"github.com/permale/atelier/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

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

	generator, err := openai.NewClient(openai.Options{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Quality: cfg.OpenAIQuality,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build image provider client")
	}

	uploads, err := storage.NewService(storage.ServiceOptions{
		Provider:       cfg.UploadProvider,
		StoragePath:    cfg.StoragePath,
		StorageBaseURL: cfg.StorageBaseURL,
		GitHub: storage.GitHubOptions{
			Token:  cfg.GitHubToken,
			Owner:  cfg.GitHubOwner,
			Repo:   cfg.GitHubRepo,
			Branch: cfg.GitHubBranch,
		},
		Cloudinary: storage.CloudinaryOptions{
			CloudName: cfg.CloudinaryCloud,
			APIKey:    cfg.CloudinaryKey,
			APISecret: cfg.CloudinarySecret,
		},
		Logger: &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("provider", cfg.UploadProvider).Msg("failed to build storage service")
	}

	pipeline := &orchestrator.Orchestrator{
		Repo:       projets,
		Generator:  generator,
		Uploads:    uploads,
		BatchSize:  cfg.ImageBatchSize,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Logger:     &logger,
	}

	app := &handlers.App{
		Logger:                 &logger,
		Projets:                projets,
		Pipeline:               pipeline,
		Uploads:                uploads,
		Verifier:               auth.StaticVerifier{Email: cfg.AdminEmail, Password: cfg.AdminPassword},
		BaseURL:                cfg.BaseURL,
		WebhookBatch:           cfg.ImageBatchSize,
		IntakeWebhookURL:       cfg.IntakeWebhookURL,
		ModificationWebhookURL: cfg.ModificationWebhookURL,
		PresentationCache:      handlers.NewPresentationCache(cfg.PresentationCacheTTL),
		Production:             cfg.Production(),
	}

	router := httpapi.NewRouter(app, cfg.RateLimitPerMin)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
