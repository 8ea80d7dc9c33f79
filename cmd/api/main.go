package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/brands"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/imagegen"
	"server/internal/infra"
	"server/internal/providers/gemini"
	"server/internal/providers/replicate"
	"server/internal/storage"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	catalog, err := brands.Load(cfg.BrandCatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load brand catalog")
	}

	store, err := storage.NewFileStore(cfg.UploadDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare upload directory")
	}

	// Provider clients. Missing credentials are tolerated: gemini serves
	// canned responses and the orchestrator runs in placeholder mode.
	geminiClient := gemini.NewClient(gemini.Options{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Logger:  &logger,
	})
	replicateClient := replicate.NewClient(replicate.Options{
		APIToken:     cfg.ReplicateAPIToken,
		BaseURL:      cfg.ReplicateBaseURL,
		Model:        cfg.ReplicateModel,
		Logger:       &logger,
		PollInterval: cfg.PredictionPollDelay,
		MaxPolls:     cfg.PredictionMaxPolls,
	})

	materializer, err := imagegen.NewMaterializer(imagegen.MaterializerOptions{
		Store:   store,
		BaseURL: cfg.PublicBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build materializer")
	}
	generator, err := imagegen.NewVariationGenerator(imagegen.GeneratorOptions{
		Provider:     replicateClient,
		Materializer: materializer,
		Logger:       &logger,
		MaxAttempts:  cfg.GenerateMaxAttempts,
		RetryDelay:   cfg.GenerateRetryDelay,
		Timeout:      cfg.GenerateTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build generator")
	}
	orchestrator, err := imagegen.NewOrchestrator(imagegen.OrchestratorOptions{
		Generator:           generator,
		Materializer:        materializer,
		Logger:              &logger,
		LaunchPerSecond:     cfg.SlotLaunchPerSecond,
		Degraded:            !cfg.ReplicateConfigured(),
		PlaceholderFallback: cfg.PlaceholderFallback,
		BackfillAttempts:    cfg.BackfillAttempts,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build orchestrator")
	}
	if !cfg.ReplicateConfigured() {
		logger.Warn().Msg("REPLICATE_API_TOKEN not set, serving placeholder images")
	}
	if !cfg.GeminiConfigured() {
		logger.Warn().Msg("GEMINI_API_KEY not set, serving canned analysis responses")
	}

	app := handlers.NewApp(cfg, &logger, catalog, store, geminiClient, geminiClient, orchestrator)
	router := httpapi.NewRouter(app)
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
