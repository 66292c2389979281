package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"producer/internal/adapter/repo"
	"producer/internal/http/handlers"
	httpapi "producer/internal/http/httpapi"
	"producer/internal/infra"
	"producer/internal/media"
	"producer/internal/pipeline"
	"producer/internal/providers/genai"
	"producer/internal/providers/video"
	"producer/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	settings, err := pipeline.LoadSettings(cfg.PipelineConfigPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load pipeline settings")
	}

	var backend genai.Backend
	switch cfg.GenProvider {
	case "anthropic":
		backend, err = genai.NewAnthropicBackend(genai.AnthropicOptions{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.AnthropicModel,
			BaseURL: cfg.AnthropicBaseURL,
		})
	case "gemini":
		backend, err = genai.NewGeminiBackend(genai.GeminiOptions{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
		})
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure generation backend")
	}

	genClient, err := genai.NewClient(genai.Options{Backend: backend, Logger: &logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build generation client")
	}

	generator, err := video.NewVeoGenerator(video.VeoOptions{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.VeoModel,
		BaseURL: cfg.GeminiBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build video generator")
	}

	store, err := storage.NewFileStore(cfg.ArtifactDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize artifact store")
	}

	composer := media.NewComposer(media.Options{
		Settings: settings.Encoder,
		Auth: []media.DownloadAuth{
			{HostSuffix: "generativelanguage.googleapis.com", Header: "x-goog-api-key", Value: cfg.GeminiAPIKey},
		},
		Logger: &logger,
	})

	batchRepo := repo.NewBatchRepository()
	trendRepo := repo.NewTrendRepository(dbpool)

	orchestrator := pipeline.NewOrchestrator(pipeline.OrchestratorOptions{
		Repo:      batchRepo,
		Generator: generator,
		Composer:  composer,
		Store:     store,
		BaseURL:   cfg.ArtifactBaseURL,
		Settings:  settings.Production,
		Logger:    logger,
	})

	service := pipeline.NewService(pipeline.ServiceOptions{
		Repo:      batchRepo,
		Headlines: pipeline.NewHeadlineGenerator(genClient, trendRepo, batchRepo, logger),
		Scripts:   pipeline.NewScriptWriter(genClient, batchRepo, logger),
		Visuals:   pipeline.NewVisualPlanner(genClient, batchRepo, logger),
		Producer:  orchestrator,
		Logger:    logger,
	})

	app := handlers.NewApp(service, logger)
	router := httpapi.NewRouter(httpapi.RouterOptions{
		App:            app,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		ArtifactDir:    store.BasePath(),
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
