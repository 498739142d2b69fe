package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"videostyler/internal/adapter/repo"
	"videostyler/internal/http/handlers"
	"videostyler/internal/http/httpapi"
	"videostyler/internal/infra"
	"videostyler/internal/infra/geoip"
	"videostyler/internal/lifecycle"
	"videostyler/internal/middleware"
	"videostyler/internal/providers/fal"
	"videostyler/internal/storage"
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
	jobs := repo.NewJobRepository(dbpool)

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}
	relocator, err := storage.NewRelocator(storage.RelocatorOptions{
		Store:   fileStore,
		BaseURL: cfg.StorageBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure relocator")
	}

	provider, err := fal.NewClient(fal.Options{
		APIKey:     cfg.FalAPIKey,
		BaseURL:    cfg.FalBaseURL,
		Model:      cfg.FalModel,
		WebhookURL: cfg.PublicBaseURL + "/v1/videos/callback",
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure provider client")
	}
	if !provider.HasCredentials() {
		logger.Warn().Str("model", provider.Model()).Msg("provider api key missing, submissions will fail")
	}

	coordinator, err := lifecycle.NewCoordinator(lifecycle.CoordinatorOptions{
		Repo:          jobs,
		Store:         relocator,
		Provider:      provider,
		Logger:        logger,
		DailyJobLimit: cfg.DailyJobLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure coordinator")
	}
	query := lifecycle.NewQuery(jobs)

	var countries middleware.CountryResolver
	if resolver, err := geoip.NewResolver(cfg.GeoIPDBPath); err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		defer resolver.Close()
		countries = resolver
	}

	app := handlers.NewApp(coordinator, query, cfg.CallbackSecret, logger)
	router := httpapi.NewRouter(app, cfg, logger, countries)
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
