package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"alcyxob/course-media/internal/api"
	"alcyxob/course-media/internal/config"
	"alcyxob/course-media/internal/domain"
	"alcyxob/course-media/internal/logger"
	"alcyxob/course-media/internal/repository/mongo"
	"alcyxob/course-media/internal/service"
	"alcyxob/course-media/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// @title Course Media API
// @version 1.0
// @description Chunked uploads, context-validated media storage and range-aware delivery for the course platform.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal().Err(err).Msg("could not load config")
	}

	logr, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal().Err(err).Msg("could not build logger")
	}
	log.Logger = logr
	logr.Info().Str("address", cfg.Server.Address).Msg("starting course media server")

	if cfg.JWT.Secret == "" {
		logr.Fatal().Msg("jwt.secret is required")
	}
	defaultProvider := domain.Provider(cfg.Storage.DefaultProvider)
	if !defaultProvider.IsStorage() {
		logr.Fatal().Str("provider", cfg.Storage.DefaultProvider).Msg("storage.default_provider must be local or s3")
	}

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		logr.Fatal().Err(err).Msg("could not connect to MongoDB")
	}
	defer func() {
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logr.Error().Err(err).Msg("failed to disconnect MongoDB")
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := mongo.EnsureIndexes(ctx, appDB); err != nil {
			logr.Error().Err(err).Msg("failed to ensure indexes")
			return
		}
		logr.Info().Msg("database indexes ensured")
	}()

	// --- Repositories ---
	settingsRepo := mongo.NewMongoStorageSettingsRepository(appDB)
	assetRepo := mongo.NewMongoMediaAssetRepository(appDB)

	// --- Services ---
	storageOpts := storage.Options{
		LocalPath:     cfg.Storage.LocalPath,
		PublicBaseURL: cfg.Server.PublicBaseURL,
		StaticMount:   cfg.Storage.StaticMount,
		PresignTTL:    cfg.Storage.PresignTTL,
	}
	settingsService := service.NewStorageSettingsService(settingsRepo, defaultProvider, storageOpts, logr)
	mediaService := service.NewMediaService(settingsService, assetRepo, cfg.Media.MaxGenericBytes, logr)
	deliveryService := service.NewDeliveryService(settingsService, logr)
	sessionService, err := service.NewUploadSessionService(cfg.Uploads.StagingDir, cfg.Uploads.MaxPartBytes, settingsService, assetRepo, logr)
	if err != nil {
		logr.Fatal().Err(err).Msg("could not prepare staging directory")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		sessionService.RunReaper(rootCtx, cfg.Uploads.ReapInterval, cfg.Uploads.SessionTTL)
	}()

	// --- HTTP ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logr.With().Str("component", "http").Logger()))

	api.SetupRoutes(router, cfg.JWT.Secret, api.Services{
		Media:           mediaService,
		Sessions:        sessionService,
		Delivery:        deliveryService,
		StorageSettings: settingsService,
	}, api.StaticMount{
		Path: cfg.Storage.StaticMount,
		Dir:  cfg.Storage.LocalPath,
	}, logr)

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Parts, direct uploads and streams can be large; no whole-body deadline.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal().Err(err).Msg("ListenAndServe error")
		}
	}()
	logr.Info().Str("address", cfg.Server.Address).Msg("server listening")

	<-rootCtx.Done()
	logr.Info().Msg("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logr.Error().Err(err).Msg("server forced to shutdown")
	}
	<-reaperDone

	logr.Info().Msg("server exiting")
}
