package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitlife/plan-service/internal/api"
	"fitlife/plan-service/internal/cache"
	"fitlife/plan-service/internal/config"
	"fitlife/plan-service/internal/logging"
	"fitlife/plan-service/internal/provider"
	mongorepo "fitlife/plan-service/internal/repository/mongo"
	"fitlife/plan-service/internal/scheduler"
	"fitlife/plan-service/internal/service"
	"fitlife/plan-service/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logging.Default().Fatal().Err(err).Msg("Could not load config")
	}

	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger.Info().Msg("Starting plan service")

	// --- Database Connection ---
	dbClient, err := mongorepo.ConnectDB(cfg.Database.URI)
	if err != nil {
		logger.Fatal().Err(err).Msg("Could not connect to MongoDB")
	}
	defer func() {
		logger.Info().Msg("Disconnecting MongoDB")
		if err := mongorepo.DisconnectDB(dbClient); err != nil {
			logger.Error().Err(err).Msg("Failed to disconnect MongoDB")
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logger.Info().Str("database", cfg.Database.Name).Msg("Database connection established")

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongorepo.EnsureUserIndexes(ctx, appDB.Collection("users"))
		mongorepo.EnsurePlanIndexes(ctx, appDB.Collection("plans"))
		logger.Info().Msg("Index creation process completed")
	}()

	// --- Look-Aside Cache ---
	redisPool := cache.NewPool(cfg.Redis)
	defer redisPool.Close()
	planCache := cache.NewRedisPlanCache(redisPool)
	logger.Info().Str("address", cfg.Redis.Address).Msg("Redis pool initialized")

	// --- Plan Archive ---
	var archiver storage.PlanArchiver = storage.NopArchiver{}
	if cfg.S3.BucketName != "" {
		archiver, err = storage.NewS3Archiver(cfg.S3)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize plan archive")
		}
		logger.Info().Str("bucket", cfg.S3.BucketName).Msg("Plan archive initialized")
	}

	// --- Repositories ---
	userRepo := mongorepo.NewMongoUserRepository(appDB)
	planRepo := mongorepo.NewMongoPlanRepository(appDB)
	txRunner := mongorepo.NewTxRunner(dbClient)

	// --- External Provider ---
	planProvider := provider.NewHTTPProvider(cfg.Provider)

	// --- Services ---
	planService := service.NewPlanService(planRepo, userRepo, txRunner, planCache, planProvider, archiver, cfg.TTL, logger)
	refreshJob := service.NewRefreshJob(planRepo, userRepo, planService, cfg.Refresh, logger)

	// --- Scheduler ---
	sched := scheduler.NewScheduler(logger)
	if err := sched.AddJob(cfg.Refresh.Schedule, refreshJob); err != nil {
		logger.Fatal().Err(err).Msg("Failed to schedule refresh job")
	}
	refreshJob.SetNextRunFunc(func() time.Time { return sched.NextRun(refreshJob.Name()) })
	sched.Start()
	defer sched.Stop()

	// --- HTTP Server ---
	router := gin.Default()
	api.SetupRoutes(router, planService, refreshJob, userRepo)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().Str("address", cfg.Server.Address).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("ListenAndServe error")
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exiting")
}
