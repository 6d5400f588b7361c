package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aigateway/internal/api"
	"aigateway/internal/config"
	"aigateway/internal/crypto"
	"aigateway/internal/db"
	"aigateway/internal/logger"
	"aigateway/internal/middleware"
	"aigateway/internal/proxy"
	"aigateway/internal/quota"
	"aigateway/internal/scheduler"
	"aigateway/internal/token"
	"aigateway/internal/vault"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, warning, err := config.LoadConfig("config.yaml")
	if err != nil {
		// Use a temporary logger for startup errors.
		slog.Error("Error loading configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Debug)
	log.Info("Logger initialized", "debug_mode", cfg.Debug)
	if warning != "" {
		log.Warn(warning)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.NewService(cfg.Database)
	if err != nil {
		log.Error("Error initializing database", "error", err)
		os.Exit(1)
	}
	log.Info("Database initialized", "type", cfg.Database.Type)

	if err := database.SeedDefaultCostConfigs(); err != nil {
		log.Error("Error seeding cost configs", "error", err)
		os.Exit(1)
	}

	masterKey, err := cfg.DecodeMasterKey()
	if err != nil {
		log.Error("Error decoding master key", "error", err)
		os.Exit(1)
	}
	cipher, err := crypto.NewCipher(masterKey)
	if err != nil {
		log.Error("Error creating credential cipher", "error", err)
		os.Exit(1)
	}

	tokens, err := token.NewManager([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		log.Error("Error creating token manager", "error", err)
		os.Exit(1)
	}

	syncWorker := vault.NewSyncWorker(database, cipher, nil, cfg.Backend.BaseURL+cfg.Backend.SyncPath, log)
	credentialVault := vault.New(database, cipher, syncWorker, log)
	ledger := quota.New(database, log)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.WindowDuration())

	backendProxy, err := proxy.New(cfg.Backend.BaseURL, log)
	if err != nil {
		log.Error("Error creating backend proxy", "error", err)
		os.Exit(1)
	}
	prober := proxy.NewProber(nil, cfg.Backend.BaseURL+cfg.Backend.HealthPath, cfg.Backend.ProbePeriodDuration(), log)

	sched, err := scheduler.New(limiter, log)
	if err != nil {
		log.Error("Error creating scheduler", "error", err)
		os.Exit(1)
	}
	sched.Start()

	router := api.NewRouter(api.Deps{
		Config:  cfg,
		DB:      database,
		Tokens:  tokens,
		Vault:   credentialVault,
		Ledger:  ledger,
		Limiter: limiter,
		Proxy:   backendProxy,
		Health:  prober,
		Logger:  log,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		log.Info("Starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sched.Stop()
	prober.Close()
	syncWorker.Close()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Server exiting")
}
