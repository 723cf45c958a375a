package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-gonic/gin"
	"google.golang.org/api/option"

	"github.com/wanderly/pushgate/internal/apns"
	"github.com/wanderly/pushgate/internal/auth"
	"github.com/wanderly/pushgate/internal/config"
	"github.com/wanderly/pushgate/internal/dispatch"
	"github.com/wanderly/pushgate/internal/fcm"
	"github.com/wanderly/pushgate/internal/logger"
	"github.com/wanderly/pushgate/internal/metrics"
	"github.com/wanderly/pushgate/internal/storage/pg"
	"github.com/wanderly/pushgate/internal/tokens"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))

	// Set Gin mode
	log.Info("Setting Gin mode", "mode", cfg.GinMode)
	gin.SetMode(cfg.GinMode)

	// Initialize database.
	var db *pg.Database
	err := log.LogOperation(context.Background(), "init_database", func() error {
		var dbErr error
		db, dbErr = pg.InitDatabase(cfg.DatabaseURL)
		return dbErr
	})
	if err != nil {
		log.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}

	// Token store, optionally fronted by a Redis read-aside cache.
	var store tokens.Store = tokens.NewPGStore(log, db.DB)
	var redisClient *tokens.RedisClient
	if cfg.RedisURL != "" {
		redisClient, err = tokens.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		store = tokens.NewCachedStore(store, redisClient, cfg.TokenCacheTTL)
		log.Info("Token cache enabled", "ttl", cfg.TokenCacheTTL)
	}

	// APNs credentials. A bad configuration must not keep token registration
	// from working, so dispatch requests surface the error instead.
	var signer dispatch.AssertionSigner
	creds, err := apns.LoadCredentials(cfg.APNSKeyID, cfg.APNSTeamID, cfg.APNSBundleID, cfg.APNSKeyP8)
	if err != nil {
		log.Warn("APNs credentials unavailable, dispatch requests will fail", "error", err)
		signer = apns.FailingSigner{Err: err}
	} else {
		signer = apns.NewSigner(creds)
	}

	pusher := apns.NewClient(cfg.APNSBundleID, time.Duration(cfg.PushTimeoutSeconds)*time.Second)

	// Optional FCM dispatcher for android installs.
	var fcmDispatcher dispatch.FCMDispatcher
	if cfg.FirebaseCredJSON != "" {
		app, err := firebase.NewApp(context.Background(),
			&firebase.Config{ProjectID: cfg.FirebaseProjectID},
			option.WithCredentialsJSON([]byte(cfg.FirebaseCredJSON)))
		if err != nil {
			log.Error("Failed to initialize Firebase app", "error", err)
			os.Exit(1)
		}
		messagingClient, err := app.Messaging(context.Background())
		if err != nil {
			log.Error("Failed to initialize Firebase messaging", "error", err)
			os.Exit(1)
		}
		fcmDispatcher = fcm.NewDispatcher(messagingClient, log)
		log.Info("FCM delivery enabled", "project_id", cfg.FirebaseProjectID)
	}

	// Initialize services
	dispatchService := dispatch.NewService(store, signer, pusher, fcmDispatcher, log)

	// Initialize handlers
	dispatchHandler := dispatch.NewHandler(dispatchService, log)
	tokenHandler := tokens.NewHandler(store, log)

	apiKeyAuth := auth.NewAPIKeyMiddleware(cfg.ServiceAPIKey)

	// Initialize Gin router
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Attach a request ID for log correlation.
	router.Use(func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))
		c.Header("X-Request-ID", requestID)
		c.Next()
	})

	// Probes and metrics (no auth required)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API routes (protected when SERVICE_API_KEY is set)
	api := router.Group("/api/v1")
	api.Use(apiKeyAuth.RequireAuth())
	{
		api.POST("/notifications/send", dispatchHandler.Send)

		toks := api.Group("/tokens")
		{
			toks.POST("/register", tokenHandler.Register)
			toks.POST("/unregister", tokenHandler.Unregister)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("Server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Warn("Redis close failed", "error", err)
		}
	}
	if err := db.DB.Close(); err != nil {
		log.Warn("Database close failed", "error", err)
	}

	log.Info("Server exited")
}
