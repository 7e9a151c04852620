package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/medassist/clinical-portal/internal/agent"
	"github.com/medassist/clinical-portal/internal/audit"
	"github.com/medassist/clinical-portal/internal/config"
	"github.com/medassist/clinical-portal/internal/handler"
	"github.com/medassist/clinical-portal/internal/live"
	"github.com/medassist/clinical-portal/internal/middleware"
	"github.com/medassist/clinical-portal/internal/triage"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize Zap logger
	var logger *zap.Logger
	if cfg.Server.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.Bool("demo_mode", cfg.Live.DemoMode),
	)

	// Initialize the escalation agent client
	agentClient, err := agent.NewClient(cfg.Agent.BaseURL, cfg.Agent.AuthToken, cfg.Agent.Timeout, logger)
	if err != nil {
		logger.Fatal("Failed to initialize agent client", zap.Error(err))
	}

	// Load the threshold rule table, falling back to the built-in default
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), cfg.Agent.Timeout)
	table := triage.LoadTable(loadCtx, agentClient, logger)
	cancelLoad()

	// Initialize the triage pipeline
	evaluator := triage.NewEvaluator(table, logger)
	classifier := triage.NewClassifier(evaluator, logger)

	// Optional reasoning enrichment
	var reasoner triage.Reasoner
	if cfg.Agent.ReasoningAPIKey != "" {
		r, rerr := agent.NewReasoner(cfg.Agent.ReasoningAPIKey, cfg.Agent.ReasoningModel, logger)
		if rerr != nil {
			logger.Warn("reasoning enrichment disabled", zap.Error(rerr))
		} else {
			reasoner = r
		}
	}

	orchestrator := triage.NewOrchestrator(evaluator, classifier, agentClient, reasoner, logger)

	// Initialize the live-channel hub
	hub := live.NewHub(
		live.ManagerConfig{
			Host:        cfg.Live.Host,
			AuthToken:   cfg.Live.AuthToken,
			DemoMode:    cfg.Live.DemoMode,
			MaxAttempts: cfg.Live.MaxAttempts,
			BackoffUnit: cfg.Live.BackoffUnit,
		},
		live.SessionConfig{
			MaxAttachments:    cfg.Chat.MaxAttachments,
			MaxAttachmentSize: cfg.Chat.MaxAttachmentSize,
			ReplyDelay:        cfg.Chat.ReplyDelay,
		},
		nil, // production websocket dialer
		logger,
	)

	// Initialize the audit trail
	trail := audit.NewTrail(cfg.Audit.RetainedEntries, logger)

	// Initialize handlers
	escalationHandler := handler.NewEscalationHandler(orchestrator, evaluator, agentClient, trail, logger)
	chatHandler := handler.NewChatHandler(hub, trail, logger)
	healthHandler := handler.NewHealthHandler(hub)
	auditHandler := handler.NewAuditHandler(trail)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Gin router
	r := gin.New()

	// Add recovery middleware (must be first)
	r.Use(middleware.RecoveryMiddleware(logger))

	// Add CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Configure appropriately for production
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Add request ID middleware
	r.Use(middleware.RequestIDMiddleware())

	// Add request logging middleware
	r.Use(middleware.RequestLoggingMiddleware(logger))

	// Add error logging middleware
	r.Use(middleware.ErrorLoggingMiddleware(logger))

	// Register routes
	r.GET("/health", healthHandler.GetHealth)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/escalations/evaluate", escalationHandler.Evaluate)
		v1.GET("/escalations/thresholds", escalationHandler.Thresholds)

		v1.POST("/chat/send", chatHandler.Send)
		v1.GET("/chat/history", chatHandler.History)
		v1.POST("/chat/read", chatHandler.MarkRead)

		v1.GET("/audit", auditHandler.Recent)
	}

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Tear down all live sessions
	hub.TeardownAll()

	logger.Info("Server exited")
}
