package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"shootflow-backend/internal/assignments"
	"shootflow-backend/internal/config"
	"shootflow-backend/internal/database"
	"shootflow-backend/internal/handlers"
	"shootflow-backend/internal/lifecycle"
	"shootflow-backend/internal/metrics"
	"shootflow-backend/internal/middleware"
	"shootflow-backend/internal/notify"
	"shootflow-backend/internal/processing"
	"shootflow-backend/internal/provider"
	"shootflow-backend/internal/realtime"
	"shootflow-backend/internal/rules"
	"shootflow-backend/internal/storage"
	st "shootflow-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Run migrations before taking traffic.
	migrator, err := database.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize migrator: %v", err)
	}
	if err := migrator.Run(); err != nil {
		migrator.Close()
		log.Fatalf("Migration failed: %v", err)
	}
	migrator.Close()

	store, err := st.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	providerClient := provider.NewClient(cfg.ProviderAPIBaseURL, cfg.ProviderAPIKey)

	// Lifecycle machine and its observers.
	machine := lifecycle.NewMachine(store, lifecycle.DefaultTable())

	appMetrics := metrics.New()
	machine.Subscribe(appMetrics.Observe)

	sender := notify.NewHTTPSender(cfg.MessagingAPIBaseURL, cfg.MessagingAPIKey)
	dispatcher := notify.NewDispatcher(notify.Config{}, sender)
	engine := rules.NewEngine(store, dispatcher)
	machine.Subscribe(engine.HandleEvent)

	tracker := processing.NewTracker(store, providerClient, machine, processing.Config{
		CallbackURL:  cfg.WebhookCallbackURL,
		MaxRevisions: cfg.MaxRevisions,
		Timeout:      cfg.ProcessingTimeout,
	})
	var publisher *realtime.Publisher
	if cfg.SupabaseURL != "" {
		tracker.WithArchiver(storage.NewArchiver(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseStorageBucket))

		publisher, err = realtime.NewPublisher(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			log.Fatalf("Failed to initialize realtime publisher: %v", err)
		}
		tracker.WithPublisher(publisher)
	}

	queue := assignments.NewQueue(store, machine, cfg.EditorWorkloadCap)
	reviewer := assignments.NewReviewer(store, machine)
	if publisher != nil {
		reviewer.WithPublisher(publisher)
	}

	// Background sweeps.
	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	go tracker.RunTimeoutSweep(sweepCtx, cfg.SweepInterval)
	go engine.RunTimeDelaySweep(sweepCtx, cfg.SweepInterval)

	ordersHandler := handlers.NewOrdersHandler(store, machine)
	captureHandler := handlers.NewCaptureHandler(store, machine)
	processingHandler := handlers.NewProcessingHandler(store, tracker)
	webhookHandler := handlers.NewWebhookHandler(tracker, cfg.ProviderWebhookToken)
	queueHandler := handlers.NewQueueHandler(queue)
	qcHandler := handlers.NewQCHandler(reviewer)
	rulesHandler := handlers.NewRulesHandler(store)

	router := gin.Default()

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	api.POST("/orders", ordersHandler.CreateOrder)
	api.GET("/orders", ordersHandler.ListOrders)
	api.GET("/orders/:id", ordersHandler.GetOrder)
	api.GET("/orders/:id/status", ordersHandler.GetOrderStatus)
	api.GET("/orders/:id/events", ordersHandler.ListEvents)
	api.POST("/orders/:id/transition", ordersHandler.Transition)

	api.POST("/orders/:id/capture-batches", captureHandler.RegisterBatch)
	api.POST("/orders/:id/processing", processingHandler.Submit)
	api.GET("/processing/:jobId", processingHandler.GetJob)

	api.GET("/queue", queueHandler.ListQueue)
	api.GET("/queue/mine", queueHandler.ListMine)
	api.POST("/assignments/:id/claim", queueHandler.Claim)
	api.POST("/assignments/:id/edits", queueHandler.SubmitEdits)
	api.POST("/assignments/:id/review", qcHandler.Review)
	api.GET("/assignments/:id/reviews", qcHandler.ListReviews)

	api.POST("/rules", rulesHandler.CreateRule)
	api.GET("/rules", rulesHandler.ListRules)
	api.GET("/rules/:id", rulesHandler.GetRule)
	api.PATCH("/rules/:id", rulesHandler.UpdateRule)
	api.DELETE("/rules/:id", rulesHandler.DeleteRule)

	// Webhook uses the provider token, not user auth.
	router.POST("/api/v1/webhooks/processing", webhookHandler.HandleProviderCallback)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")

	stopSweeps()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		slog.Error("dispatcher shutdown failed", "error", err)
	}
}
