package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invoicely-backend/config"
	"invoicely-backend/controllers"
	"invoicely-backend/events"
	"invoicely-backend/routes"
	"invoicely-backend/services"
	"invoicely-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Cannot create logger: %v", err)
	}
	defer logger.Sync()

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = utils.GenerateJWTSecret()
		logger.Warn("JWT_SECRET not set, using a random secret; sessions end on restart")
	}
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.ConnectDB(cfg, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	if err := config.Migrate(db); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	ctx := context.Background()

	dbSequencer := services.NewDBSequencer(db, services.InvoiceCounterName)
	var sequencer services.Sequencer = dbSequencer
	var limiter services.Limiter = services.NoopLimiter{}
	if cfg.RedisURL != "" {
		redisClient, err := config.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
		defer redisClient.Close()

		redisSequencer := services.NewRedisSequencer(redisClient, services.InvoiceCounterName).MirrorTo(dbSequencer)
		// Carry over numbers already issued from the table-backed counter.
		issued, err := dbSequencer.Current(ctx)
		if err != nil {
			logger.Fatal("cannot read invoice counter", zap.Error(err))
		}
		if err := redisSequencer.Seed(ctx, issued); err != nil {
			logger.Fatal("cannot seed redis invoice counter", zap.Error(err))
		}
		sequencer = redisSequencer
		limiter = services.NewRedisLimiter(redisClient, "invoicely:rate_limit", cfg.LoginRateLimit, cfg.LoginWindow())
		logger.Info("redis enabled for invoice numbers and rate limiting")
	}

	var publisher events.Publisher = &events.LogPublisher{Logger: logger}
	if cfg.RabbitMQURL != "" {
		producer, err := events.NewProducer(cfg.RabbitMQURL, cfg.EventsExchange)
		if err != nil {
			logger.Fatal("rabbitmq connection failed", zap.Error(err))
		}
		publisher = producer
		logger.Info("publishing events", zap.String("exchange", cfg.EventsExchange))
	}
	defer publisher.Close()

	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry())
	authService := services.NewAuthService(db, tokens, cfg.AccessCode, limiter, logger)
	authService.OnSessionChange(func(e events.SessionEvent) {
		logger.Info("session changed", zap.String("type", e.Type), zap.String("user_id", e.UserID.String()))
		publishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := publisher.Publish(publishCtx, e.Type, e); err != nil {
			logger.Warn("failed to publish session event", zap.Error(err))
		}
	})

	invoiceService := services.NewInvoiceService(db, sequencer, publisher, logger)
	reportService := services.NewReportService(db)

	var sender services.SMSSender
	if cfg.TwilioEnabled() {
		sender = services.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber)
	}
	reminderService := services.NewReminderService(db, sender, logger)
	if sender != nil {
		if err := reminderService.Start(cfg.ReminderSchedule); err != nil {
			logger.Fatal("cannot start reminder scheduler", zap.Error(err))
		}
		defer reminderService.Stop()
	}

	r := routes.SetupRouter(cfg, logger, routes.Handlers{
		Sessions:  authService,
		Auth:      controllers.NewAuthController(authService, logger, !cfg.IsDevelopment()),
		Invoices:  controllers.NewInvoiceController(invoiceService, logger),
		Dashboard: controllers.NewDashboardController(invoiceService, logger),
		Reports:   controllers.NewReportController(reportService, reminderService, logger),
	})
	if cfg.IsDevelopment() {
		printRoutes(r)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	if n, err := authService.PurgeRevokedTokens(shutdownCtx); err == nil && n > 0 {
		logger.Info("purged expired revocations", zap.Int64("count", n))
	}
	logger.Info("server exiting")
}

func printRoutes(r *gin.Engine) {
	routes := r.Routes()
	for _, route := range routes {
		fmt.Printf("%-6s %s\n", route.Method, route.Path)
	}
}
