package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"teleclinic/config"
	"teleclinic/cron"
	"teleclinic/database"
	availabilityRepo "teleclinic/database/repository/availability"
	bookingRepo "teleclinic/database/repository/booking"
	sessionRepo "teleclinic/database/repository/session"
	"teleclinic/handlers"
	"teleclinic/middleware"
	"teleclinic/routes"
	"teleclinic/services/consult"
	"teleclinic/services/notification"
	"teleclinic/services/reminder"
	"teleclinic/services/scheduling"
	"teleclinic/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()
	utils.FirebaseInit()

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	// repositories.
	availRepo := availabilityRepo.NewMongoAvailabilityRepo()
	bkRepo := bookingRepo.NewMongoBookingRepo()
	sessRepo := sessionRepo.NewMongoSessionRepo()

	// services.
	availabilityService := &scheduling.DefaultAvailabilityService{
		Repo: availRepo,
	}

	proposer := &scheduling.SlotProposer{
		Availability: availabilityService,
		Bookings:     bkRepo,
		SlotDuration: time.Duration(config.AppConfig.SlotDurationMinutes) * time.Minute,
	}

	reminderScheduler := reminder.NewAsynqScheduler(asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisReminderQueueDB,
	})

	ledger := scheduling.NewDefaultBookingLedger(bkRepo, proposer)
	ledger.Reminders = reminderScheduler
	ledger.LockTimeout = time.Duration(config.AppConfig.DoctorLockTimeoutSec) * time.Second
	ledger.ReminderLead = time.Duration(config.AppConfig.ReminderLeadMinutes) * time.Minute

	provisioner := consult.NewLocalProvisioner(
		config.AppConfig.MaxMediaStreams,
		config.AppConfig.MaxXRSessions,
	)

	orchestrator := consult.NewDefaultSessionOrchestrator(ledger, provisioner)
	orchestrator.Records = sessRepo
	orchestrator.Snapshots = utils.GetCacheClient()
	orchestrator.IdleTimeout = time.Duration(config.AppConfig.SessionIdleTimeoutSec) * time.Second

	// Close the cycle: cancellations tear down live sessions, the no-show
	// sweep skips bookings with someone in the room.
	ledger.Sessions = orchestrator

	notificationService, err := notification.NewDefaultNotificationService(utils.GetCacheClient())
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize notification service: %v", err)
	}
	ledger.Notifications = notificationService

	// Background workers.
	cron.InitReminderWorker(notificationService)
	sweeper := cron.InitNoShowSweeper(ledger)
	reminderQueueClient := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisReminderQueueDB,
	})
	utils.StartHealthMonitor(utils.GetCacheClient(), reminderQueueClient, database.MongoClient)

	// handlers.
	availabilityHandler := handlers.NewAvailabilityHandler(availabilityService, logger)
	schedulingHandler := handlers.NewSchedulingHandler(proposer, ledger, bkRepo, logger)
	sessionHandler := handlers.NewSessionHandler(orchestrator, logger)

	// Assemble the handler bundle.
	handlerBundle := &handlers.HandlerBundle{
		SetTemplateHandler:      availabilityHandler.SetTemplateHandler,
		DeclareTimeOffHandler:   availabilityHandler.DeclareTimeOffHandler,
		GetOpenIntervalsHandler: availabilityHandler.GetOpenIntervalsHandler,

		ProposeSlotsHandler:       schedulingHandler.ProposeSlotsHandler,
		ReserveBookingHandler:     schedulingHandler.ReserveBookingHandler,
		CancelBookingHandler:      schedulingHandler.CancelBookingHandler,
		GetBookingHandler:         schedulingHandler.GetBookingHandler,
		ListDoctorBookingsHandler: schedulingHandler.ListDoctorBookingsHandler,

		StartSessionHandler:  sessionHandler.StartSessionHandler,
		ToggleControlHandler: sessionHandler.ToggleControlHandler,
		EndSessionHandler:    sessionHandler.EndSessionHandler,
		GetSessionHandler:    sessionHandler.GetSessionHandler,
	}

	// Register routes with the assembled handler bundle.
	routes.RegisterRoutes(router, handlerBundle)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
