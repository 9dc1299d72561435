package cron

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"teleclinic/config"
	"teleclinic/models"
	"teleclinic/services/notification"
	"teleclinic/services/scheduling"
	"teleclinic/services/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	cronv3 "github.com/robfig/cron/v3"
)

// InitReminderWorker runs the async worker in background.
func InitReminderWorker(notifSvc notification.NotificationService) {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisReminderQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSendReminder, handleReminderTask(notifSvc))

	// Start Redis health monitor
	go monitorRedisConnection()

	// Start async worker with retry logic
	go func() {
		log.Println("[ReminderWorker] 🚀 Starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[ReminderWorker] ❌ Attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[ReminderWorker] ❗ Max retry attempts reached. Exiting.")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second) // Exponential backoff
			} else {
				break
			}
		}
	}()
}

func handleReminderTask(notifSvc notification.NotificationService) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p models.ReminderPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			log.Printf("[ReminderHandler] 🔴 Invalid payload: %v", err)
			return err
		}

		log.Printf("[ReminderHandler] ⏰ Triggering reminder for booking %s → patient %s", p.BookingID, p.PatientID)

		if err := notifSvc.NotifyUpcomingConsultation(ctx, p); err != nil {
			log.Printf("[ReminderHandler] ❌ Failed to send notification: %v", err)
			return err
		}
		return nil
	}
}

// InitNoShowSweeper periodically marks confirmed bookings no_show once their
// window has closed without anyone joining.
func InitNoShowSweeper(ledger scheduling.BookingLedger) *cronv3.Cron {
	c := cronv3.New()
	_, err := c.AddFunc("@every 5m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		swept, err := ledger.SweepNoShows(ctx, time.Now())
		if err != nil {
			log.Printf("[NoShowSweeper] ❌ Sweep failed: %v", err)
			return
		}
		if swept > 0 {
			log.Printf("[NoShowSweeper] Marked %d booking(s) as no_show", swept)
		}
	})
	if err != nil {
		log.Fatalf("[NoShowSweeper] ❗ Failed to register sweep job: %v", err)
	}
	c.Start()
	return c
}

// monitorRedisConnection pings Redis periodically to detect failures at runtime.
func monitorRedisConnection() {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisReminderQueueDB,
	})

	ctx := context.Background()

	for {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[ReminderWorker] ⚠️ Redis connection lost: %v", err)
		}
		time.Sleep(10 * time.Second)
	}
}
