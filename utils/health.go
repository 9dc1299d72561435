package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthStatus reports the reachability of the stores the scheduling and
// session engines depend on: mongo for bookings and session records, the
// cache for session snapshots, and the redis DB backing the reminder queue.
type HealthStatus struct {
	Mongo         bool      `json:"mongo"`
	Cache         bool      `json:"cache"`
	ReminderQueue bool      `json:"reminderQueue"`
	CheckedAt     time.Time `json:"checkedAt"`
}

var (
	currentHealth HealthStatus
	healthMu      sync.RWMutex
)

// GetHealthStatus returns latest stored health snapshot.
func GetHealthStatus() HealthStatus {
	healthMu.RLock()
	defer healthMu.RUnlock()
	return currentHealth
}

// CheckHealth pings each dependency once and returns the result.
func CheckHealth(ctx context.Context, cache, reminderQueue *redis.Client, mongoClient *mongo.Client) HealthStatus {
	return HealthStatus{
		Mongo:         mongoClient.Ping(ctx, nil) == nil,
		Cache:         cache.Ping(ctx).Err() == nil,
		ReminderQueue: reminderQueue.Ping(ctx).Err() == nil,
		CheckedAt:     time.Now(),
	}
}

// StartHealthMonitor performs periodic health checks and updates in-memory state.
func StartHealthMonitor(cache, reminderQueue *redis.Client, mongoClient *mongo.Client) {
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()

		ctx := context.Background()

		for range ticker.C {
			status := CheckHealth(ctx, cache, reminderQueue, mongoClient)

			healthMu.Lock()
			currentHealth = status
			healthMu.Unlock()
		}
	}()
}
