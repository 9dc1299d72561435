package utils

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestCheckHealthReportsEachDependency(t *testing.T) {
	// Nothing is listening on port 1 and the mongo client is never
	// connected, so every probe should come back unhealthy.
	unreachable := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer unreachable.Close()

	mongoClient, err := mongo.NewClient(options.Client().ApplyURI("mongodb://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("mongo.NewClient failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := CheckHealth(ctx, unreachable, unreachable, mongoClient)
	if status.Mongo {
		t.Error("mongo reported healthy without a connection")
	}
	if status.Cache {
		t.Error("cache reported healthy with nothing listening")
	}
	if status.ReminderQueue {
		t.Error("reminder queue reported healthy with nothing listening")
	}
	if status.CheckedAt.IsZero() {
		t.Error("CheckedAt not stamped")
	}
}
