package sessionRepo

import (
	"context"
	"fmt"
	"time"

	"teleclinic/database"
	"teleclinic/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSessionRepo implements SessionRepository using MongoDB.
type MongoSessionRepo struct {
	sessionColl *mongo.Collection
}

// NewMongoSessionRepo constructs a new instance of MongoSessionRepo.
func NewMongoSessionRepo() SessionRepository {
	db := database.MongoClient.Database("teleclinic")
	return &MongoSessionRepo{
		sessionColl: db.Collection("sessions"),
	}
}

// Save upserts a session record by ID.
func (repo *MongoSessionRepo) Save(ctx context.Context, session *models.Session) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": session.ID}
	opts := options.Replace().SetUpsert(true)
	if _, err := repo.sessionColl.ReplaceOne(ctx, filter, session, opts); err != nil {
		return fmt.Errorf("error saving session %s: %w", session.ID, err)
	}
	return nil
}

// GetByID retrieves a session record by its ID.
func (repo *MongoSessionRepo) GetByID(ctx context.Context, sessionID string) (*models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var session models.Session
	err := repo.sessionColl.FindOne(ctx, bson.M{"id": sessionID}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching session %s: %w", sessionID, err)
	}
	return &session, nil
}
