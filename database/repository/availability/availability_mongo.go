package availabilityRepo

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

// MongoAvailabilityRepo implements AvailabilityRepository using MongoDB.
type MongoAvailabilityRepo struct {
	templateColl *mongo.Collection
	timeOffColl  *mongo.Collection
}

// NewMongoAvailabilityRepo constructs a new instance of MongoAvailabilityRepo.
func NewMongoAvailabilityRepo() AvailabilityRepository {
	db := database.MongoClient.Database("teleclinic")
	return &MongoAvailabilityRepo{
		templateColl: db.Collection("availability_templates"),
		timeOffColl:  db.Collection("time_off"),
	}
}

// GetTemplate retrieves a doctor's weekly template.
func (repo *MongoAvailabilityRepo) GetTemplate(ctx context.Context, doctorID string) (*models.AvailabilityTemplate, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var tmpl models.AvailabilityTemplate
	err := repo.templateColl.FindOne(ctx, bson.M{"doctor_id": doctorID}).Decode(&tmpl)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching template for doctor %s: %w", doctorID, err)
	}
	return &tmpl, nil
}

// UpsertTemplate replaces a doctor's weekly template.
func (repo *MongoAvailabilityRepo) UpsertTemplate(ctx context.Context, tmpl *models.AvailabilityTemplate) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"doctor_id": tmpl.DoctorID}
	opts := options.Replace().SetUpsert(true)
	if _, err := repo.templateColl.ReplaceOne(ctx, filter, tmpl, opts); err != nil {
		return fmt.Errorf("error upserting template for doctor %s: %w", tmpl.DoctorID, err)
	}
	return nil
}

// AddTimeOff inserts a time-off exception.
func (repo *MongoAvailabilityRepo) AddTimeOff(ctx context.Context, off *models.TimeOff) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := repo.timeOffColl.InsertOne(ctx, off); err != nil {
		return fmt.Errorf("error inserting time off for doctor %s: %w", off.DoctorID, err)
	}
	return nil
}

// ListTimeOff returns time-off entries overlapping the given range.
func (repo *MongoAvailabilityRepo) ListTimeOff(ctx context.Context, doctorID string, within models.TimeInterval) ([]models.TimeOff, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"doctor_id":      doctorID,
		"interval.start": bson.M{"$lt": within.End},
		"interval.end":   bson.M{"$gt": within.Start},
	}
	cursor, err := repo.timeOffColl.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing time off for doctor %s: %w", doctorID, err)
	}
	defer cursor.Close(ctx)

	var entries []models.TimeOff
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("error decoding time off for doctor %s: %w", doctorID, err)
	}
	return entries, nil
}
