package bookingRepo

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

// MongoBookingRepo implements BookingRepository using MongoDB.
type MongoBookingRepo struct {
	bookingColl *mongo.Collection
}

// NewMongoBookingRepo constructs a new instance of MongoBookingRepo.
func NewMongoBookingRepo() BookingRepository {
	db := database.MongoClient.Database("teleclinic")
	return &MongoBookingRepo{
		bookingColl: db.Collection("bookings"),
	}
}

// Insert creates a new booking document.
func (repo *MongoBookingRepo) Insert(ctx context.Context, booking *models.Booking) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := repo.bookingColl.InsertOne(ctx, booking); err != nil {
		return fmt.Errorf("error creating booking: %w", err)
	}
	return nil
}

// GetByID retrieves a booking by its ID.
func (repo *MongoBookingRepo) GetByID(ctx context.Context, bookingID string) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var booking models.Booking
	err := repo.bookingColl.FindOne(ctx, bson.M{"id": bookingID}).Decode(&booking)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching booking %s: %w", bookingID, err)
	}
	return &booking, nil
}

// Update modifies an existing booking document.
func (repo *MongoBookingRepo) Update(ctx context.Context, booking *models.Booking) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": booking.ID}
	update := bson.M{"$set": booking}
	res, err := repo.bookingColl.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("error updating booking %s: %w", booking.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListConfirmedOverlapping returns confirmed bookings overlapping the interval.
func (repo *MongoBookingRepo) ListConfirmedOverlapping(ctx context.Context, doctorID string, ival models.TimeInterval) ([]models.Booking, error) {
	filter := bson.M{
		"doctor_id":      doctorID,
		"status":         models.BookingConfirmed,
		"interval.start": bson.M{"$lt": ival.End},
		"interval.end":   bson.M{"$gt": ival.Start},
	}
	return repo.list(ctx, filter)
}

// ListConfirmedInRange returns confirmed bookings starting inside [from, to).
func (repo *MongoBookingRepo) ListConfirmedInRange(ctx context.Context, doctorID string, from, to time.Time) ([]models.Booking, error) {
	filter := bson.M{
		"doctor_id":      doctorID,
		"status":         models.BookingConfirmed,
		"interval.start": bson.M{"$gte": from, "$lt": to},
	}
	return repo.list(ctx, filter)
}

// ListConfirmedEndedBefore returns confirmed bookings whose window has closed.
func (repo *MongoBookingRepo) ListConfirmedEndedBefore(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	filter := bson.M{
		"status":       models.BookingConfirmed,
		"interval.end": bson.M{"$lt": cutoff},
	}
	return repo.list(ctx, filter)
}

func (repo *MongoBookingRepo) list(ctx context.Context, filter bson.M) ([]models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "interval.start", Value: 1}})
	cursor, err := repo.bookingColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []models.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("error decoding bookings: %w", err)
	}
	return bookings, nil
}
