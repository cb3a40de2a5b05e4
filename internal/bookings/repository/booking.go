package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "househunt/internal/bookings/errors"
	"househunt/pkg/config"
	mongodb "househunt/pkg/db/mongo"
	"househunt/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, error)
	UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus) (*model.Booking, error)
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	retry      mongodb.RetryPolicy
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		retry:      mongodb.NewRetryPolicy(cfg.StoreRetryAttempts, cfg.StoreRetryBackoff),
	}
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.ID = ""
	booking.CreatedAt = now
	booking.UpdatedAt = now

	id, err := mongodb.InsertWithID(ctx, r.collection, r.retry, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	booking.ID = id
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = mongodb.Do(ctx, r.retry, func(ctx context.Context) error {
		return r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

// FindAll returns bookings in creation order, _id breaking ties. A zero limit
// returns all.
func (r *mongoBookingRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	bookings := []*model.Booking{}
	err := mongodb.Do(ctx, r.retry, func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, bson.M{}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)

		bookings = bookings[:0]
		return cursor.All(ctx, &bookings)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}

	return bookings, nil
}

// UpdateStatus moves a booking from one status to another only if it is still
// in the from status. It is not retried at this layer: a replay after an
// ambiguous failure would see the new status and report ErrStatusChanged.
func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus) (*model.Booking, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": from}
	update := bson.M{
		"$set": bson.M{
			"status":     to,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrStatusChanged
		}
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	return &booking, nil
}
