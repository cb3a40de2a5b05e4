package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	propertieserrors "househunt/internal/properties/errors"
	"househunt/pkg/config"
	mongodb "househunt/pkg/db/mongo"
	"househunt/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Properties"
)

type PropertyRepository interface {
	Create(ctx context.Context, property *model.Property) error
	FindByID(ctx context.Context, id string) (*model.Property, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Property, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.Property, error)
	FindByTitle(ctx context.Context, title string) (*model.Property, error)
}

type mongoPropertyRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	retry      mongodb.RetryPolicy
}

func NewMongoPropertyRepository(cfg *config.Config) PropertyRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPropertyRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		retry:      mongodb.NewRetryPolicy(cfg.StoreRetryAttempts, cfg.StoreRetryBackoff),
	}
}

func (r *mongoPropertyRepository) Create(ctx context.Context, property *model.Property) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	property.ID = ""
	property.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	id, err := mongodb.InsertWithID(ctx, r.collection, r.retry, property)
	if err != nil {
		return fmt.Errorf("failed to create property: %w", err)
	}

	property.ID = id
	return nil
}

func (r *mongoPropertyRepository) FindByID(ctx context.Context, id string) (*model.Property, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", propertieserrors.ErrInvalidID, id)
	}

	return r.findOne(ctx, bson.M{"_id": objectID})
}

// FindByTitle returns the oldest property with the given title.
func (r *mongoPropertyRepository) FindByTitle(ctx context.Context, title string) (*model.Property, error) {
	return r.findOne(ctx, bson.M{"title": title})
}

func (r *mongoPropertyRepository) findOne(ctx context.Context, filter bson.M) (*model.Property, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	var property model.Property
	err := mongodb.Do(ctx, r.retry, func(ctx context.Context) error {
		return r.collection.FindOne(ctx, filter, opts).Decode(&property)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, propertieserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find property: %w", err)
	}

	return &property, nil
}

// FindAll returns properties in creation order. A zero limit returns all.
func (r *mongoPropertyRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Property, error) {
	return r.find(ctx, bson.M{}, limit, offset)
}

func (r *mongoPropertyRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.Property, error) {
	objectIDs := mongodb.ObjectIDs(ids)
	if len(objectIDs) == 0 {
		return []*model.Property{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}}, 0, 0)
}

func (r *mongoPropertyRepository) find(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Property, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	properties := []*model.Property{}
	err := mongodb.Do(ctx, r.retry, func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)

		properties = properties[:0]
		return cursor.All(ctx, &properties)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find properties: %w", err)
	}

	return properties, nil
}
