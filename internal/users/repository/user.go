package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	userserrors "househunt/internal/users/errors"
	"househunt/pkg/config"
	mongodb "househunt/pkg/db/mongo"
	"househunt/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	CollectionName = "Users"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.User, error)
}

type mongoUserRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	retry      mongodb.RetryPolicy
}

func NewMongoUserRepository(cfg *config.Config) UserRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoUserRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		retry:      mongodb.NewRetryPolicy(cfg.StoreRetryAttempts, cfg.StoreRetryBackoff),
	}
}

func (r *mongoUserRepository) Create(ctx context.Context, user *model.User) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	user.ID = ""
	user.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	id, err := mongodb.InsertWithID(ctx, r.collection, r.retry, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return userserrors.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.ID = id
	return nil
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", userserrors.ErrInvalidID, id)
	}

	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *mongoUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var user model.User
	err := mongodb.Do(ctx, r.retry, func(ctx context.Context) error {
		return r.collection.FindOne(ctx, filter).Decode(&user)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, userserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return &user, nil
}

// FindByIDs returns the users among ids that exist, in no particular order.
// Malformed ids are ignored.
func (r *mongoUserRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	objectIDs := mongodb.ObjectIDs(ids)
	if len(objectIDs) == 0 {
		return []*model.User{}, nil
	}

	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var users []*model.User
	err := mongodb.Do(ctx, r.retry, func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)

		users = users[:0]
		return cursor.All(ctx, &users)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}

	return users, nil
}
