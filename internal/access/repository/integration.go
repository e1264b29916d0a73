package repository

import (
	"context"
	"errors"
	"fmt"
	accesserrors "medaccess/internal/access/errors"
	"medaccess/pkg/config"
	"medaccess/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	IntegrationsCollection = "Integrations"
)

type mongoIntegrationRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

type IntegrationRepository interface {
	Create(ctx context.Context, integration *model.Integration) error
	FindByToken(ctx context.Context, token string) (*model.Integration, error)
	Count(ctx context.Context) (int64, error)
}

func NewMongoIntegrationRepository(cfg *config.Config) IntegrationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoIntegrationRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(IntegrationsCollection),
	}
}

func (r *mongoIntegrationRepository) Create(ctx context.Context, integration *model.Integration) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	integration.CreatedAt = now
	integration.UpdatedAt = now
	result, err := r.collection.InsertOne(ctx, integration)
	if err != nil {
		return fmt.Errorf("failed to create integration: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		integration.ID = oid.Hex()
	}
	return nil
}

// FindByToken authenticates every API request, so it runs under the short
// MongoOpTimeout. Disabled integrations do not match.
func (r *mongoIntegrationRepository) FindByToken(ctx context.Context, token string) (*model.Integration, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	filter := bson.M{"api_token": token, "active": true}

	var integration model.Integration
	err := r.collection.FindOne(ctx, filter).Decode(&integration)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, accesserrors.ErrIntegrationNotFound
		}
		return nil, fmt.Errorf("failed to find integration by token: %w", err)
	}

	return &integration, nil
}

func (r *mongoIntegrationRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count integrations: %w", err)
	}

	return count, nil
}
