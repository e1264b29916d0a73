package repository

import (
	"context"
	"fmt"
	"medaccess/pkg/config"
	"medaccess/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	AccessDecisionsCollection = "Access_decisions"
)

type mongoDecisionRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

// DecisionRepository is the append-only audit trail. One row per validation
// attempt, allow and deny alike.
type DecisionRepository interface {
	Insert(ctx context.Context, decision *model.AccessDecision) error
	FindRecent(ctx context.Context, limit int, offset int64) ([]*model.AccessDecision, error)
	Count(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	CountByDecisionSince(ctx context.Context, decision string, since time.Time) (int64, error)
}

func NewMongoDecisionRepository(cfg *config.Config) DecisionRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoDecisionRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(AccessDecisionsCollection),
	}
}

// Insert runs under MongoOpTimeout so a slow audit write cannot hold up the
// validation response.
func (r *mongoDecisionRepository) Insert(ctx context.Context, decision *model.AccessDecision) error {
	ctx, cancel := withTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	decision.DecidedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, decision)
	if err != nil {
		return fmt.Errorf("failed to insert access decision: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		decision.ID = oid.Hex()
	}
	return nil
}

func (r *mongoDecisionRepository) FindRecent(ctx context.Context, limit int, offset int64) ([]*model.AccessDecision, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "decided_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find access decisions: %w", err)
	}
	defer cursor.Close(ctx)

	var decisions []*model.AccessDecision
	if err = cursor.All(ctx, &decisions); err != nil {
		return nil, fmt.Errorf("failed to decode access decisions: %w", err)
	}

	return decisions, nil
}

func (r *mongoDecisionRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count access decisions: %w", err)
	}

	return count, nil
}

func (r *mongoDecisionRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"decided_at": bson.M{"$gte": since}}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count access decisions since: %w", err)
	}

	return count, nil
}

func (r *mongoDecisionRepository) CountByDecisionSince(ctx context.Context, decision string, since time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"decision":   decision,
		"decided_at": bson.M{"$gte": since},
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count access decisions by outcome: %w", err)
	}

	return count, nil
}
