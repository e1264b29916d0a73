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
	TerminalEventsCollection = "Terminal_events"
)

type mongoTerminalEventRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

// TerminalEventRepository is append-only: events are evidence, never edited.
type TerminalEventRepository interface {
	Insert(ctx context.Context, event *model.TerminalEvent) error
	FindRecent(ctx context.Context, limit int, offset int64) ([]*model.TerminalEvent, error)
	Count(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

func NewMongoTerminalEventRepository(cfg *config.Config) TerminalEventRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoTerminalEventRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(TerminalEventsCollection),
	}
}

// Insert runs under MongoOpTimeout: it happens on every webhook delivery and
// must not stall the receiver's acknowledgement.
func (r *mongoTerminalEventRepository) Insert(ctx context.Context, event *model.TerminalEvent) error {
	ctx, cancel := withTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	event.ReceivedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to insert terminal event: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		event.ID = oid.Hex()
	}
	return nil
}

func (r *mongoTerminalEventRepository) FindRecent(ctx context.Context, limit int, offset int64) ([]*model.TerminalEvent, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "received_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find terminal events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*model.TerminalEvent
	if err = cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode terminal events: %w", err)
	}

	return events, nil
}

func (r *mongoTerminalEventRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count terminal events: %w", err)
	}

	return count, nil
}

func (r *mongoTerminalEventRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"received_at": bson.M{"$gte": since}}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count terminal events since: %w", err)
	}

	return count, nil
}
