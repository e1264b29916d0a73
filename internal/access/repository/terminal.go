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
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	TerminalsCollection = "Terminals"
)

type mongoTerminalRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

type TerminalRepository interface {
	Create(ctx context.Context, terminal *model.Terminal) error
	FindByID(ctx context.Context, id string) (*model.Terminal, error)
	FindByMAC(ctx context.Context, mac string) (*model.Terminal, error)
	FindByIP(ctx context.Context, ip string) (*model.Terminal, error)
	FindMostRecentActive(ctx context.Context) (*model.Terminal, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Terminal, error)
	Update(ctx context.Context, id string, patch *model.TerminalUpdate) (*model.Terminal, error)
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
	RecordProbe(ctx context.Context, id string, health *model.TerminalHealth) error
	Count(ctx context.Context) (int64, error)
}

func NewMongoTerminalRepository(cfg *config.Config) TerminalRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoTerminalRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(TerminalsCollection),
	}
}

func (r *mongoTerminalRepository) Create(ctx context.Context, terminal *model.Terminal) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	terminal.CreatedAt = now
	terminal.UpdatedAt = now
	result, err := r.collection.InsertOne(ctx, terminal)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return accesserrors.ErrDuplicateTerminal
		}
		return fmt.Errorf("failed to create terminal: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		terminal.ID = oid.Hex()
	}
	return nil
}

func (r *mongoTerminalRepository) FindByID(ctx context.Context, id string) (*model.Terminal, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", accesserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}

	var terminal model.Terminal
	err = r.collection.FindOne(ctx, filter).Decode(&terminal)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, accesserrors.ErrTerminalNotFound
		}
		return nil, fmt.Errorf("failed to find terminal: %w", err)
	}

	return &terminal, nil
}

// FindByMAC resolves event deliveries, so it runs under MongoOpTimeout.
// Only active terminals participate in resolution.
func (r *mongoTerminalRepository) FindByMAC(ctx context.Context, mac string) (*model.Terminal, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	filter := bson.M{"mac_address": mac, "active": true}

	var terminal model.Terminal
	err := r.collection.FindOne(ctx, filter).Decode(&terminal)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, accesserrors.ErrTerminalNotFound
		}
		return nil, fmt.Errorf("failed to find terminal by mac: %w", err)
	}

	return &terminal, nil
}

func (r *mongoTerminalRepository) FindByIP(ctx context.Context, ip string) (*model.Terminal, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	filter := bson.M{"ip": ip, "active": true}

	var terminal model.Terminal
	err := r.collection.FindOne(ctx, filter).Decode(&terminal)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, accesserrors.ErrTerminalNotFound
		}
		return nil, fmt.Errorf("failed to find terminal by ip: %w", err)
	}

	return &terminal, nil
}

// FindMostRecentActive is the last-resort resolution fallback: the active
// terminal that reported most recently.
func (r *mongoTerminalRepository) FindMostRecentActive(ctx context.Context) (*model.Terminal, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	opts := options.FindOne().
		SetSort(bson.D{{Key: "last_seen", Value: -1}})

	var terminal model.Terminal
	err := r.collection.FindOne(ctx, bson.M{"active": true}, opts).Decode(&terminal)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, accesserrors.ErrTerminalNotFound
		}
		return nil, fmt.Errorf("failed to find most recent terminal: %w", err)
	}

	return &terminal, nil
}

func (r *mongoTerminalRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Terminal, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find terminals: %w", err)
	}
	defer cursor.Close(ctx)

	var terminals []*model.Terminal
	if err = cursor.All(ctx, &terminals); err != nil {
		return nil, fmt.Errorf("failed to decode terminals: %w", err)
	}

	return terminals, nil
}

// Update applies a partial patch; nil fields in the patch leave the stored
// value untouched. Returns the post-update document.
func (r *mongoTerminalRepository) Update(ctx context.Context, id string, patch *model.TerminalUpdate) (*model.Terminal, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", accesserrors.ErrInvalidID, id)
	}

	set := bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.IP != nil {
		set["ip"] = *patch.IP
	}
	if patch.MACAddress != nil {
		set["mac_address"] = *patch.MACAddress
	}
	if patch.Username != nil {
		set["username"] = *patch.Username
	}
	if patch.Password != nil {
		set["password"] = *patch.Password
	}
	if patch.Mode != nil {
		set["mode"] = *patch.Mode
	}
	if patch.DoorNo != nil {
		set["door_no"] = *patch.DoorNo
	}
	if patch.Active != nil {
		set["active"] = *patch.Active
	}

	filter := bson.M{"_id": objectID}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var terminal model.Terminal
	err = r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&terminal)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, accesserrors.ErrTerminalNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, accesserrors.ErrDuplicateTerminal
		}
		return nil, fmt.Errorf("failed to update terminal: %w", err)
	}

	return &terminal, nil
}

// TouchLastSeen marks a terminal alive after it delivered an event.
func (r *mongoTerminalRepository) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := withTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", accesserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}
	update := bson.M{
		"$set": bson.M{
			"last_seen":  at,
			"reachable":  true,
			"last_error": "",
		},
	}

	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to touch terminal: %w", err)
	}

	return nil
}

// RecordProbe stores the outcome of an ISAPI health check.
func (r *mongoTerminalRepository) RecordProbe(ctx context.Context, id string, health *model.TerminalHealth) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", accesserrors.ErrInvalidID, id)
	}

	set := bson.M{
		"reachable":  health.Reachable,
		"last_error": health.Error,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}
	if health.Reachable {
		set["last_seen"] = health.CheckedAt
	}

	filter := bson.M{"_id": objectID}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to record probe: %w", err)
	}

	if result.MatchedCount == 0 {
		return accesserrors.ErrTerminalNotFound
	}

	return nil
}

func (r *mongoTerminalRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count terminals: %w", err)
	}

	return count, nil
}
