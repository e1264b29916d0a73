package repository

import (
	"context"
	"errors"
	"fmt"
	accesserrors "medaccess/internal/access/errors"
	"medaccess/pkg/config"
	mongotx "medaccess/pkg/db/mongo"
	"medaccess/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	AppointmentsCollection = "Appointments"
)

type mongoAppointmentRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type AppointmentRepository interface {
	Create(ctx context.Context, appointment *model.Appointment) error
	FindByID(ctx context.Context, id string) (*model.Appointment, error)
	FindByToken(ctx context.Context, token string) (*model.Appointment, error)
	TryConsume(ctx context.Context, token string, terminalID string, at time.Time) (bool, error)
	Release(ctx context.Context, token string) error
	Revoke(ctx context.Context, id string) error
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Appointment, error)
	Count(ctx context.Context) (int64, error)
	CountActive(ctx context.Context, now time.Time) (int64, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
	CountConsumedSince(ctx context.Context, since time.Time) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoAppointmentRepository(cfg *config.Config) AppointmentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAppointmentRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(AppointmentsCollection),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoAppointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	appointment.CreatedAt = now
	appointment.UpdatedAt = now
	result, err := r.collection.InsertOne(ctx, appointment)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return accesserrors.ErrDuplicateToken
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		appointment.ID = oid.Hex()
	}
	return nil
}

func (r *mongoAppointmentRepository) FindByID(ctx context.Context, id string) (*model.Appointment, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", accesserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}

	var appointment model.Appointment
	err = r.collection.FindOne(ctx, filter).Decode(&appointment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, accesserrors.ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}

	return &appointment, nil
}

// FindByToken is on the validation hot path, so it runs under the short
// MongoOpTimeout rather than the regular read timeout.
func (r *mongoAppointmentRepository) FindByToken(ctx context.Context, token string) (*model.Appointment, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	var appointment model.Appointment
	err := r.collection.FindOne(ctx, bson.M{"qr_token": token}).Decode(&appointment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, accesserrors.ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("failed to find appointment by token: %w", err)
	}

	return &appointment, nil
}

// TryConsume flips consumed false->true as a single compare-and-set. Filter
// and update execute as one document operation, so of N concurrent attempts
// on the same token exactly one observes ModifiedCount == 1. The filter also
// excludes revoked appointments, closing the race between a revoke and a
// concurrent scan.
func (r *mongoAppointmentRepository) TryConsume(ctx context.Context, token string, terminalID string, at time.Time) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	filter := bson.M{
		"qr_token": token,
		"consumed": false,
		"revoked":  false,
	}
	update := bson.M{
		"$set": bson.M{
			"consumed":    true,
			"consumed_at": at,
			"consumed_by": terminalID,
			"updated_at":  time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to consume appointment: %w", err)
	}

	return result.ModifiedCount == 1, nil
}

// Release reverts a consume after a downstream failure, e.g. the door did
// not open. Compare-and-set in the opposite direction: only a consumed
// token flips back.
func (r *mongoAppointmentRepository) Release(ctx context.Context, token string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	filter := bson.M{
		"qr_token": token,
		"consumed": true,
	}
	update := bson.M{
		"$set": bson.M{
			"consumed":   false,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
		"$unset": bson.M{
			"consumed_at": "",
			"consumed_by": "",
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to release appointment: %w", err)
	}

	if result.MatchedCount == 0 {
		return accesserrors.ErrAppointmentNotFound
	}

	return nil
}

func (r *mongoAppointmentRepository) Revoke(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", accesserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}
	update := bson.M{
		"$set": bson.M{
			"revoked":    true,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to revoke appointment: %w", err)
	}

	if result.MatchedCount == 0 {
		return accesserrors.ErrAppointmentNotFound
	}

	return nil
}

func (r *mongoAppointmentRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Appointment, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find appointments: %w", err)
	}
	defer cursor.Close(ctx)

	var appointments []*model.Appointment
	if err = cursor.All(ctx, &appointments); err != nil {
		return nil, fmt.Errorf("failed to decode appointments: %w", err)
	}

	return appointments, nil
}

func (r *mongoAppointmentRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}

	return count, nil
}

// CountActive counts appointments still usable at the given instant:
// unconsumed, unrevoked, and inside their validity window.
func (r *mongoAppointmentRepository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"consumed":    false,
		"revoked":     false,
		"valid_from":  bson.M{"$lte": now},
		"valid_until": bson.M{"$gte": now},
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count active appointments: %w", err)
	}

	return count, nil
}

func (r *mongoAppointmentRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"created_at": bson.M{"$gte": since}}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count created appointments: %w", err)
	}

	return count, nil
}

func (r *mongoAppointmentRepository) CountConsumedSince(ctx context.Context, since time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"consumed":    true,
		"consumed_at": bson.M{"$gte": since},
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count consumed appointments: %w", err)
	}

	return count, nil
}

func (r *mongoAppointmentRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
