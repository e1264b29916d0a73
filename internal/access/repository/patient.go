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
	PatientsCollection = "Patients"
)

type mongoPatientRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

type PatientRepository interface {
	UpsertByCardNumber(ctx context.Context, patient *model.Patient) (*model.Patient, error)
	FindByID(ctx context.Context, id string) (*model.Patient, error)
	Count(ctx context.Context) (int64, error)
}

func NewMongoPatientRepository(cfg *config.Config) PatientRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPatientRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(PatientsCollection),
	}
}

// UpsertByCardNumber keys the patient on the medical card number: repeated
// appointment creation for the same card refreshes name and phone instead of
// growing a duplicate row. Returns the post-update document, ID populated.
func (r *mongoPatientRepository) UpsertByCardNumber(ctx context.Context, patient *model.Patient) (*model.Patient, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)

	filter := bson.M{"medical_card_number": patient.MedicalCardNumber}
	update := bson.M{
		"$set": bson.M{
			"first_name": patient.FirstName,
			"last_name":  patient.LastName,
			"phone":      patient.Phone,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"medical_card_number": patient.MedicalCardNumber,
			"created_at":          now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var saved model.Patient
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&saved)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert patient: %w", err)
	}

	return &saved, nil
}

func (r *mongoPatientRepository) FindByID(ctx context.Context, id string) (*model.Patient, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", accesserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}

	var patient model.Patient
	err = r.collection.FindOne(ctx, filter).Decode(&patient)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, accesserrors.ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to find patient: %w", err)
	}

	return &patient, nil
}

func (r *mongoPatientRepository) FindByCardNumber(ctx context.Context, cardNumber string) (*model.Patient, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var patient model.Patient
	err := r.collection.FindOne(ctx, bson.M{"medical_card_number": cardNumber}).Decode(&patient)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, accesserrors.ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to find patient by card number: %w", err)
	}

	return &patient, nil
}

func (r *mongoPatientRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count patients: %w", err)
	}

	return count, nil
}
