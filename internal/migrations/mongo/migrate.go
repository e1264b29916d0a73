package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"medaccess/internal/migrations/mongo/validators"
)

var (
	AppointmentsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "qr_token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "patient_id", Value: 1}}},
		{Keys: bson.D{
			{Key: "consumed", Value: 1},
			{Key: "valid_until", Value: 1},
		}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	}

	PatientsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "medical_card_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	TerminalsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "ip", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "mac_address", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{Keys: bson.D{
			{Key: "active", Value: 1},
			{Key: "last_seen", Value: -1},
		}},
	}

	TerminalEventsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "terminal_id", Value: 1},
			{Key: "received_at", Value: -1},
		}},
		{Keys: bson.D{{Key: "event_type", Value: 1}}},
		{Keys: bson.D{{Key: "received_at", Value: -1}}},
	}

	AccessDecisionsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "token", Value: 1}}},
		{Keys: bson.D{{Key: "decided_at", Value: -1}}},
		{Keys: bson.D{
			{Key: "terminal_id", Value: 1},
			{Key: "decided_at", Value: -1},
		}},
	}

	IntegrationsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "api_token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
)

func RunMigration(ctx context.Context, client *mongo.Client, dbName string) error {
	db := client.Database(dbName)
	fmt.Printf("🚀 Running medical access Mongo migrations on database: %s\n", dbName)

	collections := map[string]struct {
		Indexes   []mongo.IndexModel
		Validator bson.M
	}{
		"Appointments": {
			Indexes:   AppointmentsIndexes,
			Validator: validators.AppointmentValidator,
		},
		"Patients": {
			Indexes:   PatientsIndexes,
			Validator: validators.PatientValidator,
		},
		"Terminals": {
			Indexes:   TerminalsIndexes,
			Validator: validators.TerminalValidator,
		},
		"Terminal_events": {
			Indexes:   TerminalEventsIndexes,
			Validator: validators.TerminalEventValidator,
		},
		"Access_decisions": {
			Indexes:   AccessDecisionsIndexes,
			Validator: validators.AccessDecisionValidator,
		},
		"Integrations": {
			Indexes:   IntegrationsIndexes,
			Validator: validators.IntegrationValidator,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	fmt.Println("✅ All migrations applied successfully.")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		fmt.Printf("🆕 Creating collection: %s\n", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
	} else {
		fmt.Printf("ℹ️ Collection %s already exists, updating validator if needed\n", name)
		command := bson.D{
			{Key: "collMod", Value: name},
			{Key: "validator", Value: validator},
		}
		if err := db.RunCommand(ctx, command).Err(); err != nil {
			fmt.Printf("⚠️ Warning: failed updating validator for %s: %v\n", name, err)
		}
	}

	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	coll := db.Collection(name)
	_, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	fmt.Printf("📚 Ensured indexes for %s\n", name)
	return nil
}
