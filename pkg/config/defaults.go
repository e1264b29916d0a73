package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "medaccess"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultMongoOpTimeout    = 2 * time.Second

	DefaultPort = "8080"

	// Terminals buffer events while offline and replay them on reconnect;
	// anything older than this is recorded but never validated.
	DefaultEventMaxAge           = 3 * time.Hour
	DefaultValidationGracePeriod = 0 * time.Second
	DefaultValidityHours         = 24

	DefaultISAPITimeout = 5 * time.Second

	DefaultKafkaDecisionsTopic    = "medaccess.access-decisions"
	DefaultKafkaDecisionsDLQTopic = "medaccess.access-decisions.dlq"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100

	MaxValidityHours = 168
)
