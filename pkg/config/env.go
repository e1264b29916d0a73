package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvMongoOpTimeout    = "MONGO_OP_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvTerminalSharedSecret  = "TERMINAL_SHARED_SECRET"
	EnvEventMaxAge           = "EVENT_MAX_AGE"
	EnvValidationGracePeriod = "VALIDATION_GRACE_PERIOD"
	EnvDefaultValidityHours  = "DEFAULT_VALIDITY_HOURS"

	EnvISAPITimeout = "ISAPI_TIMEOUT"

	EnvKafkaEnabled           = "KAFKA_ENABLED"
	EnvKafkaDecisionsTopic    = "KAFKA_DECISIONS_TOPIC"
	EnvKafkaDecisionsDLQTopic = "KAFKA_DECISIONS_DLQ_TOPIC"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
