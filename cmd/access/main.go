package main

import (
	"net/http"

	"medaccess/internal/access/handler"
	"medaccess/internal/access/repository"
	"medaccess/internal/access/service"
	"medaccess/internal/access/validator"
	"medaccess/pkg/app"
	"medaccess/pkg/config"
	"medaccess/pkg/kafka"
	kafka_config "medaccess/pkg/kafka/config"
	kafka_middleware "medaccess/pkg/kafka/middleware"
)

const ServiceName = "medical-access"

func main() {
	cfg := config.Load(ServiceName)
	cfg.LogConfiguration()

	cfg.Log.Info("Starting Medical Access service")
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	producer := initProducer(cfg)
	if producer != nil {
		defer producer.Close()
	}

	apiHandler, eventsHandler, integrationService := initServices(cfg, producer)

	verifyToken := func(r *http.Request, token string) error {
		return integrationService.VerifyToken(r.Context(), token)
	}

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, apiHandler, eventsHandler, verifyToken)
	serverApp.Run()
}

// initProducer builds the decision-audit publisher. Kafka is optional: with
// KAFKA_ENABLED unset the decision log stays Mongo-only.
func initProducer(cfg *config.Config) *kafka.Producer {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka decision publishing disabled")
		return nil
	}

	kafkaCfg := kafka_config.Load()
	if err := kafkaCfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.KafkaDecisionsTopic, cfg.KafkaDecisionsDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware())
	producer.Use(kafka_middleware.MetricsProducerMiddleware())

	cfg.Log.Info("Kafka decision publishing enabled", "topic", cfg.KafkaDecisionsTopic)
	return producer
}

func initServices(cfg *config.Config, producer *kafka.Producer) (*handler.APIHandler, *handler.EventsHandler, service.IntegrationService) {
	accessValidator := validator.NewAccessValidator(cfg.Log)

	appointmentRepo := repository.NewMongoAppointmentRepository(cfg)
	patientRepo := repository.NewMongoPatientRepository(cfg)
	terminalRepo := repository.NewMongoTerminalRepository(cfg)
	eventRepo := repository.NewMongoTerminalEventRepository(cfg)
	decisionRepo := repository.NewMongoDecisionRepository(cfg)
	integrationRepo := repository.NewMongoIntegrationRepository(cfg)

	decisionLogger := service.NewDecisionLogger(decisionRepo, producer, cfg)
	validationService := service.NewValidationService(appointmentRepo, decisionLogger, cfg)
	appointmentService := service.NewAppointmentService(appointmentRepo, patientRepo, accessValidator, cfg)
	terminalService := service.NewTerminalService(terminalRepo, appointmentRepo, validationService, accessValidator, nil, cfg)
	receiverService := service.NewReceiverService(terminalRepo, eventRepo, validationService, cfg)
	statsService := service.NewStatsService(appointmentRepo, patientRepo, eventRepo, decisionRepo, decisionLogger, cfg)
	integrationService := service.NewIntegrationService(integrationRepo, cfg)

	apiHandler := handler.NewAPIHandler(
		handler.NewAppointmentHandler(appointmentService, cfg.Log),
		handler.NewValidationHandler(validationService, patientRepo, cfg.Log),
		handler.NewTerminalHandler(terminalService, cfg.Log),
		handler.NewStatsHandler(statsService, cfg.Log),
	)
	eventsHandler := handler.NewEventsHandler(receiverService, cfg.Log)

	cfg.Log.Info("Medical access services initialized", "database", cfg.MongoDatabaseName)
	return apiHandler, eventsHandler, integrationService
}
