package main

import (
	"househunt/internal/bookings/events"
	"househunt/internal/househunt"
	"househunt/pkg/app"
	"househunt/pkg/config"
	"househunt/pkg/kafka"
)

const ServiceName = "househunt"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting HouseHunt service")
	serverApp := app.NewApplication(cfg)

	publisher := initPublisher(cfg, serverApp)
	services := househunt.NewServices(cfg, publisher)

	serverApp.SetApp(services.Handlers(cfg)...)
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}

func initPublisher(cfg *config.Config, serverApp *app.Application) events.Publisher {
	if !cfg.EventsEnabled() {
		cfg.Log.Info("Booking events disabled", "reason", "KAFKA_BROKERS not set")
		return events.NopPublisher{}
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaBookingTopic,
	})
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka.LoggingMiddleware(cfg.Log))

	serverApp.OnShutdown(func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})

	cfg.Log.Info("Booking events enabled",
		"brokers", cfg.KafkaBrokers,
		"topic", producer.Topic(),
	)
	return events.NewKafkaPublisher(producer, ServiceName, cfg.Log)
}
