package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	listingsrepo "otithi/internal/listings/repository"
	"otithi/internal/notifications"
	usersrepo "otithi/internal/users/repository"
	"otithi/pkg/config"
	"otithi/pkg/kafka"
	kafka_config "otithi/pkg/kafka/config"
	kafka_middleware "otithi/pkg/kafka/middleware"
	"syscall"
)

const ServiceName = "notifier"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.Client.GracefulShutdown(cfg.Log)

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	var mailer notifications.Mailer
	if cfg.SMTPConfigured() {
		mailer = notifications.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailFrom)
		cfg.Log.Info("SMTP mailer configured", "host", cfg.SMTPHost)
	} else {
		mailer = notifications.NewLogMailer(cfg.Log)
		cfg.Log.Warn("SMTP not configured, emails will be logged")
	}

	notifier := notifications.NewNotifier(
		usersrepo.NewMongoUserRepository(cfg),
		listingsrepo.NewMongoListingRepository(cfg),
		mailer,
		cfg.Log,
	)

	consumer, err := kafka.NewConsumer(kafkaCfg, cfg.KafkaTopic, cfg.KafkaGroupID, cfg.KafkaDLQTopic, notifier.Handle, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}

	metrics := kafka_middleware.NewMetrics()
	if kafkaCfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		consumer.Use(kafka_middleware.MetricsConsumerMiddleware(metrics))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Log.Info("Notifier started", "topic", cfg.KafkaTopic, "group_id", cfg.KafkaGroupID, "dlq_topic", cfg.KafkaDLQTopic)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped", "error", err)
	}

	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close consumer", "error", err)
	}
	cfg.Log.Info("Notifier stopped", metrics.Snapshot().LogValues()...)
}
