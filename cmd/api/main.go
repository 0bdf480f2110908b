package main

import (
	"context"
	"net/http"
	adminhandler "otithi/internal/admin/handler"
	adminservice "otithi/internal/admin/service"
	"otithi/internal/auth"
	bookinghandler "otithi/internal/bookings/handler"
	bookingrepo "otithi/internal/bookings/repository"
	bookingservice "otithi/internal/bookings/service"
	bookingvalidator "otithi/internal/bookings/validator"
	"otithi/internal/events"
	"otithi/internal/health"
	"otithi/internal/listings/cache"
	listinghandler "otithi/internal/listings/handler"
	listingrepo "otithi/internal/listings/repository"
	listingservice "otithi/internal/listings/service"
	"otithi/internal/listings/storage"
	listingvalidator "otithi/internal/listings/validator"
	messagehandler "otithi/internal/messages/handler"
	"otithi/internal/messages/hub"
	messagerepo "otithi/internal/messages/repository"
	messageservice "otithi/internal/messages/service"
	messagevalidator "otithi/internal/messages/validator"
	reviewhandler "otithi/internal/reviews/handler"
	reviewrepo "otithi/internal/reviews/repository"
	reviewservice "otithi/internal/reviews/service"
	reviewvalidator "otithi/internal/reviews/validator"
	userhandler "otithi/internal/users/handler"
	userrepo "otithi/internal/users/repository"
	userservice "otithi/internal/users/service"
	uservalidator "otithi/internal/users/validator"
	"otithi/pkg/app"
	"otithi/pkg/config"
	"otithi/pkg/contracts"
	"otithi/pkg/kafka"
	kafka_config "otithi/pkg/kafka/config"
	"otithi/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

const ServiceName = "api"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Otithi API")
	serverApp := app.NewApplication(cfg)

	publisher := initPublisher(cfg)
	serverApp.OnShutdown("event publisher", publisher.Close)

	live := hub.New(cfg.CORSAllowedOrigins, cfg.Log)
	serverApp.OnShutdown("websocket hub", func() error {
		live.Close()
		return nil
	})

	authenticator := initAuth(cfg)
	handlers, messages := initHandlers(cfg, authenticator, publisher, live)
	serverApp.Mount(messagehandler.LivePath, messages.LiveHandler())

	serverApp.SetApp(initHealth(cfg, publisher), authenticator.RateLimitKey, handlers...)
	serverApp.Run()
}

func initPublisher(cfg *config.Config) events.Publisher {
	if !cfg.KafkaEnabled {
		cfg.Log.Warn("Kafka disabled, domain events will only be logged")
		return events.NewNoopPublisher(cfg.Log)
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.KafkaTopic, cfg.KafkaDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	return events.NewKafkaPublisher(producer, kafkaCfg.EnableMiddleware, cfg.Log)
}

func initAuth(cfg *config.Config) *auth.Authenticator {
	var sessions auth.SessionStore
	if cfg.Client.Redis != nil {
		sessions = auth.NewRedisSessionStore(cfg.Client.Redis)
	} else {
		sessions = auth.NewMemorySessionStore()
		cfg.Log.Warn("Sessions are kept in memory and will not survive a restart")
	}

	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		cfg.Log.Fatal("Invalid trusted proxy list", "error", err)
	}

	return auth.NewAuthenticator(
		auth.NewTokenManager(cfg.JWTSecret, cfg.SessionTTL),
		sessions,
		cfg.SessionCookieName,
		cfg.SessionCookieSecure,
		cfg.Log,
	).WithClientKey(middleware.ClientIP(proxies))
}

func initHealth(cfg *config.Config, publisher events.Publisher) *health.HealthHandler {
	h := health.NewHealthHandler(cfg.Log).
		Require("mongo", cfg.Client.Mongo.Ping)

	if rdb := cfg.Client.Redis; rdb != nil {
		h.Observe("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	if kp, ok := publisher.(*events.KafkaPublisher); ok {
		h.WithEvents(func() any { return kp.Metrics() })
	}
	return h
}

// uploads serves locally stored listing images.
type uploads string

func (dir uploads) RegisterRoutes(router *httprouter.Router) {
	router.ServeFiles(storage.UploadsPath+"/*filepath", http.Dir(string(dir)))
}

func initHandlers(cfg *config.Config, authenticator *auth.Authenticator, publisher events.Publisher, live *hub.Hub) ([]contracts.Handler, *messagehandler.MessageHandler) {
	users := userrepo.NewMongoUserRepository(cfg)
	listings := listingrepo.NewMongoListingRepository(cfg)
	bookings := bookingrepo.NewMongoBookingRepository(cfg)
	bookingLocks := bookingrepo.NewMongoBookingLockRepository(cfg)
	saved := listingrepo.NewMongoSavedListingRepository(cfg)
	conversations := messagerepo.NewMongoConversationRepository(cfg)
	messages := messagerepo.NewMongoMessageRepository(cfg)
	unavailable := cache.New(cfg.Client.Redis, cfg.UnavailableCacheTTL, cfg.Log)

	images, err := storage.New(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize image storage", "error", err)
	}

	userValidator := uservalidator.NewUserValidator(cfg.Log)
	userSvc := userservice.NewUserService(
		users,
		userrepo.NewMongoVerificationRepository(cfg),
		images,
		userValidator,
		authenticator,
		publisher,
		cfg,
	)

	listingSvc := listingservice.NewListingService(
		listings,
		saved,
		bookings,
		bookingLocks,
		unavailable,
		images,
		listingvalidator.NewListingValidator(cfg.Log),
		cfg,
	)

	bookingSvc := bookingservice.NewBookingService(
		bookings,
		bookingLocks,
		listings,
		unavailable,
		publisher,
		bookingvalidator.NewBookingValidator(cfg.Log),
		cfg,
	)

	reviewSvc := reviewservice.NewReviewService(
		reviewrepo.NewMongoReviewRepository(cfg),
		bookings,
		listings,
		publisher,
		reviewvalidator.NewReviewValidator(cfg.Log),
		cfg,
	)

	messageSvc := messageservice.NewMessageService(
		messages,
		conversations,
		users,
		live,
		publisher,
		messagevalidator.NewMessageValidator(cfg.Log),
		cfg,
	)

	adminSvc := adminservice.NewAdminService(
		users,
		listings,
		bookings,
		listingSvc,
		images,
		authenticator.Sessions(),
		userValidator,
		cfg,
		messages.DeleteByUser,
		conversations.DeleteByParticipant,
		saved.DeleteByUser,
	)

	messageHandler := messagehandler.NewMessageHandler(messageSvc, live, authenticator, cfg.Log)
	handlers := []contracts.Handler{
		userhandler.NewUserHandler(userSvc, authenticator, cfg.Log),
		listinghandler.NewListingHandler(listingSvc, authenticator, cfg.Log),
		bookinghandler.NewBookingHandler(bookingSvc, authenticator, cfg.Log),
		reviewhandler.NewReviewHandler(reviewSvc, authenticator, cfg.Log),
		messageHandler,
		adminhandler.NewAdminHandler(adminSvc, authenticator, cfg.Log),
	}
	if !cfg.S3Configured() {
		handlers = append(handlers, uploads(cfg.UploadDir))
	}

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)
	return handlers, messageHandler
}
