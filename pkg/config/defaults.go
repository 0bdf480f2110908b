package config

import "time"

const (
	DefaultMongoURI           = "mongodb://localhost:27017"
	DefaultMongoDatabaseName  = "otithi"
	DefaultMongoConnTimeout   = 10 * time.Second
	DefaultMongoRetryAttempts = 3
	DefaultMongoRetrySleep    = 500 * time.Millisecond

	DefaultRedisURL = "redis://localhost:6379/0"

	DefaultPort    = "8080"
	DefaultBaseURL = "http://localhost:8080"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultSessionTTL          = 7 * 24 * time.Hour
	DefaultSessionCookieName   = "otithi_session"
	DefaultSessionCookieSecure = false

	DefaultCORSAllowedOrigins = "http://localhost:3000"
	DefaultTrustedProxies     = ""

	// Money is expressed in minor units (poisha).
	DefaultCleaningFee       = 50000
	DefaultServiceFeePercent = 10
	DefaultMaxStayNights     = 30
	MaxStayNightsLimit       = 365

	DefaultVerificationCodeTTL        = 15 * time.Minute
	DefaultVerificationResendCooldown = 2 * time.Minute
	DefaultUnavailableCacheTTL        = 5 * time.Minute

	DefaultKafkaEnabled  = false
	DefaultKafkaTopic    = "otithi.events"
	DefaultKafkaDLQTopic = "otithi.events.dlq"
	DefaultKafkaGroupID  = "otithi-notifier"

	DefaultSMTPPort  = "587"
	DefaultEmailFrom = "no-reply@otithi.com"

	DefaultUploadDir     = "./uploads"
	DefaultMaxUploadSize = 5 * 1024 * 1024 // 5MB

	DefaultAdminName = "Otithi Admin"

	DefaultPaginationLimit = 100
	MinJWTSecretLength     = 32
)
