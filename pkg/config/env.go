package config

const (
	EnvMongoURI           = "MONGO_URI"
	EnvMongoDatabaseName  = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout   = "MONGO_CONN_TIMEOUT"
	EnvMongoRetryAttempts = "MONGO_RETRY_ATTEMPTS"
	EnvMongoRetrySleep    = "MONGO_RETRY_SLEEP"

	EnvRedisURL = "REDIS_URL"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"
	EnvBaseURL  = "BASE_URL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvJWTSecret           = "JWT_SECRET"
	EnvSessionTTL          = "SESSION_TTL"
	EnvSessionCookieName   = "SESSION_COOKIE_NAME"
	EnvSessionCookieSecure = "SESSION_COOKIE_SECURE"

	EnvCORSAllowedOrigins = "CORS_ALLOWED_ORIGINS"
	EnvTrustedProxies     = "TRUSTED_PROXIES"

	EnvCleaningFee       = "CLEANING_FEE"
	EnvServiceFeePercent = "SERVICE_FEE_PERCENT"
	EnvMaxStayNights     = "MAX_STAY_NIGHTS"

	EnvVerificationCodeTTL        = "VERIFICATION_CODE_TTL"
	EnvVerificationResendCooldown = "VERIFICATION_RESEND_COOLDOWN"
	EnvUnavailableCacheTTL        = "UNAVAILABLE_CACHE_TTL"

	EnvKafkaEnabled  = "KAFKA_ENABLED"
	EnvKafkaTopic    = "KAFKA_EVENTS_TOPIC"
	EnvKafkaDLQTopic = "KAFKA_EVENTS_DLQ_TOPIC"
	EnvKafkaGroupID  = "KAFKA_NOTIFIER_GROUP_ID"

	EnvSMTPHost     = "SMTP_HOST"
	EnvSMTPPort     = "SMTP_PORT"
	EnvSMTPUsername = "SMTP_USERNAME"
	EnvSMTPPassword = "SMTP_PASSWORD"
	EnvEmailFrom    = "EMAIL_FROM"

	EnvAWSRegion          = "AWS_REGION"
	EnvAWSAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvAWSSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	EnvAWSS3Bucket        = "AWS_S3_BUCKET"
	EnvUploadDir          = "UPLOAD_DIR"
	EnvMaxUploadSize      = "MAX_UPLOAD_SIZE"

	EnvAdminEmail    = "ADMIN_EMAIL"
	EnvAdminPassword = "ADMIN_PASSWORD"
	EnvAdminName     = "ADMIN_NAME"
)
