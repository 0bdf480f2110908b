package config

import (
	"fmt"
	"net/netip"
	"os"
	"otithi/pkg/client"
	"otithi/pkg/logger"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "otithi-dev-secret-change-me-in-production"

type Config struct {
	MongoURI           string
	MongoDatabaseName  string
	MongoConnTimeout   time.Duration
	MongoRetryAttempts int
	MongoRetrySleep    time.Duration

	RedisURL string

	Port    string
	BaseURL string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	JWTSecret           string
	SessionTTL          time.Duration
	SessionCookieName   string
	SessionCookieSecure bool

	CORSAllowedOrigins []string
	TrustedProxies     []string

	CleaningFee       int64
	ServiceFeePercent int64
	MaxStayNights     int

	VerificationCodeTTL        time.Duration
	VerificationResendCooldown time.Duration
	UnavailableCacheTTL        time.Duration

	KafkaEnabled  bool
	KafkaTopic    string
	KafkaDLQTopic string
	KafkaGroupID  string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSS3Bucket        string
	UploadDir          string
	MaxUploadSize      int

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	// A missing .env is normal outside local development.
	_ = godotenv.Load(".env")

	cfg := &Config{
		MongoURI:           getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName:  getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:   getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),
		MongoRetryAttempts: getEnvNum(EnvMongoRetryAttempts, DefaultMongoRetryAttempts),
		MongoRetrySleep:    getEnvDuration(EnvMongoRetrySleep, DefaultMongoRetrySleep),

		RedisURL: getEnvStr(EnvRedisURL, DefaultRedisURL),

		Port:    getEnvStr(EnvPort, DefaultPort),
		BaseURL: getEnvStr(EnvBaseURL, DefaultBaseURL),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		JWTSecret:           getEnvStr(EnvJWTSecret, devJWTSecret),
		SessionTTL:          getEnvDuration(EnvSessionTTL, DefaultSessionTTL),
		SessionCookieName:   getEnvStr(EnvSessionCookieName, DefaultSessionCookieName),
		SessionCookieSecure: getEnvBool(EnvSessionCookieSecure, DefaultSessionCookieSecure),

		CORSAllowedOrigins: getEnvList(EnvCORSAllowedOrigins, DefaultCORSAllowedOrigins),
		TrustedProxies:     getEnvList(EnvTrustedProxies, DefaultTrustedProxies),

		CleaningFee:       int64(getEnvNum(EnvCleaningFee, DefaultCleaningFee)),
		ServiceFeePercent: int64(getEnvNum(EnvServiceFeePercent, DefaultServiceFeePercent)),
		MaxStayNights:     getEnvNum(EnvMaxStayNights, DefaultMaxStayNights),

		VerificationCodeTTL:        getEnvDuration(EnvVerificationCodeTTL, DefaultVerificationCodeTTL),
		VerificationResendCooldown: getEnvDuration(EnvVerificationResendCooldown, DefaultVerificationResendCooldown),
		UnavailableCacheTTL:        getEnvDuration(EnvUnavailableCacheTTL, DefaultUnavailableCacheTTL),

		KafkaEnabled:  getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		KafkaTopic:    getEnvStr(EnvKafkaTopic, DefaultKafkaTopic),
		KafkaDLQTopic: getEnvStr(EnvKafkaDLQTopic, DefaultKafkaDLQTopic),
		KafkaGroupID:  getEnvStr(EnvKafkaGroupID, DefaultKafkaGroupID),

		SMTPHost:     getEnvStr(EnvSMTPHost, ""),
		SMTPPort:     getEnvStr(EnvSMTPPort, DefaultSMTPPort),
		SMTPUsername: getEnvStr(EnvSMTPUsername, ""),
		SMTPPassword: getEnvStr(EnvSMTPPassword, ""),
		EmailFrom:    getEnvStr(EnvEmailFrom, DefaultEmailFrom),

		AWSRegion:          getEnvStr(EnvAWSRegion, ""),
		AWSAccessKeyID:     getEnvStr(EnvAWSAccessKeyID, ""),
		AWSSecretAccessKey: getEnvStr(EnvAWSSecretAccessKey, ""),
		AWSS3Bucket:        getEnvStr(EnvAWSS3Bucket, ""),
		UploadDir:          getEnvStr(EnvUploadDir, DefaultUploadDir),
		MaxUploadSize:      getEnvNum(EnvMaxUploadSize, DefaultMaxUploadSize),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, logger.INFO),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, client.MongoOptions{
		URI:           cfg.MongoURI,
		Database:      cfg.MongoDatabaseName,
		ConnTimeout:   cfg.MongoConnTimeout,
		RetryAttempts: cfg.MongoRetryAttempts,
		RetrySleep:    cfg.MongoRetrySleep,
	})
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisURL, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactURI(cfg.MongoURI)))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}
	if cfg.MongoRetryAttempts < 1 {
		errors = append(errors, fmt.Sprintf("MongoRetryAttempts must be at least 1, got: %d", cfg.MongoRetryAttempts))
	}
	if cfg.MongoRetrySleep < 0 {
		errors = append(errors, fmt.Sprintf("MongoRetrySleep cannot be negative, got: %s", cfg.MongoRetrySleep))
	}

	if cfg.RedisURL != "" && !regexp.MustCompile(`^rediss?://`).MatchString(cfg.RedisURL) {
		errors = append(errors, "RedisURL must start with 'redis://' or 'rediss://'")
	}

	positiveDurations := []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"SessionTTL", cfg.SessionTTL},
		{"VerificationCodeTTL", cfg.VerificationCodeTTL},
		{"UnavailableCacheTTL", cfg.UnavailableCacheTTL},
	}
	for _, d := range positiveDurations {
		if d.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", d.name, d.value))
		}
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.MaxUploadSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxUploadSize must be positive, got: %d", cfg.MaxUploadSize))
	}

	if len(cfg.JWTSecret) < MinJWTSecretLength {
		errors = append(errors, fmt.Sprintf("JWTSecret must be at least %d characters", MinJWTSecretLength))
	}
	if cfg.SessionCookieName == "" {
		errors = append(errors, "SessionCookieName cannot be empty")
	}

	if cfg.CleaningFee < 0 {
		errors = append(errors, fmt.Sprintf("CleaningFee cannot be negative, got: %d", cfg.CleaningFee))
	}
	if cfg.ServiceFeePercent < 0 || cfg.ServiceFeePercent > 100 {
		errors = append(errors, fmt.Sprintf("ServiceFeePercent must be between 0 and 100, got: %d", cfg.ServiceFeePercent))
	}
	if cfg.MaxStayNights < 1 || cfg.MaxStayNights > MaxStayNightsLimit {
		errors = append(errors, fmt.Sprintf("MaxStayNights must be between 1 and %d, got: %d", MaxStayNightsLimit, cfg.MaxStayNights))
	}
	if cfg.VerificationResendCooldown < 0 {
		errors = append(errors, fmt.Sprintf("VerificationResendCooldown cannot be negative, got: %s", cfg.VerificationResendCooldown))
	}
	for _, proxy := range cfg.TrustedProxies {
		if !validProxy(proxy) {
			errors = append(errors, fmt.Sprintf("TrustedProxies entry is not an IP or CIDR: %q", proxy))
		}
	}

	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		errors = append(errors, "KafkaTopic cannot be empty when Kafka is enabled")
	}

	if cfg.AWSS3Bucket != "" && cfg.AWSRegion == "" {
		errors = append(errors, "AWSRegion is required when AWSS3Bucket is set")
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"mongo_retry_attempts", cfg.MongoRetryAttempts,
		"mongo_retry_sleep", cfg.MongoRetrySleep,
		"redis_url", redactURI(cfg.RedisURL),
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"session_ttl", cfg.SessionTTL,
		"session_cookie", cfg.SessionCookieName,
		"cors_origins", cfg.CORSAllowedOrigins,
		"cleaning_fee", cfg.CleaningFee,
		"service_fee_percent", cfg.ServiceFeePercent,
		"max_stay_nights", cfg.MaxStayNights,
		"trusted_proxies", cfg.TrustedProxies,
		"kafka_enabled", cfg.KafkaEnabled,
		"kafka_topic", cfg.KafkaTopic,
		"smtp_configured", cfg.SMTPConfigured(),
		"s3_configured", cfg.S3Configured(),
	)
	if cfg.JWTSecret == devJWTSecret {
		cfg.Log.Warn("JWT_SECRET is not set, using the development secret")
	}
}

func (cfg *Config) SMTPConfigured() bool {
	return cfg.SMTPHost != "" && cfg.SMTPUsername != "" && cfg.SMTPPassword != ""
}

func (cfg *Config) S3Configured() bool {
	return cfg.AWSRegion != "" && cfg.AWSS3Bucket != "" && cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != ""
}

func redactURI(uri string) string {
	credentialRegex := regexp.MustCompile(`^([a-z+]+://)[^@/]*@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func validProxy(entry string) bool {
	if _, err := netip.ParsePrefix(entry); err == nil {
		return true
	}
	_, err := netip.ParseAddr(entry)
	return err == nil
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnvStr(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
