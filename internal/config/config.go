package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	DatabaseURL      string
	RedisAddr        string
	RedisPassword    string
	RedisTLS         bool
	ScheduleCacheTTL time.Duration

	// Scheduler cadence and lifecycle tuning
	RetryInterval      time.Duration
	OutreachInterval   time.Duration
	ScarcityInterval   time.Duration
	RetryCooldown      time.Duration
	RetryFailedBackoff time.Duration
	DefaultMaxAttempts int
	BatchSize          int
	OperationTimeout   time.Duration

	// Conversation engine (voice/chat agents)
	ConversationEngineURL    string
	ConversationEngineAPIKey string

	// Messaging gateway (templated messages)
	MessagingGatewayURL    string
	MessagingGatewayAPIKey string
	MessagingRatePerSecond float64
	TemplateLanguage       string
	DefaultPhoneRegion     string
	TelnyxAPIKey           string
	TelnyxMessagingProfile string
	TelnyxBaseURL          string
	APIJWTSecret           string

	// Read API surface
	CORSAllowedOrigins []string
	APIRatePerSecond   float64
	APIRateBurst       int
}

// Load reads configuration from environment variables. A .env file in the
// working directory is honoured when present; real environment wins.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "json")),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisAddr:        getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),
		ScheduleCacheTTL: getEnvAsDuration("SCHEDULE_CACHE_TTL", 5*time.Minute),

		RetryInterval:      getEnvAsDuration("RETRY_INTERVAL", 10*time.Minute),
		OutreachInterval:   getEnvAsDuration("OUTREACH_INTERVAL", time.Hour),
		ScarcityInterval:   getEnvAsDuration("SCARCITY_INTERVAL", time.Hour),
		RetryCooldown:      getEnvAsDuration("RETRY_COOLDOWN", 2*time.Hour),
		RetryFailedBackoff: getEnvAsDuration("RETRY_FAILED_BACKOFF", 30*time.Minute),
		DefaultMaxAttempts: getEnvAsInt("DEFAULT_MAX_ATTEMPTS", 3),
		BatchSize:          getEnvAsInt("BATCH_SIZE", 100),
		OperationTimeout:   getEnvAsDuration("OPERATION_TIMEOUT", 30*time.Second),

		ConversationEngineURL:    getEnv("CONVERSATION_ENGINE_URL", ""),
		ConversationEngineAPIKey: getEnv("CONVERSATION_ENGINE_API_KEY", ""),

		MessagingGatewayURL:    getEnv("MESSAGING_GATEWAY_URL", ""),
		MessagingGatewayAPIKey: getEnv("MESSAGING_GATEWAY_API_KEY", ""),
		MessagingRatePerSecond: getEnvAsFloat("MESSAGING_RATE_PER_SECOND", 5),
		TemplateLanguage:       getEnv("TEMPLATE_LANGUAGE", "en"),
		DefaultPhoneRegion:     strings.ToUpper(getEnv("DEFAULT_PHONE_REGION", "US")),
		TelnyxAPIKey:           getEnv("TELNYX_API_KEY", ""),
		TelnyxMessagingProfile: getEnv("TELNYX_MESSAGING_PROFILE_ID", ""),
		TelnyxBaseURL:          getEnv("TELNYX_BASE_URL", ""),
		APIJWTSecret:           getEnv("API_JWT_SECRET", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		APIRatePerSecond:   getEnvAsFloat("API_RATE_PER_SECOND", 20),
		APIRateBurst:       getEnvAsInt("API_RATE_BURST", 40),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
