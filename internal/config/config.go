package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Gateway
	Protocol       string
	GatewayHosts   []string
	RESTHost       string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	RetryBackoff   time.Duration
	DefaultSender  string
	DefaultPrefix  string
	SendTimezone   string

	// Preferences
	Account         string
	PrefsBackend    string
	PrefsFile       string
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool
	SeedEnabled     bool
	SeedUsername    string
	SeedPassword    string
	APIJWTSecret    string
	SendRateLimit   float64
	SendRateBurst   int
	MetricsEnabled  bool
	ShutdownTimeout time.Duration

	// Queue
	QueueBackend        string
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	SendQueueURL        string
	DeadLetterQueueURL  string
	KafkaBrokers        []string
	KafkaTopic          string
	KafkaDLQTopic       string
	KafkaGroupID        string
	WorkerBatchSize     int
	WorkerWaitSeconds   int
	BalanceRefresh      time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Protocol:       strings.ToLower(strings.TrimSpace(getEnv("GMX_PROTOCOL", "legacy"))),
		GatewayHosts:   getEnvAsList("GMX_GATEWAY_HOSTS"),
		RESTHost:       getEnv("GMX_REST_HOST", ""),
		ConnectTimeout: getEnvAsDuration("GMX_CONNECT_TIMEOUT", 5*time.Second),
		ReadTimeout:    getEnvAsDuration("GMX_READ_TIMEOUT", 15*time.Second),
		RetryBackoff:   getEnvAsDuration("GMX_RETRY_BACKOFF", 500*time.Millisecond),
		DefaultSender:  getEnv("GMX_DEFAULT_SENDER", ""),
		DefaultPrefix:  getEnv("GMX_DEFAULT_PREFIX", "+49"),
		SendTimezone:   getEnv("GMX_SEND_TZ", "Europe/Berlin"),

		Account:         getEnv("GMX_ACCOUNT", "default"),
		PrefsBackend:    strings.ToLower(strings.TrimSpace(getEnv("PREFS_BACKEND", "file"))),
		PrefsFile:       getEnv("PREFS_FILE", defaultPrefsFile()),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),
		SeedEnabled:     getEnvAsBool("GMX_ENABLED", false),
		SeedUsername:    getEnv("GMX_USERNAME", ""),
		SeedPassword:    getEnv("GMX_PASSWORD", ""),
		APIJWTSecret:    getEnv("API_JWT_SECRET", ""),
		SendRateLimit:   getEnvAsFloat("SEND_RATE_PER_SEC", 1),
		SendRateBurst:   getEnvAsInt("SEND_RATE_BURST", 5),
		MetricsEnabled:  getEnvAsBool("METRICS_ENABLED", true),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		QueueBackend:        strings.ToLower(strings.TrimSpace(getEnv("QUEUE_BACKEND", "memory"))),
		AWSRegion:           getEnv("AWS_REGION", "eu-central-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		SendQueueURL:        getEnv("SMS_SEND_QUEUE_URL", ""),
		DeadLetterQueueURL:  getEnv("SMS_DLQ_URL", ""),
		KafkaBrokers:        getEnvAsList("KAFKA_BROKERS"),
		KafkaTopic:          getEnv("KAFKA_TOPIC", "sms-outbox"),
		KafkaDLQTopic:       getEnv("KAFKA_DLQ_TOPIC", ""),
		KafkaGroupID:        getEnv("KAFKA_GROUP_ID", "gmx-sms-worker"),
		WorkerBatchSize:     getEnvAsInt("WORKER_BATCH_SIZE", 5),
		WorkerWaitSeconds:   getEnvAsInt("WORKER_WAIT_SECONDS", 10),
		BalanceRefresh:      getEnvAsDuration("BALANCE_REFRESH_INTERVAL", 0),
	}
}

// IsLegacy reports whether the WR protocol is selected.
func (c *Config) IsLegacy() bool {
	return c.Protocol != "rest"
}

func defaultPrefsFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "gmxsms.yaml"
	}
	return home + string(os.PathSeparator) + ".gmxsms" + string(os.PathSeparator) + "prefs.yaml"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
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

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
