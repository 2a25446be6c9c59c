package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration. Every service reads the same
// struct; each subcommand only touches the fields it needs.
type Config struct {
	// Application
	LogLevel string

	// Kafka
	KafkaBrokers    []string
	RawPricesTopic  string
	DecisionsTopic  string
	DeadLetterTopic string

	// Redis
	RedisHost string
	RedisPort string
	RedisDB   int
	RedisTTL  time.Duration

	// PostgreSQL
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string

	// HTTP bind ports. Workers expose health and metrics only.
	ScraperPort     string
	PricingAPIPort  string
	AuditAPIPort    string
	RulesWorkerPort string
	AuditWorkerPort string

	// Scraper
	ScraperMaxConcurrent int
	ScraperFetchTimeout  time.Duration

	// Pricing rules
	MinMargin        float64
	MaxMargin        float64
	ElasticityFactor float64

	// Pricing API
	CachePingInterval time.Duration
	FallbackPrices    map[string]float64

	// Performance
	BatchSize     int
	WorkerThreads int
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),

		KafkaBrokers:    splitAndTrim(getEnvOrDefault("KAFKA_BROKER", "localhost:9092")),
		RawPricesTopic:  getEnvOrDefault("KAFKA_SCRAPER_TOPIC", "raw_prices"),
		DecisionsTopic:  getEnvOrDefault("KAFKA_PRICES_TOPIC", "recommended_prices"),
		DeadLetterTopic: getEnvOrDefault("KAFKA_DLQ_TOPIC", "dead_letter_queue"),

		RedisHost: getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort: getEnvOrDefault("REDIS_PORT", "6379"),
		RedisDB:   getIntOrDefault("REDIS_DB", 0),
		RedisTTL:  time.Duration(getIntOrDefault("REDIS_TTL", 3600)) * time.Second,

		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "pricing_user"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "pricing_password"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "pricing_db"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),

		ScraperPort:     getEnvOrDefault("SCRAPER_PORT", "8001"),
		PricingAPIPort:  getEnvOrDefault("PRICING_API_PORT", "8000"),
		AuditAPIPort:    getEnvOrDefault("AUDIT_API_PORT", "8003"),
		RulesWorkerPort: getEnvOrDefault("RULES_WORKER_PORT", "8002"),
		AuditWorkerPort: getEnvOrDefault("AUDIT_WORKER_PORT", "8004"),

		ScraperMaxConcurrent: getIntOrDefault("SCRAPER_MAX_CONCURRENT", 100),
		ScraperFetchTimeout:  getDurationOrDefault("SCRAPER_FETCH_TIMEOUT", 5*time.Second),

		MinMargin:        getFloat64OrDefault("MINIMUM_MARGIN", 0.10),
		MaxMargin:        getFloat64OrDefault("MAXIMUM_MARGIN", 0.50),
		ElasticityFactor: getFloat64OrDefault("ELASTICITY_FACTOR", 1.5),

		CachePingInterval: getDurationOrDefault("CACHE_PING_INTERVAL", 30*time.Second),
		FallbackPrices:    getPriceMapOrDefault("FALLBACK_PRICES", defaultFallbackPrices()),

		BatchSize:     getIntOrDefault("BATCH_SIZE", 1000),
		WorkerThreads: getIntOrDefault("WORKER_THREADS", 4),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKER cannot be empty")
	}

	for _, topic := range []struct{ name, value string }{
		{"KAFKA_SCRAPER_TOPIC", c.RawPricesTopic},
		{"KAFKA_PRICES_TOPIC", c.DecisionsTopic},
		{"KAFKA_DLQ_TOPIC", c.DeadLetterTopic},
	} {
		if topic.value == "" {
			return fmt.Errorf("%s cannot be empty", topic.name)
		}
	}

	if c.MinMargin < 0 {
		return fmt.Errorf("MINIMUM_MARGIN must be >= 0, got %f", c.MinMargin)
	}

	if c.MaxMargin <= c.MinMargin {
		return fmt.Errorf("MAXIMUM_MARGIN must be greater than MINIMUM_MARGIN, got min=%f max=%f",
			c.MinMargin, c.MaxMargin)
	}

	if c.ScraperMaxConcurrent <= 0 {
		return fmt.Errorf("SCRAPER_MAX_CONCURRENT must be positive, got %d", c.ScraperMaxConcurrent)
	}

	if c.RedisTTL <= 0 {
		return fmt.Errorf("REDIS_TTL must be positive, got %s", c.RedisTTL)
	}

	return nil
}

// PostgresDSN returns a lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPass, c.PostgresDB, c.PostgresSSL,
	)
}

// RedisAddr returns the host:port address of the Redis server.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func defaultFallbackPrices() map[string]float64 {
	return map[string]float64{
		"SKU001": 100.00,
		"SKU002": 250.00,
		"SKU003": 50.00,
		"SKU004": 1000.00,
	}
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

// getPriceMapOrDefault parses "SKU001=100,SKU002=250.5" into a price map.
// A malformed entry invalidates the whole variable and the default is used.
func getPriceMapOrDefault(key string, defaultValue map[string]float64) map[string]float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	result := make(map[string]float64)
	for _, pair := range strings.Split(value, ",") {
		sku, priceStr, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found || sku == "" {
			return defaultValue
		}

		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil || price < 0 {
			return defaultValue
		}

		result[sku] = price
	}

	return result
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
