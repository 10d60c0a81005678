package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	DefaultUpstreamBaseURL = "https://deisishop.pythonanywhere.com"
	StoreBackendFile       = "file"
	StoreBackendRedis      = "redis"
	StoreBackendMemory     = "memory"
)

type Config struct {
	HTTPPort           string
	UpstreamBaseURL    string
	ImageBaseURL       string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	PurchaseTimeout    time.Duration
	StatusResetAfter   time.Duration
	CatalogCacheTTL    time.Duration
	MaxRequestBodySize int64
	CORSOrigins        []string
	CustomerName       string

	Store StoreConfig

	KafkaBrokers []string
	KafkaTopic   string

	LogLevel  string
	LogFormat string
}

type StoreConfig struct {
	Backend       string
	Dir           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists. Variables already set win over the file.
func Load() *Config {
	_ = godotenv.Load()

	upstream := strings.TrimRight(getEnv("UPSTREAM_BASE_URL", DefaultUpstreamBaseURL), "/")
	return &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		UpstreamBaseURL:    upstream,
		ImageBaseURL:       strings.TrimRight(getEnv("IMAGE_BASE_URL", upstream), "/"),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		PurchaseTimeout:    getDuration("PURCHASE_TIMEOUT", 15*time.Second),
		StatusResetAfter:   getDuration("STATUS_RESET_AFTER", 5*time.Second),
		CatalogCacheTTL:    getDuration("CATALOG_CACHE_TTL", time.Minute),
		MaxRequestBodySize: getInt64("MAX_REQUEST_BODY", 1<<20), // 1MB
		CORSOrigins:        getList("CORS_ORIGINS", []string{"*"}),
		CustomerName:       getEnv("CUSTOMER_NAME", "DEISI Shop customer"),
		Store: StoreConfig{
			Backend:       strings.ToLower(getEnv("STORE_BACKEND", StoreBackendFile)),
			Dir:           getEnv("STORE_DIR", defaultStoreDir()),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       int(getInt64("REDIS_DB", 0)),
		},
		KafkaBrokers: getList("KAFKA_BROKERS", nil),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "storefront-purchases"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "json"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		log.Warn().Str("key", key).Str("value", value).Dur("default", defaultValue).Msg("invalid duration, using default")
		return defaultValue
	}
	return d
}

func getInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Int64("default", defaultValue).Msg("invalid integer, using default")
		return defaultValue
	}
	return n
}

func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultStoreDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + string(os.PathSeparator) + "deisishop"
	}
	return ".deisishop"
}
