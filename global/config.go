package global

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the gateway process.
type Config struct {
	Environment string
	HTTPAddr    string
	GatewayID   string

	Mongo MongoConfig
	Redis RedisConfig
	Kafka KafkaConfig

	JWTSecret string
	JWTTTL    time.Duration

	// AESSecret encrypts message text at rest.
	AESSecret string

	// BlobBaseURL prefixes stored blob URLs (e.g. public gateway address).
	BlobBaseURL string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	// PresenceTTL bounds how long a presence key outlives its last refresh.
	PresenceTTL time.Duration
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

// Load reads configuration from the environment, with .env as a fallback.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8000"),
		GatewayID:   getEnv("GATEWAY_ID", "gw-1"),
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "chat"),
		},
		Redis: RedisConfig{
			Enabled:     getBool("REDIS_ENABLED", false),
			Addr:        getEnv("REDIS_ADDR", "localhost:6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getInt("REDIS_DB", 0),
			PresenceTTL: getDuration("PRESENCE_TTL", 2*time.Minute),
		},
		Kafka: KafkaConfig{
			Enabled: getBool("KAFKA_ENABLED", false),
			Brokers: getSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC", "chat.messages"),
			GroupID: getEnv("KAFKA_GROUP_ID", "chat-archiver"),
		},
		JWTSecret:        getEnv("JWT_SECRET", "dev-only-secret"),
		JWTTTL:           getDuration("JWT_TTL", 2*time.Hour),
		AESSecret:        getEnv("AES_SECRET_KEY", "thisisaverysecretkey"),
		BlobBaseURL:      getEnv("BLOB_BASE_URL", ""),
		HandshakeTimeout: getDuration("WS_HANDSHAKE_TIMEOUT", 30*time.Second),
		WriteTimeout:     getDuration("WS_WRITE_TIMEOUT", 5*time.Second),
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getSlice(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
