package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	LogLevel    string

	ServerPort int

	DBDriver    string
	DatabaseURL string

	StorageTimeout time.Duration

	JWTAccessSecret []byte
	SecureCookies   bool
	CSRFEnabled     bool

	KafkaBrokers []string
	OrderTopic   string

	RedisAddr    string
	CartCacheTTL time.Duration
}

func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "shop"),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		ServerPort: EnvIntDefault("SERVER_PORT", 8080),

		DBDriver:    strings.ToLower(EnvDefault("DB_DRIVER", "postgres")),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		StorageTimeout: EnvDurationDefault("STORAGE_TIMEOUT", 5*time.Second),

		JWTAccessSecret: []byte(os.Getenv("JWT_SECRET")),
		SecureCookies:   EnvBoolDefault("COOKIE_SECURE", true),
		CSRFEnabled:     EnvBoolDefault("CSRF_ENABLED", true),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		OrderTopic:   EnvDefault("ORDER_TOPIC", "order_events"),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		CartCacheTTL: EnvDurationDefault("CART_CACHE_TTL", 15*time.Minute),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if os.Getenv(key) != "" {
		return os.Getenv(key)
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return b
}

// EnvDurationDefault accepts Go duration strings ("3s", "250ms").
func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
