package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL       string
	RedisURL          string
	KafkaBrokers      string
	RefundQueueTopic  string
	RefundEventsTopic string
	NatsURL           string
	Notifier          string
	SMTP              SMTPConfig
	StripeSecretKey   string
	JaegerEndpoint    string
	Port              string
	OrderLockTTL      time.Duration
	AdminAccountIDs   []int64
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          getEnv("REDIS_URL", "localhost:6379"),
		KafkaBrokers:      getEnv("KAFKA_BROKERS", "localhost:9092"),
		RefundQueueTopic:  getEnv("REFUND_QUEUE_TOPIC", "refund.process"),
		RefundEventsTopic: getEnv("REFUND_EVENTS_TOPIC", "refund.state.changed"),
		NatsURL:           getEnv("NATS_URL", "nats://localhost:4222"),
		Notifier:          getEnv("NOTIFIER", "nats"),
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("SMTP_FROM", "noreply@localhost"),
		},
		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
		JaegerEndpoint:  os.Getenv("JAEGER_ENDPOINT"),
		Port:            getEnv("PORT", "8084"),
		OrderLockTTL:    getDuration("ORDER_LOCK_TTL", 30*time.Second),
		AdminAccountIDs: getIDs("ADMIN_ACCOUNT_IDS"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getIDs(key string) []int64 {
	var ids []int64
	for _, part := range strings.Split(os.Getenv(key), ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
