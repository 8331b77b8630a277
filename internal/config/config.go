package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	SMTP      SMTPConfig
	Platform  PlatformConfig
	Mailchimp MailchimpConfig
	Stripe    StripeConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr     string
	StatsTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
}

type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// PlatformConfig holds the learning-platform API endpoint and shared secret
// used for preregistration sync.
type PlatformConfig struct {
	BaseURL string
	APIKey  string
}

type MailchimpConfig struct {
	APIURL string
	APIKey string
	ListID string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8085"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:          getEnv("POSTGRES_DSN", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			StatsTTL: time.Duration(getEnvInt("STATS_CACHE_TTL_SECONDS", 30)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_ADDR", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
		},
		SMTP: SMTPConfig{
			Host: getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port: getEnv("SMTP_PORT", "587"),
			User: getEnv("SMTP_USERNAME", ""),
			Pass: getEnv("SMTP_PASSWORD", ""),
			From: getEnv("SMTP_FROM", "cursos@mejorando.la"),
		},
		Platform: PlatformConfig{
			BaseURL: getEnv("PLATAFORMA_API_URL", ""),
			APIKey:  getEnv("PLATAFORMA_API_KEY", ""),
		},
		Mailchimp: MailchimpConfig{
			APIURL: getEnv("MAILCHIMP_API_URL", "http://us4.api.mailchimp.com/1.3/"),
			APIKey: getEnv("MAILCHIMP_APIKEY", ""),
			ListID: getEnv("MAILCHIMP_LISTID", ""),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      getEnv("STRIPE_CURRENCY", "usd"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
