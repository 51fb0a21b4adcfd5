package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/currency"
)

type Config struct {
	Server    ServerConfig
	Feed      FeedConfig
	Messaging MessagingConfig
	Store     StoreConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Observ    ObservabilityConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type FeedConfig struct {
	URL          string
	CacheExpiry  time.Duration
	Timeout      time.Duration
	FallbackFile string
}

type MessagingConfig struct {
	Endpoint  string
	Recipient string
}

type StoreConfig struct {
	Name           string
	Address        string
	Hours          string
	Currency       currency.Unit
	CurrencySymbol string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether the catalog cache should live in Redis.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type KafkaConfig struct {
	Brokers         []string
	TopicStorefront string
	ConsumerGroup   string
}

// Enabled reports whether storefront events are published to Kafka.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type ObservabilityConfig struct {
	JaegerEndpoint string
}

func Load() *Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	cacheExpiry, _ := strconv.Atoi(getEnv("CACHE_EXPIRY_SECONDS", "300"))
	feedTimeout, _ := strconv.Atoi(getEnv("FEED_TIMEOUT_SECONDS", "15"))

	unit, err := currency.ParseISO(getEnv("CURRENCY_CODE", "CLP"))
	if err != nil {
		log.Printf("Invalid CURRENCY_CODE, using CLP: %v", err)
		unit = currency.MustParseISO("CLP")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Feed: FeedConfig{
			URL:          getEnv("FEED_URL", "https://docs.google.com/spreadsheets/d/SHEET_ID/export?format=csv"),
			CacheExpiry:  time.Duration(cacheExpiry) * time.Second,
			Timeout:      time.Duration(feedTimeout) * time.Second,
			FallbackFile: getEnv("FALLBACK_CATALOG_FILE", ""),
		},
		Messaging: MessagingConfig{
			Endpoint:  getEnv("MESSAGING_ENDPOINT", "https://wa.me"),
			Recipient: getEnv("MESSAGING_RECIPIENT", "+56912345678"),
		},
		Store: StoreConfig{
			Name:           getEnv("STORE_NAME", "Ferretería El Tornillo"),
			Address:        getEnv("STORE_ADDRESS", "Calle Falsa 123, Comuna Local"),
			Hours:          getEnv("STORE_HOURS", "de Lunes a Sábado de 9:00 a 18:00"),
			Currency:       unit,
			CurrencySymbol: getEnv("CURRENCY_SYMBOL", "$"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Brokers:         splitList(getEnv("KAFKA_BROKERS", "")),
			TopicStorefront: getEnv("KAFKA_TOPIC_STOREFRONT_EVENTS", "storefront-events"),
			ConsumerGroup:   getEnv("KAFKA_CONSUMER_GROUP", "storefront-group"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
		},
	}

	log.Printf("Config loaded: env=%s, port=%s, feed_cache=%s", cfg.Server.Env, cfg.Server.Port, cfg.Feed.CacheExpiry)
	return cfg
}

// Validate checks the values the storefront cannot run without.
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("FEED_URL is empty")
	}
	if c.Feed.CacheExpiry < 0 {
		return fmt.Errorf("CACHE_EXPIRY_SECONDS must not be negative")
	}
	if c.Messaging.Recipient == "" {
		return fmt.Errorf("MESSAGING_RECIPIENT is empty")
	}
	if c.Store.Name == "" {
		return fmt.Errorf("STORE_NAME is empty")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
