package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	StoreDriver string
	DBUrl       string
	JWTSecret   string

	RedisAddr   string
	RabbitMQURL string
	MongoURI    string
	MongoDB     string

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	RazorpayAccountNumber string
	GatewayTimeout        time.Duration

	CommissionPercent decimal.Decimal
	Currency          string

	RateLimitRPS   float64
	RateLimitBurst int
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using environment and defaults")
	}

	return Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		StoreDriver: getEnv("STORE_DRIVER", "mysql"),
		DBUrl:       os.Getenv("DB_URL"),
		JWTSecret:   getEnv("JWT_SECRET", "change-me"),

		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RabbitMQURL: os.Getenv("RABBITMQ_URL"),
		MongoURI:    os.Getenv("MONGO_URI"),
		MongoDB:     getEnv("MONGO_DB", "skillarena"),

		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		RazorpayAccountNumber: os.Getenv("RAZORPAY_ACCOUNT_NUMBER"),
		GatewayTimeout:        getDuration("GATEWAY_TIMEOUT", 10*time.Second),

		CommissionPercent: getDecimal("PLATFORM_COMMISSION_PERCENT", decimal.NewFromInt(10)),
		Currency:          getEnv("CURRENCY", "INR"),

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 20),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	v, err := decimal.NewFromString(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
