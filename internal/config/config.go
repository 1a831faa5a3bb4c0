package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr            string
	RegistrationBaseURL string
	LinkAPIBase         string
	GuestAPIBase        string
	PaymentAPIBase      string
	RedisAddr           string
	MongoURI            string
	RabbitURL           string
	JWTPublicKey        string
	OTLPEndpoint        string
	DebounceSettle      time.Duration
	PollInitialDelay    time.Duration
	PollInterval        time.Duration
	PollMaxAttempts     int
	LinkCacheTTL        time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:            envOr("HTTP_ADDR", ":8080"),
		RegistrationBaseURL: envOr("REGISTRATION_BASE_URL", "https://register.usherhq.app/invite"),
		LinkAPIBase:         os.Getenv("LINK_API_BASE"),
		GuestAPIBase:        os.Getenv("GUEST_API_BASE"),
		PaymentAPIBase:      os.Getenv("PAYMENT_API_BASE"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		MongoURI:            os.Getenv("MONGO_URI"),
		RabbitURL:           os.Getenv("RABBIT_URL"),
		JWTPublicKey:        os.Getenv("JWT_PUBLIC_KEY"),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		DebounceSettle:      durationOr("DEBOUNCE_SETTLE", 500*time.Millisecond),
		PollInitialDelay:    durationOr("POLL_INITIAL_DELAY", 2*time.Second),
		PollInterval:        durationOr("POLL_INTERVAL", 2*time.Second),
		PollMaxAttempts:     10,
		LinkCacheTTL:        durationOr("LINK_CACHE_TTL", time.Minute),
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(key))
	if d == 0 {
		return fallback
	}
	return d
}
