package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig — настройки сервиса, кроме БД.
type AppConfig struct {
	HTTPAddr string
	GRPCAddr string

	RSAPrivateKeyPath string

	JWTSecret        string
	JWTTTL           time.Duration
	PasswordResetTTL time.Duration

	GatewayBaseURL   string
	GatewayKeyID     string
	GatewayKeySecret string
	GatewayCurrency  string

	KafkaBrokers       []string
	KafkaTopic         string
	OutboxPollInterval time.Duration
	OutboxBatch        int

	CancelWindow   time.Duration
	AuthRatePerMin int
	SecureCookies  bool

	CatalogSeedPath string
	OTLPEndpoint    string
}

// LoadDotEnv подхватывает .env, если он есть. Уже заданные переменные не перетираются.
func LoadDotEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

func LoadAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:           getEnv("GRPC_ADDR", ":50051"),
		RSAPrivateKeyPath:  getEnv("RSA_PRIVATE_KEY_PATH", "private.pem"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTTTL:             getEnvDuration("JWT_TTL", 24*time.Hour),
		PasswordResetTTL:   getEnvDuration("PASSWORD_RESET_TTL", time.Hour),
		GatewayBaseURL:     getEnv("GATEWAY_BASE_URL", ""),
		GatewayKeyID:       getEnv("GATEWAY_KEY_ID", ""),
		GatewayKeySecret:   getEnv("GATEWAY_KEY_SECRET", ""),
		GatewayCurrency:    getEnv("GATEWAY_CURRENCY", "INR"),
		KafkaBrokers:       getEnvList("KAFKA_BROKERS"),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "booking-events"),
		OutboxPollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatch:        getEnvInt("OUTBOX_BATCH", 50),
		CancelWindow:       getEnvDuration("CANCEL_WINDOW", 5*time.Minute),
		AuthRatePerMin:     getEnvInt("AUTH_RATE_PER_MIN", 5),
		SecureCookies:      getEnv("SECURE_COOKIES", "false") == "true",
		CatalogSeedPath:    getEnv("CATALOG_SEED_PATH", ""),
		OTLPEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("invalid app config: JWT_SECRET must be set")
	}
	if cfg.CancelWindow <= 0 {
		return nil, fmt.Errorf("invalid app config: CANCEL_WINDOW must be positive")
	}
	return cfg, nil
}
