package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config captures everything the server needs from the environment so main
// stays lean. Empty DatabaseURL selects the in-memory store; empty RedisURL
// disables the rendered-document cache; empty KafkaBrokers disables audit
// publishing.
type Config struct {
	Addr          string        `envconfig:"GASCERT_ADDR" default:":8080"`
	LogLevel      string        `envconfig:"GASCERT_LOG_LEVEL" default:"info"`
	DatabaseURL   string        `envconfig:"GASCERT_DATABASE_URL"`
	RedisURL      string        `envconfig:"GASCERT_REDIS_URL"`
	KafkaBrokers  []string      `envconfig:"GASCERT_KAFKA_BROKERS"`
	AuditTopic    string        `envconfig:"GASCERT_AUDIT_TOPIC" default:"gascert.audit"`
	JWTSigningKey string        `envconfig:"GASCERT_JWT_SIGNING_KEY" default:"dev-secret-key-change-in-production"`
	AssetDir      string        `envconfig:"GASCERT_ASSET_DIR" default:"./assets"`
	DocumentTTL   time.Duration `envconfig:"GASCERT_DOCUMENT_CACHE_TTL" default:"1h"`

	CompanyName    string `envconfig:"GASCERT_COMPANY_NAME" default:"Gas Calibration Laboratory"`
	CompanyAddress string `envconfig:"GASCERT_COMPANY_ADDRESS"`
	CompanyPhone   string `envconfig:"GASCERT_COMPANY_PHONE"`
	CompanyEmail   string `envconfig:"GASCERT_COMPANY_EMAIL"`

	Redis RedisConfig
}

// RedisConfig tunes the go-redis client pool.
type RedisConfig struct {
	PoolSize     int           `envconfig:"GASCERT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GASCERT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GASCERT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GASCERT_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"GASCERT_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Load builds the config from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
