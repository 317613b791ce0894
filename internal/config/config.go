package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	HttpServerPort uint16   `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"  envSeparator:","`

	WsReadLimit  int64         `env:"WS_READ_LIMIT"  envDefault:"65536" validate:"min=1024"`
	WsOutboxSize int           `env:"WS_OUTBOX_SIZE" envDefault:"64"    validate:"min=1,max=4096"`
	WsPingPeriod time.Duration `env:"WS_PING_PERIOD" envDefault:"30s"   validate:"gt=0,ltfield=WsPongWait"`
	WsPongWait   time.Duration `env:"WS_PONG_WAIT"   envDefault:"60s"   validate:"gt=0"`

	// Empty secret: identities announced in joinRoom are trusted as-is.
	JwtSecret string `env:"JWT_SECRET"`

	RedisEnabled bool   `env:"REDIS_ENABLED" envDefault:"false"`
	RedisHost    string `env:"REDIS_HOST"    envDefault:"localhost"`
	RedisPort    uint16 `env:"REDIS_PORT"    envDefault:"6379" validate:"min=1000,max=65535"`

	PresenceSyncInterval time.Duration `env:"PRESENCE_SYNC_INTERVAL" envDefault:"10s" validate:"gt=0"`
	PresenceTTL          time.Duration `env:"PRESENCE_TTL"           envDefault:"30s" validate:"gtfield=PresenceSyncInterval"`

	PostgresEnabled  bool   `env:"POSTGRES_ENABLED"  envDefault:"false"`
	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"notes_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"notes_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"notes_db"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
