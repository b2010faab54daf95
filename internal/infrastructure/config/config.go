package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Mongo   MongoConfig
	Redis   RedisConfig
	SMTP    SMTPConfig
	Message MessageConfig
	Verify  VerifyConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=feedback_system"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST, default=localhost"`
	Port     int    `env:"SMTP_PORT, default=587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM, default=no-reply@truefeedback.io"`
}

// MessageConfig bounds anonymous message content. Policy, not constants.
type MessageConfig struct {
	MinLength int `env:"MSG_MIN_LENGTH, default=1"`
	MaxLength int `env:"MSG_MAX_LENGTH, default=300"`
}

type VerifyConfig struct {
	CodeTTL  time.Duration `env:"VERIFY_CODE_TTL, default=1h"`
	TokenTTL time.Duration `env:"SESSION_TOKEN_TTL, default=24h"`
	Workers  int           `env:"RESEND_WORKERS, default=4"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
