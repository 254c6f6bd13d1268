package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	BotToken    string `env:"BOT_TOKEN,required"`
	WebhookHost string `env:"WEBHOOK_HOST"`
	Port        string `env:"PORT" envDefault:"8080"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Debug       bool   `env:"DEBUG" envDefault:"false"`

	DBHost      string `env:"DB_HOST,required"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`
	DBUser      string `env:"DB_USER,required"`
	DBPassword  string `env:"DB_PASSWORD,required"`
	DBName      string `env:"DB_NAME,required"`
	EnableCache bool   `env:"ENABLE_CACHE" envDefault:"true"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	OwnerID int64   `env:"OWNER_ID,required"`
	DevIDs  []int64 `env:"DEV_USER_IDS" envSeparator:","`

	RateLimit  int           `env:"RATE_LIMIT" envDefault:"4"`
	RateWindow time.Duration `env:"RATE_WINDOW" envDefault:"6s"`

	DeleteDeniedCommands bool          `env:"DELETE_DENIED_COMMANDS" envDefault:"true"`
	VerifyDeadline       time.Duration `env:"VERIFY_DEADLINE" envDefault:"120s"`

	EnableTelemetry bool `env:"ENABLE_TELEMETRY" envDefault:"true"`
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	log.Printf("Config loaded. Port: %s, LogLevel: %s", cfg.Port, cfg.LogLevel)
	return cfg, nil
}
