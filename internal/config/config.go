package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN          string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL          string `env:"RABBITMQ_URL,required=true"`
	RedisURL             string `env:"REDIS_URL,required=true"`
	PushGatewayURL       string `env:"PUSH_GATEWAY_URL,required=true"`
	PushGatewayKey       string `env:"PUSH_GATEWAY_KEY"`
	RateLimitPerSec      int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	WorkerConcurrency    int    `env:"WORKER_CONCURRENCY,default=4"`
	APIPort              int    `env:"API_PORT,default=8080"`
	LogLevel             string `env:"LOG_LEVEL,default=info"`
	SweepIntervalSeconds int    `env:"SWEEP_INTERVAL_SECONDS,default=300"`
	SweepLimit           int    `env:"SWEEP_LIMIT,default=500"`
	SendTimeoutSeconds   int    `env:"SEND_TIMEOUT_SECONDS,default=10"`
	CountdownAt          string `env:"COUNTDOWN_AT,default=08:00"`
	TimeZone             string `env:"TIMEZONE,default=Asia/Taipei"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS must be positive")
	}
	if c.SendTimeoutSeconds <= 0 {
		return fmt.Errorf("SEND_TIMEOUT_SECONDS must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, _, err := c.CountdownClock(); err != nil {
		return err
	}
	return nil
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

// Location resolves TIMEZONE, which defines the calendar used by countdown reminders.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(c.TimeZone))
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// CountdownClock parses COUNTDOWN_AT as a local HH:MM.
func (c *Config) CountdownClock() (hour int, minute int, err error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(c.CountdownAt))
	if err != nil {
		return 0, 0, fmt.Errorf("COUNTDOWN_AT %q must be HH:MM: %w", c.CountdownAt, err)
	}
	return parsed.Hour(), parsed.Minute(), nil
}
