package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config is populated from RETAILTRACK_-prefixed environment variables.
type Config struct {
	Port                  string `envconfig:"PORT" default:"8080"`
	Env                   string `envconfig:"ENV" default:"dev"`
	LogLevel              string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat             string `envconfig:"LOG_FORMAT" default:"json"`
	AllowedOrigin         string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`
	DatabaseURL           string `envconfig:"DATABASE_URL"`
	RedisAddr             string `envconfig:"REDIS_ADDR"`
	RedisPassword         string `envconfig:"REDIS_PASSWORD"`
	RedisDB               int    `envconfig:"REDIS_DB" default:"0"`
	ReportTTLSeconds      int    `envconfig:"REPORT_TTL_SECONDS" default:"30"`
	AuthSecret            string `envconfig:"AUTH_SECRET"`
	AccessTokenTTLMinutes int    `envconfig:"ACCESS_TOKEN_TTL_MINUTES" default:"480"`
	LoginRateLimit        int    `envconfig:"LOGIN_RATE_LIMIT" default:"10"`
	DefaultAdminUser      string `envconfig:"DEFAULT_ADMIN_USER" default:"admin"`
	DefaultAdminPassword  string `envconfig:"DEFAULT_ADMIN_PASSWORD"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("RETAILTRACK", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	if cfg.ReportTTLSeconds < 1 {
		cfg.ReportTTLSeconds = 30
	}
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsDev() bool {
	return c.Env == "dev"
}
