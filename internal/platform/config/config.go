package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

type HTTPConfig struct {
	Addr string
}

type AuthConfig struct {
	JWTSecret      []byte
	AccessTokenTTL time.Duration
}

type AppConfig struct {
	ServiceName string
	LogLevel    string
	HTTP        HTTPConfig
	Auth        AuthConfig

	DatabaseURL string
	RedisURL    string
	NATSURL     string

	// StatsCacheTTL bounds staleness of cached teacher stats.
	StatsCacheTTL time.Duration
}

func Load() (AppConfig, error) {
	cfg := AppConfig{
		ServiceName: strings.TrimSpace(os.Getenv("SERVICE_NAME")),
		LogLevel:    strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		HTTP: HTTPConfig{
			Addr: strings.TrimSpace(os.Getenv("HTTP_ADDR")),
		},
		Auth: AuthConfig{
			JWTSecret:      []byte(strings.TrimSpace(os.Getenv("JWT_SECRET"))),
			AccessTokenTTL: envDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
		},
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:      strings.TrimSpace(os.Getenv("REDIS_URL")),
		NATSURL:       strings.TrimSpace(os.Getenv("NATS_URL")),
		StatsCacheTTL: envDuration("STATS_CACHE_TTL", 30*time.Second),
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "applearn"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if len(cfg.Auth.JWTSecret) == 0 {
		return AppConfig{}, errors.New("JWT_SECRET is required")
	}
	if cfg.DatabaseURL == "" {
		return AppConfig{}, errors.New("DATABASE_URL is required")
	}
	return cfg, nil
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
