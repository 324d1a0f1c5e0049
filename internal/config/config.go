package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	LogLevel    string
	AIBaseURL   string
	AIAPIKey    string
	APIToken    string
}

func Load() Config {
	return Config{
		Port:        envInt("CRUX_PORT", 8760),
		NatsURL:     envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		AIBaseURL:   envStr("CRUX_AI_URL", "http://oracle:8720"),
		AIAPIKey:    envStr("CRUX_AI_API_KEY", ""),
		APIToken:    envStr("CRUX_API_TOKEN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
