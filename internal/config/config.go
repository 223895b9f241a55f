// Package config loads service configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
)

// Config carries everything main needs to wire the service.
type Config struct {
	MongoURI      string
	MongoDatabase string
	JWTSecret     string
	NATSURL       string // empty: run tasks on in-process goroutines
	FCMServerKey  string
	FCMEndpoint   string // empty: the FCM production endpoint
	Port          string
	LogLevel      string
	RateLimitRPM  int // registration requests per minute per caller
}

// Load reads the configuration, falling back to local-development
// defaults for anything unset.
func Load() Config {
	return Config{
		MongoURI:      getenv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getenv("MONGODB_DATABASE", "groupchat"),
		JWTSecret:     getenv("JWT_SECRET", "dev-secret-change-me"),
		NATSURL:       os.Getenv("NATS_URL"),
		FCMServerKey:  os.Getenv("FCM_SERVER_KEY"),
		FCMEndpoint:   os.Getenv("FCM_ENDPOINT"),
		Port:          getenv("PORT", "8080"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		RateLimitRPM:  getint("RATE_LIMIT_RPM", 20),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// NewLogger builds the service-wide JSON logger at the configured
// level.
func NewLogger(level string) *slog.Logger {
	lv := new(slog.LevelVar)
	switch level {
	case "debug":
		lv.Set(slog.LevelDebug)
	case "warn":
		lv.Set(slog.LevelWarn)
	case "error":
		lv.Set(slog.LevelError)
	default:
		lv.Set(slog.LevelInfo)
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lv})
	return slog.New(handler).With(slog.String("service", "groupchat-api"))
}
