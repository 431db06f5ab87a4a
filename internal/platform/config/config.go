package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders; the merge
// policy lives in its own YAML file and is loaded separately.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string
	PolicyPath  string
	WindowDays  int
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "meridian"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	policyPath := os.Getenv("POLICY_PATH")
	if policyPath == "" {
		policyPath = "config/policy.yaml"
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		PolicyPath:  policyPath,
		WindowDays:  envInt("SOURCE_WINDOW_DAYS", 90),
	}, nil
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
