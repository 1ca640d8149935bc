package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DBSource       string
	Port           string
	Env            string
	TelegramToken  string
	GatewayBaseURL string
	SettingsFile   string
	PollInterval   time.Duration
	TopupExpiry    time.Duration
}

func Load() (*Config, error) {
	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	token := os.Getenv("TELEGRAM_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN environment variable is required")
	}

	gatewayURL := os.Getenv("GATEWAY_BASE_URL")
	if gatewayURL == "" {
		return nil, fmt.Errorf("GATEWAY_BASE_URL environment variable is required")
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	settingsFile := os.Getenv("SETTINGS_FILE")
	if settingsFile == "" {
		settingsFile = "settings.yaml"
	}

	pollInterval, err := durationEnv("POLL_INTERVAL", time.Second)
	if err != nil {
		return nil, err
	}
	topupExpiry, err := durationEnv("TOPUP_EXPIRY", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	return &Config{
		DBSource:       dbSource,
		Port:           port,
		Env:            env,
		TelegramToken:  token,
		GatewayBaseURL: gatewayURL,
		SettingsFile:   settingsFile,
		PollInterval:   pollInterval,
		TopupExpiry:    topupExpiry,
	}, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
