package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envDiscoveryPort    = "CHARTLINK_DISCOVERY_PORT"
	envDiscoveryTimeout = "CHARTLINK_DISCOVERY_TIMEOUT"
	envDiscoveryExtra   = "CHARTLINK_DISCOVERY_EXTRA_TARGETS"
	envToolURL          = "CHARTLINK_TOOL_URL"
	envToolsFile        = "CHARTLINK_TOOLS_FILE"
	envPollInterval     = "CHARTLINK_POLL_INTERVAL"
	envStatusPort       = "CHARTLINK_STATUS_PORT"
	envMetricsPort      = "CHARTLINK_METRICS_PORT"
	envStateFile        = "CHARTLINK_STATE_FILE"
	envWebhookURL       = "CHARTLINK_WEBHOOK_URL"
	envSlackWebhookURL  = "CHARTLINK_SLACK_WEBHOOK_URL"
	envLogLevel         = "CHARTLINK_LOG_LEVEL"
)

const (
	defaultDiscoveryPort    = 35601
	defaultDiscoveryTimeout = 3 * time.Second
	defaultPollInterval     = time.Second
)

// Config describes runtime configuration loaded from the environment.
type Config struct {
	DiscoveryPort    int
	DiscoveryTimeout time.Duration
	DiscoveryExtra   []string
	ToolURL          string
	ToolsFile        string
	PollInterval     time.Duration
	StatusPort       int
	MetricsPort      int
	StateFile        string
	WebhookURL       string
	SlackWebhookURL  string
	LogLevel         string
}

// Load reads configuration from environment variables and a local .env file
// if present. Existing environment variables take precedence over .env.
func Load() (Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Config{}, err
	}

	cfg := Config{
		DiscoveryPort:    defaultDiscoveryPort,
		DiscoveryTimeout: defaultDiscoveryTimeout,
		PollInterval:     defaultPollInterval,
	}

	var err error
	if cfg.DiscoveryPort, err = lookupPort(envDiscoveryPort, cfg.DiscoveryPort); err != nil {
		return Config{}, err
	}
	if cfg.StatusPort, err = lookupPort(envStatusPort, 0); err != nil {
		return Config{}, err
	}
	if cfg.MetricsPort, err = lookupPort(envMetricsPort, 0); err != nil {
		return Config{}, err
	}
	if cfg.DiscoveryTimeout, err = lookupDuration(envDiscoveryTimeout, cfg.DiscoveryTimeout); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval, err = lookupDuration(envPollInterval, cfg.PollInterval); err != nil {
		return Config{}, err
	}

	if value, ok := lookupTrimmed(envDiscoveryExtra); ok {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				cfg.DiscoveryExtra = append(cfg.DiscoveryExtra, part)
			}
		}
	}

	if value, ok := lookupTrimmed(envToolURL); ok {
		cfg.ToolURL = value
	}
	if value, ok := lookupTrimmed(envToolsFile); ok {
		cfg.ToolsFile = value
	}
	if value, ok := lookupTrimmed(envStateFile); ok {
		cfg.StateFile = value
	}
	if value, ok := lookupTrimmed(envWebhookURL); ok {
		cfg.WebhookURL = value
	}
	if value, ok := lookupTrimmed(envSlackWebhookURL); ok {
		cfg.SlackWebhookURL = value
	}
	if value, ok := lookupTrimmed(envLogLevel); ok {
		cfg.LogLevel = value
	}

	if cfg.ToolURL != "" {
		if err := validateStreamURL(cfg.ToolURL, envToolURL); err != nil {
			return Config{}, err
		}
	}
	if cfg.WebhookURL != "" {
		if err := validateHTTPURL(cfg.WebhookURL, envWebhookURL); err != nil {
			return Config{}, err
		}
	}
	if cfg.SlackWebhookURL != "" {
		if err := validateHTTPURL(cfg.SlackWebhookURL, envSlackWebhookURL); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func lookupPort(key string, fallback int) (int, error) {
	value, ok := lookupTrimmed(key)
	if !ok || value == "" {
		return fallback, nil
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("%s must be between 0 and 65535", key)
	}
	return port, nil
}

func lookupDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := lookupTrimmed(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero", key)
	}
	return parsed, nil
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}

func validateHTTPURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid %s: scheme must be http or https", name)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include a host", name)
	}
	return nil
}

func validateStreamURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return fmt.Errorf("invalid %s: scheme must be ws or wss", name)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include a host", name)
	}
	return nil
}
