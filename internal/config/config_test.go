package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.DiscoveryPort != defaultDiscoveryPort {
		t.Fatalf("discovery port = %d, want %d", cfg.DiscoveryPort, defaultDiscoveryPort)
	}
	if cfg.DiscoveryTimeout != defaultDiscoveryTimeout {
		t.Fatalf("discovery timeout = %v, want %v", cfg.DiscoveryTimeout, defaultDiscoveryTimeout)
	}
	if cfg.PollInterval != defaultPollInterval {
		t.Fatalf("poll interval = %v, want %v", cfg.PollInterval, defaultPollInterval)
	}
	if cfg.StatusPort != 0 || cfg.MetricsPort != 0 {
		t.Fatal("status/metrics servers must default to disabled")
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv(envDiscoveryPort, "40100")
	t.Setenv(envDiscoveryTimeout, "750ms")
	t.Setenv(envDiscoveryExtra, "10.0.0.5, 10.0.0.9")
	t.Setenv(envToolURL, "ws://10.0.0.5:8080/ws")
	t.Setenv(envStatusPort, "9180")
	t.Setenv(envWebhookURL, "https://hooks.example.com/chartlink")
	t.Setenv(envLogLevel, "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.DiscoveryPort != 40100 {
		t.Fatalf("discovery port = %d", cfg.DiscoveryPort)
	}
	if cfg.DiscoveryTimeout != 750*time.Millisecond {
		t.Fatalf("discovery timeout = %v", cfg.DiscoveryTimeout)
	}
	if len(cfg.DiscoveryExtra) != 2 || cfg.DiscoveryExtra[1] != "10.0.0.9" {
		t.Fatalf("extra targets = %v", cfg.DiscoveryExtra)
	}
	if cfg.ToolURL != "ws://10.0.0.5:8080/ws" {
		t.Fatalf("tool url = %q", cfg.ToolURL)
	}
	if cfg.StatusPort != 9180 {
		t.Fatalf("status port = %d", cfg.StatusPort)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"bad port":       {envDiscoveryPort, "eighty"},
		"port too large": {envDiscoveryPort, "70000"},
		"bad duration":   {envDiscoveryTimeout, "fast"},
		"zero duration":  {envPollInterval, "0s"},
		"http tool url":  {envToolURL, "http://10.0.0.5:8080/ws"},
		"hostless tool":  {envToolURL, "ws://"},
		"webhook scheme": {envWebhookURL, "ftp://example.com/hook"},
		"hostless slack": {envSlackWebhookURL, "https:///hook"},
	}

	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%q to be rejected", kv[0], kv[1])
			}
		})
	}
}
