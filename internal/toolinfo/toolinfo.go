// Package toolinfo fetches the metadata document a tool optionally serves at
// the http_info_url it advertises during discovery.
package toolinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout  = 5 * time.Second
	defaultRetryMax = 2
	maxBodyBytes    = 1 << 20
)

// Info is the identity document a tool serves over HTTP.
type Info struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	ChartTitle string `json:"chart_title,omitempty"`
	Platform   string `json:"platform,omitempty"`
}

// Fetcher retrieves tool info with bounded retries.
type Fetcher struct {
	logger zerolog.Logger
	client *retryablehttp.Client
}

// NewFetcher constructs a Fetcher. timeout <= 0 uses a default.
func NewFetcher(logger zerolog.Logger, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := retryablehttp.NewClient()
	client.RetryMax = defaultRetryMax
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: timeout}

	return &Fetcher{logger: logger, client: client}
}

// Fetch downloads and decodes the info document at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Info, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Info{}, fmt.Errorf("build info request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Info{}, fmt.Errorf("fetch tool info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Info{}, fmt.Errorf("fetch tool info: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Info{}, fmt.Errorf("read tool info: %w", err)
	}

	var info Info
	if err := json.Unmarshal(body, &info); err != nil {
		return Info{}, fmt.Errorf("parse tool info: %w", err)
	}

	f.logger.Debug().
		Str("name", info.Name).
		Str("version", info.Version).
		Msg("tool info fetched")

	return info, nil
}
