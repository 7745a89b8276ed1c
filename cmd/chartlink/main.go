package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"chartlink/internal/config"
	"chartlink/internal/discovery"
	"chartlink/internal/logging"
	"chartlink/internal/metrics"
	"chartlink/internal/notify"
	"chartlink/internal/relay"
	"chartlink/internal/server"
	"chartlink/internal/snapshot"
	"chartlink/internal/state"
	"chartlink/internal/toolinfo"
	"chartlink/internal/transition"
)

const (
	reconnectInitial = time.Second
	reconnectMax     = 30 * time.Second
	notifyTimeout    = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		logger := logging.New()
		logger.Error().Err(err).Msg("chartlink exited with error")
		os.Exit(1)
	}
}

func run() error {
	toolName := flag.String("tool", "", "named tool from the tools file to connect to directly")
	once := flag.Bool("once", false, "attempt a single connect, print the result, and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewWithLevel(cfg.LogLevel)
	logger.Info().
		Int("discovery_port", cfg.DiscoveryPort).
		Dur("discovery_timeout", cfg.DiscoveryTimeout).
		Msg("chartlink starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manualURL, err := resolveManualURL(cfg, *toolName)
	if err != nil {
		return err
	}

	var lastTool state.Store
	if cfg.StateFile != "" {
		lastTool = state.NewFileStore(cfg.StateFile, logger)
	}

	collectors := metrics.New()
	store := snapshot.NewStore()
	transitions := transition.NewLog(0)
	notifier := notify.NewMultiNotifier(
		notify.NewWebhookNotifier(logger, cfg.WebhookURL),
		notify.NewSlackNotifier(logger, cfg.SlackWebhookURL),
	)
	fetcher := toolinfo.NewFetcher(logger, 0)

	opts := []relay.Option{
		relay.WithDiscovery(cfg.DiscoveryPort, cfg.DiscoveryTimeout),
		relay.WithMetrics(collectors),
		relay.WithTransitionHook(func(event transition.Event) {
			transitions.Record(event)
			go func() {
				nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
				defer cancel()
				if err := notifier.Notify(nctx, event); err != nil {
					logger.Warn().Err(err).Str("transition", event.String()).Msg("notification failed")
				}
			}()
		}),
		relay.WithDiscoveredHook(func(srv discovery.DiscoveredServer) {
			rememberTool(ctx, logger, lastTool, srv)
			if srv.InfoURL != "" {
				go logToolInfo(ctx, logger, fetcher, srv.InfoURL)
			}
		}),
	}
	if len(cfg.DiscoveryExtra) > 0 {
		client := discovery.NewClient(logger,
			discovery.WithDiagnostics(store.Log),
			discovery.WithExtraTargets(cfg.DiscoveryExtra...))
		opts = append(opts, relay.WithDiscoverFunc(client.Discover))
	}

	r := relay.New(logger, store, opts...)

	if *once {
		result := connectOnce(ctx, logger, r, manualURL, lastTool)
		fmt.Println(result.Tagged())
		r.Disconnect()
		return nil
	}

	server.Start(ctx, logger, store, collectors, cfg.StatusPort, cfg.MetricsPort)

	go maintainConnection(ctx, logger, r, manualURL, lastTool)

	poll(ctx, logger, store, cfg.PollInterval)

	r.Disconnect()
	logger.Info().Msg("chartlink stopped")
	return nil
}

// resolveManualURL returns a fixed stream URL when one is configured, either
// directly or through a named tools-file entry. Empty means use discovery.
func resolveManualURL(cfg config.Config, toolName string) (string, error) {
	if toolName == "" {
		return cfg.ToolURL, nil
	}
	if cfg.ToolsFile == "" {
		return "", fmt.Errorf("--tool requires %s", "CHARTLINK_TOOLS_FILE")
	}
	entries, err := config.LoadToolsFile(cfg.ToolsFile)
	if err != nil {
		return "", fmt.Errorf("load tools file: %w", err)
	}
	entry := config.LookupTool(entries, toolName)
	if entry == nil {
		return "", fmt.Errorf("tool %q not found in %s", toolName, cfg.ToolsFile)
	}
	return entry.WSURL, nil
}

// maintainConnection keeps one stream session alive, redialing with
// exponential backoff after each drop or failed attempt.
func maintainConnection(ctx context.Context, logger zerolog.Logger, r *relay.Relay, manualURL string, lastTool state.Store) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = reconnectInitial
	policy.MaxInterval = reconnectMax
	policy.MaxElapsedTime = 0

	for {
		if ctx.Err() != nil {
			return
		}

		result := connectOnce(ctx, logger, r, manualURL, lastTool)
		if result.Kind == relay.KindOK {
			policy.Reset()
			waitForDrop(ctx, r)
			if ctx.Err() != nil {
				return
			}
			logger.Info().Msg("stream dropped, reconnecting")
			continue
		}

		wait := policy.NextBackOff()
		logger.Info().
			Str("result", result.Tagged()).
			Dur("retry_in", wait).
			Msg("connect attempt failed")
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// connectOnce runs a single connect attempt: the manual URL when configured,
// otherwise discovery, falling back to the last remembered tool when the
// network is quiet.
func connectOnce(ctx context.Context, logger zerolog.Logger, r *relay.Relay, manualURL string, lastTool state.Store) relay.Result {
	if manualURL != "" {
		return r.ConnectWithURL(manualURL)
	}

	result := r.DiscoverAndConnect()
	if result.Kind != relay.KindNotFound || lastTool == nil {
		return result
	}

	remembered, ok, err := lastTool.Load(ctx)
	if err != nil || !ok {
		return result
	}
	logger.Info().Str("url", remembered.StreamURL).Msg("discovery empty, trying last known tool")
	fallback := r.ConnectWithURL(remembered.StreamURL)
	if fallback.Kind == relay.KindOK {
		return fallback
	}
	return result
}

func waitForDrop(ctx context.Context, r *relay.Relay) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.State() != snapshot.StateConnected {
				return
			}
		}
	}
}

func rememberTool(ctx context.Context, logger zerolog.Logger, lastTool state.Store, srv discovery.DiscoveredServer) {
	if lastTool == nil {
		return
	}
	record := state.LastTool{
		StreamURL:   srv.StreamURL,
		InfoURL:     srv.InfoURL,
		Name:        srv.Name,
		Version:     srv.Version,
		ConnectedAt: time.Now().UTC(),
	}
	if err := lastTool.Save(ctx, record); err != nil {
		logger.Warn().Err(err).Msg("persist last tool failed")
	}
}

func logToolInfo(ctx context.Context, logger zerolog.Logger, fetcher *toolinfo.Fetcher, url string) {
	info, err := fetcher.Fetch(ctx, url)
	if err != nil {
		logger.Warn().Err(err).Str("url", url).Msg("tool info fetch failed")
		return
	}
	logger.Info().
		Str("name", info.Name).
		Str("version", info.Version).
		Str("chart", info.ChartTitle).
		Msg("connected tool identified")
}

// poll periodically reports the session state until the context ends.
func poll(ctx context.Context, logger zerolog.Logger, store *snapshot.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			event := logger.Debug().Stringer("state", store.State())
			if at := store.FrameAt(); !at.IsZero() {
				event = event.Dur("frame_age", time.Since(at))
			}
			event.Msg("session poll")
		}
	}
}
