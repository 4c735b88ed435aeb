package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/five82/tunerwatch/internal/config"
	"github.com/five82/tunerwatch/internal/logstream"
	"github.com/five82/tunerwatch/internal/mirakurun"
	"github.com/five82/tunerwatch/internal/state"
	"github.com/five82/tunerwatch/internal/ui"
	"github.com/five82/tunerwatch/internal/validate"
	"github.com/five82/tunerwatch/internal/watchdog"
)

// DefaultStartDelay postpones the first connection so the UI is drawn
// before any network activity.
const DefaultStartDelay = 1000 * time.Millisecond

// Options configure the tunerwatch application.
type Options struct {
	ConfigPath string // empty uses config.DefaultPath
	// Host and Port replace the stored endpoint when non-empty.
	Host    string
	Port    string
	Version string
	Logger  *slog.Logger
}

// Run boots tunerwatch and blocks until the UI exits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	settings.SetLogger(logger)
	if overrides := endpointOverrides(opts.Host, opts.Port); len(overrides) > 0 {
		if err := settings.SetAll(overrides); err != nil {
			logger.Warn("endpoint override not persisted", "path", settings.Path(), "error", err)
		}
	}

	rt, err := newRuntime(runtimeOptions{
		Settings:   settings,
		Version:    opts.Version,
		Logger:     logger,
		StartDelay: DefaultStartDelay,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	host, port := settings.Endpoint()
	logger.Info("tunerwatch starting", "version", opts.Version, "config", settings.Path(), "host", host, "port", port)

	uiOpts := ui.Options{
		Context:   ctx,
		Store:     rt.watchdog.Store(),
		Logs:      rt.follower.Processor(),
		Settings:  settings,
		Admin:     rt.Admin,
		Logger:    logger,
		ThemeName: settings.Get(config.KeyTheme),
		Version:   opts.Version,
	}
	return ui.Run(ctx, uiOpts, func(sink *ui.Sink) {
		rt.relay.attach(sink)
		rt.Start(ctx)
	})
}

func endpointOverrides(host, port string) map[string]string {
	values := map[string]string{}
	if host = strings.TrimSpace(host); host != "" {
		values[config.KeyHost] = host
	}
	if port = strings.TrimSpace(port); port != "" {
		values[config.KeyPort] = port
	}
	return values
}

func userAgent(version string) string {
	if strings.TrimSpace(version) == "" {
		version = "dev"
	}
	return "tunerwatch/" + version
}

type runtimeOptions struct {
	Settings   *config.Store
	Version    string
	Logger     *slog.Logger
	StartDelay time.Duration
	LogRetry   time.Duration
}

// runtime owns the background producers: the watchdog, the log follower
// and the config file watcher.
type runtime struct {
	settings *config.Store
	version  string
	logger   *slog.Logger

	relay    *relay
	watchdog *watchdog.Watchdog
	follower *LogFollower

	cancel  context.CancelFunc
	unwatch []func()
	wg      sync.WaitGroup
}

func newRuntime(opts runtimeOptions) (*runtime, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	rt := &runtime{
		settings: opts.Settings,
		version:  opts.Version,
		logger:   opts.Logger,
		relay:    &relay{},
	}

	wd, err := watchdog.New(watchdog.Options{
		Config:     opts.Settings,
		Dial:       rt.dialTuners,
		Store:      &state.Store{},
		Listener:   rt.relay,
		Logger:     opts.Logger,
		StartDelay: opts.StartDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("init watchdog: %w", err)
	}
	rt.watchdog = wd
	rt.follower = NewLogFollower(LogFollowerOptions{
		Config:    opts.Settings,
		Dial:      rt.dialLogs,
		Processor: logstream.New(logstream.DefaultCapacity),
		Sink:      rt.relay,
		Logger:    opts.Logger,
		Retry:     opts.LogRetry,
	})
	return rt, nil
}

// Start launches every producer. It must be called at most once.
func (rt *runtime) Start(ctx context.Context) {
	ctx, rt.cancel = context.WithCancel(ctx)

	for _, key := range []string{config.KeyHost, config.KeyPort} {
		rt.unwatch = append(rt.unwatch, rt.settings.Watch(key, rt.endpointChanged))
	}

	rt.watchdog.Start(ctx)
	rt.wg.Go(func() { rt.follower.Run(ctx) })
	rt.wg.Go(func() {
		if err := rt.settings.WatchFile(ctx); err != nil {
			rt.logger.Warn("config file not watched", "path", rt.settings.Path(), "error", err)
		}
	})
}

// Close stops every producer and waits for them to exit.
func (rt *runtime) Close() {
	for _, cancel := range rt.unwatch {
		cancel()
	}
	rt.unwatch = nil
	if rt.cancel != nil {
		rt.cancel()
	}
	rt.watchdog.Close()
	rt.wg.Wait()
}

func (rt *runtime) endpointChanged(string) {
	host, port := rt.settings.Endpoint()
	rt.logger.Info("endpoint changed", "host", host, "port", port)
	rt.watchdog.Reconfigure()
	rt.follower.Reload()
}

// Admin returns a client for the stored endpoint.
func (rt *runtime) Admin() (mirakurun.Admin, error) {
	host, port := rt.settings.Endpoint()
	if err := validate.Endpoint(host, port); err != nil {
		return nil, err
	}
	client, err := rt.newClient(host, port)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (rt *runtime) dialTuners(host, port string) (mirakurun.TunerFetcher, error) {
	client, err := rt.newClient(host, port)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (rt *runtime) dialLogs(host, port string) (mirakurun.LogStreamer, error) {
	client, err := rt.newClient(host, port)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (rt *runtime) newClient(host, port string) (*mirakurun.Client, error) {
	client, err := mirakurun.NewClient(mirakurun.Endpoint(host, port))
	if err != nil {
		return nil, fmt.Errorf("init mirakurun client: %w", err)
	}
	client.SetUserAgent(userAgent(rt.version))
	return client, nil
}

// relay forwards producer notifications to the UI once it is running.
// Notifications sent before attach are dropped; the UI reads the store on
// its first tick.
type relay struct {
	sink atomic.Pointer[ui.Sink]
}

func (r *relay) attach(sink *ui.Sink) {
	r.sink.Store(sink)
}

func (r *relay) ConnectionChanged(conn state.ConnectionState, label string) {
	if sink := r.sink.Load(); sink != nil {
		sink.ConnectionChanged(conn, label)
	}
}

func (r *relay) ActivityChanged(activity state.Activity) {
	if sink := r.sink.Load(); sink != nil {
		sink.ActivityChanged(activity)
	}
}

func (r *relay) LogEntries(entries []logstream.Entry, total uint64) {
	if sink := r.sink.Load(); sink != nil {
		sink.LogEntries(entries, total)
	}
}

func (r *relay) LogStreamEnded(err error) {
	if sink := r.sink.Load(); sink != nil {
		sink.LogStreamEnded(err)
	}
}
