package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/five82/tunerwatch/internal/clock"
	"github.com/five82/tunerwatch/internal/logstream"
	"github.com/five82/tunerwatch/internal/mirakurun"
	"github.com/five82/tunerwatch/internal/validate"
	"github.com/five82/tunerwatch/internal/watchdog"
)

// DefaultLogReload is the wait before reopening an ended log stream.
const DefaultLogReload = 3000 * time.Millisecond

var errReloaded = errors.New("log session reloaded")

// LogSink receives the output of the log follower.
type LogSink interface {
	LogEntries(entries []logstream.Entry, total uint64)
	LogStreamEnded(err error)
}

// LogDialer builds a log stream client for a validated endpoint.
type LogDialer func(host, port string) (mirakurun.LogStreamer, error)

// LogFollowerOptions configures a LogFollower. Config, Dial and Sink are
// required.
type LogFollowerOptions struct {
	Config    watchdog.ConfigSource
	Dial      LogDialer
	Processor *logstream.Processor
	Sink      LogSink
	Clock     clock.Clock
	Logger    *slog.Logger
	Retry     time.Duration
}

// LogFollower keeps the server log stream open and feeds it through a
// Processor. Its reconnect policy is independent of the watchdog's.
type LogFollower struct {
	config    watchdog.ConfigSource
	dial      LogDialer
	processor *logstream.Processor
	sink      LogSink
	clock     clock.Clock
	logger    *slog.Logger
	retry     time.Duration

	reload chan struct{}
}

// NewLogFollower returns a follower. Call Run to start it.
func NewLogFollower(opts LogFollowerOptions) *LogFollower {
	if opts.Processor == nil {
		opts.Processor = logstream.New(logstream.DefaultCapacity)
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Retry <= 0 {
		opts.Retry = DefaultLogReload
	}
	return &LogFollower{
		config:    opts.Config,
		dial:      opts.Dial,
		processor: opts.Processor,
		sink:      opts.Sink,
		clock:     opts.Clock,
		logger:    opts.Logger.With("component", "logfollow"),
		retry:     opts.Retry,
		reload:    make(chan struct{}, 1),
	}
}

// Processor returns the processor holding the log history.
func (f *LogFollower) Processor() *logstream.Processor {
	return f.processor
}

// Reload drops the current session, if any, and reconnects with the
// stored configuration right away.
func (f *LogFollower) Reload() {
	select {
	case f.reload <- struct{}{}:
	default:
	}
}

// Run follows the log stream until ctx is cancelled.
func (f *LogFollower) Run(ctx context.Context) {
	for {
		host, port := f.config.Endpoint()
		if err := validate.Endpoint(host, port); err != nil {
			f.logger.Debug("log stream idle, configuration invalid", "host", host, "port", port, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-f.reload:
				continue
			}
		}

		err := f.follow(ctx, host, port)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, errReloaded) {
			f.logger.Debug("log stream reloading", "host", host, "port", port)
			continue
		}

		f.sink.LogStreamEnded(err)
		f.logger.Warn("log stream ended", "host", host, "port", port, "retry_in", f.retry, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-f.clock.After(f.retry):
		case <-f.reload:
		}
	}
}

// follow runs one session and returns why it ended.
func (f *LogFollower) follow(ctx context.Context, host, port string) error {
	client, err := f.dial(host, port)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var reloaded atomic.Bool
	go func() {
		select {
		case <-f.reload:
			reloaded.Store(true)
			cancel()
		case <-ctx.Done():
		}
	}()

	stream, err := client.OpenLogStream(ctx)
	if err != nil {
		if reloaded.Load() {
			return errReloaded
		}
		return fmt.Errorf("open log stream: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer func() {
		stop()
		_ = stream.Close()
	}()
	f.logger.Info("log stream connected", "host", host, "port", port)

	buf := make([]byte, 32*1024)
	for {
		n, readErr := stream.Body.Read(buf)
		if n > 0 {
			if entries := f.processor.Feed(buf[:n]); len(entries) > 0 {
				f.sink.LogEntries(entries, f.processor.Total())
			}
		}
		if readErr == nil {
			continue
		}

		if entries := f.processor.Flush(); len(entries) > 0 {
			f.sink.LogEntries(entries, f.processor.Total())
		}
		if reloaded.Load() {
			return errReloaded
		}
		if errors.Is(readErr, io.EOF) {
			return fmt.Errorf("log stream closed by server: %w", readErr)
		}
		return fmt.Errorf("read log stream: %w", readErr)
	}
}
