package watchdog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/five82/tunerwatch/internal/clock"
	"github.com/five82/tunerwatch/internal/mirakurun"
	"github.com/five82/tunerwatch/internal/reconcile"
	"github.com/five82/tunerwatch/internal/state"
	"github.com/five82/tunerwatch/internal/validate"
)

// Default timings.
const (
	DefaultDebounce    = 1500 * time.Millisecond
	DefaultFetchRetry  = 5000 * time.Millisecond
	DefaultStreamRetry = 3000 * time.Millisecond
)

const readBufferSize = 32 * 1024

// ConfigSource returns the currently stored endpoint.
type ConfigSource interface {
	Endpoint() (host, port string)
}

// Dialer builds an API client for a validated endpoint.
type Dialer func(host, port string) (mirakurun.TunerFetcher, error)

// Listener receives state notifications from the loop goroutine.
type Listener interface {
	ConnectionChanged(conn state.ConnectionState, label string)
	ActivityChanged(activity state.Activity)
}

// Options configures a Watchdog. Config and Dial are required.
type Options struct {
	Config   ConfigSource
	Dial     Dialer
	Store    *state.Store
	Listener Listener
	Clock    clock.Clock
	Logger   *slog.Logger

	Debounce    time.Duration
	FetchRetry  time.Duration
	StreamRetry time.Duration
	// StartDelay postpones the first connection attempt after Start.
	StartDelay time.Duration
}

// Watchdog owns the tuner table and the connection to the server.
type Watchdog struct {
	config   ConfigSource
	dial     Dialer
	store    *state.Store
	listener Listener
	clock    clock.Clock
	logger   *slog.Logger

	fetchRetry  time.Duration
	streamRetry time.Duration
	startDelay  time.Duration

	debounce *Debouncer
	msgs     chan message
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool

	// Loop goroutine only.
	gen           uint64
	conn          state.ConnectionState
	retry         *clock.Timer
	attemptCtx    context.Context
	attemptCancel context.CancelFunc
	session       *session
}

type session struct {
	gen        uint64
	stream     *mirakurun.Stream
	reconciler *reconcile.Reconciler
}

type message interface{}

type (
	restartMsg  struct{}
	retryMsg    struct{ gen uint64 }
	fetchResult struct {
		gen    uint64
		client mirakurun.TunerFetcher
		tuners []mirakurun.Tuner
		err    error
	}
	openResult struct {
		gen    uint64
		stream *mirakurun.Stream
		err    error
	}
	chunkMsg struct {
		gen  uint64
		data []byte
	}
	endMsg struct {
		gen uint64
		err error
	}
)

// New returns a Watchdog. It does nothing until Start.
func New(opts Options) (*Watchdog, error) {
	if opts.Config == nil {
		return nil, errors.New("watchdog: config source is required")
	}
	if opts.Dial == nil {
		return nil, errors.New("watchdog: dialer is required")
	}
	if opts.Store == nil {
		opts.Store = &state.Store{}
	}
	if opts.Listener == nil {
		opts.Listener = nopListener{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.FetchRetry <= 0 {
		opts.FetchRetry = DefaultFetchRetry
	}
	if opts.StreamRetry <= 0 {
		opts.StreamRetry = DefaultStreamRetry
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watchdog{
		config:      opts.Config,
		dial:        opts.Dial,
		store:       opts.Store,
		listener:    opts.Listener,
		clock:       opts.Clock,
		logger:      opts.Logger.With("component", "watchdog"),
		fetchRetry:  opts.FetchRetry,
		streamRetry: opts.StreamRetry,
		startDelay:  opts.StartDelay,
		msgs:        make(chan message, 64),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	w.debounce = NewDebouncer(w.clock, opts.Debounce, w.ReconfigureNow)
	return w, nil
}

// Store returns the table the watchdog writes to.
func (w *Watchdog) Store() *state.Store {
	return w.store
}

// Start launches the loop. The first attempt runs after StartDelay. The
// watchdog stops when ctx is cancelled or Close is called.
func (w *Watchdog) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		stop := context.AfterFunc(ctx, w.cancel)
		go func() {
			defer stop()
			w.run()
		}()

		if w.startDelay > 0 {
			timer := w.clock.AfterFunc(w.startDelay, w.ReconfigureNow)
			context.AfterFunc(w.ctx, func() { timer.Stop() })
			return
		}
		w.ReconfigureNow()
	})
}

// Reconfigure reports a configuration change. The restart happens once
// changes have been quiet for the debounce period.
func (w *Watchdog) Reconfigure() {
	w.debounce.Trigger()
}

// ReconfigureNow restarts the connection immediately.
func (w *Watchdog) ReconfigureNow() {
	w.post(restartMsg{})
}

// Close stops the loop, tears down the stream and waits for the loop to
// exit.
func (w *Watchdog) Close() {
	w.closeOnce.Do(func() {
		w.debounce.Stop()
		w.cancel()
		if w.started.Load() {
			<-w.done
		}
	})
}

func (w *Watchdog) post(msg message) bool {
	select {
	case w.msgs <- msg:
		return true
	case <-w.ctx.Done():
		return false
	}
}

func (w *Watchdog) run() {
	defer close(w.done)
	defer w.shutdown()

	for {
		select {
		case <-w.ctx.Done():
			return
		case msg := <-w.msgs:
			w.handle(msg)
		}
	}
}

func (w *Watchdog) handle(msg message) {
	switch m := msg.(type) {
	case restartMsg:
		w.restart()
	case retryMsg:
		if m.gen != w.gen {
			return
		}
		w.retry = nil
		w.attempt()
	case fetchResult:
		w.handleFetch(m)
	case openResult:
		w.handleOpen(m)
	case chunkMsg:
		if w.session == nil || m.gen != w.session.gen {
			return
		}
		w.session.reconciler.Feed(m.data)
	case endMsg:
		if w.session == nil || m.gen != w.session.gen {
			return
		}
		w.teardown()
		err := m.err
		if err == nil {
			err = io.EOF
		}
		w.fail(state.LabelDisconnected, fmt.Errorf("event stream ended: %w", err), w.streamRetry)
	}
}

func (w *Watchdog) restart() {
	w.teardown()
	w.gen++

	w.setConnection(state.Offline, state.LabelUnknown, nil)
	host, port := w.config.Endpoint()
	if err := validate.Endpoint(host, port); err != nil {
		w.logger.Info("configuration invalid, staying offline", "host", host, "port", port, "error", err)
		return
	}
	w.attempt()
}

// attempt runs the fetch and open sequence with the stored configuration.
func (w *Watchdog) attempt() {
	w.teardown()
	w.gen++
	gen := w.gen

	host, port := w.config.Endpoint()
	if err := validate.Endpoint(host, port); err != nil {
		w.setConnection(state.Offline, state.LabelUnknown, nil)
		w.logger.Info("configuration invalid, staying offline", "host", host, "port", port, "error", err)
		return
	}
	client, err := w.dial(host, port)
	if err != nil {
		w.fail(state.LabelDisconnected, fmt.Errorf("create client: %w", err), w.fetchRetry)
		return
	}

	w.setConnection(state.Connecting, state.LabelConnecting, nil)
	w.logger.Info("connecting", "host", host, "port", port)

	ctx, cancel := context.WithCancel(w.ctx)
	w.attemptCtx, w.attemptCancel = ctx, cancel
	go func() {
		tuners, err := client.FetchTuners(ctx)
		w.post(fetchResult{gen: gen, client: client, tuners: tuners, err: err})
	}()
}

func (w *Watchdog) handleFetch(m fetchResult) {
	if m.gen != w.gen || w.attemptCancel == nil {
		return
	}
	if m.err != nil {
		w.fail(state.LabelDisconnected, fmt.Errorf("fetch tuners: %w", m.err), w.fetchRetry)
		return
	}

	w.store.ReplaceTuners(m.tuners)
	w.logger.Debug("tuner list fetched", "tuners", len(m.tuners))

	ctx, gen, client := w.attemptCtx, m.gen, m.client
	go func() {
		stream, err := client.OpenEventStream(ctx, mirakurun.TunerUpdates)
		if !w.post(openResult{gen: gen, stream: stream, err: err}) {
			_ = stream.Close()
		}
	}()
}

func (w *Watchdog) handleOpen(m openResult) {
	if m.gen != w.gen || w.attemptCancel == nil || w.session != nil {
		_ = m.stream.Close()
		return
	}
	if m.err != nil {
		_ = m.stream.Close()
		label := state.LabelDisconnected
		var statusErr *mirakurun.StatusError
		if errors.As(m.err, &statusErr) {
			label = fmt.Sprintf("Error: %d", statusErr.StatusCode)
		}
		w.fail(label, fmt.Errorf("open event stream: %w", m.err), w.fetchRetry)
		return
	}

	w.session = &session{
		gen:    m.gen,
		stream: m.stream,
		reconciler: reconcile.New(w.store, func(mirakurun.Tuner) {
			w.publishActivity()
		}, w.logger),
	}

	activity := w.store.Recompute()
	w.setConnection(state.Connected, activity.String(), nil)
	w.listener.ActivityChanged(activity)
	w.logger.Info("event stream connected", "activity", activity.String())

	go w.read(m.gen, m.stream.Body)
}

func (w *Watchdog) publishActivity() {
	activity := w.store.Recompute()
	// The label follows the activity without a connection transition.
	w.store.SetConnection(state.Connected, activity.String(), nil)
	w.listener.ActivityChanged(activity)
}

func (w *Watchdog) read(gen uint64, body io.Reader) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			if !w.post(chunkMsg{gen: gen, data: data}) {
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			w.post(endMsg{gen: gen, err: err})
			return
		}
	}
}

// fail arms the retry timer, then publishes Error. The timer is armed
// first so that a listener seeing Error can rely on the retry being
// scheduled.
func (w *Watchdog) fail(label string, err error, delay time.Duration) {
	w.teardown()
	gen := w.gen
	w.retry = w.clock.AfterFunc(delay, func() { w.post(retryMsg{gen: gen}) })
	w.logger.Warn("connection failed", "state", state.Error.String(), "label", label, "retry_in", delay, "error", err)
	w.setConnection(state.Error, label, err)
}

func (w *Watchdog) setConnection(conn state.ConnectionState, label string, err error) {
	if conn != w.conn {
		w.logger.Debug("connection state changed", "from", w.conn.String(), "state", conn.String(), "label", label)
	}
	w.conn = conn
	w.store.SetConnection(conn, label, err)
	w.listener.ConnectionChanged(conn, label)
}

// teardown stops the retry timer, cancels the in-flight attempt and
// closes the event stream.
func (w *Watchdog) teardown() {
	w.retry.Stop()
	w.retry = nil
	if w.attemptCancel != nil {
		w.attemptCancel()
		w.attemptCtx, w.attemptCancel = nil, nil
	}
	if w.session != nil {
		_ = w.session.stream.Close()
		if applied, discarded := w.session.reconciler.Stats(); applied+discarded > 0 {
			w.logger.Debug("event stream closed", "applied", applied, "discarded", discarded)
		}
		w.session = nil
	}
}

func (w *Watchdog) shutdown() {
	w.teardown()
	w.gen++
}

type nopListener struct{}

func (nopListener) ConnectionChanged(state.ConnectionState, string) {}
func (nopListener) ActivityChanged(state.Activity)                  {}
