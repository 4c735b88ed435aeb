package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tunerwatch/internal/config"
	"github.com/five82/tunerwatch/internal/logstream"
	"github.com/five82/tunerwatch/internal/mirakurun"
	"github.com/five82/tunerwatch/internal/state"
	"github.com/five82/tunerwatch/internal/ui"
	"github.com/five82/tunerwatch/internal/validate"
)

type fakeMirakurun struct {
	mu        sync.Mutex
	userAgent string
}

func (f *fakeMirakurun) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tuners", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.userAgent = r.Header.Get("User-Agent")
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]mirakurun.Tuner{
			{Index: 0, Name: "T0", Types: []string{"GR"}, IsAvailable: true, IsFree: true},
		})
	})
	mux.HandleFunc("/api/events/stream", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "[\n"+
			`{"resource":"tuner","type":"update","data":{"index":0,"name":"T0","types":["GR"],"isAvailable":true,"isUsing":true,"users":[{"id":"rec","priority":1}]}}`+
			"\n,")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
	mux.HandleFunc("/api/log/stream", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "2026-10-19T10:00:00.000+09:00 info: hello\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
	return mux
}

func (f *fakeMirakurun) seenUserAgent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userAgent
}

func loadSettings(t *testing.T, host, port string) *config.Store {
	t.Helper()
	settings, err := config.Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := settings.SetAll(map[string]string{config.KeyHost: host, config.KeyPort: port}); err != nil {
		t.Fatalf("SetAll: %v", err)
	}
	return settings
}

// awaitAll consumes messages until every matcher has matched one of them,
// in any order.
func awaitAll(t *testing.T, msgs <-chan tea.Msg, matchers map[string]func(tea.Msg) bool) {
	t.Helper()
	pending := make(map[string]func(tea.Msg) bool, len(matchers))
	for name, match := range matchers {
		pending[name] = match
	}
	deadline := time.After(5 * time.Second)
	for len(pending) > 0 {
		select {
		case msg := <-msgs:
			for name, match := range pending {
				if match(msg) {
					delete(pending, name)
				}
			}
		case <-deadline:
			names := make([]string, 0, len(pending))
			for name := range pending {
				names = append(names, name)
			}
			t.Fatalf("timed out waiting for %v", names)
		}
	}
}

func TestRuntime_MirrorsServer(t *testing.T) {
	fake := &fakeMirakurun{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	settings := loadSettings(t, host, port)

	rt, err := newRuntime(runtimeOptions{Settings: settings, Version: "1.2.3"})
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	t.Cleanup(rt.Close)

	msgs := make(chan tea.Msg, 64)
	rt.relay.attach(ui.NewSink(func(msg tea.Msg) { msgs <- msg }))
	rt.Start(context.Background())

	awaitAll(t, msgs, map[string]func(tea.Msg) bool{
		"connected": func(msg tea.Msg) bool {
			c, ok := msg.(ui.ConnectionMsg)
			return ok && c.State == state.Connected && c.Label == "Standby"
		},
		"active": func(msg tea.Msg) bool {
			a, ok := msg.(ui.ActivityMsg)
			return ok && a.Activity == state.Active
		},
		"log": func(msg tea.Msg) bool {
			l, ok := msg.(ui.LogMsg)
			return ok && len(l.Entries) == 1 && l.Entries[0].Level == "info" && l.Entries[0].Text != ""
		},
	})

	snap := rt.watchdog.Store().Snapshot()
	if snap.Label != "Active" || len(snap.Tuners) != 1 || !snap.Tuners[0].InUse() {
		t.Fatalf("snapshot = %+v", snap)
	}
	if got := fake.seenUserAgent(); got != "tunerwatch/1.2.3" {
		t.Fatalf("User-Agent = %q", got)
	}

	if total := rt.follower.Processor().Total(); total != 1 {
		t.Fatalf("log total = %d, want 1", total)
	}
}

func TestRuntime_AdminRequiresValidEndpoint(t *testing.T) {
	rt, err := newRuntime(runtimeOptions{Settings: loadSettings(t, "8.8.8.8", "40772")})
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	t.Cleanup(rt.Close)

	if _, err := rt.Admin(); !errors.Is(err, validate.ErrInvalidHost) {
		t.Fatalf("Admin error = %v, want ErrInvalidHost", err)
	}

	if err := rt.settings.Set(config.KeyHost, "192.168.1.20"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	admin, err := rt.Admin()
	if err != nil || admin == nil {
		t.Fatalf("Admin = %v, %v", admin, err)
	}
}

func TestRelay_DropsUntilAttached(t *testing.T) {
	r := &relay{}
	r.ConnectionChanged(state.Connecting, state.LabelConnecting)
	r.LogEntries([]logstream.Entry{{Text: "early"}}, 1)

	var got []tea.Msg
	r.attach(ui.NewSink(func(msg tea.Msg) { got = append(got, msg) }))
	r.ActivityChanged(state.Standby)
	r.LogStreamEnded(io.EOF)

	if len(got) != 2 {
		t.Fatalf("forwarded %d messages, want 2", len(got))
	}
	if _, ok := got[0].(ui.ActivityMsg); !ok {
		t.Fatalf("first forwarded message = %#v", got[0])
	}
}

func TestEndpointOverrides(t *testing.T) {
	if got := endpointOverrides("", " "); len(got) != 0 {
		t.Fatalf("empty overrides = %v", got)
	}
	got := endpointOverrides(" 192.168.1.20 ", "")
	if len(got) != 1 || got[config.KeyHost] != "192.168.1.20" {
		t.Fatalf("host override = %v", got)
	}
	got = endpointOverrides("", "40772")
	if len(got) != 1 || got[config.KeyPort] != "40772" {
		t.Fatalf("port override = %v", got)
	}
}

func TestUserAgent(t *testing.T) {
	if got := userAgent(""); got != "tunerwatch/dev" {
		t.Fatalf("userAgent(\"\") = %q", got)
	}
	if got := userAgent("0.4.0"); got != "tunerwatch/0.4.0" {
		t.Fatalf("userAgent(0.4.0) = %q", got)
	}
}
