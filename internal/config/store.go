package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// Keys understood by the store.
const (
	KeyHost  = "host"
	KeyPort  = "port"
	KeyTheme = "theme"
)

const (
	// DefaultPath is used when Load is given an empty path.
	DefaultPath = "~/.config/tunerwatch/config.toml"
	// DefaultTheme is the theme of a fresh install.
	DefaultTheme = "Dracula"
)

// ErrUnknownKey is returned for keys other than host, port and theme.
var ErrUnknownKey = errors.New("unknown config key")

var knownKeys = []string{KeyHost, KeyPort, KeyTheme}

// file is the on-disk layout.
type file struct {
	Host  string `toml:"host"`
	Port  string `toml:"port"`
	Theme string `toml:"theme"`
}

// Store is a small persisted key/value store with per-key change
// subscriptions. It is safe for concurrent use.
type Store struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	values map[string]string
	subs   map[string]map[uint64]func(string)
	nextID uint64
}

// Load reads the store at path, or DefaultPath when path is empty. A
// missing file yields the defaults.
func Load(path string) (*Store, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	values, err := readFile(resolved)
	if err != nil {
		return nil, err
	}
	return &Store{
		path:   resolved,
		logger: slog.New(slog.DiscardHandler),
		values: values,
		subs:   make(map[string]map[uint64]func(string)),
	}, nil
}

// SetLogger replaces the store's logger.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	s.mu.Lock()
	s.logger = logger.With("component", "config")
	s.mu.Unlock()
}

// Path returns the resolved file path.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value of key, or "" for an unset or unknown key.
func (s *Store) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// Endpoint returns the configured host and port.
func (s *Store) Endpoint() (host, port string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[KeyHost], s.values[KeyPort]
}

// Set stores a single value. See SetAll.
func (s *Store) Set(key, value string) error {
	return s.SetAll(map[string]string{key: value})
}

// SetAll stores values, writes the file when anything changed and then
// notifies the subscribers of each changed key. If the file cannot be
// written the new values still apply to the running process and the
// write error is returned.
func (s *Store) SetAll(values map[string]string) error {
	for key := range values {
		if !isKnown(key) {
			return fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
	}

	s.mu.Lock()
	changed := s.applyLocked(values)
	var err error
	if len(changed) > 0 {
		err = writeFile(s.path, s.values)
	}
	notify := s.collectLocked(changed)
	logger := s.logger
	s.mu.Unlock()

	if err != nil {
		logger.Warn("config save failed", "path", s.path, "error", err)
	} else if len(changed) > 0 {
		logger.Info("config saved", "path", s.path, "keys", changed)
	}
	for _, call := range notify {
		call()
	}
	return err
}

// Reload re-reads the file and notifies subscribers of keys whose value
// differs from the stored one.
func (s *Store) Reload() error {
	values, err := readFile(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	changed := s.applyLocked(values)
	notify := s.collectLocked(changed)
	logger := s.logger
	s.mu.Unlock()

	if len(changed) > 0 {
		logger.Info("config reloaded", "path", s.path, "keys", changed)
	}
	for _, call := range notify {
		call()
	}
	return nil
}

// Watch calls fn with the new value whenever key changes. The returned
// function removes the subscription.
func (s *Store) Watch(key string, fn func(value string)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	if s.subs[key] == nil {
		s.subs[key] = make(map[uint64]func(string))
	}
	s.subs[key][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[key], id)
	}
}

func (s *Store) applyLocked(values map[string]string) []string {
	var changed []string
	for _, key := range knownKeys {
		value, ok := values[key]
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if key == KeyTheme && value == "" {
			value = DefaultTheme
		}
		if s.values[key] == value {
			continue
		}
		s.values[key] = value
		changed = append(changed, key)
	}
	return changed
}

func (s *Store) collectLocked(changed []string) []func() {
	var calls []func()
	for _, key := range changed {
		value := s.values[key]
		for _, fn := range s.subs[key] {
			calls = append(calls, func() { fn(value) })
		}
	}
	return calls
}

func isKnown(key string) bool {
	for _, k := range knownKeys {
		if k == key {
			return true
		}
	}
	return false
}

func readFile(path string) (map[string]string, error) {
	values := map[string]string{KeyHost: "", KeyPort: "", KeyTheme: DefaultTheme}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for _, key := range knownKeys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		switch typed := v.(type) {
		case string:
			values[key] = strings.TrimSpace(typed)
		case int64:
			values[key] = strconv.FormatInt(typed, 10)
		default:
			return nil, fmt.Errorf("parse config: %s has unsupported type %T", key, v)
		}
	}
	if values[KeyTheme] == "" {
		values[KeyTheme] = DefaultTheme
	}
	return values, nil
}

// writeFile replaces the file atomically.
func writeFile(path string, values map[string]string) error {
	data, err := toml.Marshal(file{
		Host:  values[KeyHost],
		Port:  values[KeyPort],
		Theme: values[KeyTheme],
	})
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
