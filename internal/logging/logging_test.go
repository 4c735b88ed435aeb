package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"trace", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_JSONFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Options{Writer: &buf, Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closeFn()

	logger.Info("dropped")
	logger.Warn("kept", "host", "192.168.1.20")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d records, want 1: %q", len(lines), buf.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if record["msg"] != "kept" || record["host"] != "192.168.1.20" {
		t.Fatalf("record = %v", record)
	}
}

func TestNew_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tunerwatch.log")
	logger, closeFn, err := New(Options{Path: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello", "port", "40772")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "msg=hello") || !strings.Contains(string(data), "port=40772") {
		t.Fatalf("log file = %q", data)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, _, err := New(Options{}); err == nil {
		t.Fatal("New without path or writer succeeded")
	}
	if _, _, err := New(Options{Writer: &bytes.Buffer{}, Format: "xml"}); err == nil {
		t.Fatal("New accepted format xml")
	}
	if _, _, err := New(Options{Writer: &bytes.Buffer{}, Level: "loud"}); err == nil {
		t.Fatal("New accepted level loud")
	}
}
