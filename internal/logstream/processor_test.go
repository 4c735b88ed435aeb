package logstream

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"2024-10-10T14:32:15.123+09:00 info: tuner started", "info"},
		{"2024-10-10T05:32:15.123Z warn: ignored", LevelOther},
		{"2024-10-10T14:32:15.123-05:00 error: failed", "error"},
		{"1700000000.5 debug: x", "debug"},
		{"info: missing timestamp", LevelOther},
		{"2024-10-10T14:32:15 INFO: upper case", LevelOther},
		{"2024-10-10T14:32:15 info:no space", LevelOther},
		{"", LevelOther},
	}
	for _, tt := range tests {
		if got := Classify(tt.line); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestProcessor_SplitsAcrossChunks(t *testing.T) {
	p := New(10)

	if got := p.Feed([]byte("2024-01-01T00:00:00 info: fir")); len(got) != 0 {
		t.Fatalf("partial line emitted: %#v", got)
	}
	got := p.Feed([]byte("st\r\nsecond\n2024-01-01T00:00:01 error: th"))
	want := []Entry{
		{Level: "info", Text: "2024-01-01T00:00:00 info: first"},
		{Level: LevelOther, Text: "second"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Feed = %#v, want %#v", got, want)
	}

	flushed := p.Flush()
	if len(flushed) != 1 || flushed[0].Level != "error" || flushed[0].Text != "2024-01-01T00:00:01 error: th" {
		t.Fatalf("Flush = %#v, want the trailing partial line", flushed)
	}
	if p.Flush() != nil {
		t.Fatalf("second Flush emitted entries")
	}
	if p.Total() != 3 {
		t.Fatalf("Total = %d, want 3", p.Total())
	}
}

func TestProcessor_EmptyLines(t *testing.T) {
	p := New(10)
	got := p.Feed([]byte("\n\n"))
	if len(got) != 2 || got[0].Text != "" || got[0].Level != LevelOther {
		t.Fatalf("Feed = %#v, want two empty entries", got)
	}
}

func TestProcessor_KeepsNewest(t *testing.T) {
	const n = 1234
	p := New(0)
	if p.Capacity() != DefaultCapacity {
		t.Fatalf("Capacity = %d, want %d", p.Capacity(), DefaultCapacity)
	}

	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	// Uneven chunks.
	data := []byte(b.String())
	for len(data) > 0 {
		size := 37
		if size > len(data) {
			size = len(data)
		}
		p.Feed(data[:size])
		data = data[size:]
	}

	entries := p.Entries()
	if len(entries) != DefaultCapacity {
		t.Fatalf("len(Entries) = %d, want %d", len(entries), DefaultCapacity)
	}
	for i, entry := range entries {
		want := fmt.Sprintf("line %d", n-DefaultCapacity+i)
		if entry.Text != want {
			t.Fatalf("Entries[%d] = %q, want %q", i, entry.Text, want)
		}
	}
	if p.Total() != n {
		t.Fatalf("Total = %d, want %d", p.Total(), n)
	}
}

func TestProcessor_EntriesBeforeWrap(t *testing.T) {
	p := New(4)
	p.Feed([]byte("a\nb\n"))
	got := p.Entries()
	if len(got) != 2 || got[0].Text != "a" || got[1].Text != "b" {
		t.Fatalf("Entries = %#v, want a, b", got)
	}
}

func TestProcessor_OverlongLineIsEmitted(t *testing.T) {
	p := New(2)
	long := strings.Repeat("x", maxPending+1)
	got := p.Feed([]byte(long))
	if len(got) != 1 || len(got[0].Text) != len(long) {
		t.Fatalf("Feed of overlong line returned %d entries", len(got))
	}
	if p.Flush() != nil {
		t.Fatalf("pending data left after overlong line")
	}
}
