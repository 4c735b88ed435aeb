package logstream

import (
	"bytes"
	"regexp"
	"strings"
	"sync"
)

// DefaultCapacity is the number of lines kept when no capacity is given.
const DefaultCapacity = 500

// maxPending bounds the carried-over partial line. A line that grows past
// it without a newline is emitted as is.
const maxPending = 1 << 20

// LevelOther classifies lines that do not carry a level prefix.
const LevelOther = "other"

var levelPattern = regexp.MustCompile(`^[0-9.T:+\-]+ ([a-z]+): `)

// Entry is one classified log line.
type Entry struct {
	Level string
	Text  string
}

// Classify returns the level word of a log line, or LevelOther.
func Classify(line string) string {
	if m := levelPattern.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return LevelOther
}

// Processor splits a chunked log stream into lines and keeps the newest
// of them.
type Processor struct {
	mu sync.Mutex

	pending []byte
	ring    []Entry
	next    int
	count   int
	total   uint64
}

// New returns a Processor keeping at most capacity entries. A capacity of
// zero or less uses DefaultCapacity.
func New(capacity int) *Processor {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Processor{ring: make([]Entry, capacity)}
}

// Feed consumes one chunk and returns the entries it completed, in order.
func (p *Processor) Feed(chunk []byte) []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = append(p.pending, chunk...)
	var out []Entry
	for {
		idx := bytes.IndexByte(p.pending, '\n')
		if idx < 0 {
			break
		}
		out = append(out, p.push(string(p.pending[:idx])))
		p.pending = p.pending[idx+1:]
	}
	if len(p.pending) > maxPending {
		out = append(out, p.push(string(p.pending)))
		p.pending = nil
	}
	if len(p.pending) == 0 {
		p.pending = nil
	}
	return out
}

// Flush emits the trailing partial line, if any. It is called when a
// stream session ends so the last unterminated line is not lost.
func (p *Processor) Flush() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pending) == 0 {
		return nil
	}
	entry := p.push(string(p.pending))
	p.pending = nil
	return []Entry{entry}
}

// Entries returns the retained history, oldest first.
func (p *Processor) Entries() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Entry, p.count)
	start := (p.next - p.count + len(p.ring)) % len(p.ring)
	for i := 0; i < p.count; i++ {
		out[i] = p.ring[(start+i)%len(p.ring)]
	}
	return out
}

// Total returns the number of lines emitted since the Processor was
// created, including evicted ones.
func (p *Processor) Total() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Capacity returns the maximum number of retained entries.
func (p *Processor) Capacity() int {
	return len(p.ring)
}

func (p *Processor) push(line string) Entry {
	line = strings.TrimSuffix(line, "\r")
	entry := Entry{Level: Classify(line), Text: line}
	p.ring[p.next] = entry
	p.next = (p.next + 1) % len(p.ring)
	if p.count < len(p.ring) {
		p.count++
	}
	p.total++
	return entry
}
