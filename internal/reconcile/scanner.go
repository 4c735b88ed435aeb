package reconcile

import "bytes"

// DefaultMaxRecord bounds a single record. An object still open after this
// many bytes is dropped and scanning resumes with the following input.
const DefaultMaxRecord = 1 << 20

// Scanner extracts records framed as `<json-object>\n` from a byte stream
// that arrives in arbitrary chunks. Bytes between records (the opening
// `[`, the `,` separators, keep-alive whitespace) are skipped.
//
// The scanner remembers how far it has looked into the carry-over buffer,
// so each byte is examined once no matter how the input is chunked. A
// record is a single line: a newline inside an unclosed object marks the
// fragment as malformed and scanning resynchronises after it.
type Scanner struct {
	buf []byte
	max int

	open     bool // buf[0] is the '{' of the record being scanned
	pos      int  // next byte of buf to examine
	end      int  // offset just past the closing '}', zero while open
	depth    int
	inString bool
	escaped  bool

	dropped int
}

// NewScanner returns a Scanner that drops records larger than max bytes.
// A max of zero or less uses DefaultMaxRecord.
func NewScanner(max int) *Scanner {
	if max <= 0 {
		max = DefaultMaxRecord
	}
	return &Scanner{max: max}
}

// Write appends a chunk to the carry-over buffer. It never fails.
func (s *Scanner) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// Next returns the next complete record, or false when more input is
// needed. The returned slice is owned by the caller.
func (s *Scanner) Next() ([]byte, bool) {
	for {
		if !s.open {
			idx := bytes.IndexByte(s.buf[s.pos:], '{')
			if idx < 0 {
				s.consume(len(s.buf))
				return nil, false
			}
			s.consume(s.pos + idx)
			s.open = true
			s.pos = 1
			s.depth = 1
		}

		if s.end == 0 {
			switch s.scanObject() {
			case scanNeedMore:
				if len(s.buf) > s.max {
					s.dropped++
					s.consume(len(s.buf))
					s.reset()
				}
				return nil, false
			case scanBrokenLine:
				s.dropped++
				s.consume(s.pos + 1)
				s.reset()
				continue
			}
		}

		if s.end >= len(s.buf) {
			// The object is closed but its separator has not arrived yet.
			return nil, false
		}
		if s.buf[s.end] != '\n' {
			s.dropped++
			s.consume(s.end)
			s.reset()
			continue
		}
		record := append([]byte(nil), s.buf[:s.end]...)
		s.consume(s.end + 1)
		s.reset()
		return record, true
	}
}

// Dropped returns how many malformed fragments have been discarded.
func (s *Scanner) Dropped() int {
	return s.dropped
}

// Buffered returns the number of carried-over bytes.
func (s *Scanner) Buffered() int {
	return len(s.buf)
}

type scanResult int

const (
	scanNeedMore scanResult = iota
	scanClosed
	scanBrokenLine
)

func (s *Scanner) scanObject() scanResult {
	for ; s.pos < len(s.buf); s.pos++ {
		c := s.buf[s.pos]
		if c == '\n' {
			return scanBrokenLine
		}
		if s.inString {
			switch {
			case s.escaped:
				s.escaped = false
			case c == '\\':
				s.escaped = true
			case c == '"':
				s.inString = false
			}
			continue
		}
		switch c {
		case '"':
			s.inString = true
		case '{':
			s.depth++
		case '}':
			s.depth--
			if s.depth == 0 {
				s.pos++
				s.end = s.pos
				return scanClosed
			}
		}
	}
	return scanNeedMore
}

// consume drops the first n bytes of the buffer.
func (s *Scanner) consume(n int) {
	if n <= 0 {
		return
	}
	if n >= len(s.buf) {
		s.buf = s.buf[:0]
		s.pos = 0
		return
	}
	s.buf = s.buf[:copy(s.buf, s.buf[n:])]
	s.pos -= n
	if s.pos < 0 {
		s.pos = 0
	}
}

func (s *Scanner) reset() {
	s.open = false
	s.pos = 0
	s.end = 0
	s.depth = 0
	s.inString = false
	s.escaped = false
}
