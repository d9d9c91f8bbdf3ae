package command

// MaxLineLength is the size of the line buffer. Bytes beyond it are dropped
// until the next terminator.
const MaxLineLength = 64

// ByteSource is a non-blocking byte stream, e.g. a TinyGo machine.UART.
type ByteSource interface {
	Buffered() int
	ReadByte() (byte, error)
}

// Scanner assembles newline-terminated lines from a ByteSource.
type Scanner struct {
	src ByteSource
	buf [MaxLineLength]byte
	pos int
}

// NewScanner creates a Scanner reading from src.
func NewScanner(src ByteSource) *Scanner {
	return &Scanner{src: src}
}

// Poll consumes buffered bytes until one complete line is available and
// returns it. It never blocks: if no full line has arrived yet the partial
// line is kept for the next call and ok is false.
func (s *Scanner) Poll() (line string, ok bool) {
	for s.src.Buffered() > 0 {
		c, err := s.src.ReadByte()
		if err != nil {
			return "", false
		}

		switch c {
		case '\n':
			if s.pos == 0 {
				continue
			}
			line = string(s.buf[:s.pos])
			s.pos = 0
			return line, true
		case '\r':
			continue
		}

		if s.pos < len(s.buf) {
			s.buf[s.pos] = c
			s.pos++
		}
	}
	return "", false
}
