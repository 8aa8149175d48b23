package sheet

import (
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// bomReader drops a leading UTF-8 byte order mark, as written by Excel when
// saving "CSV UTF-8".
type bomReader struct {
	r       io.Reader
	checked bool
	head    []byte
}

func (b *bomReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		buf := make([]byte, len(utf8BOM))
		n, err := io.ReadFull(b.r, buf)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return 0, err
		}
		if !bytes.Equal(buf[:n], utf8BOM) {
			b.head = buf[:n]
		}
	}
	if len(b.head) > 0 {
		n := copy(p, b.head)
		b.head = b.head[n:]
		return n, nil
	}
	return b.r.Read(p)
}

// utf8Sanitizer replaces invalid UTF-8 bytes with '?' while streaming, so
// Latin-1 exports from old ERP tools still parse. A multi-byte rune split
// across reads is carried over to the next call.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	// p must fit a carried-over rune plus at least one new byte.
	if len(p) <= utf8.UTFMax {
		return 0, io.ErrShortBuffer
	}

	off := copy(p, s.pending)
	s.pending = s.pending[:0]
	n, err := s.r.Read(p[off:])
	n += off
	if n == 0 {
		return 0, err
	}
	return s.sanitize(p[:n], err == io.EOF), err
}

func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	w := 0
	for r := 0; r < len(data); {
		c := data[r]
		if c < utf8.RuneSelf {
			data[w] = c
			w++
			r++
			continue
		}
		if !atEOF && !utf8.FullRune(data[r:]) {
			s.pending = append(s.pending, data[r:]...)
			return w
		}
		ru, size := utf8.DecodeRune(data[r:])
		if ru == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			r++
			continue
		}
		copy(data[w:], data[r:r+size])
		w += size
		r += size
	}
	return w
}

// CountingReader tracks how many bytes went through it.
type CountingReader struct {
	r         io.Reader
	BytesRead int64
	Total     int64 // 0 when unknown
}

// NewCountingReader wraps r. total may be 0.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{r: r, Total: total}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.BytesRead += int64(n)
	return n, err
}

// Progress returns the read progress as a percentage, or 0 when the total is
// unknown.
func (c *CountingReader) Progress() int {
	if c.Total <= 0 {
		return 0
	}
	return int(c.BytesRead * 100 / c.Total)
}

// wrapText counts raw bytes, then strips the BOM and sanitizes UTF-8.
func wrapText(r io.Reader, total int64) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r, total)
	return &utf8Sanitizer{r: &bomReader{r: counter}}, counter
}
