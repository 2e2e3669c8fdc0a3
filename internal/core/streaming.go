package core

// streaming.go provides the reader wrappers applied to uploaded files before
// they reach the CSV reader:
//
//   - skipBOM drops a leading UTF-8 byte order mark written by Excel on Windows
//   - sizeLimitReader fails with ErrFileTooLarge instead of silently truncating
//   - sanitizeUTF8 replaces invalid byte sequences with U+FFFD

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM returns a reader positioned after a leading UTF-8 BOM, if any.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// sizeLimitReader reads at most limit bytes and reports ErrFileTooLarge when
// the underlying reader has more.
type sizeLimitReader struct {
	r         io.Reader
	remaining int64
}

func newSizeLimitReader(r io.Reader, limit int64) io.Reader {
	if limit <= 0 {
		return r
	}
	// One extra byte tells "exactly limit" apart from "more than limit".
	return &sizeLimitReader{r: r, remaining: limit + 1}
}

func (l *sizeLimitReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, ErrFileTooLarge
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining <= 0 {
		return n - 1, ErrFileTooLarge
	}
	return n, err
}

// sanitizeUTF8 returns data unchanged when valid, otherwise a copy with each
// invalid byte replaced by U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data) + 8)

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
		} else {
			buf.Write(data[:size])
		}
		data = data[size:]
	}

	return buf.Bytes()
}
