package hid

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// KeyEnter marks the end of a scanned code.
const KeyEnter = "Enter"

// Buffer accumulates keystrokes from a keyboard-emulating scanner.
// Only printable single-character keys are kept; named keys such as Shift,
// control characters and invalid bytes are ignored.
type Buffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// Feed handles one key-down. On Enter it returns the trimmed code and
// clears the buffer; ok is false when the trimmed code is empty.
func (b *Buffer) Feed(key string) (code string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if key == KeyEnter {
		code = strings.TrimSpace(b.buf.String())
		b.buf.Reset()
		return code, code != ""
	}

	if printable(key) {
		b.buf.WriteString(key)
	}
	return "", false
}

func printable(key string) bool {
	r, size := utf8.DecodeRuneInString(key)
	if size != len(key) || r == utf8.RuneError {
		return false
	}
	return !unicode.IsControl(r)
}

func (b *Buffer) Reset() {
	b.mu.Lock()
	b.buf.Reset()
	b.mu.Unlock()
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}
