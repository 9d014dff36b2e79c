package hid

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// SerialListener reads a keyboard-wedge scanner exposed as a character
// device (for example /dev/ttyACM0) and turns every byte into a key-down.
type SerialListener struct {
	path     string
	encoding encoding.Encoding
	log      *zap.SugaredLogger
}

func NewSerialListener(path, charset string, log *zap.SugaredLogger) (*SerialListener, error) {
	enc, err := lookupCharset(charset)
	if err != nil {
		return nil, err
	}
	return &SerialListener{path: path, encoding: enc, log: log}, nil
}

// Run opens the device and feeds keys to onKey until ctx is done or the
// device reaches EOF.
func (l *SerialListener) Run(ctx context.Context, onKey func(key string)) error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("open hid device %s: %w", l.path, err)
	}

	defer f.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = f.Close()
		case <-done:
		}
	}()

	l.log.Infow("hid device opened", "path", l.path)
	err = ReadKeys(f, l.encoding, onKey)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// ReadKeys decodes r with enc (nil means UTF-8) and emits one key per rune.
// CR and LF become Enter; other control characters are dropped.
func ReadKeys(r io.Reader, enc encoding.Encoding, onKey func(key string)) error {
	if enc != nil {
		r = transform.NewReader(r, enc.NewDecoder())
	}
	br := bufio.NewReader(r)

	for {
		ch, _, err := br.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if key, ok := keyForRune(ch); ok {
			onKey(key)
		}
	}
}

func keyForRune(ch rune) (string, bool) {
	switch {
	case ch == '\r' || ch == '\n':
		return KeyEnter, true
	case ch == unicode.ReplacementChar || unicode.IsControl(ch):
		return "", false
	}
	return string(ch), true
}

func lookupCharset(name string) (encoding.Encoding, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1, nil
	case "windows-874", "tis-620":
		return charmap.Windows874, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", name)
	}
	return enc, nil
}
