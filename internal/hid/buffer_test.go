package hid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func feedAll(b *Buffer, keys ...string) []string {
	var codes []string
	for _, k := range keys {
		if code, ok := b.Feed(k); ok {
			codes = append(codes, code)
		}
	}
	return codes
}

func TestBufferFeed(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want []string
	}{
		{"digits then enter", []string{"1", "2", "3", KeyEnter}, []string{"123"}},
		{"named keys ignored", []string{"Shift", "A", "Shift", "b", "Tab", KeyEnter}, []string{"Ab"}},
		{"surrounding spaces trimmed", []string{" ", "4", "2", " ", KeyEnter}, []string{"42"}},
		{"empty enter", []string{KeyEnter}, nil},
		{"blank enter", []string{" ", " ", KeyEnter}, nil},
		{"two codes", []string{"a", KeyEnter, "b", KeyEnter}, []string{"a", "b"}},
		{"no enter", []string{"1", "2"}, nil},
		{"multibyte rune", []string{"é", KeyEnter}, []string{"é"}},
		{"control runes ignored", []string{"1", "\t", "\x00", "\x1b", "2", KeyEnter}, []string{"12"}},
		{"invalid byte ignored", []string{"\xff", "3", KeyEnter}, []string{"3"}},
		{"replacement rune ignored", []string{"\uFFFD", "4", KeyEnter}, []string{"4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, feedAll(NewBuffer(), tt.keys...))
		})
	}
}

func TestBufferClearsOnSubmit(t *testing.T) {
	b := NewBuffer()
	feedAll(b, "x", "y", KeyEnter)
	assert.Equal(t, 0, b.Len())

	feedAll(b, "z")
	assert.Equal(t, 1, b.Len())
	b.Reset()
	assert.Equal(t, 0, b.Len())
}
