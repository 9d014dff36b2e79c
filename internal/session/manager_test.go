package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cortex-x/go-price-check-kiosk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) ClearSurface() {
	l.add("surface.clear")
}

type fakeDecoder struct {
	id       int
	log      *callLog
	startErr error
	block    chan struct{}

	// decodeOnStart is read before Start returns; Start then waits to be
	// stopped and fails like a killed process.
	decodeOnStart string

	mu       sync.Mutex
	scanning bool
	stopped  chan struct{}
	opts     domain.DecodeOptions
	onDecode func(string)
}

func (d *fakeDecoder) Start(_ context.Context, _ domain.CameraConstraints, opts domain.DecodeOptions, onDecode func(string)) error {
	d.log.add("d%d.start", d.id)
	if d.block != nil {
		<-d.block
	}
	if d.startErr != nil {
		return d.startErr
	}
	d.mu.Lock()
	d.scanning = true
	d.opts = opts
	d.onDecode = onDecode
	d.stopped = make(chan struct{})
	stopped := d.stopped
	d.mu.Unlock()

	if d.decodeOnStart == "" {
		return nil
	}
	onDecode(d.decodeOnStart)
	select {
	case <-stopped:
		return errors.New("signal: killed")
	case <-time.After(time.Second):
		return nil
	}
}

func (d *fakeDecoder) Stop(context.Context) error {
	d.log.add("d%d.stop", d.id)
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.scanning {
		return errors.New("not scanning")
	}
	d.scanning = false
	close(d.stopped)
	return nil
}

func (d *fakeDecoder) Clear(context.Context) error {
	d.log.add("d%d.clear", d.id)
	return nil
}

func (d *fakeDecoder) IsScanning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scanning
}

func (d *fakeDecoder) decode(text string) {
	d.mu.Lock()
	cb := d.onDecode
	d.mu.Unlock()
	cb(text)
}

type fixture struct {
	log      *callLog
	decoders []*fakeDecoder
	next     func(d *fakeDecoder)
	mu       sync.Mutex
	mgr      *Manager
}

func newFixture() *fixture {
	f := &fixture{log: &callLog{}}
	f.mgr = NewManager(func() domain.Decoder {
		f.mu.Lock()
		defer f.mu.Unlock()
		d := &fakeDecoder{id: len(f.decoders) + 1, log: f.log}
		if f.next != nil {
			f.next(d)
		}
		f.decoders = append(f.decoders, d)
		return d
	}, f.log, Options{FPS: 10, FacingMode: "environment"}, zap.NewNop().Sugar())
	return f
}

var landscape = domain.Viewport{Width: 1280, Height: 720}

func TestStartCameraSession(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.mgr.StartCameraSession(context.Background(), landscape, func(string) {}))

	assert.True(t, f.mgr.Active())
	assert.Equal(t, []string{"surface.clear", "d1.start"}, f.log.all())
	assert.Equal(t, domain.DecodeOptions{FPS: 10, QRBox: 358}, f.decoders[0].opts)
}

func TestStartTearsDownPriorSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.mgr.StartCameraSession(ctx, landscape, func(string) {}))
	require.NoError(t, f.mgr.StartCameraSession(ctx, landscape, func(string) {}))

	assert.Equal(t, []string{
		"surface.clear", "d1.start",
		"d1.stop", "d1.clear", "surface.clear", "d2.start",
	}, f.log.all())
	assert.False(t, f.decoders[0].IsScanning())
	assert.True(t, f.decoders[1].IsScanning())
}

func TestStartFailureKeepsNoHandle(t *testing.T) {
	f := newFixture()
	cause := errors.New("NotAllowedError: permission denied")
	f.next = func(d *fakeDecoder) { d.startErr = cause }

	err := f.mgr.StartCameraSession(context.Background(), landscape, func(string) {})

	var startErr *StartError
	require.ErrorAs(t, err, &startErr)
	assert.ErrorIs(t, err, cause)
	assert.False(t, f.mgr.Active())
}

func TestStopSessionIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.mgr.StopSession(ctx)
	assert.Empty(t, f.log.all())

	require.NoError(t, f.mgr.StartCameraSession(ctx, landscape, func(string) {}))
	f.mgr.StopSession(ctx)
	f.mgr.StopSession(ctx)

	assert.Equal(t, []string{"surface.clear", "d1.start", "d1.stop", "d1.clear", "surface.clear"}, f.log.all())
	assert.False(t, f.mgr.Active())
}

func TestConcurrentStartIsRejected(t *testing.T) {
	f := newFixture()
	release := make(chan struct{})
	f.next = func(d *fakeDecoder) { d.block = release }

	done := make(chan error, 1)
	go func() {
		done <- f.mgr.StartCameraSession(context.Background(), landscape, func(string) {})
	}()

	assert.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.decoders) == 1
	}, time.Second, time.Millisecond)

	err := f.mgr.StartCameraSession(context.Background(), landscape, func(string) {})
	assert.ErrorIs(t, err, ErrStartInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, f.decoders, 1)
	assert.True(t, f.mgr.Active())
}

func TestStopDuringStartCancelsSession(t *testing.T) {
	f := newFixture()
	release := make(chan struct{})
	f.next = func(d *fakeDecoder) { d.block = release }

	done := make(chan error, 1)
	go func() {
		done <- f.mgr.StartCameraSession(context.Background(), landscape, func(string) {})
	}()
	assert.Eventually(t, func() bool {
		return len(f.log.all()) == 2
	}, time.Second, time.Millisecond)

	f.mgr.StopSession(context.Background())
	close(release)

	assert.ErrorIs(t, <-done, ErrSessionCancelled)
	assert.False(t, f.mgr.Active())
	assert.False(t, f.decoders[0].IsScanning())
}

func TestDecodeTearsDownBeforeCallback(t *testing.T) {
	f := newFixture()
	got := make(chan []string, 1)

	require.NoError(t, f.mgr.StartCameraSession(context.Background(), landscape, func(text string) {
		got <- append(f.log.all(), "decoded:"+text)
	}))

	f.decoders[0].decode("https://shop.example/p/42")
	f.decoders[0].decode("https://shop.example/p/42")

	select {
	case calls := <-got:
		assert.Equal(t, []string{
			"surface.clear", "d1.start",
			"d1.stop", "d1.clear", "surface.clear",
			"decoded:https://shop.example/p/42",
		}, calls)
	case <-time.After(time.Second):
		t.Fatal("decode callback not invoked")
	}
	assert.False(t, f.mgr.Active())

	select {
	case <-got:
		t.Fatal("second decode from the same session was delivered")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestDecodeDuringStartIsDelivered(t *testing.T) {
	f := newFixture()
	f.next = func(d *fakeDecoder) { d.decodeOnStart = "https://shop.example/p/42" }
	got := make(chan string, 1)

	err := f.mgr.StartCameraSession(context.Background(), landscape, func(text string) {
		got <- text
	})

	assert.ErrorIs(t, err, ErrSessionCancelled)
	var startErr *StartError
	assert.False(t, errors.As(err, &startErr))
	select {
	case text := <-got:
		assert.Equal(t, "https://shop.example/p/42", text)
	case <-time.After(time.Second):
		t.Fatal("decode during start was not delivered")
	}
	assert.False(t, f.mgr.Active())
	assert.False(t, f.decoders[0].IsScanning())
}

func TestQRBoxSize(t *testing.T) {
	tests := []struct {
		name string
		vp   domain.Viewport
		want int
	}{
		{"landscape capped", domain.Viewport{Width: 1920, Height: 1080}, 380},
		{"landscape scaled", domain.Viewport{Width: 1000, Height: 600}, 280},
		{"portrait capped", domain.Viewport{Width: 1080, Height: 1920}, 350},
		{"portrait scaled", domain.Viewport{Width: 400, Height: 800}, 220},
		{"unknown viewport", domain.Viewport{}, 224},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QRBoxSize(tt.vp))
		})
	}
}
