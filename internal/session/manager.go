package session

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/cortex-x/go-price-check-kiosk/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrStartInProgress  = errors.New("camera session start already in progress")
	ErrSessionCancelled = errors.New("camera session stopped while starting")
)

// StartError reports that the camera could not be acquired: no device,
// permission denied or device busy.
type StartError struct {
	Err error
}

func (e *StartError) Error() string {
	return "camera session start failed: " + e.Err.Error()
}

func (e *StartError) Unwrap() error {
	return e.Err
}

type Surface interface {
	ClearSurface()
}

type Options struct {
	FPS        int
	FacingMode string
}

// Manager owns the single live decoder session. Starting a session always
// tears down the previous one, including its rendering surface.
type Manager struct {
	newDecoder domain.DecoderFactory
	surface    Surface
	opts       Options
	log        *zap.SugaredLogger

	mu       sync.Mutex
	handle   domain.Decoder
	pending  domain.Decoder
	starting bool
	epoch    uint64
}

func NewManager(newDecoder domain.DecoderFactory, surface Surface, opts Options, log *zap.SugaredLogger) *Manager {
	return &Manager{
		newDecoder: newDecoder,
		surface:    surface,
		opts:       opts,
		log:        log,
	}
}

// StartCameraSession replaces any live session with a new one sized for vp.
// onDecode runs at most once per session, after the session is torn down.
func (m *Manager) StartCameraSession(ctx context.Context, vp domain.Viewport, onDecode func(text string)) error {
	m.mu.Lock()
	if m.starting {
		m.mu.Unlock()
		return ErrStartInProgress
	}
	dec := m.newDecoder()
	m.starting = true
	m.pending = dec
	prior := m.handle
	m.handle = nil
	m.epoch++
	epoch := m.epoch
	m.mu.Unlock()

	m.teardown(ctx, prior)
	m.surface.ClearSurface()

	var once sync.Once
	err := dec.Start(ctx,
		domain.CameraConstraints{FacingMode: m.opts.FacingMode},
		domain.DecodeOptions{FPS: m.opts.FPS, QRBox: QRBoxSize(vp)},
		func(text string) {
			once.Do(func() {
				go m.handleDecode(ctx, dec, text, onDecode)
			})
		},
	)

	m.mu.Lock()
	m.starting = false
	m.pending = nil
	cancelled := m.epoch != epoch
	if err == nil && !cancelled {
		m.handle = dec
	}
	m.mu.Unlock()

	// A decode or stop that lands during Start bumps the epoch and kills the
	// decoder, so its start error is ours and not a device failure.
	if cancelled {
		m.teardown(ctx, dec)
		m.surface.ClearSurface()
		return ErrSessionCancelled
	}
	if err != nil {
		m.teardown(ctx, dec)
		return &StartError{Err: err}
	}

	m.log.Debugw("camera session started", "qrbox", QRBoxSize(vp), "landscape", vp.Landscape())
	return nil
}

// StopSession is idempotent.
func (m *Manager) StopSession(ctx context.Context) {
	m.mu.Lock()
	h := m.handle
	m.handle = nil
	m.epoch++
	m.mu.Unlock()

	if h == nil {
		return
	}
	m.teardown(ctx, h)
	m.surface.ClearSurface()
	m.log.Debug("camera session stopped")
}

func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle != nil
}

func (m *Manager) handleDecode(ctx context.Context, dec domain.Decoder, text string, onDecode func(string)) {
	m.mu.Lock()
	switch dec {
	case m.handle:
		m.handle = nil
		m.epoch++
	case m.pending:
		m.epoch++
	default:
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.teardown(ctx, dec)
	m.surface.ClearSurface()
	onDecode(text)
}

// teardown stops then clears d. Either call may fail on a session that
// never started or is already stopped.
func (m *Manager) teardown(ctx context.Context, d domain.Decoder) {
	if d == nil {
		return
	}
	if err := d.Stop(ctx); err != nil {
		m.log.Debugw("decoder stop ignored", "error", err)
	}
	if err := d.Clear(ctx); err != nil {
		m.log.Debugw("decoder clear ignored", "error", err)
	}
}

// QRBoxSize derives the capture box edge from the viewport. Landscape
// screens get a larger box.
func QRBoxSize(vp domain.Viewport) int {
	w, h := vp.Width, vp.Height
	if w <= 0 {
		w = 800
	}
	if h <= 0 {
		h = 600
	}
	if w > h {
		return int(math.Min(float64(w)*0.28, 380))
	}
	return int(math.Min(float64(w)*0.55, 350))
}
