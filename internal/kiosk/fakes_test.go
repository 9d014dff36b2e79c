package kiosk

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cortex-x/go-price-check-kiosk/internal/domain"
	"github.com/cortex-x/go-price-check-kiosk/internal/session"
)

type fakeSessions struct {
	mu       sync.Mutex
	calls    []string
	startErr error
	onDecode func(string)
	viewport domain.Viewport
	live     bool
	starting bool

	// duringStart runs once, inside the next start.
	duringStart func()
}

func (s *fakeSessions) StartCameraSession(_ context.Context, vp domain.Viewport, onDecode func(string)) error {
	s.mu.Lock()
	s.calls = append(s.calls, "start")
	if s.starting {
		s.mu.Unlock()
		return session.ErrStartInProgress
	}
	if s.startErr != nil {
		s.mu.Unlock()
		return s.startErr
	}
	s.starting = true
	hook := s.duringStart
	s.duringStart = nil
	s.mu.Unlock()

	if hook != nil {
		hook()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false
	s.onDecode = onDecode
	s.viewport = vp
	s.live = true
	return nil
}

func (s *fakeSessions) StopSession(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "stop")
	s.live = false
}

// decode mimics the session manager: tear down, then deliver.
func (s *fakeSessions) decode(text string) {
	s.mu.Lock()
	cb := s.onDecode
	s.live = false
	s.mu.Unlock()
	cb(text)
}

func (s *fakeSessions) count(call string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (s *fakeSessions) isLive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

type fakeProber struct {
	ok  bool
	err error
}

func (p fakeProber) HasCamera(context.Context) (bool, error) {
	return p.ok, p.err
}

type resolution struct {
	product *domain.ResolvedProduct
	err     error
}

// fakeResolver answers from results, or blocks on gate when set.
type fakeResolver struct {
	mu     sync.Mutex
	calls  []string
	result resolution
	gate   chan resolution
}

func (r *fakeResolver) Resolve(ctx context.Context, decoded string) (*domain.ResolvedProduct, error) {
	r.mu.Lock()
	r.calls = append(r.calls, decoded)
	gate, result := r.gate, r.result
	r.mu.Unlock()

	if gate != nil {
		res := <-gate
		return res.product, res.err
	}
	return result.product, result.err
}

func (r *fakeResolver) decoded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeDisplay struct {
	mu          sync.Mutex
	states      []domain.KioskState
	focus       int
	feedback    int
	feedbackErr error
}

func (d *fakeDisplay) Publish(state domain.KioskState) {
	d.mu.Lock()
	d.states = append(d.states, state)
	d.mu.Unlock()
}

func (d *fakeDisplay) ClearSurface() {}

func (d *fakeDisplay) FocusCapture() {
	d.mu.Lock()
	d.focus++
	d.mu.Unlock()
}

func (d *fakeDisplay) Feedback() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.feedback++
	return d.feedbackErr
}

func (d *fakeDisplay) focusCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focus
}

func (d *fakeDisplay) sawMode(mode domain.ScanMode) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.states {
		if s.Mode == mode {
			return true
		}
	}
	return false
}

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

// fakeClock records timers; tests fire them explicitly.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// pending returns the durations of timers neither stopped nor fired.
func (c *fakeClock) pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Duration
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.d)
		}
	}
	return out
}

var errNoTimer = errors.New("no pending timer")

// fire runs the oldest pending timer with duration d.
func (c *fakeClock) fire(d time.Duration) error {
	c.mu.Lock()
	var target *fakeTimer
	for _, t := range c.timers {
		if t.d == d && !t.stopped && !t.fired {
			target = t
			break
		}
	}
	if target == nil {
		c.mu.Unlock()
		return errNoTimer
	}
	target.fired = true
	c.mu.Unlock()

	target.f()
	return nil
}

// settlingDecoder reads a code before Start returns, as a decoder process
// does when a product is already held in front of the lens. Start then
// fails the way a killed process does.
type settlingDecoder struct {
	text    string
	once    sync.Once
	stopped chan struct{}
}

func newSettlingDecoder(text string) *settlingDecoder {
	return &settlingDecoder{text: text, stopped: make(chan struct{})}
}

func (d *settlingDecoder) Start(_ context.Context, _ domain.CameraConstraints, _ domain.DecodeOptions, onDecode func(string)) error {
	onDecode(d.text)
	select {
	case <-d.stopped:
		return errors.New("decoder exited on start: signal: killed")
	case <-time.After(2 * time.Second):
		return nil
	}
}

func (d *settlingDecoder) Stop(context.Context) error {
	d.once.Do(func() { close(d.stopped) })
	return nil
}

func (d *settlingDecoder) Clear(context.Context) error { return nil }

func (d *settlingDecoder) IsScanning() bool { return false }
