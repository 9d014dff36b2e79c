package kiosk

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cortex-x/go-price-check-kiosk/internal/domain"
	"github.com/cortex-x/go-price-check-kiosk/internal/hid"
	"github.com/cortex-x/go-price-check-kiosk/internal/metrics"
	"github.com/cortex-x/go-price-check-kiosk/internal/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Scan origins used for metrics and logs.
const (
	OriginCamera = "camera"
	OriginHID    = "hid"
	OriginAPI    = "api"
)

type Resolver interface {
	Resolve(ctx context.Context, decoded string) (*domain.ResolvedProduct, error)
}

type PriceFormatter interface {
	Format(cents int64) string
}

type Sessions interface {
	StartCameraSession(ctx context.Context, vp domain.Viewport, onDecode func(text string)) error
	StopSession(ctx context.Context)
}

type Deps struct {
	Sessions  Sessions
	Prober    domain.CameraProber
	Resolver  Resolver
	Formatter PriceFormatter
	Display   domain.Display
	Metrics   *metrics.Recorder
	Log       *zap.SugaredLogger
	// Clock defaults to the system clock.
	Clock     Clock
}

type Options struct {
	ResultReset          time.Duration
	ErrorReset           time.Duration
	RestartDelay         time.Duration
	PriceNotFoundMessage string
	Viewport             domain.Viewport
}

// Controller owns the kiosk state machine: which input source is active,
// which mode is displayed, the in-flight resolution and the reset timers.
type Controller struct {
	sessions  Sessions
	prober    domain.CameraProber
	resolver  Resolver
	formatter PriceFormatter
	display   domain.Display
	metrics   *metrics.Recorder
	log       *zap.SugaredLogger
	clock     Clock
	opts      Options
	buffer    *hid.Buffer

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	state         domain.KioskState
	viewport      domain.Viewport
	generation    uint64
	resetTimer    Timer
	restartTimer  Timer
	cancelResolve context.CancelFunc
	closed        bool
}

func NewController(deps Deps, opts Options) *Controller {
	clock := deps.Clock
	if clock == nil {
		clock = systemClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		sessions:  deps.Sessions,
		prober:    deps.Prober,
		resolver:  deps.Resolver,
		formatter: deps.Formatter,
		display:   deps.Display,
		metrics:   deps.Metrics,
		log:       deps.Log,
		clock:     clock,
		opts:      opts,
		buffer:    hid.NewBuffer(),
		ctx:       ctx,
		cancel:    cancel,
		viewport:  opts.Viewport,
		state: domain.KioskState{
			Mode:      domain.ModeScanning,
			Source:    domain.SourceCamera,
			Landscape: opts.Viewport.Landscape(),
		},
	}
}

// Start selects the initial input source. Without an enumerable camera the
// kiosk goes straight to HID input and never attempts a camera start.
func (c *Controller) Start(ctx context.Context) {
	ok, err := c.prober.HasCamera(ctx)
	if err != nil || !ok {
		c.log.Infow("no camera available, using hid input", "error", err)
		c.metrics.CameraFallback()
		c.SwitchToHID()
		return
	}
	c.SwitchToCamera()
}

func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.cancelPendingLocked()
	c.mu.Unlock()

	c.cancel()
	c.sessions.StopSession(context.Background())
}

func (c *Controller) State() domain.KioskState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) SwitchToCamera() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.Source = domain.SourceCamera
	c.buffer.Reset()
	c.resetLocked()
	c.publishLocked()
	c.mu.Unlock()

	c.metrics.SourceSwitch(string(domain.SourceCamera))
	c.log.Infow("input source switched", "source", domain.SourceCamera)
	c.startCamera()
}

func (c *Controller) SwitchToHID() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.Source = domain.SourceHID
	c.buffer.Reset()
	c.resetLocked()
	c.publishLocked()
	c.mu.Unlock()

	c.sessions.StopSession(c.ctx)
	c.metrics.SourceSwitch(string(domain.SourceHID))
	c.log.Infow("input source switched", "source", domain.SourceHID)
	c.display.FocusCapture()
}

func (c *Controller) SwitchTo(source domain.InputSource) {
	if source == domain.SourceHID {
		c.SwitchToHID()
		return
	}
	c.SwitchToCamera()
}

// HandleKey processes one key-down while HID is the active source. Focus is
// re-asserted whenever the display reports it drifted from the capture element.
func (c *Controller) HandleKey(key string, focused bool) {
	c.mu.Lock()
	if c.closed || c.state.Source != domain.SourceHID {
		c.mu.Unlock()
		return
	}
	code, ok := c.buffer.Feed(key)
	c.mu.Unlock()

	if !focused {
		c.display.FocusCapture()
	}
	if ok {
		c.resolve(code, OriginHID)
	}
}

// Submit hands a decoded value to the resolution pipeline. It reports
// false when a resolution is already being shown.
func (c *Controller) Submit(code string) bool {
	return c.resolve(code, OriginAPI)
}

// OrientationChanged records a new viewport. Crossing between portrait and
// landscape recreates a scanning camera session since the capture box
// depends on orientation.
func (c *Controller) OrientationChanged(vp domain.Viewport) {
	c.mu.Lock()
	changed := vp.Landscape() != c.viewport.Landscape()
	c.viewport = vp
	src, mode := c.state.Source, c.state.Mode
	if changed {
		c.state.Landscape = vp.Landscape()
		c.publishLocked()
	}
	c.mu.Unlock()

	if !changed {
		return
	}
	c.log.Debugw("orientation changed", "landscape", vp.Landscape(), "source", src)
	switch {
	case src == domain.SourceCamera && mode == domain.ModeScanning:
		c.startCamera()
	case src == domain.SourceHID:
		c.display.FocusCapture()
	}
}

func (c *Controller) onCameraDecode(text string) {
	c.mu.Lock()
	active := !c.closed && c.state.Source == domain.SourceCamera
	c.mu.Unlock()

	if active {
		c.resolve(text, OriginCamera)
	}
}

func (c *Controller) startCamera() {
	c.mu.Lock()
	if c.closed || c.state.Source != domain.SourceCamera || c.state.Mode != domain.ModeScanning {
		c.mu.Unlock()
		return
	}
	vp := c.viewport
	c.mu.Unlock()

	err := c.sessions.StartCameraSession(c.ctx, vp, c.onCameraDecode)
	switch {
	case err == nil:
		c.mu.Lock()
		stillCamera := !c.closed && c.state.Source == domain.SourceCamera
		// An orientation change during the start was rejected as in progress.
		rotated := stillCamera && c.state.Mode == domain.ModeScanning &&
			c.viewport.Landscape() != vp.Landscape()
		c.mu.Unlock()
		switch {
		case !stillCamera:
			c.sessions.StopSession(c.ctx)
		case rotated:
			c.startCamera()
		}
	case errors.Is(err, session.ErrStartInProgress), errors.Is(err, session.ErrSessionCancelled):
		c.log.Debugw("camera start skipped", "reason", err)
	default:
		c.log.Warnw("camera start failed, falling back to hid input", "error", err)
		c.metrics.CameraFallback()
		c.SwitchToHID()
	}
}

func (c *Controller) resolve(decoded, origin string) bool {
	c.mu.Lock()
	if c.closed || c.state.Mode != domain.ModeScanning {
		c.mu.Unlock()
		c.metrics.Dropped()
		c.log.Infow("scan dropped, resolution in progress", "origin", origin)
		return false
	}
	c.cancelPendingLocked()
	c.generation++
	gen := c.generation
	scanID := uuid.NewString()
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelResolve = cancel
	c.clearDisplayLocked()
	c.state.Mode = domain.ModeLoading
	c.state.ScanID = scanID
	c.publishLocked()
	src := c.state.Source
	c.mu.Unlock()

	// An injected code must not race a live camera session.
	if src == domain.SourceCamera && origin != OriginCamera {
		c.sessions.StopSession(c.ctx)
	}

	c.metrics.Scan(origin)
	c.log.Infow("scan received", "scan_id", scanID, "origin", origin)
	if err := c.display.Feedback(); err != nil {
		c.log.Debugw("feedback failed", "error", err)
	}

	started := c.clock.Now()
	go func() {
		product, err := c.resolver.Resolve(ctx, decoded)
		cancel()
		c.finish(gen, scanID, product, err, c.clock.Now().Sub(started))
	}()
	return true
}

func (c *Controller) finish(gen uint64, scanID string, product *domain.ResolvedProduct, err error, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.generation {
		c.metrics.Resolution(metrics.OutcomeStale, elapsed)
		c.log.Infow("stale resolution discarded", "scan_id", scanID)
		return
	}
	c.cancelResolve = nil

	if err != nil {
		c.metrics.Resolution(metrics.OutcomeFailed, elapsed)
		c.log.Warnw("price lookup failed", "scan_id", scanID, "error", err)
		c.state.Mode = domain.ModeError
		c.state.Error = c.opts.PriceNotFoundMessage
		c.state.ErrorCode = domain.ErrCodePriceNotFound
		c.armResetLocked(c.opts.ErrorReset)
	} else {
		c.metrics.Resolution(metrics.OutcomeResolved, elapsed)
		c.log.Infow("price resolved", "scan_id", scanID, "product", product.ProductName, "price_cents", product.PriceCents)
		c.state.Mode = domain.ModeResult
		c.state.ProductName = product.ProductName
		c.state.Price = c.formatter.Format(product.PriceCents)
		c.armResetLocked(c.opts.ResultReset)
	}
	c.publishLocked()
}

func (c *Controller) armResetLocked(d time.Duration) {
	gen := c.generation
	c.resetTimer = c.clock.AfterFunc(d, func() { c.reset(gen) })
}

// reset returns to scanning and re-arms the active source.
func (c *Controller) reset(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.resetTimer = nil
	c.generation++
	c.clearDisplayLocked()
	c.buffer.Reset()
	c.publishLocked()
	src := c.state.Source
	if src == domain.SourceCamera {
		c.restartTimer = c.clock.AfterFunc(c.opts.RestartDelay, c.startCamera)
	}
	c.mu.Unlock()

	if src == domain.SourceHID {
		c.display.FocusCapture()
	}
}

// resetLocked abandons any in-flight resolution and pending timers.
func (c *Controller) resetLocked() {
	c.cancelPendingLocked()
	c.generation++
	c.clearDisplayLocked()
}

func (c *Controller) cancelPendingLocked() {
	if c.resetTimer != nil {
		c.resetTimer.Stop()
		c.resetTimer = nil
	}
	if c.restartTimer != nil {
		c.restartTimer.Stop()
		c.restartTimer = nil
	}
	if c.cancelResolve != nil {
		c.cancelResolve()
		c.cancelResolve = nil
	}
}

func (c *Controller) clearDisplayLocked() {
	c.state.Mode = domain.ModeScanning
	c.state.ProductName = ""
	c.state.Price = ""
	c.state.Error = ""
	c.state.ErrorCode = 0
	c.state.ScanID = ""
}

func (c *Controller) publishLocked() {
	c.state.UpdatedAt = c.clock.Now()
	c.display.Publish(c.state)
}
