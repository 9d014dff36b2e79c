package websocket

import (
	"sync"

	"github.com/cortex-x/go-price-check-kiosk/internal/domain"
	"go.uber.org/zap"
)

// Display renders kiosk state on every connected display client.
// Newly connected clients receive the last published state.
type Display struct {
	hub *Hub
	log *zap.SugaredLogger

	mu    sync.Mutex
	last  domain.KioskState
	known bool
}

func NewDisplay(hub *Hub, log *zap.SugaredLogger) *Display {
	d := &Display{hub: hub, log: log}
	hub.OnConnect(d.greeting)
	return d
}

func (d *Display) greeting() (string, interface{}, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return domain.MsgState, d.last, d.known
}

func (d *Display) Publish(state domain.KioskState) {
	d.mu.Lock()
	d.last = state
	d.known = true
	d.mu.Unlock()

	if err := d.hub.BroadcastMessage(domain.MsgState, state); err != nil {
		d.log.Warnw("failed to broadcast state", "error", err)
	}
}

func (d *Display) ClearSurface() {
	if err := d.hub.BroadcastMessage(domain.MsgClearSurface, nil); err != nil {
		d.log.Warnw("failed to broadcast surface clear", "error", err)
	}
}

func (d *Display) FocusCapture() {
	if err := d.hub.BroadcastMessage(domain.MsgFocusCapture, nil); err != nil {
		d.log.Warnw("failed to broadcast focus request", "error", err)
	}
}

func (d *Display) Feedback() error {
	return d.hub.BroadcastMessage(domain.MsgFeedback, domain.FeedbackCue{Beep: true, VibrateMs: 40})
}
