package domain

import "context"

type CameraConstraints struct {
	FacingMode string
}

type DecodeOptions struct {
	FPS   int
	QRBox int
}

// Decoder is a single camera decoding session bound to the display's
// rendering surface. A Decoder is started at most once.
type Decoder interface {
	Start(ctx context.Context, constraints CameraConstraints, opts DecodeOptions, onDecode func(text string)) error
	Stop(ctx context.Context) error
	Clear(ctx context.Context) error
	IsScanning() bool
}

type DecoderFactory func() Decoder

type CameraProber interface {
	HasCamera(ctx context.Context) (bool, error)
}

// Display is the UI layer rendering the kiosk state.
type Display interface {
	Publish(state KioskState)
	ClearSurface()
	FocusCapture()
	Feedback() error
}
