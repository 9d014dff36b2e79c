package domain

import "encoding/json"

type WebSocketMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Outbound message types.
const (
	MsgState        = "STATE"
	MsgClearSurface = "CLEAR_SURFACE"
	MsgFocusCapture = "FOCUS_CAPTURE"
	MsgFeedback     = "FEEDBACK"
	MsgError        = "ERROR"
)

// Inbound message types.
const (
	MsgKeyDown      = "KEY_DOWN"
	MsgViewport     = "VIEWPORT"
	MsgSwitchSource = "SWITCH_SOURCE"
)

type KeyEvent struct {
	Key     string `json:"key"`
	Focused bool   `json:"focused"`
}

type SwitchSourceRequest struct {
	Source string `json:"source" validate:"required,oneof=camera hid"`
}

type ScanRequest struct {
	Code string `json:"code" validate:"required"`
}

type ViewportRequest struct {
	Width  int `json:"width" validate:"gt=0"`
	Height int `json:"height" validate:"gt=0"`
}

type FeedbackCue struct {
	Beep      bool `json:"beep"`
	VibrateMs int  `json:"vibrateMs"`
}

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	ErrCodePriceNotFound = 2001

	ErrCodeInvalidMessage = 2002
	ErrMsgInvalidMessage  = "The message could not be understood."

	ErrCodePipelineBusy = 2003
	ErrMsgPipelineBusy  = "A scan is already being resolved."
)
