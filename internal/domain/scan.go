package domain

import (
	"fmt"
	"time"
)

type ScanMode string

const (
	ModeScanning ScanMode = "scanning"
	ModeLoading  ScanMode = "loading"
	ModeResult   ScanMode = "result"
	ModeError    ScanMode = "error"
)

type InputSource string

const (
	SourceCamera InputSource = "camera"
	SourceHID    InputSource = "hid"
)

func ParseInputSource(s string) (InputSource, error) {
	switch InputSource(s) {
	case SourceCamera, SourceHID:
		return InputSource(s), nil
	}
	return "", fmt.Errorf("unknown input source %q", s)
}

type ResolvedProduct struct {
	ProductName string `json:"productName"`
	PriceCents  int64  `json:"priceCents"`
}

// KioskState is the snapshot rendered by display clients.
type KioskState struct {
	Mode        ScanMode    `json:"mode"`
	Source      InputSource `json:"source"`
	ProductName string      `json:"productName,omitempty"`
	Price       string      `json:"price,omitempty"`
	Error       string      `json:"error,omitempty"`
	ErrorCode   int         `json:"errorCode,omitempty"`
	ScanID      string      `json:"scanId,omitempty"`
	Landscape   bool        `json:"landscape"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (v Viewport) Landscape() bool {
	return v.Width > v.Height
}
