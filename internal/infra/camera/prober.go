package camera

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
)

// DeviceProber enumerates video capture devices by path pattern.
type DeviceProber struct {
	pattern string
}

func NewDeviceProber(pattern string) *DeviceProber {
	return &DeviceProber{pattern: pattern}
}

func (p *DeviceProber) Devices() ([]string, error) {
	matches, err := filepath.Glob(p.pattern)
	if err != nil {
		return nil, fmt.Errorf("enumerate cameras: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

func (p *DeviceProber) HasCamera(context.Context) (bool, error) {
	devices, err := p.Devices()
	if err != nil {
		return false, err
	}
	return len(devices) > 0, nil
}
