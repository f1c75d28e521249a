//go:build linux

package bluez

import "errors"

// Sentinel errors the orchestrator matches on to decide recovery strategy,
// grounded on the teacher's vendored api/errorkinds package.
var (
	ErrAdapterNotFound         = errors.New("bluez: adapter not found")
	ErrDeviceNotFound          = errors.New("bluez: device not found")
	ErrMediaPlayerNotConnected = errors.New("bluez: media player not connected")
	ErrNotSupported            = errors.New("bluez: not supported")
)
