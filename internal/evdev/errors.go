package evdev

import "errors"

var (
	// ErrClosed is returned by operations on a closed device.
	ErrClosed = errors.New("evdev: device closed")

	// ErrKeyOutOfRange is returned for key codes above KeyMax.
	ErrKeyOutOfRange = errors.New("evdev: key code out of range")
)
