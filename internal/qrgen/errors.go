package qrgen

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPayload is returned for an empty payload.
	ErrEmptyPayload = errors.New("payload is empty")
	// ErrLogoRequiresLevelH is returned when a logo is requested below level H.
	ErrLogoRequiresLevelH = errors.New("a logo requires error correction level H")
	// ErrInvalidRequest wraps every other request validation failure.
	ErrInvalidRequest = errors.New("invalid request")
)

// CapacityExceededError reports a payload that does not fit the allowed versions.
type CapacityExceededError struct {
	Length     int
	Level      Level
	Version    int // forced version, 0 when auto-selected
	MaxVersion int
	Err        error
}

func (e *CapacityExceededError) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("payload of %d bytes does not fit QR version %d at level %s", e.Length, e.Version, e.Level)
	}
	return fmt.Sprintf("payload of %d bytes exceeds capacity of QR versions 1-%d at level %s",
		e.Length, e.MaxVersion, e.Level)
}

func (e *CapacityExceededError) Unwrap() error { return e.Err }

// ColorFormatError reports an unparseable colour specification.
type ColorFormatError struct {
	Value  string
	Reason string
}

func (e *ColorFormatError) Error() string {
	return fmt.Sprintf("invalid color %q: %s", e.Value, e.Reason)
}
