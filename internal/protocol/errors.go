package protocol

import (
	"errors"
	"fmt"
)

// ErrVersionMismatch marks a message whose version field does not equal
// Version. Retrying cannot fix it; the peer speaks a different protocol.
var ErrVersionMismatch = errors.New("protocol version mismatch")

// ErrInvalidMessage marks a message that failed schema validation.
var ErrInvalidMessage = errors.New("invalid protocol message")

// ErrFrameTooLarge marks a frame rejected before parsing.
var ErrFrameTooLarge = errors.New("frame exceeds size limit")

func versionError(got int) error {
	return fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, got, Version)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidMessage, fmt.Sprintf(format, args...))
}
