package cim

import "errors"

// Error kinds reported by the protocol layer. Wrapped errors can be matched
// with errors.Is.
var (
	// ErrInvalidAddress reports an outer or inner address out of range.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidData reports a byte, word or nibble value out of range.
	ErrInvalidData = errors.New("invalid data")

	// ErrSizeMismatch reports a tensor or block with an unexpected length.
	ErrSizeMismatch = errors.New("size mismatch")

	// ErrDeviceTimeout reports a status or fullness poll that ran out of
	// retries.
	ErrDeviceTimeout = errors.New("device timeout")
)
