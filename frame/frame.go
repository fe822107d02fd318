// Package frame encodes the 4-byte command frames understood by the FPGA
// bridge and the indirect register transactions built on top of them.
package frame

import (
	"fmt"

	"github.com/sarchlab/cimhost/cim"
)

// Size is the length of one command frame in bytes.
const Size = 4

// Operation tags at the outer-address level.
const (
	TagRead  byte = 0
	TagWrite byte = 1
)

// Outer addresses of the bridge.
const (
	OuterCommit  = 1
	OuterAddr    = 2
	OuterDataLo  = 3
	OuterDataHi  = 4
	OuterResLo   = 5
	OuterResHi   = 6
	minOuterAddr = OuterCommit
	maxOuterAddr = OuterResHi
)

// Commit codes written to OuterCommit.
const (
	CommitRead  = 2
	CommitWrite = 3
)

// A Frame is laid out as [payload, outer address, operation tag, reserved].
type Frame [Size]byte

// Payload returns the data byte carried by the frame.
func (f Frame) Payload() byte { return f[0] }

// Outer returns the outer address targeted by the frame.
func (f Frame) Outer() int { return int(f[1]) }

// Tag returns the operation tag of the frame.
func (f Frame) Tag() byte { return f[2] }

// IsWrite tells if the frame writes its payload.
func (f Frame) IsWrite() bool { return f[2] == TagWrite }

func (f Frame) String() string {
	op := "R"
	if f.IsWrite() {
		op = "W"
	}

	return fmt.Sprintf("%s@%d:%02X", op, f.Outer(), f.Payload())
}

func checkOuter(outer int) error {
	if outer < minOuterAddr || outer > maxOuterAddr {
		return fmt.Errorf("outer address %d not in %d..%d: %w",
			outer, minOuterAddr, maxOuterAddr, cim.ErrInvalidAddress)
	}

	return nil
}

// WriteFrame builds a frame that writes data to an outer address.
func WriteFrame(outer, data int) (Frame, error) {
	if err := checkOuter(outer); err != nil {
		return Frame{}, err
	}

	if data < 0 || data > 0xFF {
		return Frame{}, fmt.Errorf("frame payload %d: %w", data, cim.ErrInvalidData)
	}

	return Frame{byte(data), byte(outer), TagWrite, 0}, nil
}

// ReadFrame builds a frame that requests the value at an outer address.
func ReadFrame(outer int) (Frame, error) {
	if err := checkOuter(outer); err != nil {
		return Frame{}, err
	}

	return Frame{0, byte(outer), TagRead, 0}, nil
}

// ParseFrame is the inverse of WriteFrame and ReadFrame.
func ParseFrame(b []byte) (Frame, error) {
	if len(b) != Size {
		return Frame{}, fmt.Errorf("frame of %d bytes: %w", len(b), cim.ErrSizeMismatch)
	}

	f := Frame{b[0], b[1], b[2], b[3]}
	if err := checkOuter(f.Outer()); err != nil {
		return Frame{}, err
	}

	if f.Tag() != TagRead && f.Tag() != TagWrite {
		return Frame{}, fmt.Errorf("operation tag %d: %w", f.Tag(), cim.ErrInvalidData)
	}

	return f, nil
}

// mustWrite and mustRead are used with constant outer addresses only.
func mustWrite(outer int, data byte) Frame {
	f, err := WriteFrame(outer, int(data))
	if err != nil {
		panic(err)
	}

	return f
}

func mustRead(outer int) Frame {
	f, err := ReadFrame(outer)
	if err != nil {
		panic(err)
	}

	return f
}
