// Package tensor turns weight and activation tensors into the indirect
// writes that feed the accelerator's port registers, and prepares
// activations for the nibble-wide input lanes.
package tensor

import (
	"encoding/binary"
	"fmt"

	"github.com/sarchlab/cimhost/cim"
	"github.com/sarchlab/cimhost/frame"
)

// chunk splits data into big-endian 16-bit words, one indirect write per
// word to port. The device consumes its port registers as a FIFO, so the
// returned order is the transmission order.
func chunk(data []byte, port cim.InnerAddress) []frame.Transaction {
	txns := make([]frame.Transaction, 0, len(data)/2)
	for i := 0; i < len(data); i += 2 {
		word := binary.BigEndian.Uint16(data[i : i+2])
		txns = append(txns, frame.BuildWrite(port, word))
	}

	return txns
}

// EncodeWeights encodes a 512-byte weight tensor into 256 writes to port.
func EncodeWeights(weights []byte, port cim.InnerAddress) ([]frame.Transaction, error) {
	if len(weights) != cim.WeightBytes {
		return nil, fmt.Errorf("weight tensor of %d bytes, want %d: %w",
			len(weights), cim.WeightBytes, cim.ErrSizeMismatch)
	}

	return chunk(weights, port), nil
}

// EncodeActivations encodes a 32-byte activation tensor into 16 writes to
// port.
func EncodeActivations(acts []byte, port cim.InnerAddress) ([]frame.Transaction, error) {
	if len(acts) != cim.ActivationBytes {
		return nil, fmt.Errorf("activation tensor of %d bytes, want %d: %w",
			len(acts), cim.ActivationBytes, cim.ErrSizeMismatch)
	}

	return chunk(acts, port), nil
}

// PackActivations packs 64 nibbles into a 32-byte activation tensor, the
// most significant nibble first within each byte.
func PackActivations(nibbles []uint8) ([]byte, error) {
	if len(nibbles) != cim.Lanes {
		return nil, fmt.Errorf("%d activations, want %d: %w",
			len(nibbles), cim.Lanes, cim.ErrSizeMismatch)
	}

	packed := make([]byte, cim.ActivationBytes)
	for i, n := range nibbles {
		if n > cim.MaxNibble {
			return nil, fmt.Errorf("activation %d is %d: %w", i, n, cim.ErrInvalidData)
		}

		if i%2 == 0 {
			packed[i/2] |= n << 4
		} else {
			packed[i/2] |= n
		}
	}

	return packed, nil
}

// UnpackActivations is the inverse of PackActivations.
func UnpackActivations(acts []byte) ([]uint8, error) {
	if len(acts) != cim.ActivationBytes {
		return nil, fmt.Errorf("activation tensor of %d bytes, want %d: %w",
			len(acts), cim.ActivationBytes, cim.ErrSizeMismatch)
	}

	nibbles := make([]uint8, 0, cim.Lanes)
	for _, b := range acts {
		nibbles = append(nibbles, b>>4, b&0x0F)
	}

	return nibbles, nil
}

// WeightBit returns weight bit n of a weight tensor. Bits are numbered from
// the least significant bit of each byte.
func WeightBit(weights []byte, n int) uint8 {
	return (weights[n/8] >> (n % 8)) & 1
}
